package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/sleeptrack/internal/metrics"
)

// DefaultKey は再計算ジョブを格納するRedisリストのキー。
const DefaultKey = "sleeptrack:materialize"

// NewRedisClient はredis://形式のURLからクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisQueue はRedisのリストを使った再計算ジョブキュー。
// LPUSHで投入し、BRPOPで取り出すため先入れ先出しになる。
type RedisQueue struct {
	client  *redis.Client
	key     string
	metrics metrics.MetricsCollector
}

// NewRedisQueue はRedisQueueを生成する。keyが空の場合はDefaultKeyを使用する。
func NewRedisQueue(client *redis.Client, key string, collector metrics.MetricsCollector) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &RedisQueue{client: client, key: key, metrics: collector}
}

// Enqueue はジョブをキューに投入する。
func (q *RedisQueue) Enqueue(ctx context.Context, job MaterializeJob) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue materialize job: %w", err)
	}
	q.metrics.RecordJobsEnqueued(1)
	return nil
}

// Dequeue はジョブを1件取り出す。timeout内にジョブがない場合はnil, nilを返す。
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*MaterializeJob, error) {
	result, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue materialize job: %w", err)
	}
	// BRPOPは [キー, 値] を返す
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply: %v", result)
	}
	return decodeJob([]byte(result[1]))
}

// Len はキューに残っているジョブ数を返す。
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return n, nil
}

var _ Enqueuer = (*RedisQueue)(nil)
