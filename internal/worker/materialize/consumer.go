package materialize

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/sleeptrack/internal/queue"
)

// Dequeuer は再計算ジョブを1件ずつ取り出すインターフェース。
type Dequeuer interface {
	// Dequeue はtimeout内にジョブがない場合nil, nilを返す。
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.MaterializeJob, error)
}

// Consumer はキューからジョブを取り出して日次サマリーを再計算する。
// 失敗したジョブは再投入しない。取りこぼしはSchedulerの定期実行で補う。
type Consumer struct {
	queue        Dequeuer
	materializer queue.Materializer
	logger       *slog.Logger
	popTimeout   time.Duration
	backoff      func(consecutiveErrors int) time.Duration
}

// NewConsumer はConsumerの新しいインスタンスを生成する。
// popTimeoutが0以下の場合はデフォルト値5秒を使用する。
func NewConsumer(q Dequeuer, materializer queue.Materializer, logger *slog.Logger, popTimeout time.Duration) *Consumer {
	if popTimeout <= 0 {
		popTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		queue:        q,
		materializer: materializer,
		logger:       logger,
		popTimeout:   popTimeout,
		backoff:      dequeueBackoff,
	}
}

// Start はコンテキストがキャンセルされるまでジョブを処理し続ける。
// キューの取得に連続して失敗した場合は指数バックオフで待機する。
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Info("再計算ジョブの処理を開始しました",
		slog.Duration("pop_timeout", c.popTimeout),
	)

	consecutiveErrors := 0
	for {
		if ctx.Err() != nil {
			c.logger.Info("再計算ジョブの処理を停止しました")
			return
		}

		if _, err := c.ProcessOne(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			consecutiveErrors++
			wait := c.backoff(consecutiveErrors)
			c.logger.Error("再計算ジョブの取得に失敗しました",
				slog.String("error", err.Error()),
				slog.Int("consecutive_errors", consecutiveErrors),
				slog.Duration("retry_after", wait),
			)
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
			continue
		}
		consecutiveErrors = 0
	}
}

// ProcessOne はジョブを1件取り出して処理する。
// ジョブを処理した場合はtrue、タイムアウトでジョブがなかった場合はfalseを返す。
// 再計算の失敗はログに記録するだけで、エラーとしては返さない。
func (c *Consumer) ProcessOne(ctx context.Context) (bool, error) {
	job, err := c.queue.Dequeue(ctx, c.popTimeout)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	day, err := job.Day()
	if err != nil {
		c.logger.Error("再計算ジョブの日付が不正です",
			slog.String("user_id", job.UserID),
			slog.String("date", job.Date),
		)
		return true, nil
	}

	if _, err := c.materializer.Materialize(ctx, job.UserID, day); err != nil {
		c.logger.Error("日次サマリーの更新に失敗しました",
			slog.String("user_id", job.UserID),
			slog.String("date", job.Date),
			slog.String("error", err.Error()),
		)
	}
	return true, nil
}
