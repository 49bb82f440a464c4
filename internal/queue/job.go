// Package queue は日次サマリー再計算ジョブのキューを提供する。
// Redisが設定されている場合はRedisのリストを使い、
// 未設定の場合はリクエスト処理の中で同期的に再計算する。
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/sleeptrack/internal/model"
	"github.com/hitoshi/sleeptrack/internal/stats"
)

// MaterializeJob は (ユーザー, 日付) の日次サマリー再計算ジョブ。
type MaterializeJob struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
}

// NewMaterializeJob はdateの暦日を対象とするジョブを生成する。
func NewMaterializeJob(userID string, date time.Time) MaterializeJob {
	return MaterializeJob{
		UserID: userID,
		Date:   stats.Date(date).Format(stats.DateLayout),
	}
}

// Day はジョブの対象日を返す。
func (j MaterializeJob) Day() (time.Time, error) {
	d, ok := stats.ParseDate(j.Date)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid job date: %q", j.Date)
	}
	return d, nil
}

// encodeJob はジョブをJSONに変換する。
func encodeJob(job MaterializeJob) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}
	return data, nil
}

// decodeJob はJSONからジョブを復元する。
func decodeJob(data []byte) (*MaterializeJob, error) {
	var job MaterializeJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	if job.UserID == "" {
		return nil, fmt.Errorf("job has no user_id: %s", data)
	}
	return &job, nil
}

// Enqueuer は再計算ジョブを投入するインターフェース。
type Enqueuer interface {
	Enqueue(ctx context.Context, job MaterializeJob) error
}

// Materializer は日次サマリーを再計算するインターフェース。
type Materializer interface {
	Materialize(ctx context.Context, userID string, date time.Time) (*model.DailySummary, error)
}
