package queue

import (
	"context"
	"log/slog"

	"github.com/hitoshi/sleeptrack/internal/metrics"
)

// InlineQueue はジョブを投入時にその場で実行するEnqueuer。
// Redisを使わない構成で使用する。再計算の失敗はログに記録するだけで、呼び出し元には返さない。
type InlineQueue struct {
	materializer Materializer
	logger       *slog.Logger
	metrics      metrics.MetricsCollector
}

// NewInlineQueue はInlineQueueを生成する。
func NewInlineQueue(materializer Materializer, logger *slog.Logger, collector metrics.MetricsCollector) *InlineQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &InlineQueue{materializer: materializer, logger: logger, metrics: collector}
}

// Enqueue はジョブを同期的に実行する。
func (q *InlineQueue) Enqueue(ctx context.Context, job MaterializeJob) error {
	q.metrics.RecordJobsEnqueued(1)

	day, err := job.Day()
	if err != nil {
		q.logger.Error("再計算ジョブの日付が不正です",
			slog.String("user_id", job.UserID),
			slog.String("date", job.Date),
		)
		return nil
	}

	if _, err := q.materializer.Materialize(ctx, job.UserID, day); err != nil {
		q.logger.Error("日次サマリーの更新に失敗しました",
			slog.String("user_id", job.UserID),
			slog.String("date", job.Date),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

var _ Enqueuer = (*InlineQueue)(nil)
