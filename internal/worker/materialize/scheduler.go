// Package materialize は日次サマリー再計算のバックグラウンド処理を提供する。
// キューからジョブを取り出すコンシューマと、直近の日付を定期的に再計算するスケジューラを含む。
package materialize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/sleeptrack/internal/queue"
	"github.com/hitoshi/sleeptrack/internal/stats"
)

// SessionLister は指定日に起床記録済みセッションを持つユーザーを列挙するインターフェース。
type SessionLister interface {
	ListUserIDsWithCompletedSessionsOn(ctx context.Context, date time.Time) ([]string, error)
}

// Scheduler は前日と当日の日次サマリーを定期的に再計算する。
// キューのジョブが失われた場合でも、次のサイクルで日次サマリーが追いつく。
type Scheduler struct {
	sessions       SessionLister
	materializer   queue.Materializer
	logger         *slog.Logger
	clock          stats.Clock
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(
	sessions SessionLister,
	materializer queue.Materializer,
	logger *slog.Logger,
	clock stats.Clock,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = stats.SystemClock
	}
	return &Scheduler{
		sessions:       sessions,
		materializer:   materializer,
		logger:         logger,
		clock:          clock,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("再計算スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("再計算サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("再計算スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("再計算サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は前日と当日について、起床記録済みセッションを持つユーザーの日次サマリーを再計算する。
// 個々の再計算の失敗はログに記録して処理を続ける。対象ユーザーの列挙に失敗した場合のみエラーを返す。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	today := stats.Date(s.clock())
	return s.RunDays(ctx, today.AddDate(0, 0, -1), today)
}

// RunDays は指定した各日付について、起床記録済みセッションを持つユーザーの日次サマリーを再計算する。
// 失敗時の扱いはRunOnceと同じ。
func (s *Scheduler) RunDays(ctx context.Context, days ...time.Time) error {
	start := time.Now()

	var jobs []queue.MaterializeJob
	for _, day := range days {
		day = stats.Date(day)
		userIDs, err := s.sessions.ListUserIDsWithCompletedSessionsOn(ctx, day)
		if err != nil {
			return fmt.Errorf("failed to list users for %s: %w", day.Format(stats.DateLayout), err)
		}
		for _, id := range userIDs {
			jobs = append(jobs, queue.NewMaterializeJob(id, day))
		}
	}

	if len(jobs) == 0 {
		s.logger.Info("再計算対象の日次サマリーはありません")
		return nil
	}

	s.logger.Info("再計算サイクルを開始します",
		slog.Int("job_count", len(jobs)),
	)

	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			day, _ := job.Day()
			if _, err := s.materializer.Materialize(ctx, job.UserID, day); err != nil {
				s.logger.Error("日次サマリーの更新に失敗しました",
					slog.String("user_id", job.UserID),
					slog.String("date", job.Date),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}

	_ = g.Wait()

	duration := time.Since(start)
	s.logger.Info("再計算サイクルが完了しました",
		slog.Int("job_count", len(jobs)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
