// Package sleep は睡眠記録（入眠・起床）のドメインロジックを提供する。
package sleep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/sleeptrack/internal/model"
	"github.com/hitoshi/sleeptrack/internal/queue"
	"github.com/hitoshi/sleeptrack/internal/repository"
	"github.com/hitoshi/sleeptrack/internal/stats"
)

// Service は睡眠記録のサービス層。
// 起床を記録したセッションは、入眠日の日次サマリー再計算ジョブとしてキューに投入する。
type Service struct {
	sessionRepo repository.SleepSessionRepository
	enqueuer    queue.Enqueuer
	logger      *slog.Logger
	clock       stats.Clock
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	sessionRepo repository.SleepSessionRepository,
	enqueuer queue.Enqueuer,
	logger *slog.Logger,
	clock stats.Clock,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = stats.SystemClock
	}
	return &Service{
		sessionRepo: sessionRepo,
		enqueuer:    enqueuer,
		logger:      logger,
		clock:       clock,
	}
}

// ClockIn は入眠を記録する。
// アクティブなセッションが既にある場合はACTIVE_SESSION_EXISTSを返す。
func (s *Service) ClockIn(ctx context.Context, userID string) (*model.SleepSession, error) {
	active, err := s.sessionRepo.FindActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("アクティブな睡眠セッションの取得に失敗しました: %w", err)
	}
	if active != nil {
		return nil, model.NewActiveSessionExistsError()
	}

	now := s.clock()
	session := &model.SleepSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		ClockIn:   now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 同時リクエストは部分一意インデックスで弾かれる
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewActiveSessionExistsError()
		}
		return nil, fmt.Errorf("睡眠セッションの作成に失敗しました: %w", err)
	}

	s.logger.Info("入眠を記録しました",
		slog.String("user_id", userID),
		slog.String("session_id", session.ID),
	)
	return session, nil
}

// ClockOut は起床を記録する。
// 睡眠時間は入眠から起床までの経過分数（切り捨て）で、最短時間に満たない場合はSLEEP_TOO_SHORTを返す。
func (s *Service) ClockOut(ctx context.Context, userID, sessionID string) (*model.SleepSession, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, model.NewSleepSessionNotFoundError()
	}

	session, err := s.sessionRepo.FindByIDAndUserID(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("睡眠セッションの取得に失敗しました: %w", err)
	}
	if session == nil {
		return nil, model.NewSleepSessionNotFoundError()
	}
	if !session.IsActive() {
		return nil, model.NewAlreadyClockedOutError()
	}

	now := s.clock()
	minutes := int(now.Sub(session.ClockIn).Minutes())
	if minutes < model.MinimumSleepDurationMinutes {
		return nil, model.NewSleepTooShortError()
	}

	session.ClockOut = &now
	session.DurationMinutes = &minutes
	session.UpdatedAt = now

	if err := s.sessionRepo.UpdateClockOut(ctx, session); err != nil {
		return nil, fmt.Errorf("起床の記録に失敗しました: %w", err)
	}

	s.logger.Info("起床を記録しました",
		slog.String("user_id", userID),
		slog.String("session_id", session.ID),
		slog.Int("duration_minutes", minutes),
	)

	// 起床は記録済みのため、投入に失敗してもエラーにはしない。定期再計算で補われる。
	job := queue.NewMaterializeJob(userID, session.ClockIn)
	if err := s.enqueuer.Enqueue(ctx, job); err != nil {
		s.logger.Error("日次サマリー再計算ジョブの投入に失敗しました",
			slog.String("user_id", userID),
			slog.String("date", job.Date),
			slog.String("error", err.Error()),
		)
	}

	return session, nil
}

// SessionPage は睡眠記録一覧の1ページ分。
type SessionPage struct {
	Sessions   []*model.SleepSession
	Pagination stats.PageInfo
}

// List はユーザーの睡眠記録を入眠時刻の新しい順に返す。
func (s *Service) List(ctx context.Context, userID string, page, perPage int) (*SessionPage, error) {
	req := stats.UserListLimits.Normalize(page, perPage)

	total, err := s.sessionRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("睡眠記録数の取得に失敗しました: %w", err)
	}

	sessions, err := s.sessionRepo.ListByUserID(ctx, userID, req.Offset(), req.PerPage)
	if err != nil {
		return nil, fmt.Errorf("睡眠記録一覧の取得に失敗しました: %w", err)
	}
	if sessions == nil {
		sessions = []*model.SleepSession{}
	}

	return &SessionPage{
		Sessions:   sessions,
		Pagination: stats.NewPageInfo(req, total),
	}, nil
}
