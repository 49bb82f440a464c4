// Package follow はユーザー間のフォロー関係のドメインロジックを提供する。
package follow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/sleeptrack/internal/model"
	"github.com/hitoshi/sleeptrack/internal/repository"
	"github.com/hitoshi/sleeptrack/internal/stats"
)

// Service はフォロー管理のサービス層。
type Service struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	logger     *slog.Logger
	clock      stats.Clock
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
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
		userRepo:   userRepo,
		followRepo: followRepo,
		logger:     logger,
		clock:      clock,
	}
}

// Follow はfollowerがfollowedをフォローする。
func (s *Service) Follow(ctx context.Context, followerID, followedID string) (*model.Follow, error) {
	if followerID == followedID {
		return nil, model.NewCannotFollowSelfError()
	}
	if _, err := uuid.Parse(followedID); err != nil {
		return nil, model.NewUserNotFoundError()
	}

	target, err := s.userRepo.FindByID(ctx, followedID)
	if err != nil {
		return nil, fmt.Errorf("フォロー対象ユーザーの取得に失敗しました: %w", err)
	}
	if target == nil {
		return nil, model.NewUserNotFoundError()
	}

	follow := &model.Follow{
		ID:         uuid.NewString(),
		FollowerID: followerID,
		FollowedID: target.ID,
		CreatedAt:  s.clock(),
	}
	if err := s.followRepo.Create(ctx, follow); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewAlreadyFollowingError()
		}
		return nil, fmt.Errorf("フォロー関係の作成に失敗しました: %w", err)
	}

	s.logger.Info("ユーザーをフォローしました",
		slog.String("follower_id", followerID),
		slog.String("followed_id", target.ID),
	)
	return follow, nil
}

// Unfollow はフォロー関係を解除する。フォローしていない場合はFOLLOW_NOT_FOUNDを返す。
func (s *Service) Unfollow(ctx context.Context, followerID, followedID string) error {
	if _, err := uuid.Parse(followedID); err != nil {
		return model.NewFollowNotFoundError()
	}

	follow, err := s.followRepo.FindByPair(ctx, followerID, followedID)
	if err != nil {
		return fmt.Errorf("フォロー関係の取得に失敗しました: %w", err)
	}
	if follow == nil {
		return model.NewFollowNotFoundError()
	}

	if err := s.followRepo.Delete(ctx, follow.ID); err != nil {
		return fmt.Errorf("フォロー関係の削除に失敗しました: %w", err)
	}

	s.logger.Info("フォローを解除しました",
		slog.String("follower_id", followerID),
		slog.String("followed_id", followedID),
	)
	return nil
}
