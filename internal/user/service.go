// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hitoshi/sleeptrack/internal/model"
	"github.com/hitoshi/sleeptrack/internal/repository"
	"github.com/hitoshi/sleeptrack/internal/stats"
)

// Service はユーザー管理のサービス層。
// ユーザーの登録・取得・一覧のビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	validate *validator.Validate
	logger   *slog.Logger
	clock    stats.Clock
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, logger *slog.Logger, clock stats.Clock) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = stats.SystemClock
	}
	return &Service{
		userRepo: userRepo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		clock:    clock,
	}
}

// Create はユーザーを登録する。
// 前後の空白を除いた名前が空または長すぎる場合はINVALID_USER_NAME、
// 同名ユーザーが存在する場合はDUPLICATE_USER_NAMEを返す。
func (s *Service) Create(ctx context.Context, name string) (*model.User, error) {
	now := s.clock()
	user := &model.User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.validate.Struct(user); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, model.NewInvalidUserNameError()
		}
		return nil, fmt.Errorf("ユーザーの検証に失敗しました: %w", err)
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateUserNameError(user.Name)
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	s.logger.Info("ユーザーを登録しました",
		slog.String("user_id", user.ID),
		slog.String("user_name", user.Name),
	)
	return user, nil
}

// Get は指定IDのユーザーを返す。見つからない場合はUSER_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewUserNotFoundError()
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UserPage はユーザー一覧の1ページ分。
type UserPage struct {
	Users      []*model.User
	Pagination stats.PageInfo
}

// List はユーザー一覧を登録順に返す。
func (s *Service) List(ctx context.Context, page, perPage int) (*UserPage, error) {
	req := stats.UserListLimits.Normalize(page, perPage)

	total, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー数の取得に失敗しました: %w", err)
	}

	users, err := s.userRepo.List(ctx, req.Offset(), req.PerPage)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}

	return &UserPage{
		Users:      users,
		Pagination: stats.NewPageInfo(req, total),
	}, nil
}
