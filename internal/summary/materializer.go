// Package summary は日次睡眠サマリーの再計算と、
// 自分およびフォロー中ユーザーの睡眠サマリーレポートを提供する。
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hitoshi/sleeptrack/internal/metrics"
	"github.com/hitoshi/sleeptrack/internal/model"
	"github.com/hitoshi/sleeptrack/internal/repository"
	"github.com/hitoshi/sleeptrack/internal/stats"
)

// 再計算失敗の原因ラベル。
const (
	failureUserNotFound = "user_not_found"
	failureInvalid      = "invalid"
	failureError        = "error"
)

// Materializer は生の睡眠セッションから (ユーザー, 日付) 単位の日次サマリーを再計算する。
// 日次サマリーの唯一の書き込み元であり、同じ入力に対して何度実行しても同じ結果になる。
type Materializer struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SleepSessionRepository
	summaryRepo repository.DailySummaryRepository
	validate    *validator.Validate
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	clock       stats.Clock
}

// NewMaterializer はMaterializerの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録せず、clockがnilの場合はシステム時刻を使用する。
func NewMaterializer(
	userRepo repository.UserRepository,
	sessionRepo repository.SleepSessionRepository,
	summaryRepo repository.DailySummaryRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	clock stats.Clock,
) *Materializer {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = stats.SystemClock
	}
	return &Materializer{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		summaryRepo: summaryRepo,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		metrics:     collector,
		logger:      logger,
		clock:       clock,
	}
}

// Materialize は指定ユーザー・指定日の日次サマリーを再計算して保存する。
// dateがゼロ値の場合は現在日を対象とする。
// 入眠日がdateに一致する起床記録済みセッションの睡眠時間を合計し、件数を数える。
// セッションがない日も0のサマリーとして保存する。
func (m *Materializer) Materialize(ctx context.Context, userID string, date time.Time) (*model.DailySummary, error) {
	now := m.clock()
	if date.IsZero() {
		date = now
	}
	date = stats.Date(date)

	user, err := m.userRepo.FindByID(ctx, userID)
	if err != nil {
		m.metrics.RecordMaterializeFailure(failureError)
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		m.metrics.RecordMaterializeFailure(failureUserNotFound)
		return nil, model.NewUserNotFoundError()
	}

	m.logger.Info("日次サマリーを更新します",
		slog.String("user_id", user.ID),
		slog.String("user_name", user.Name),
		slog.String("date", date.Format(stats.DateLayout)),
	)

	sessions, err := m.sessionRepo.ListCompletedByUserAndDate(ctx, user.ID, date)
	if err != nil {
		m.metrics.RecordMaterializeFailure(failureError)
		return nil, fmt.Errorf("failed to list completed sessions: %w", err)
	}

	totalMinutes := 0
	for _, s := range sessions {
		totalMinutes += s.Duration()
	}

	summary := &model.DailySummary{
		ID:                        uuid.NewString(),
		UserID:                    user.ID,
		Date:                      date,
		TotalSleepDurationMinutes: totalMinutes,
		NumberOfSleepSessions:     len(sessions),
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}

	if err := m.validateSummary(summary); err != nil {
		m.metrics.RecordMaterializeFailure(failureInvalid)
		m.logger.Error("日次サマリーの検証に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("date", date.Format(stats.DateLayout)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if err := m.summaryRepo.Upsert(ctx, summary); err != nil {
		m.metrics.RecordMaterializeFailure(failureError)
		return nil, fmt.Errorf("failed to save daily summary: %w", err)
	}

	m.metrics.RecordMaterializeSuccess()
	m.logger.Info("日次サマリーを更新しました",
		slog.String("user_id", user.ID),
		slog.String("date", date.Format(stats.DateLayout)),
		slog.Int("total_sleep_duration_minutes", summary.TotalSleepDurationMinutes),
		slog.Int("number_of_sleep_sessions", summary.NumberOfSleepSessions),
	)

	return summary, nil
}

// validateSummary は保存前の日次サマリーを検証し、
// 失敗した場合はフィールド単位のメッセージを持つAPIErrorを返す。
func (m *Materializer) validateSummary(summary *model.DailySummary) error {
	err := m.validate.Struct(summary)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate daily summary: %w", err)
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fieldMessage(fe))
	}
	return model.NewSummaryInvalidError(messages)
}

// fieldMessage は検証エラー1件を読みやすいメッセージに変換する。
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s can't be blank", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
