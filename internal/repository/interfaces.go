// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/sleeptrack/internal/model"
	"github.com/hitoshi/sleeptrack/internal/stats"
)

// ErrDuplicate は一意制約違反で作成に失敗したことを表す。
var ErrDuplicate = errors.New("duplicate record")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByName はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.User, error)

	// Create はユーザーを作成する。名前が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// List はユーザー一覧を作成日時の昇順で返す。
	List(ctx context.Context, offset, limit int) ([]*model.User, error)

	// Count はユーザーの総数を返す。
	Count(ctx context.Context) (int, error)
}

// SleepSessionRepository は睡眠セッションの永続化インターフェース。
type SleepSessionRepository interface {
	// FindActiveByUserID はユーザーのアクティブなセッションを取得する。見つからない場合はnilを返す。
	FindActiveByUserID(ctx context.Context, userID string) (*model.SleepSession, error)

	// FindByIDAndUserID はユーザーに属するセッションを取得する。見つからない場合はnilを返す。
	FindByIDAndUserID(ctx context.Context, id, userID string) (*model.SleepSession, error)

	// Create はセッションを作成する。
	// アクティブなセッションが既に存在する場合（部分一意インデックス違反）はErrDuplicateを返す。
	Create(ctx context.Context, session *model.SleepSession) error

	// UpdateClockOut は起床時刻と睡眠時間を記録する。
	UpdateClockOut(ctx context.Context, session *model.SleepSession) error

	// ListCompletedByUserAndDate は起床記録済みで、入眠時刻の暦日がdateに一致するセッションを返す。
	ListCompletedByUserAndDate(ctx context.Context, userID string, date time.Time) ([]*model.SleepSession, error)

	// ListByUserID はユーザーのセッションを入眠時刻の降順で返す。
	ListByUserID(ctx context.Context, userID string, offset, limit int) ([]*model.SleepSession, error)

	// CountByUserID はユーザーのセッション数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// ListUserIDsWithCompletedSessionsOn は指定日に入眠した起床記録済みセッションを持つユーザーIDを返す。
	ListUserIDsWithCompletedSessionsOn(ctx context.Context, date time.Time) ([]string, error)
}

// DailySummaryRepository は日次睡眠サマリーの永続化インターフェース。
type DailySummaryRepository interface {
	// Upsert は (user_id, date) をキーに日次サマリーを作成または上書きする。
	// ID、CreatedAt、UpdatedAtは保存後の値で更新される。
	Upsert(ctx context.Context, summary *model.DailySummary) error

	// FindByUserAndDate は日次サマリーを取得する。見つからない場合はnilを返す。
	FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*model.DailySummary, error)

	// AggregateByUser は期間内の日次サマリーを集計した基礎量を返す。
	AggregateByUser(ctx context.Context, userID string, period stats.Period) (stats.Totals, error)

	// ListPageByUser は期間内の日次サマリーを睡眠時間の降順、日付の降順で返す。
	ListPageByUser(ctx context.Context, userID string, period stats.Period, offset, limit int) ([]model.DailySummary, error)

	// AggregateByUsers は指定ユーザーごとに期間内の日次サマリーを集計する。
	// 期間内に日次サマリーがないユーザーも基礎量0で含まれる。
	AggregateByUsers(ctx context.Context, userIDs []string, period stats.Period) ([]UserTotals, error)
}

// FollowRepository はフォロー関係の永続化インターフェース。
type FollowRepository interface {
	// Create はフォロー関係を作成する。既にフォロー済みの場合はErrDuplicateを返す。
	Create(ctx context.Context, follow *model.Follow) error

	// FindByPair はフォロー関係を取得する。見つからない場合はnilを返す。
	FindByPair(ctx context.Context, followerID, followedID string) (*model.Follow, error)

	// Delete は指定IDのフォロー関係を削除する。
	Delete(ctx context.Context, id string) error

	// ListFollowedPage はフォロー中のユーザーをフォローした順に返す。
	ListFollowedPage(ctx context.Context, followerID string, offset, limit int) ([]model.FollowedUser, error)

	// CountFollowed はフォロー中のユーザー数を返す。
	CountFollowed(ctx context.Context, followerID string) (int, error)
}

// UserTotals はユーザーごとの集計基礎量。
type UserTotals struct {
	UserID   string
	UserName string
	stats.Totals
}
