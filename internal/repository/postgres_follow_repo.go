package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sleeptrack/internal/model"
)

// PostgresFollowRepo はPostgreSQLを使用したフォロー関係リポジトリ。
type PostgresFollowRepo struct {
	db *sql.DB
}

// NewPostgresFollowRepo はPostgresFollowRepoを生成する。
func NewPostgresFollowRepo(db *sql.DB) *PostgresFollowRepo {
	return &PostgresFollowRepo{db: db}
}

// Create はフォロー関係を作成する。既にフォロー済みの場合はErrDuplicateを返す。
func (r *PostgresFollowRepo) Create(ctx context.Context, f *model.Follow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO follows (id, follower_id, followed_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		f.ID, f.FollowerID, f.FollowedID, f.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("フォロー関係の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByPair はフォロー関係を取得する。見つからない場合はnilを返す。
func (r *PostgresFollowRepo) FindByPair(ctx context.Context, followerID, followedID string) (*model.Follow, error) {
	f := &model.Follow{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, follower_id, followed_id, created_at
		 FROM follows WHERE follower_id = $1 AND followed_id = $2`,
		followerID, followedID,
	).Scan(&f.ID, &f.FollowerID, &f.FollowedID, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フォロー関係の取得に失敗しました: %w", err)
	}
	return f, nil
}

// Delete は指定IDのフォロー関係を削除する。
func (r *PostgresFollowRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM follows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("フォロー関係の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("削除対象のフォロー関係が見つかりません: %s", id)
	}
	return nil
}

// ListFollowedPage はフォロー中のユーザーをフォローした順に返す。
func (r *PostgresFollowRepo) ListFollowedPage(ctx context.Context, followerID string, offset, limit int) ([]model.FollowedUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.name
		 FROM follows f
		 INNER JOIN users u ON u.id = f.followed_id
		 WHERE f.follower_id = $1
		 ORDER BY f.created_at ASC, u.id ASC
		 LIMIT $2 OFFSET $3`,
		followerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("フォロー中ユーザーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []model.FollowedUser
	for rows.Next() {
		var u model.FollowedUser
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, fmt.Errorf("フォロー中ユーザーの読み取りに失敗しました: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フォロー中ユーザーの走査に失敗しました: %w", err)
	}
	return users, nil
}

// CountFollowed はフォロー中のユーザー数を返す。
func (r *PostgresFollowRepo) CountFollowed(ctx context.Context, followerID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM follows WHERE follower_id = $1`,
		followerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("フォロー数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ FollowRepository = (*PostgresFollowRepo)(nil)
