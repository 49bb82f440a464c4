package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/sleeptrack/internal/model"
)

// sleepSessionColumns はsleep_sessionsテーブルのSELECT対象カラム。
const sleepSessionColumns = `id, user_id, clock_in_time, clock_out_time, duration_minutes, created_at, updated_at`

// PostgresSleepSessionRepo はPostgreSQLを使用した睡眠セッションリポジトリ。
type PostgresSleepSessionRepo struct {
	db *sql.DB
}

// NewPostgresSleepSessionRepo はPostgresSleepSessionRepoを生成する。
func NewPostgresSleepSessionRepo(db *sql.DB) *PostgresSleepSessionRepo {
	return &PostgresSleepSessionRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSleepSession は1行分の睡眠セッションを読み取る。
func scanSleepSession(row rowScanner) (*model.SleepSession, error) {
	s := &model.SleepSession{}
	var clockOut sql.NullTime
	var duration sql.NullInt64

	if err := row.Scan(&s.ID, &s.UserID, &s.ClockIn, &clockOut, &duration, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if clockOut.Valid {
		t := clockOut.Time
		s.ClockOut = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		s.DurationMinutes = &d
	}
	return s, nil
}

// FindActiveByUserID はユーザーのアクティブなセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSleepSessionRepo) FindActiveByUserID(ctx context.Context, userID string) (*model.SleepSession, error) {
	s, err := scanSleepSession(r.db.QueryRowContext(ctx,
		`SELECT `+sleepSessionColumns+`
		 FROM sleep_sessions WHERE user_id = $1 AND clock_out_time IS NULL`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アクティブな睡眠セッションの取得に失敗しました: %w", err)
	}
	return s, nil
}

// FindByIDAndUserID はユーザーに属するセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSleepSessionRepo) FindByIDAndUserID(ctx context.Context, id, userID string) (*model.SleepSession, error) {
	s, err := scanSleepSession(r.db.QueryRowContext(ctx,
		`SELECT `+sleepSessionColumns+`
		 FROM sleep_sessions WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("睡眠セッションの取得に失敗しました: %w", err)
	}
	return s, nil
}

// Create はセッションを作成する。
func (r *PostgresSleepSessionRepo) Create(ctx context.Context, s *model.SleepSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sleep_sessions (id, user_id, clock_in_time, clock_out_time, duration_minutes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.UserID, s.ClockIn, s.ClockOut, s.DurationMinutes, s.CreatedAt, s.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("睡眠セッションの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateClockOut は起床時刻と睡眠時間を記録する。
// 既に起床記録済みのセッションは更新しない。
func (r *PostgresSleepSessionRepo) UpdateClockOut(ctx context.Context, s *model.SleepSession) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sleep_sessions
		 SET clock_out_time = $2, duration_minutes = $3, updated_at = $4
		 WHERE id = $1 AND clock_out_time IS NULL`,
		s.ID, s.ClockOut, s.DurationMinutes, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("起床時刻の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("更新対象の睡眠セッションが見つかりません: %s", s.ID)
	}
	return nil
}

// ListCompletedByUserAndDate は起床記録済みで、入眠時刻の暦日がdateに一致するセッションを返す。
// 暦日はUTCで判定し、インデックスを使えるよう [date, date+1日) の範囲検索とする。
func (r *PostgresSleepSessionRepo) ListCompletedByUserAndDate(ctx context.Context, userID string, date time.Time) ([]*model.SleepSession, error) {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sleepSessionColumns+`
		 FROM sleep_sessions
		 WHERE user_id = $1
		   AND clock_out_time IS NOT NULL
		   AND clock_in_time >= $2 AND clock_in_time < $3
		 ORDER BY clock_in_time ASC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("日別の睡眠セッション取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectSleepSessions(rows)
}

// ListByUserID はユーザーのセッションを入眠時刻の降順で返す。
func (r *PostgresSleepSessionRepo) ListByUserID(ctx context.Context, userID string, offset, limit int) ([]*model.SleepSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sleepSessionColumns+`
		 FROM sleep_sessions
		 WHERE user_id = $1
		 ORDER BY clock_in_time DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("睡眠セッション一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectSleepSessions(rows)
}

// CountByUserID はユーザーのセッション数を返す。
func (r *PostgresSleepSessionRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sleep_sessions WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("睡眠セッション数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// ListUserIDsWithCompletedSessionsOn は指定日に入眠した起床記録済みセッションを持つユーザーIDを返す。
func (r *PostgresSleepSessionRepo) ListUserIDsWithCompletedSessionsOn(ctx context.Context, date time.Time) ([]string, error) {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT user_id
		 FROM sleep_sessions
		 WHERE clock_out_time IS NOT NULL
		   AND clock_in_time >= $1 AND clock_in_time < $2
		 ORDER BY user_id`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("集計対象ユーザーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("集計対象ユーザーの読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("集計対象ユーザーの走査に失敗しました: %w", err)
	}
	return ids, nil
}

// collectSleepSessions は結果セットから睡眠セッションを読み取る。
func collectSleepSessions(rows *sql.Rows) ([]*model.SleepSession, error) {
	var sessions []*model.SleepSession
	for rows.Next() {
		s, err := scanSleepSession(rows)
		if err != nil {
			return nil, fmt.Errorf("睡眠セッション行の読み取りに失敗しました: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("睡眠セッションの走査に失敗しました: %w", err)
	}
	return sessions, nil
}

// compile-time interface check
var _ SleepSessionRepository = (*PostgresSleepSessionRepo)(nil)
