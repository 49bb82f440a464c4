package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hitoshi/sleeptrack/internal/model"
	"github.com/hitoshi/sleeptrack/internal/stats"
)

// dailySummaryColumns はdaily_sleep_summariesテーブルのSELECT対象カラム。
const dailySummaryColumns = `id, user_id, date, total_sleep_duration_minutes, number_of_sleep_sessions, created_at, updated_at`

// PostgresDailySummaryRepo はPostgreSQLを使用した日次睡眠サマリーリポジトリ。
// 集計クエリの結果を構造体へ対応付けるためにsqlxを使用する。
type PostgresDailySummaryRepo struct {
	db *sqlx.DB
}

// NewPostgresDailySummaryRepo はPostgresDailySummaryRepoを生成する。
func NewPostgresDailySummaryRepo(db *sql.DB) *PostgresDailySummaryRepo {
	return &PostgresDailySummaryRepo{db: sqlx.NewDb(db, "postgres")}
}

// totalsRow は集計クエリ1行分の読み取り先。
type totalsRow struct {
	UserID        string `db:"user_id"`
	UserName      string `db:"user_name"`
	TotalDays     int    `db:"total_days"`
	TotalMinutes  int    `db:"total_minutes"`
	TotalSessions int    `db:"total_sessions"`
	DaysWithSleep int    `db:"days_with_sleep"`
}

func (r totalsRow) totals() stats.Totals {
	return stats.Totals{
		TotalDays:     r.TotalDays,
		TotalMinutes:  r.TotalMinutes,
		TotalSessions: r.TotalSessions,
		DaysWithSleep: r.DaysWithSleep,
	}
}

// Upsert は (user_id, date) をキーに日次サマリーを作成または上書きする。
// 既存行の場合はIDとcreated_atを維持する。集計値が変わらない場合はupdated_atも維持する。
func (r *PostgresDailySummaryRepo) Upsert(ctx context.Context, s *model.DailySummary) error {
	row := r.db.QueryRowxContext(ctx,
		`INSERT INTO daily_sleep_summaries
		   (id, user_id, date, total_sleep_duration_minutes, number_of_sleep_sessions, created_at, updated_at)
		 VALUES ($1, $2, $3::date, $4, $5, $6, $6)
		 ON CONFLICT (user_id, date) DO UPDATE SET
		   total_sleep_duration_minutes = EXCLUDED.total_sleep_duration_minutes,
		   number_of_sleep_sessions = EXCLUDED.number_of_sleep_sessions,
		   updated_at = CASE
		     WHEN daily_sleep_summaries.total_sleep_duration_minutes = EXCLUDED.total_sleep_duration_minutes
		      AND daily_sleep_summaries.number_of_sleep_sessions = EXCLUDED.number_of_sleep_sessions
		     THEN daily_sleep_summaries.updated_at
		     ELSE EXCLUDED.updated_at
		   END
		 RETURNING id, created_at, updated_at`,
		s.ID, s.UserID, s.Date.Format(stats.DateLayout),
		s.TotalSleepDurationMinutes, s.NumberOfSleepSessions, s.UpdatedAt,
	)
	if err := row.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return fmt.Errorf("日次サマリーの保存に失敗しました: %w", err)
	}
	return nil
}

// FindByUserAndDate は日次サマリーを取得する。見つからない場合はnilを返す。
func (r *PostgresDailySummaryRepo) FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*model.DailySummary, error) {
	var s model.DailySummary
	err := r.db.GetContext(ctx, &s,
		`SELECT `+dailySummaryColumns+`
		 FROM daily_sleep_summaries
		 WHERE user_id = $1 AND date = $2::date`,
		userID, date.Format(stats.DateLayout),
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("日次サマリーの取得に失敗しました: %w", err)
	}
	return &s, nil
}

// AggregateByUser は期間内の日次サマリーを集計した基礎量を返す。
func (r *PostgresDailySummaryRepo) AggregateByUser(ctx context.Context, userID string, period stats.Period) (stats.Totals, error) {
	var row totalsRow
	err := r.db.GetContext(ctx, &row,
		`SELECT
		   COUNT(*) AS total_days,
		   COALESCE(SUM(total_sleep_duration_minutes), 0) AS total_minutes,
		   COALESCE(SUM(number_of_sleep_sessions), 0) AS total_sessions,
		   COUNT(*) FILTER (WHERE total_sleep_duration_minutes > 0) AS days_with_sleep
		 FROM daily_sleep_summaries
		 WHERE user_id = $1 AND date BETWEEN $2::date AND $3::date`,
		userID, period.StartString(), period.EndString(),
	)
	if err != nil {
		return stats.Totals{}, fmt.Errorf("睡眠サマリーの集計に失敗しました: %w", err)
	}
	return row.totals(), nil
}

// ListPageByUser は期間内の日次サマリーを睡眠時間の降順、日付の降順で返す。
func (r *PostgresDailySummaryRepo) ListPageByUser(ctx context.Context, userID string, period stats.Period, offset, limit int) ([]model.DailySummary, error) {
	summaries := []model.DailySummary{}
	err := r.db.SelectContext(ctx, &summaries,
		`SELECT `+dailySummaryColumns+`
		 FROM daily_sleep_summaries
		 WHERE user_id = $1 AND date BETWEEN $2::date AND $3::date
		 ORDER BY total_sleep_duration_minutes DESC, date DESC
		 LIMIT $4 OFFSET $5`,
		userID, period.StartString(), period.EndString(), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("日別サマリーの取得に失敗しました: %w", err)
	}
	return summaries, nil
}

// AggregateByUsers は指定ユーザーごとに期間内の日次サマリーを集計する。
// 期間内に日次サマリーがないユーザーも基礎量0で含まれる。
// 並び順は合計睡眠時間の降順、同値の場合はユーザー名のバイト順。
func (r *PostgresDailySummaryRepo) AggregateByUsers(ctx context.Context, userIDs []string, period stats.Period) ([]UserTotals, error) {
	if len(userIDs) == 0 {
		return []UserTotals{}, nil
	}

	var rows []totalsRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT
		   u.id::text AS user_id,
		   u.name AS user_name,
		   COUNT(d.id) AS total_days,
		   COALESCE(SUM(d.total_sleep_duration_minutes), 0) AS total_minutes,
		   COALESCE(SUM(d.number_of_sleep_sessions), 0) AS total_sessions,
		   COUNT(d.id) FILTER (WHERE d.total_sleep_duration_minutes > 0) AS days_with_sleep
		 FROM users u
		 LEFT JOIN daily_sleep_summaries d
		   ON d.user_id = u.id AND d.date BETWEEN $1::date AND $2::date
		 WHERE u.id = ANY($3::uuid[])
		 GROUP BY u.id, u.name
		 ORDER BY total_minutes DESC, u.name COLLATE "C" ASC`,
		period.StartString(), period.EndString(), pq.Array(userIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("フォロー中ユーザーの睡眠サマリー集計に失敗しました: %w", err)
	}

	result := make([]UserTotals, 0, len(rows))
	for _, row := range rows {
		result = append(result, UserTotals{
			UserID:   row.UserID,
			UserName: row.UserName,
			Totals:   row.totals(),
		})
	}
	return result, nil
}

// compile-time interface check
var _ DailySummaryRepository = (*PostgresDailySummaryRepo)(nil)
