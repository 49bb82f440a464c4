// Package model はドメインモデルを定義する。
package model

import "time"

// MinimumSleepDurationMinutes は1回の睡眠セッションとして記録できる最短時間（分）。
const MinimumSleepDurationMinutes = 10

// SleepSession は1回の睡眠（入眠〜起床）を表す。
// ClockOutがnilの間はアクティブなセッションとして扱う。
type SleepSession struct {
	ID              string
	UserID          string
	ClockIn         time.Time
	ClockOut        *time.Time
	DurationMinutes *int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActive はセッションがまだ起床記録されていない場合にtrueを返す。
func (s *SleepSession) IsActive() bool {
	return s.ClockOut == nil
}

// Duration は確定済みの睡眠時間（分）を返す。未確定の場合は0。
func (s *SleepSession) Duration() int {
	if s.DurationMinutes == nil {
		return 0
	}
	return *s.DurationMinutes
}

// DailySummary はユーザーごと・日付ごとの睡眠集計を表す。
// 生のセッションから再計算可能な射影であり、(UserID, Date) で一意。
type DailySummary struct {
	ID                        string    `db:"id"`
	UserID                    string    `db:"user_id" validate:"required"`
	Date                      time.Time `db:"date" validate:"required"`
	TotalSleepDurationMinutes int       `db:"total_sleep_duration_minutes" validate:"gte=0"`
	NumberOfSleepSessions     int       `db:"number_of_sleep_sessions" validate:"gte=0"`
	CreatedAt                 time.Time `db:"created_at"`
	UpdatedAt                 time.Time `db:"updated_at"`
}
