package summary

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/sleeptrack/internal/model"
	"github.com/hitoshi/sleeptrack/internal/repository"
	"github.com/hitoshi/sleeptrack/internal/stats"
)

// --- モック定義 ---

// fixedClock は固定時刻を返すClockを生成する。
func fixedClock(t time.Time) stats.Clock {
	return func() time.Time { return t }
}

// date はYYYY-MM-DD形式の文字列をUTCの日付に変換する。
func date(s string) time.Time {
	d, ok := stats.ParseDate(s)
	if !ok {
		panic("invalid date: " + s)
	}
	return d
}

// mockUserRepo はUserRepositoryのテスト用モック。
type mockUserRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.User{ID: id, Name: "user-" + id}, nil
}

func (m *mockUserRepo) FindByName(ctx context.Context, name string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	return nil
}

func (m *mockUserRepo) List(ctx context.Context, offset, limit int) ([]*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	return 0, nil
}

// mockSessionRepo はSleepSessionRepositoryのテスト用モック。
type mockSessionRepo struct {
	listCompletedFunc func(ctx context.Context, userID string, date time.Time) ([]*model.SleepSession, error)
}

func (m *mockSessionRepo) FindActiveByUserID(ctx context.Context, userID string) (*model.SleepSession, error) {
	return nil, nil
}

func (m *mockSessionRepo) FindByIDAndUserID(ctx context.Context, id, userID string) (*model.SleepSession, error) {
	return nil, nil
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.SleepSession) error {
	return nil
}

func (m *mockSessionRepo) UpdateClockOut(ctx context.Context, session *model.SleepSession) error {
	return nil
}

func (m *mockSessionRepo) ListCompletedByUserAndDate(ctx context.Context, userID string, date time.Time) ([]*model.SleepSession, error) {
	if m.listCompletedFunc != nil {
		return m.listCompletedFunc(ctx, userID, date)
	}
	return nil, nil
}

func (m *mockSessionRepo) ListByUserID(ctx context.Context, userID string, offset, limit int) ([]*model.SleepSession, error) {
	return nil, nil
}

func (m *mockSessionRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	return 0, nil
}

func (m *mockSessionRepo) ListUserIDsWithCompletedSessionsOn(ctx context.Context, date time.Time) ([]string, error) {
	return nil, nil
}

// completedSession は起床記録済みのセッションを生成する。
func completedSession(userID string, clockIn time.Time, minutes int) *model.SleepSession {
	out := clockIn.Add(time.Duration(minutes) * time.Minute)
	return &model.SleepSession{
		ID:              "session-" + clockIn.Format(time.RFC3339),
		UserID:          userID,
		ClockIn:         clockIn,
		ClockOut:        &out,
		DurationMinutes: &minutes,
	}
}

// memorySummaryRepo はDailySummaryRepositoryのインメモリ実装。
// PostgreSQL実装と同じ並び順・集計規則を再現する。
type memorySummaryRepo struct {
	mu        sync.Mutex
	rows      map[string]model.DailySummary
	names     map[string]string
	upsertErr error

	upsertCalls         int
	aggregateCalls      int
	listCalls           int
	aggregateUsersCalls int
	lastPeriod          stats.Period
	lastUserIDs         []string
}

func newMemorySummaryRepo() *memorySummaryRepo {
	return &memorySummaryRepo{
		rows:  make(map[string]model.DailySummary),
		names: make(map[string]string),
	}
}

func summaryKey(userID string, d time.Time) string {
	return userID + "/" + d.Format(stats.DateLayout)
}

// put は日次サマリーを直接登録する。
func (r *memorySummaryRepo) put(userID, day string, minutes, sessions int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := date(day)
	r.rows[summaryKey(userID, d)] = model.DailySummary{
		ID:                        summaryKey(userID, d),
		UserID:                    userID,
		Date:                      d,
		TotalSleepDurationMinutes: minutes,
		NumberOfSleepSessions:     sessions,
	}
}

func (r *memorySummaryRepo) Upsert(ctx context.Context, s *model.DailySummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertCalls++
	if r.upsertErr != nil {
		return r.upsertErr
	}
	key := summaryKey(s.UserID, s.Date)
	if existing, ok := r.rows[key]; ok {
		s.ID = existing.ID
		s.CreatedAt = existing.CreatedAt
		if existing.TotalSleepDurationMinutes == s.TotalSleepDurationMinutes &&
			existing.NumberOfSleepSessions == s.NumberOfSleepSessions {
			s.UpdatedAt = existing.UpdatedAt
		}
	}
	r.rows[key] = *s
	return nil
}

func (r *memorySummaryRepo) FindByUserAndDate(ctx context.Context, userID string, d time.Time) (*model.DailySummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[summaryKey(userID, d)]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// inPeriod はユーザーの期間内の行を返す。
func (r *memorySummaryRepo) inPeriod(userID string, period stats.Period) []model.DailySummary {
	var rows []model.DailySummary
	for _, s := range r.rows {
		if s.UserID != userID {
			continue
		}
		if s.Date.Before(period.Start) || s.Date.After(period.End) {
			continue
		}
		rows = append(rows, s)
	}
	return rows
}

func totalsOf(rows []model.DailySummary) stats.Totals {
	var t stats.Totals
	for _, s := range rows {
		t.TotalDays++
		t.TotalMinutes += s.TotalSleepDurationMinutes
		t.TotalSessions += s.NumberOfSleepSessions
		if s.TotalSleepDurationMinutes > 0 {
			t.DaysWithSleep++
		}
	}
	return t
}

func (r *memorySummaryRepo) AggregateByUser(ctx context.Context, userID string, period stats.Period) (stats.Totals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregateCalls++
	r.lastPeriod = period
	return totalsOf(r.inPeriod(userID, period)), nil
}

func (r *memorySummaryRepo) ListPageByUser(ctx context.Context, userID string, period stats.Period, offset, limit int) ([]model.DailySummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	rows := r.inPeriod(userID, period)
	slices.SortFunc(rows, func(a, b model.DailySummary) int {
		if a.TotalSleepDurationMinutes != b.TotalSleepDurationMinutes {
			return b.TotalSleepDurationMinutes - a.TotalSleepDurationMinutes
		}
		return b.Date.Compare(a.Date)
	})
	if offset >= len(rows) {
		return []model.DailySummary{}, nil
	}
	end := min(offset+limit, len(rows))
	return rows[offset:end], nil
}

func (r *memorySummaryRepo) AggregateByUsers(ctx context.Context, userIDs []string, period stats.Period) ([]repository.UserTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregateUsersCalls++
	r.lastPeriod = period
	r.lastUserIDs = slices.Clone(userIDs)

	result := make([]repository.UserTotals, 0, len(userIDs))
	for _, id := range userIDs {
		result = append(result, repository.UserTotals{
			UserID:   id,
			UserName: r.names[id],
			Totals:   totalsOf(r.inPeriod(id, period)),
		})
	}
	slices.SortFunc(result, func(a, b repository.UserTotals) int {
		if a.TotalMinutes != b.TotalMinutes {
			return b.TotalMinutes - a.TotalMinutes
		}
		return strings.Compare(a.UserName, b.UserName)
	})
	return result, nil
}

// mockFollowRepo はFollowRepositoryのテスト用モック。
// followedはフォローした順に並んでいるものとする。
type mockFollowRepo struct {
	followed  []model.FollowedUser
	countErr  error
	listCalls int
}

func (m *mockFollowRepo) Create(ctx context.Context, follow *model.Follow) error {
	return nil
}

func (m *mockFollowRepo) FindByPair(ctx context.Context, followerID, followedID string) (*model.Follow, error) {
	return nil, nil
}

func (m *mockFollowRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *mockFollowRepo) ListFollowedPage(ctx context.Context, followerID string, offset, limit int) ([]model.FollowedUser, error) {
	m.listCalls++
	if offset >= len(m.followed) {
		return nil, nil
	}
	end := min(offset+limit, len(m.followed))
	return m.followed[offset:end], nil
}

func (m *mockFollowRepo) CountFollowed(ctx context.Context, followerID string) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.followed), nil
}

// recordingCollector は記録内容を保持するMetricsCollector。
type recordingCollector struct {
	mu        sync.Mutex
	successes int
	failures  map[string]int
	enqueued  int
	latencies map[string]int
	statuses  map[int]int
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{
		failures:  make(map[string]int),
		latencies: make(map[string]int),
		statuses:  make(map[int]int),
	}
}

func (c *recordingCollector) RecordMaterializeSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successes++
}

func (c *recordingCollector) RecordMaterializeFailure(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[reason]++
}

func (c *recordingCollector) RecordJobsEnqueued(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueued += count
}

func (c *recordingCollector) RecordReportLatency(kind string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latencies[kind]++
}

func (c *recordingCollector) RecordHTTPStatus(statusCode int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[statusCode]++
}
