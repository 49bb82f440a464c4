package materialize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/sleeptrack/internal/model"
)

// --- モック定義 ---

// mockSessionLister はSessionListerのテスト用モック。
type mockSessionLister struct {
	listFunc func(ctx context.Context, date time.Time) ([]string, error)
}

func (m *mockSessionLister) ListUserIDsWithCompletedSessionsOn(ctx context.Context, date time.Time) ([]string, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, date)
	}
	return nil, nil
}

// mockMaterializer はMaterializerのテスト用モック。
type mockMaterializer struct {
	materializeFunc func(ctx context.Context, userID string, date time.Time) (*model.DailySummary, error)
}

func (m *mockMaterializer) Materialize(ctx context.Context, userID string, date time.Time) (*model.DailySummary, error) {
	if m.materializeFunc != nil {
		return m.materializeFunc(ctx, userID, date)
	}
	return &model.DailySummary{UserID: userID, Date: date}, nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

var schedulerNow = time.Date(2024, 6, 15, 3, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return schedulerNow }

func TestNewScheduler_DefaultConcurrency(t *testing.T) {
	var buf bytes.Buffer

	// 0以下の場合はデフォルトの4を使用する
	s := NewScheduler(&mockSessionLister{}, &mockMaterializer{}, newTestLogger(&buf), fixedClock, 0)
	if s.maxConcurrency != 4 {
		t.Errorf("maxConcurrency = %d, want 4 (default)", s.maxConcurrency)
	}

	s = NewScheduler(&mockSessionLister{}, &mockMaterializer{}, newTestLogger(&buf), fixedClock, 7)
	if s.maxConcurrency != 7 {
		t.Errorf("maxConcurrency = %d, want 7", s.maxConcurrency)
	}
}

func TestScheduler_RunOnce_MaterializesYesterdayAndToday(t *testing.T) {
	var buf bytes.Buffer

	var askedDates []string
	lister := &mockSessionLister{
		listFunc: func(ctx context.Context, date time.Time) ([]string, error) {
			askedDates = append(askedDates, date.Format("2006-01-02"))
			if date.Day() == 14 {
				return []string{"u1", "u2"}, nil
			}
			return []string{"u1"}, nil
		},
	}

	var mu sync.Mutex
	var materialized []string
	m := &mockMaterializer{
		materializeFunc: func(ctx context.Context, userID string, date time.Time) (*model.DailySummary, error) {
			mu.Lock()
			materialized = append(materialized, userID+"@"+date.Format("2006-01-02"))
			mu.Unlock()
			return &model.DailySummary{}, nil
		},
	}

	s := NewScheduler(lister, m, newTestLogger(&buf), fixedClock, 2)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() がエラーを返した: %v", err)
	}

	if strings.Join(askedDates, ",") != "2024-06-14,2024-06-15" {
		t.Errorf("問い合わせた日付 = %v", askedDates)
	}

	want := map[string]bool{"u1@2024-06-14": true, "u2@2024-06-14": true, "u1@2024-06-15": true}
	if len(materialized) != len(want) {
		t.Fatalf("再計算件数 = %d, want %d (%v)", len(materialized), len(want), materialized)
	}
	for _, key := range materialized {
		if !want[key] {
			t.Errorf("想定外の再計算: %s", key)
		}
	}
}

func TestScheduler_RunOnce_NoTargets(t *testing.T) {
	var buf bytes.Buffer
	var calls int32
	m := &mockMaterializer{
		materializeFunc: func(ctx context.Context, userID string, date time.Time) (*model.DailySummary, error) {
			atomic.AddInt32(&calls, 1)
			return nil, nil
		},
	}

	s := NewScheduler(&mockSessionLister{}, m, newTestLogger(&buf), fixedClock, 2)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() がエラーを返した: %v", err)
	}
	if calls != 0 {
		t.Errorf("再計算回数 = %d, want 0", calls)
	}
}

func TestScheduler_RunOnce_ListError(t *testing.T) {
	var buf bytes.Buffer
	lister := &mockSessionLister{
		listFunc: func(ctx context.Context, date time.Time) ([]string, error) {
			return nil, errors.New("db connection failed")
		},
	}

	s := NewScheduler(lister, &mockMaterializer{}, newTestLogger(&buf), fixedClock, 2)
	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("RunOnce() は対象ユーザーの列挙に失敗した場合エラーを返すべき")
	}
}

func TestScheduler_RunOnce_ConcurrencyLimit(t *testing.T) {
	var buf bytes.Buffer

	users := make([]string, 20)
	for i := range users {
		users[i] = fmt.Sprintf("user-%d", i)
	}
	lister := &mockSessionLister{
		listFunc: func(ctx context.Context, date time.Time) ([]string, error) {
			return users, nil
		},
	}

	var maxConcurrent, currentConcurrent, count int32
	m := &mockMaterializer{
		materializeFunc: func(ctx context.Context, userID string, date time.Time) (*model.DailySummary, error) {
			current := atomic.AddInt32(&currentConcurrent, 1)
			defer atomic.AddInt32(&currentConcurrent, -1)
			atomic.AddInt32(&count, 1)

			for {
				old := atomic.LoadInt32(&maxConcurrent)
				if current <= old || atomic.CompareAndSwapInt32(&maxConcurrent, old, current) {
					break
				}
			}

			time.Sleep(5 * time.Millisecond)
			return &model.DailySummary{}, nil
		},
	}

	s := NewScheduler(lister, m, newTestLogger(&buf), fixedClock, 3)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() がエラーを返した: %v", err)
	}

	if atomic.LoadInt32(&count) != 40 {
		t.Errorf("再計算回数 = %d, want 40", atomic.LoadInt32(&count))
	}
	if atomic.LoadInt32(&maxConcurrent) > 3 {
		t.Errorf("最大同時実行数 = %d, 3以下であるべき", atomic.LoadInt32(&maxConcurrent))
	}
}

func TestScheduler_RunOnce_FailureDoesNotStopOthers(t *testing.T) {
	var buf bytes.Buffer
	lister := &mockSessionLister{
		listFunc: func(ctx context.Context, date time.Time) ([]string, error) {
			if date.Day() == 15 {
				return nil, nil
			}
			return []string{"u1", "u2", "u3"}, nil
		},
	}

	var count int32
	m := &mockMaterializer{
		materializeFunc: func(ctx context.Context, userID string, date time.Time) (*model.DailySummary, error) {
			atomic.AddInt32(&count, 1)
			if userID == "u2" {
				return nil, errors.New("upsert failed")
			}
			return &model.DailySummary{}, nil
		},
	}

	s := NewScheduler(lister, m, newTestLogger(&buf), fixedClock, 10)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() は個別の再計算失敗でもエラーを返さないべき: %v", err)
	}
	if count != 3 {
		t.Errorf("全ユーザーの再計算が試行されるべき: got %d, want 3", count)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("再計算失敗時にERRORレベルのログが記録されていない: %s", buf.String())
	}
}

func TestScheduler_RunOnce_LogsJobCount(t *testing.T) {
	var buf bytes.Buffer
	lister := &mockSessionLister{
		listFunc: func(ctx context.Context, date time.Time) ([]string, error) {
			return []string{"u1"}, nil
		},
	}

	s := NewScheduler(lister, &mockMaterializer{}, newTestLogger(&buf), fixedClock, 2)
	_ = s.RunOnce(context.Background())

	found := false
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry["job_count"] == float64(2) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("ログに job_count=2 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestScheduler_Start_StopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	var runs int32
	lister := &mockSessionLister{
		listFunc: func(ctx context.Context, date time.Time) ([]string, error) {
			atomic.AddInt32(&runs, 1)
			return nil, nil
		},
	}

	s := NewScheduler(lister, &mockMaterializer{}, newTestLogger(&buf), fixedClock, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	// 起動直後の1回分（前日・当日の2回の問い合わせ）を待つ
	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&runs) < 2 {
		select {
		case <-deadline:
			t.Fatal("起動直後のRunOnceが実行されなかった")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start() がキャンセル後に停止しなかった")
	}
}

func TestScheduler_RunDays_MaterializesGivenDates(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	var listed []string
	var materialized []string

	lister := &mockSessionLister{
		listFunc: func(ctx context.Context, date time.Time) ([]string, error) {
			mu.Lock()
			listed = append(listed, date.Format("2006-01-02"))
			mu.Unlock()
			return []string{"user-1"}, nil
		},
	}
	m := &mockMaterializer{
		materializeFunc: func(ctx context.Context, userID string, date time.Time) (*model.DailySummary, error) {
			mu.Lock()
			materialized = append(materialized, date.Format("2006-01-02"))
			mu.Unlock()
			return &model.DailySummary{UserID: userID, Date: date}, nil
		},
	}

	s := NewScheduler(lister, m, newTestLogger(&buf), fixedClock, 1)
	days := []time.Time{
		time.Date(2024, 6, 1, 22, 30, 0, 0, time.UTC),
		time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
	}
	if err := s.RunDays(context.Background(), days...); err != nil {
		t.Fatalf("RunDays() がエラーを返した: %v", err)
	}

	want := []string{"2024-06-01", "2024-06-02"}
	if fmt.Sprint(listed) != fmt.Sprint(want) {
		t.Errorf("列挙した日付 = %v, want %v", listed, want)
	}
	if fmt.Sprint(materialized) != fmt.Sprint(want) {
		t.Errorf("再計算した日付 = %v, want %v", materialized, want)
	}
}
