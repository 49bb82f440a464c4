package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/sleeptrack/internal/metrics"
	"github.com/hitoshi/sleeptrack/internal/repository"
	"github.com/hitoshi/sleeptrack/internal/stats"
)

// FollowingQuery はフォロー中ユーザーの睡眠サマリーの問い合わせ条件。
// 期間は常に直近1週間で、指定できない。
type FollowingQuery struct {
	UserID  string
	Page    int
	PerPage int
}

// FriendSummary はフォロー中ユーザー1人分の集計。
type FriendSummary struct {
	UserID   string
	UserName string
	stats.Summary
}

// FollowingReport はフォロー中ユーザーの睡眠サマリーレポート。
// ページングはサマリー行ではなくフォロー中ユーザーに対して行う。
type FollowingReport struct {
	Period         stats.Period
	FriendsSummary []FriendSummary
	Pagination     stats.PageInfo
}

// followingRanker はフォロー中ユーザーの並び順（睡眠時間の降順、ユーザー名のバイト順）。
var followingRanker = stats.Ranker[FriendSummary]{
	Minutes: func(f FriendSummary) int { return f.TotalSleepDurationMinutes },
	TieBreak: func(a, b FriendSummary) int {
		return strings.Compare(a.UserName, b.UserName)
	},
}

// FollowingReporter はフォロー中ユーザーの睡眠サマリーを生成する。
type FollowingReporter struct {
	followRepo  repository.FollowRepository
	summaryRepo repository.DailySummaryRepository
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	clock       stats.Clock
}

// NewFollowingReporter はFollowingReporterの新しいインスタンスを生成する。
func NewFollowingReporter(
	followRepo repository.FollowRepository,
	summaryRepo repository.DailySummaryRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	clock stats.Clock,
) *FollowingReporter {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = stats.SystemClock
	}
	return &FollowingReporter{
		followRepo:  followRepo,
		summaryRepo: summaryRepo,
		metrics:     collector,
		logger:      logger,
		clock:       clock,
	}
}

// Report はフォロー中ユーザーを1ページ分取得し、そのユーザーだけを直近1週間で集計する。
// 期間内に日次サマリーがないユーザーもすべて0の集計として含める。
// ページが空の場合は集計クエリを発行しない。
func (r *FollowingReporter) Report(ctx context.Context, q FollowingQuery) (*FollowingReport, error) {
	start := time.Now()
	defer func() {
		r.metrics.RecordReportLatency(metrics.ReportKindFollowing, time.Since(start))
	}()

	period := stats.TrailingWeek(r.clock())
	req := stats.FollowingLimits.Normalize(q.Page, q.PerPage)

	totalCount, err := r.followRepo.CountFollowed(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to count followed users: %w", err)
	}

	followed, err := r.followRepo.ListFollowedPage(ctx, q.UserID, req.Offset(), req.PerPage)
	if err != nil {
		return nil, fmt.Errorf("failed to list followed users: %w", err)
	}

	report := &FollowingReport{
		Period:         period,
		FriendsSummary: []FriendSummary{},
		Pagination:     stats.NewPageInfo(req, totalCount),
	}
	if len(followed) == 0 {
		return report, nil
	}

	ids := make([]string, 0, len(followed))
	for _, u := range followed {
		ids = append(ids, u.ID)
	}

	rows, err := r.summaryRepo.AggregateByUsers(ctx, ids, period)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate followed users: %w", err)
	}

	byID := make(map[string]repository.UserTotals, len(rows))
	for _, row := range rows {
		byID[row.UserID] = row
	}

	// 集計結果に含まれないユーザーも0の集計として補う
	friends := make([]FriendSummary, 0, len(followed))
	for _, u := range followed {
		row, ok := byID[u.ID]
		if !ok {
			row = repository.UserTotals{UserID: u.ID, UserName: u.Name}
		}
		friends = append(friends, FriendSummary{
			UserID:   u.ID,
			UserName: u.Name,
			Summary:  stats.Summarize(row.Totals),
		})
	}
	followingRanker.Sort(friends)
	report.FriendsSummary = friends

	r.logger.Debug("フォロー中ユーザーの睡眠サマリーを生成しました",
		slog.String("user_id", q.UserID),
		slog.Int("friend_count", len(friends)),
		slog.Int("total_count", totalCount),
	)

	return report, nil
}
