package summary

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/sleeptrack/internal/metrics"
	"github.com/hitoshi/sleeptrack/internal/model"
	"github.com/hitoshi/sleeptrack/internal/repository"
	"github.com/hitoshi/sleeptrack/internal/stats"
)

// MaxRangeDays は自分の睡眠サマリーで指定できる期間（終了日 - 開始日）の上限日数。
const MaxRangeDays = 90

// SelfQuery は自分の睡眠サマリーの問い合わせ条件。
// StartDate・EndDateはYYYY-MM-DD形式で、空または解析できない場合は直近1週間を使用する。
type SelfQuery struct {
	UserID    string
	StartDate string
	EndDate   string
	Page      int
	PerPage   int
}

// DailyBreakdown は日別内訳の1行。
type DailyBreakdown struct {
	Date                      time.Time
	TotalSleepDurationMinutes int
	NumberOfSleepSessions     int
}

// SelfReport は自分の睡眠サマリーレポート。
// Summaryは期間全体の集計で、ページングの影響を受けない。
type SelfReport struct {
	Period         stats.Period
	Summary        stats.Summary
	DailyBreakdown []DailyBreakdown
	Pagination     stats.PageInfo
}

// selfRanker は日別内訳の並び順（睡眠時間の降順、日付の降順）。
var selfRanker = stats.Ranker[DailyBreakdown]{
	Minutes: func(d DailyBreakdown) int { return d.TotalSleepDurationMinutes },
	TieBreak: func(a, b DailyBreakdown) int {
		return cmp.Compare(b.Date.Unix(), a.Date.Unix())
	},
}

// SelfReporter は自分の睡眠サマリーを生成する。
type SelfReporter struct {
	summaryRepo repository.DailySummaryRepository
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	clock       stats.Clock
}

// NewSelfReporter はSelfReporterの新しいインスタンスを生成する。
func NewSelfReporter(
	summaryRepo repository.DailySummaryRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	clock stats.Clock,
) *SelfReporter {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = stats.SystemClock
	}
	return &SelfReporter{
		summaryRepo: summaryRepo,
		metrics:     collector,
		logger:      logger,
		clock:       clock,
	}
}

// ResolvePeriod は問い合わせの開始日・終了日を解決する。
// 各端は独立に解析し、解析できない端は直近1週間の対応する端で補う。
func ResolvePeriod(startDate, endDate string, now time.Time) stats.Period {
	period := stats.TrailingWeek(now)
	if d, ok := stats.ParseDate(startDate); ok {
		period.Start = d
	}
	if d, ok := stats.ParseDate(endDate); ok {
		period.End = d
	}
	return period
}

// Report は期間内の集計、日別内訳の1ページ、ページ情報を返す。
// 期間がMaxRangeDaysを超える場合は問い合わせを行わずDATE_RANGE_TOO_LONGを返す。
// 開始日が終了日より後の場合は該当行がないため、すべて0のレポートになる。
func (r *SelfReporter) Report(ctx context.Context, q SelfQuery) (*SelfReport, error) {
	start := time.Now()
	defer func() {
		r.metrics.RecordReportLatency(metrics.ReportKindSelf, time.Since(start))
	}()

	period := ResolvePeriod(q.StartDate, q.EndDate, r.clock())
	if period.SpanDays() > MaxRangeDays {
		return nil, model.NewDateRangeTooLongError(MaxRangeDays)
	}

	totals, err := r.summaryRepo.AggregateByUser(ctx, q.UserID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily summaries: %w", err)
	}

	req := stats.SelfLimits.Normalize(q.Page, q.PerPage)

	rows, err := r.summaryRepo.ListPageByUser(ctx, q.UserID, period, req.Offset(), req.PerPage)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily summaries: %w", err)
	}

	breakdown := make([]DailyBreakdown, 0, len(rows))
	for _, row := range rows {
		breakdown = append(breakdown, DailyBreakdown{
			Date:                      row.Date,
			TotalSleepDurationMinutes: row.TotalSleepDurationMinutes,
			NumberOfSleepSessions:     row.NumberOfSleepSessions,
		})
	}
	selfRanker.Sort(breakdown)

	r.logger.Debug("睡眠サマリーを生成しました",
		slog.String("user_id", q.UserID),
		slog.String("start_date", period.StartString()),
		slog.String("end_date", period.EndString()),
		slog.Int("total_days", totals.TotalDays),
	)

	// 集計対象の行数がそのまま日別内訳の総件数になる
	return &SelfReport{
		Period:         period,
		Summary:        stats.Summarize(totals),
		DailyBreakdown: breakdown,
		Pagination:     stats.NewPageInfo(req, totals.TotalDays),
	}, nil
}
