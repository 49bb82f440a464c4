package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/sleeptrack/internal/middleware"
	"github.com/hitoshi/sleeptrack/internal/stats"
	"github.com/hitoshi/sleeptrack/internal/summary"
)

// SelfSummaryServiceInterface は自分の睡眠サマリーを生成するサービスインターフェース。
type SelfSummaryServiceInterface interface {
	Report(ctx context.Context, q summary.SelfQuery) (*summary.SelfReport, error)
}

// FollowingSummaryServiceInterface はフォロー中ユーザーの睡眠サマリーを生成するサービスインターフェース。
type FollowingSummaryServiceInterface interface {
	Report(ctx context.Context, q summary.FollowingQuery) (*summary.FollowingReport, error)
}

// SummaryHandler は睡眠サマリーのHTTPハンドラー。
type SummaryHandler struct {
	self      SelfSummaryServiceInterface
	following FollowingSummaryServiceInterface
}

// NewSummaryHandler はSummaryHandlerを生成する。
func NewSummaryHandler(self SelfSummaryServiceInterface, following FollowingSummaryServiceInterface) *SummaryHandler {
	return &SummaryHandler{self: self, following: following}
}

type periodResponse struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// selfSummaryStats は自分のサマリーの集計値。
// 1日あたりの平均はaverage_sleep_duration_*という名前で返す。
type selfSummaryStats struct {
	TotalSleepDurationMinutes   int     `json:"total_sleep_duration_minutes"`
	TotalSleepDurationHours     float64 `json:"total_sleep_duration_hours"`
	TotalNumberOfSleepSessions  int     `json:"total_number_of_sleep_sessions"`
	AverageSleepDurationMinutes float64 `json:"average_sleep_duration_minutes"`
	AverageSleepDurationHours   float64 `json:"average_sleep_duration_hours"`
	AverageSleepSessionsPerDay  float64 `json:"average_sleep_sessions_per_day"`
	DaysWithSleep               int     `json:"days_with_sleep"`
	TotalDays                   int     `json:"total_days"`
	SleepEfficiencyPercentage   float64 `json:"sleep_efficiency_percentage"`
}

type dailyBreakdownResponse struct {
	Date                      string `json:"date"`
	TotalSleepDurationMinutes int    `json:"total_sleep_duration_minutes"`
	NumberOfSleepSessions     int    `json:"number_of_sleep_sessions"`
}

type selfPagination struct {
	CurrentPage int  `json:"current_page"`
	PerPage     int  `json:"per_page"`
	NextPage    *int `json:"next_page"`
	PrevPage    *int `json:"prev_page"`
	TotalCount  int  `json:"total_count"`
	TotalPages  int  `json:"total_pages"`
}

type selfSummaryResponse struct {
	Period         periodResponse           `json:"period"`
	Summary        selfSummaryStats         `json:"summary"`
	DailyBreakdown []dailyBreakdownResponse `json:"daily_breakdown"`
	Pagination     selfPagination           `json:"pagination"`
}

// friendSummaryResponse はフォロー中ユーザー1人分のサマリー。
// 1日あたりの平均はaverage_sleep_per_day_*という名前で返す。
type friendSummaryResponse struct {
	UserName                   string  `json:"user_name"`
	UserID                     string  `json:"user_id"`
	TotalSleepDurationMinutes  int     `json:"total_sleep_duration_minutes"`
	TotalSleepDurationHours    float64 `json:"total_sleep_duration_hours"`
	AverageSleepPerDayMinutes  float64 `json:"average_sleep_per_day_minutes"`
	AverageSleepPerDayHours    float64 `json:"average_sleep_per_day_hours"`
	TotalNumberOfSleepSessions int     `json:"total_number_of_sleep_sessions"`
	AverageSleepSessionsPerDay float64 `json:"average_sleep_sessions_per_day"`
	DaysWithSleep              int     `json:"days_with_sleep"`
	TotalDays                  int     `json:"total_days"`
	SleepEfficiencyPercentage  float64 `json:"sleep_efficiency_percentage"`
}

type followingPagination struct {
	CurrentPage int  `json:"current_page"`
	PerPage     int  `json:"per_page"`
	HasNextPage bool `json:"has_next_page"`
	HasPrevPage bool `json:"has_prev_page"`
	TotalCount  int  `json:"total_count"`
	TotalPages  int  `json:"total_pages"`
}

type followingSummaryResponse struct {
	Period         periodResponse          `json:"period"`
	FriendsSummary []friendSummaryResponse `json:"friends_summary"`
	Pagination     followingPagination     `json:"pagination"`
}

// SelfSummary は認証ユーザー自身の睡眠サマリーを返す。
// GET /api/v1/sleep_summaries?start_date=&end_date=&page=&per=
func (h *SummaryHandler) SelfSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	q := r.URL.Query()
	report, err := h.self.Report(r.Context(), summary.SelfQuery{
		UserID:    userID,
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Page:      queryInt(r, "page"),
		PerPage:   queryInt(r, "per"),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSelfSummaryResponse(report))
}

// FollowingSummary はフォロー中ユーザーの直近1週間の睡眠サマリーを返す。
// GET /api/v1/following_sleep_summaries?page=&per=
func (h *SummaryHandler) FollowingSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	report, err := h.following.Report(r.Context(), summary.FollowingQuery{
		UserID:  userID,
		Page:    queryInt(r, "page"),
		PerPage: queryInt(r, "per"),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFollowingSummaryResponse(report))
}

func toPeriodResponse(p stats.Period) periodResponse {
	return periodResponse{StartDate: p.StartString(), EndDate: p.EndString()}
}

func toSelfSummaryResponse(report *summary.SelfReport) selfSummaryResponse {
	s := report.Summary
	breakdown := make([]dailyBreakdownResponse, len(report.DailyBreakdown))
	for i, d := range report.DailyBreakdown {
		breakdown[i] = dailyBreakdownResponse{
			Date:                      d.Date.Format(stats.DateLayout),
			TotalSleepDurationMinutes: d.TotalSleepDurationMinutes,
			NumberOfSleepSessions:     d.NumberOfSleepSessions,
		}
	}

	p := report.Pagination
	return selfSummaryResponse{
		Period: toPeriodResponse(report.Period),
		Summary: selfSummaryStats{
			TotalSleepDurationMinutes:   s.TotalSleepDurationMinutes,
			TotalSleepDurationHours:     s.TotalSleepDurationHours,
			TotalNumberOfSleepSessions:  s.TotalNumberOfSleepSessions,
			AverageSleepDurationMinutes: s.AverageSleepMinutesPerDay,
			AverageSleepDurationHours:   s.AverageSleepHoursPerDay,
			AverageSleepSessionsPerDay:  s.AverageSleepSessionsPerDay,
			DaysWithSleep:               s.DaysWithSleep,
			TotalDays:                   s.TotalDays,
			SleepEfficiencyPercentage:   s.SleepEfficiencyPercentage,
		},
		DailyBreakdown: breakdown,
		Pagination: selfPagination{
			CurrentPage: p.CurrentPage,
			PerPage:     p.PerPage,
			NextPage:    p.NextPage(),
			PrevPage:    p.PrevPage(),
			TotalCount:  p.TotalCount,
			TotalPages:  p.TotalPages,
		},
	}
}

func toFollowingSummaryResponse(report *summary.FollowingReport) followingSummaryResponse {
	friends := make([]friendSummaryResponse, len(report.FriendsSummary))
	for i, f := range report.FriendsSummary {
		friends[i] = friendSummaryResponse{
			UserName:                   f.UserName,
			UserID:                     f.UserID,
			TotalSleepDurationMinutes:  f.TotalSleepDurationMinutes,
			TotalSleepDurationHours:    f.TotalSleepDurationHours,
			AverageSleepPerDayMinutes:  f.AverageSleepMinutesPerDay,
			AverageSleepPerDayHours:    f.AverageSleepHoursPerDay,
			TotalNumberOfSleepSessions: f.TotalNumberOfSleepSessions,
			AverageSleepSessionsPerDay: f.AverageSleepSessionsPerDay,
			DaysWithSleep:              f.DaysWithSleep,
			TotalDays:                  f.TotalDays,
			SleepEfficiencyPercentage:  f.SleepEfficiencyPercentage,
		}
	}

	p := report.Pagination
	return followingSummaryResponse{
		Period:         toPeriodResponse(report.Period),
		FriendsSummary: friends,
		Pagination: followingPagination{
			CurrentPage: p.CurrentPage,
			PerPage:     p.PerPage,
			HasNextPage: p.HasNext(),
			HasPrevPage: p.HasPrev(),
			TotalCount:  p.TotalCount,
			TotalPages:  p.TotalPages,
		},
	}
}
