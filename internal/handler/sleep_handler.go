package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sleeptrack/internal/middleware"
	"github.com/hitoshi/sleeptrack/internal/model"
	"github.com/hitoshi/sleeptrack/internal/sleep"
)

// SleepServiceInterface は睡眠記録ハンドラーが必要とするサービスインターフェース。
type SleepServiceInterface interface {
	ClockIn(ctx context.Context, userID string) (*model.SleepSession, error)
	ClockOut(ctx context.Context, userID, sessionID string) (*model.SleepSession, error)
	List(ctx context.Context, userID string, page, perPage int) (*sleep.SessionPage, error)
}

// SleepHandler は睡眠記録のHTTPハンドラー。
type SleepHandler struct {
	service SleepServiceInterface
}

// NewSleepHandler はSleepHandlerを生成する。
func NewSleepHandler(service SleepServiceInterface) *SleepHandler {
	return &SleepHandler{service: service}
}

// sleepRecordResponse は睡眠記録のAPIレスポンス。
// 起床前の記録ではclock_out_timeとduration_minutesがnullになる。
type sleepRecordResponse struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	ClockInTime     time.Time  `json:"clock_in_time"`
	ClockOutTime    *time.Time `json:"clock_out_time"`
	DurationMinutes *int       `json:"duration_minutes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type sleepRecordListResponse struct {
	SleepRecords []sleepRecordResponse `json:"sleep_records"`
	Meta         pageMeta              `json:"meta"`
}

// ClockIn は入眠を記録する。
// POST /api/v1/sleep_records/clock_in
func (h *SleepHandler) ClockIn(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	s, err := h.service.ClockIn(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSleepRecordResponse(s))
}

// ClockOut は起床を記録する。
// PATCH /api/v1/sleep_records/{id}/clock_out
func (h *SleepHandler) ClockOut(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	s, err := h.service.ClockOut(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSleepRecordResponse(s))
}

// ListSleepRecords は認証ユーザーの睡眠記録を新しい順に返す。
// GET /api/v1/sleep_records?page=&per=
func (h *SleepHandler) ListSleepRecords(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	page, err := h.service.List(r.Context(), userID, queryInt(r, "page"), queryInt(r, "per"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	records := make([]sleepRecordResponse, len(page.Sessions))
	for i, s := range page.Sessions {
		records[i] = toSleepRecordResponse(s)
	}

	writeJSON(w, http.StatusOK, sleepRecordListResponse{
		SleepRecords: records,
		Meta:         toPageMeta(page.Pagination),
	})
}

func toSleepRecordResponse(s *model.SleepSession) sleepRecordResponse {
	return sleepRecordResponse{
		ID:              s.ID,
		UserID:          s.UserID,
		ClockInTime:     s.ClockIn,
		ClockOutTime:    s.ClockOut,
		DurationMinutes: s.DurationMinutes,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}
