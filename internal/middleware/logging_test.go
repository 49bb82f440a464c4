package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/sleeptrack/internal/metrics"
)

// serveLogged はhandlerをロギングミドルウェアで包んで1リクエスト処理し、出力されたログを返す。
func serveLogged(t *testing.T, wrap func(http.Handler) http.Handler, handler http.HandlerFunc, req *http.Request) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var h http.Handler = handler
	if wrap != nil {
		h = wrap(h)
	}
	NewLoggingMiddleware(logger, nil)(h).ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

// TestLoggingMiddleware_LogsRequestFields はリクエストログに必要なフィールドが含まれることを検証する。
func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	entry := serveLogged(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}, httptest.NewRequest(http.MethodGet, "/api/v1/sleep_summaries", nil))

	if entry["msg"] != "http_request" {
		t.Errorf("msg = %q, want %q", entry["msg"], "http_request")
	}
	if entry["method"] != "GET" {
		t.Errorf("method = %q, want %q", entry["method"], "GET")
	}
	if entry["path"] != "/api/v1/sleep_summaries" {
		t.Errorf("path = %q, want %q", entry["path"], "/api/v1/sleep_summaries")
	}
	if entry["status"] != float64(200) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if entry["bytes"] != float64(len(`{"status":"ok"}`)) {
		t.Errorf("bytes = %v, want %d", entry["bytes"], len(`{"status":"ok"}`))
	}
	if d, ok := entry["duration_ms"].(float64); !ok || d < 0 {
		t.Errorf("duration_ms = %v, want >= 0", entry["duration_ms"])
	}
	if _, ok := entry["user_id"]; ok {
		t.Errorf("user_id should be omitted for unauthenticated request, got %v", entry["user_id"])
	}
}

// TestLoggingMiddleware_IncludesUserIDFromAuth は内側の認証ミドルウェアが特定したユーザーIDがログに含まれることを検証する。
func TestLoggingMiddleware_IncludesUserIDFromAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sleep_summaries", nil)
	req.Header.Set("Authorization", "alice")

	entry := serveLogged(t, NewAuthMiddleware(aliceFinder()), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, req)

	if entry["user_id"] != "user-alice" {
		t.Errorf("user_id = %q, want %q", entry["user_id"], "user-alice")
	}
}

// TestLoggingMiddleware_IncludesRequestID はchiのRequestIDがログに含まれることを検証する。
func TestLoggingMiddleware_IncludesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := chimw.RequestID(NewLoggingMiddleware(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/users/u-1/unfollow", nil)
	req.Header.Set("X-Request-Id", "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v", err)
	}
	if entry["request_id"] != "req-42" {
		t.Errorf("request_id = %q, want %q", entry["request_id"], "req-42")
	}
}

// TestLoggingMiddleware_LevelFollowsStatus はステータスコードに応じてログレベルが変わることを検証する。
func TestLoggingMiddleware_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		statusCode int
		wantLevel  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusCreated, "INFO"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusNotFound, "WARN"},
		{http.StatusTooManyRequests, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.statusCode), func(t *testing.T) {
			entry := serveLogged(t, nil, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}, httptest.NewRequest(http.MethodGet, "/test", nil))

			if status := int(entry["status"].(float64)); status != tt.statusCode {
				t.Errorf("status = %d, want %d", status, tt.statusCode)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %q, want %q", entry["level"], tt.wantLevel)
			}
		})
	}
}

// TestLoggingMiddleware_FirstStatusWins は複数回のWriteHeaderで最初のステータスが記録されることを検証する。
func TestLoggingMiddleware_FirstStatusWins(t *testing.T) {
	entry := serveLogged(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.WriteHeader(http.StatusOK)
	}, httptest.NewRequest(http.MethodPost, "/api/v1/users", nil))

	if status := int(entry["status"].(float64)); status != http.StatusConflict {
		t.Errorf("status = %d, want %d", status, http.StatusConflict)
	}
}

// statusCountingCollector はHTTPステータスの記録だけを保持するテスト用コレクター。
type statusCountingCollector struct {
	metrics.NopCollector
	codes []int
}

func (c *statusCountingCollector) RecordHTTPStatus(code int) {
	c.codes = append(c.codes, code)
}

// TestLoggingMiddleware_RecordsStatusMetric はステータスコードがメトリクスに記録されることを検証する。
func TestLoggingMiddleware_RecordsStatusMetric(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	collector := &statusCountingCollector{}

	handler := NewLoggingMiddleware(logger, collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/sleep_records/x/clock_out", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(collector.codes) != 1 || collector.codes[0] != http.StatusUnprocessableEntity {
		t.Errorf("recorded codes = %v, want [422]", collector.codes)
	}
}
