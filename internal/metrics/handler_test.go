package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SetupMetricsRoute は/metrics以外のパスを公開しない。
func TestSetupMetricsRoute_Paths(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordReportLatency("self", 120*time.Millisecond)
	c.RecordJobsEnqueued(2)

	route := SetupMetricsRoute(reg)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   []string
	}{
		{
			path:       "/metrics",
			wantStatus: http.StatusOK,
			wantBody: []string{
				`sleeptrack_report_latency_seconds_count{kind="self"} 1`,
				"sleeptrack_jobs_enqueued_total 2",
			},
		},
		{path: "/", wantStatus: http.StatusNotFound},
		{path: "/metrics/extra", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			route.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body, _ := io.ReadAll(rec.Body)
			for _, want := range tt.wantBody {
				if !strings.Contains(string(body), want) {
					t.Errorf("body should contain %q", want)
				}
			}
		})
	}
}
