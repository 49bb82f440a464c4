// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// レポート種別のラベル値。
const (
	ReportKindSelf      = "self"
	ReportKindFollowing = "following"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカー、サービス層、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordMaterializeSuccess()
	RecordMaterializeFailure(reason string)
	RecordJobsEnqueued(count int)
	RecordReportLatency(kind string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	materializeSuccess prometheus.Counter
	materializeFail    *prometheus.CounterVec
	jobsEnqueued       prometheus.Counter
	reportLatency      *prometheus.HistogramVec
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		materializeSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sleeptrack_materialize_success_total",
			Help: "日次サマリー再計算成功の合計数",
		}),
		materializeFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sleeptrack_materialize_fail_total",
			Help: "日次サマリー再計算失敗の合計数（原因別）",
		}, []string{"reason"}),
		jobsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sleeptrack_jobs_enqueued_total",
			Help: "キューに投入された再計算ジョブの合計数",
		}),
		reportLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sleeptrack_report_latency_seconds",
			Help:    "睡眠サマリーレポート生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sleeptrack_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.materializeSuccess,
		c.materializeFail,
		c.jobsEnqueued,
		c.reportLatency,
		c.httpStatus,
	)

	return c
}

// RecordMaterializeSuccess は日次サマリー再計算の成功を記録する。
func (c *Collector) RecordMaterializeSuccess() {
	c.materializeSuccess.Inc()
}

// RecordMaterializeFailure は日次サマリー再計算の失敗を記録する。
func (c *Collector) RecordMaterializeFailure(reason string) {
	c.materializeFail.WithLabelValues(reason).Inc()
}

// RecordJobsEnqueued はキューに投入したジョブ数を記録する。
func (c *Collector) RecordJobsEnqueued(count int) {
	c.jobsEnqueued.Add(float64(count))
}

// RecordReportLatency はレポート生成のレイテンシを記録する。
func (c *Collector) RecordReportLatency(kind string, duration time.Duration) {
	c.reportLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスを使わない構成やテストで利用する。
type NopCollector struct{}

func (NopCollector) RecordMaterializeSuccess() {}
func (NopCollector) RecordMaterializeFailure(string) {}
func (NopCollector) RecordJobsEnqueued(int) {}
func (NopCollector) RecordReportLatency(string, time.Duration) {}
func (NopCollector) RecordHTTPStatus(int) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
