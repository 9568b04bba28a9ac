// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやワーカーから利用する。
type MetricsCollector interface {
	RecordGateDecision(state string)
	RecordHTTPStatus(statusCode int)
	ObserveRemoteCall(service, operation string, duration time.Duration, err error)
	RecordBrowsersReaped(count int)
	SetActiveBrowsers(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	gateDecisions  *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	remoteCalls    *prometheus.CounterVec
	remoteLatency  *prometheus.HistogramVec
	browsersReaped prometheus.Counter
	activeBrowsers prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payrollpro_gate_decisions_total",
			Help: "保護ページの認証ゲートの判定結果別の件数",
		}, []string{"state"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payrollpro_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payrollpro_remote_calls_total",
			Help: "外部サービス呼び出しの件数",
		}, []string{"service", "operation", "result"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payrollpro_remote_call_duration_seconds",
			Help:    "外部サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		browsersReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payrollpro_browsers_reaped_total",
			Help: "アイドル期限切れで破棄したブラウザ状態の合計数",
		}),
		activeBrowsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "payrollpro_active_browsers",
			Help: "保持しているブラウザ状態の数",
		}),
	}

	reg.MustRegister(
		c.gateDecisions,
		c.httpStatus,
		c.remoteCalls,
		c.remoteLatency,
		c.browsersReaped,
		c.activeBrowsers,
	)

	return c
}

// RecordGateDecision は認証ゲートの判定結果を記録する。
func (c *Collector) RecordGateDecision(state string) {
	c.gateDecisions.WithLabelValues(state).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// ObserveRemoteCall は外部サービス呼び出しの結果とレイテンシを記録する。
// supabase.Observerを満たす。
func (c *Collector) ObserveRemoteCall(service, operation string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.remoteCalls.WithLabelValues(service, operation, result).Inc()
	c.remoteLatency.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordBrowsersReaped は破棄したブラウザ状態の数を記録する。
func (c *Collector) RecordBrowsersReaped(count int) {
	c.browsersReaped.Add(float64(count))
}

// SetActiveBrowsers は保持しているブラウザ状態の数を設定する。
func (c *Collector) SetActiveBrowsers(count int) {
	c.activeBrowsers.Set(float64(count))
}

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

var _ MetricsCollector = (*Collector)(nil)
