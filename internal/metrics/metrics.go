// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値。
const (
	LoginSuccess            = "success"
	LoginInvalidCredentials = "invalid_credentials"
	LoginError              = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、リポジトリ層、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordRegistration(role string)
	RecordLogin(outcome string)
	RecordDBRetry(operation string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations  *prometheus.CounterVec
	logins         *prometheus.CounterVec
	dbRetries      *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adhira_registrations_total",
			Help: "ロール別のアカウント登録数",
		}, []string{"role"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adhira_logins_total",
			Help: "結果別のログイン試行数",
		}, []string{"outcome"}),
		dbRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adhira_db_transient_retries_total",
			Help: "一時的なDBエラーによる再試行数",
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adhira_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adhira_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.logins,
		c.dbRetries,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordRegistration はアカウント登録の成功を記録する。
func (c *Collector) RecordRegistration(role string) {
	c.registrations.WithLabelValues(role).Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordDBRetry は一時的エラーによる再試行を記録する。
func (c *Collector) RecordDBRetry(operation string) {
	c.dbRetries.WithLabelValues(operation).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。メトリクス未設定時やテストで使う。
type Nop struct{}

func (Nop) RecordRegistration(string) {}
func (Nop) RecordLogin(string) {}
func (Nop) RecordDBRetry(string) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordRequestLatency(time.Duration) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
