// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// テナント解決の結果ラベル
const (
	ResolutionResolved   = "resolved"
	ResolutionUnresolved = "unresolved"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、リアルタイムゲートウェイから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordTenantResolution(outcome string)
	RecordTokenIssued(tenant string)
	RecordQueueTransition(status string)
	RealtimeClientConnected()
	RealtimeClientDisconnected()
	RecordRealtimeMessage(delivered bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus        *prometheus.CounterVec
	tenantResolution  *prometheus.CounterVec
	tokensIssued      *prometheus.CounterVec
	queueTransitions  *prometheus.CounterVec
	realtimeClients   prometheus.Gauge
	realtimeDelivered prometheus.Counter
	realtimeDropped   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinicq_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		tenantResolution: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinicq_tenant_resolution_total",
			Help: "Hostヘッダからのテナント解決結果別のリクエスト数",
		}, []string{"outcome"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinicq_tokens_issued_total",
			Help: "クリニック別の受付番号発行数",
		}, []string{"tenant"}),
		queueTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinicq_queue_transitions_total",
			Help: "遷移先ステータス別の受付番号状態遷移数",
		}, []string{"status"}),
		realtimeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clinicq_realtime_clients",
			Help: "接続中のWebSocketクライアント数",
		}),
		realtimeDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clinicq_realtime_messages_delivered_total",
			Help: "クライアント送信キューに投入されたイベント数",
		}),
		realtimeDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clinicq_realtime_messages_dropped_total",
			Help: "送信キューが満杯で切断されたクライアント宛てのイベント数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.tenantResolution,
		c.tokensIssued,
		c.queueTransitions,
		c.realtimeClients,
		c.realtimeDelivered,
		c.realtimeDropped,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordTenantResolution はテナント解決の結果を記録する。
func (c *Collector) RecordTenantResolution(outcome string) {
	c.tenantResolution.WithLabelValues(outcome).Inc()
}

// RecordTokenIssued は受付番号の発行を記録する。
func (c *Collector) RecordTokenIssued(tenant string) {
	c.tokensIssued.WithLabelValues(tenant).Inc()
}

// RecordQueueTransition は受付番号の状態遷移を記録する。
func (c *Collector) RecordQueueTransition(status string) {
	c.queueTransitions.WithLabelValues(status).Inc()
}

// RealtimeClientConnected は接続中クライアント数を1増やす。
func (c *Collector) RealtimeClientConnected() {
	c.realtimeClients.Inc()
}

// RealtimeClientDisconnected は接続中クライアント数を1減らす。
func (c *Collector) RealtimeClientDisconnected() {
	c.realtimeClients.Dec()
}

// RecordRealtimeMessage はイベント配信の成否を記録する。
func (c *Collector) RecordRealtimeMessage(delivered bool) {
	if delivered {
		c.realtimeDelivered.Inc()
		return
	}
	c.realtimeDropped.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordTenantResolution(string) {}
func (Nop) RecordTokenIssued(string) {}
func (Nop) RecordQueueTransition(string) {}
func (Nop) RealtimeClientConnected() {}
func (Nop) RealtimeClientDisconnected() {}
func (Nop) RecordRealtimeMessage(bool) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
