package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 邮箱生命周期指标
	EmailsCreated  *prometheus.CounterVec
	EmailsDeleted  prometheus.Counter
	EmailsExpired  prometheus.Counter
	EmailsStored   prometheus.Gauge
	QuotaDenials   *prometheus.CounterVec
	AddressRetries prometheus.Counter

	// 邮件指标
	MessagesReceived    *prometheus.CounterVec
	MessagesEvicted     prometheus.Counter
	AttachmentsDropped  *prometheus.CounterVec
	EmailProcessingTime *prometheus.HistogramVec

	// 清理任务指标
	ReaperRuns     *prometheus.CounterVec
	ReaperDuration prometheus.Histogram

	// 错误与限流指标
	ErrorsTotal     *prometheus.CounterVec
	PanicsTotal     prometheus.Counter
	RateLimitBlocks *prometheus.CounterVec

	// 推送指标
	WebsocketClients prometheus.Gauge
}

// NewMetrics 创建监控指标，指标注册在独立的 Registry 上
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempinbox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempinbox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempinbox_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		EmailsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempinbox_emails_created_total",
				Help: "Total number of temporary emails created",
			},
			[]string{"plan"},
		),
		EmailsDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempinbox_emails_deleted_total",
				Help: "Total number of temporary emails deleted by their owner",
			},
		),
		EmailsExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempinbox_emails_expired_total",
				Help: "Total number of expired temporary emails purged",
			},
		),
		EmailsStored: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempinbox_emails_stored",
				Help: "Number of temporary email records currently stored",
			},
		),
		QuotaDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempinbox_quota_denials_total",
				Help: "Total number of creation requests denied by the active email quota",
			},
			[]string{"plan"},
		),
		AddressRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempinbox_address_retries_total",
				Help: "Total number of generated addresses retried after a conflict",
			},
		),

		MessagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempinbox_messages_received_total",
				Help: "Total number of inbound messages by outcome",
			},
			[]string{"outcome"},
		),
		MessagesEvicted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempinbox_messages_evicted_total",
				Help: "Total number of messages evicted by inbox storage limits",
			},
		),
		AttachmentsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempinbox_attachments_dropped_total",
				Help: "Total number of attachments dropped",
			},
			[]string{"reason"},
		),
		EmailProcessingTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempinbox_email_processing_duration_seconds",
				Help:    "Inbound email processing duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),

		ReaperRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempinbox_reaper_runs_total",
				Help: "Total number of reaper runs by result",
			},
			[]string{"result"},
		),
		ReaperDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tempinbox_reaper_duration_seconds",
				Help:    "Reaper run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempinbox_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),
		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempinbox_panics_total",
				Help: "Total number of recovered panics",
			},
		),
		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempinbox_rate_limit_blocks_total",
				Help: "Total number of requests blocked by rate limiting",
			},
			[]string{"type"},
		),

		WebsocketClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempinbox_websocket_clients",
				Help: "Number of connected websocket clients",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	if responseSize > 0 {
		m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
	}
}

// RecordEmailCreated 记录邮箱创建
func (m *Metrics) RecordEmailCreated(plan string) {
	m.EmailsCreated.WithLabelValues(plan).Inc()
}

// RecordEmailDeleted 记录邮箱删除
func (m *Metrics) RecordEmailDeleted() {
	m.EmailsDeleted.Inc()
}

// RecordEmailsExpired 记录被清理的过期邮箱
func (m *Metrics) RecordEmailsExpired(count int) {
	m.EmailsExpired.Add(float64(count))
}

// UpdateEmailsStored 更新存储中的邮箱数量
func (m *Metrics) UpdateEmailsStored(count int64) {
	m.EmailsStored.Set(float64(count))
}

// RecordQuotaDenied 记录配额拒绝
func (m *Metrics) RecordQuotaDenied(plan string) {
	m.QuotaDenials.WithLabelValues(plan).Inc()
}

// RecordAddressRetry 记录随机地址冲突重试
func (m *Metrics) RecordAddressRetry() {
	m.AddressRetries.Inc()
}

// RecordMessage 记录一次投递结果：stored、duplicate、discarded、expired、not_found
func (m *Metrics) RecordMessage(outcome string) {
	m.MessagesReceived.WithLabelValues(outcome).Inc()
}

// RecordMessagesEvicted 记录被淘汰的旧邮件
func (m *Metrics) RecordMessagesEvicted(count int) {
	if count > 0 {
		m.MessagesEvicted.Add(float64(count))
	}
}

// RecordAttachmentDropped 记录被丢弃的附件
func (m *Metrics) RecordAttachmentDropped(reason string) {
	m.AttachmentsDropped.WithLabelValues(reason).Inc()
}

// RecordEmailProcessingTime 记录入站邮件处理耗时
func (m *Metrics) RecordEmailProcessingTime(source string, duration time.Duration) {
	m.EmailProcessingTime.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordReaperRun 记录一次清理
func (m *Metrics) RecordReaperRun(err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ReaperRuns.WithLabelValues(result).Inc()
	m.ReaperDuration.Observe(duration.Seconds())
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流拦截
func (m *Metrics) RecordRateLimitBlock(limitType string) {
	m.RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// UpdateWebsocketClients 更新 websocket 连接数
func (m *Metrics) UpdateWebsocketClients(count int) {
	m.WebsocketClients.Set(float64(count))
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 /metrics 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
