package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	DevicesRegisteredTotal    *prometheus.CounterVec
	DevicesAuthorizedTotal    prometheus.Counter
	DeviceCodeValidationTotal *prometheus.CounterVec
	DevicesSweptTotal         prometheus.Counter
	DevicesActive             prometheus.Gauge
	DevicesPending            prometheus.Gauge

	TokensIssuedTotal       *prometheus.CounterVec
	TokensRefreshedTotal    *prometheus.CounterVec
	TokenGenerationDuration prometheus.Histogram

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init returns a Recorder. With enabled=false a NoopMetrics is returned;
// otherwise prometheus metrics are registered exactly once per process.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}
	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		DevicesRegisteredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devicegate_devices_registered_total",
				Help: "Total number of device registrations",
			},
			[]string{"result"}, // success, error
		),
		DevicesAuthorizedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "devicegate_devices_authorized_total",
				Help: "Total number of devices authorized by users",
			},
		),
		DeviceCodeValidationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devicegate_device_code_validation_total",
				Help: "Total number of device code validations during polling",
			},
			[]string{"result"}, // success, pending, invalid
		),
		DevicesSweptTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "devicegate_devices_swept_total",
				Help: "Total number of expired unauthorized devices deleted by the sweep",
			},
		),
		DevicesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "devicegate_devices_active",
				Help: "Current number of device records",
			},
		),
		DevicesPending: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "devicegate_devices_pending_authorization",
				Help: "Current number of devices pending user authorization",
			},
		),

		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devicegate_tokens_issued_total",
				Help: "Total number of tokens issued",
			},
			[]string{"token_type", "grant_type"},
		),
		TokensRefreshedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devicegate_tokens_refreshed_total",
				Help: "Total number of token refresh attempts",
			},
			[]string{"result"}, // success, error
		),
		TokenGenerationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "devicegate_token_generation_duration_seconds",
				Help:    "Time taken to mint token pairs",
				Buckets: prometheus.DefBuckets,
			},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devicegate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devicegate_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

func (m *Metrics) RecordDeviceRegistered(success bool) {
	m.DevicesRegisteredTotal.WithLabelValues(boolResult(success)).Inc()
}

func (m *Metrics) RecordDeviceAuthorized() {
	m.DevicesAuthorizedTotal.Inc()
}

func (m *Metrics) RecordDeviceCodeValidation(result string) {
	m.DeviceCodeValidationTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSweepDeleted(count int64) {
	m.DevicesSweptTotal.Add(float64(count))
}

func (m *Metrics) SetActiveDevices(total, pending int64) {
	m.DevicesActive.Set(float64(total))
	m.DevicesPending.Set(float64(pending))
}

func (m *Metrics) RecordTokenIssued(tokenType, grantType string, generationTime time.Duration) {
	m.TokensIssuedTotal.WithLabelValues(tokenType, grantType).Inc()
	m.TokenGenerationDuration.Observe(generationTime.Seconds())
}

func (m *Metrics) RecordTokenRefresh(success bool) {
	m.TokensRefreshedTotal.WithLabelValues(boolResult(success)).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func boolResult(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
