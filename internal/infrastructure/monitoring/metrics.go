package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gate's Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Login flow metrics
	LoginsStarted *prometheus.CounterVec
	Bootstraps    *prometheus.CounterVec
	CookiesReset  *prometheus.CounterVec
	PendingLogins prometheus.GaugeFunc

	// Identity provider metrics
	IdentityCalls    *prometheus.CounterVec
	IdentityDuration *prometheus.HistogramVec

	startTime time.Time

	// Snapshot for the health endpoint
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds running request totals for the health endpoint
type Snapshot struct {
	TotalRequests int64   `json:"total_requests"`
	TotalErrors   int64   `json:"total_errors"`
	AvgDuration   float64 `json:"avg_duration_seconds"`
	Uptime        float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics registers the gate metrics on reg. pending reports the number
// of logins waiting for the identity provider callback.
func NewMetrics(reg prometheus.Registerer, pending func() int) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gate_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "route"},
		),

		LoginsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_logins_started_total",
				Help: "Logins redirected to the identity provider, by entry point",
			},
			[]string{"profile"},
		),
		Bootstraps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_bootstraps_total",
				Help: "Session bootstrap outcomes, by entry point",
			},
			[]string{"profile", "outcome"},
		),
		CookiesReset: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_cookie_resets_total",
				Help: "Cookie clears, by reason",
			},
			[]string{"reason"},
		),
		PendingLogins: factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "gate_pending_logins",
				Help: "Logins waiting for the identity provider callback",
			},
			func() float64 {
				if pending == nil {
					return 0
				}
				return float64(pending())
			},
		),

		IdentityCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_identity_calls_total",
				Help: "Identity provider calls, by operation and status",
			},
			[]string{"op", "status"},
		),
		IdentityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gate_identity_duration_seconds",
				Help:    "Identity provider call duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"op"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "gate_uptime_seconds",
			Help: "Gate uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, route).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordLoginStarted counts a redirect to the identity provider
func (m *Metrics) RecordLoginStarted(profile string) {
	m.LoginsStarted.WithLabelValues(profile).Inc()
}

// RecordBootstrap counts a bootstrap outcome
func (m *Metrics) RecordBootstrap(profile, outcome string) {
	m.Bootstraps.WithLabelValues(profile, outcome).Inc()
}

// RecordReset counts a cookie clear
func (m *Metrics) RecordReset(reason string) {
	m.CookiesReset.WithLabelValues(reason).Inc()
}

// RecordIdentityCall records an identity provider call
func (m *Metrics) RecordIdentityCall(op, status string, duration time.Duration) {
	m.IdentityCalls.WithLabelValues(op, status).Inc()
	m.IdentityDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// Snapshot returns the running totals
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()

	if s.TotalRequests > 0 {
		s.AvgDuration = s.totalDuration / float64(s.TotalRequests)
	}
	s.Uptime = time.Since(m.startTime).Seconds()
	return s
}
