package loadgen

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exporter mirrors samples into Prometheus metrics.
type Exporter struct {
	Durations *prometheus.HistogramVec
	Samples   *prometheus.CounterVec
	Failures  *prometheus.CounterVec
}

// NewExporter registers the probe metrics on reg.
func NewExporter(reg prometheus.Registerer) *Exporter {
	factory := promauto.With(reg)
	return &Exporter{
		Durations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "probe_duration_milliseconds",
				Help:    "Probe timings by metric and type",
				Buckets: prometheus.ExponentialBuckets(5, 2, 14),
			},
			[]string{"metric", "type"},
		),
		Samples: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "probe_checks_total",
				Help: "Total number of pass/fail checks by metric and type",
			},
			[]string{"metric", "type"},
		),
		Failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "probe_check_failures_total",
				Help: "Total number of failed checks by metric and type",
			},
			[]string{"metric", "type"},
		),
	}
}

// Record implements Recorder.
func (e *Exporter) Record(s Sample) {
	t := s.Tags["type"]
	if t == "" {
		t = s.Tags["scenario"]
	}
	if isRate(s.Metric) {
		e.Samples.WithLabelValues(s.Metric, t).Inc()
		if s.Value > 0 {
			e.Failures.WithLabelValues(s.Metric, t).Inc()
		}
		return
	}
	e.Durations.WithLabelValues(s.Metric, t).Observe(s.Value)
}
