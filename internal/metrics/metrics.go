// Package metrics provides Prometheus instrumentation for compression jobs.
//
// A CLI process is short-lived, so collectors live on a private registry that
// can be pushed to a Pushgateway when a job finishes instead of being scraped.
// All metrics are prefixed with "vidshrink_".
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Attempt and job outcomes used as label values.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeWarning   = "target_not_met"
	OutcomeCopied    = "passthrough"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	AttemptsTotal   *prometheus.CounterVec
	EncodeDuration  *prometheus.HistogramVec
	OutputBytes     prometheus.Histogram
	JobsTotal       *prometheus.CounterVec
	TargetMissTotal prometheus.Counter
	LastRatio       prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		AttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidshrink_encode_attempts_total",
				Help: "Total number of encoder invocations",
			},
			[]string{"attempt", "result"},
		),
		EncodeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vidshrink_encode_duration_seconds",
				Help:    "Wall time of one encode attempt in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
			},
			[]string{"attempt"},
		),
		OutputBytes: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vidshrink_output_bytes",
				Help:    "Size of finished output files in bytes",
				Buckets: prometheus.ExponentialBuckets(1<<20, 2, 12), // 1 MiB .. 2 GiB
			},
		),
		JobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidshrink_jobs_total",
				Help: "Total number of compression jobs by outcome",
			},
			[]string{"outcome"},
		),
		TargetMissTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "vidshrink_target_missed_total",
				Help: "Jobs whose output stayed above the target after the retry",
			},
		),
		LastRatio: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "vidshrink_last_compression_ratio",
				Help: "Source size divided by output size of the last finished job",
			},
		),
	}
}

// Registry exposes the private registry, e.g. for tests or a handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ObserveAttempt records one encoder invocation.
func (m *Metrics) ObserveAttempt(attempt int, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	a := fmt.Sprint(attempt)
	m.AttemptsTotal.WithLabelValues(a, result).Inc()
	if result == OutcomeSuccess {
		m.EncodeDuration.WithLabelValues(a).Observe(elapsed.Seconds())
	}
}

// ObserveJob records the outcome of a finished job.
func (m *Metrics) ObserveJob(outcome string, outputBytes int64, ratio float64) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeWarning {
		m.TargetMissTotal.Inc()
	}
	if outputBytes > 0 {
		m.OutputBytes.Observe(float64(outputBytes))
	}
	if ratio > 0 {
		m.LastRatio.Set(ratio)
	}
}

// Push sends the registry to a Pushgateway at url under job "vidshrink".
func (m *Metrics) Push(ctx context.Context, url string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, "vidshrink").Gatherer(m.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
