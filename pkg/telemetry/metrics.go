package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the mutation engine.
type Metrics struct {
	config MetricsConfig

	mutations        *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
	conflicts        *prometheus.CounterVec
	policyViolations *prometheus.CounterVec
	auditRecords     *prometheus.CounterVec
	degradedMode     prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// A disabled configuration yields a no-op collector.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Total number of mutation requests by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		mutationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mutation_duration_seconds",
				Help:      "Duration of mutation requests in seconds",
				Buckets:   buckets,
			},
			[]string{"action"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conflicts_total",
				Help:      "Total number of CONFLICT outcomes by reason",
			},
			[]string{"reason"},
		),
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of admission policy violations",
			},
			[]string{"policy", "severity"},
		),
		auditRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_records_total",
				Help:      "Total number of audit records appended",
			},
			[]string{"action"},
		),
		degradedMode: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "degraded_mode",
				Help:      "1 when the backend lacks transactions and writes are applied sequentially",
			},
		),
	}

	registry.MustRegister(
		m.mutations,
		m.mutationDuration,
		m.conflicts,
		m.policyViolations,
		m.auditRecords,
		m.degradedMode,
	)

	return m, nil
}

// RecordMutation records one mutation request with its outcome and duration.
func (m *Metrics) RecordMutation(action, outcome string, duration time.Duration) {
	if m.mutations == nil {
		return
	}
	m.mutations.WithLabelValues(action, outcome).Inc()
	m.mutationDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordConflict records a CONFLICT outcome.
func (m *Metrics) RecordConflict(reason string) {
	if m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(reason).Inc()
}

// RecordPolicyViolation records one admission policy violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// RecordAuditAppend records an appended audit record.
func (m *Metrics) RecordAuditAppend(action string) {
	if m.auditRecords == nil {
		return
	}
	m.auditRecords.WithLabelValues(action).Inc()
}

// SetDegradedMode flags whether writes run without a transaction.
func (m *Metrics) SetDegradedMode(degraded bool) {
	if m.degradedMode == nil {
		return
	}
	if degraded {
		m.degradedMode.Set(1)
		return
	}
	m.degradedMode.Set(0)
}

// Registry exposes the private registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves the metrics endpoint in the background until ctx is done.
func (m *Metrics) StartMetricsServer(ctx context.Context, logger *Logger) error {
	if !m.config.Enabled {
		return nil
	}
	if m.config.ListenAddress == "" {
		return fmt.Errorf("metrics listen address is required")
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	return nil
}
