package telemetry

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for loop generation.
type Metrics struct {
	config MetricsConfig

	// Operator metrics
	operatorRuns     *prometheus.CounterVec
	operatorDuration *prometheus.HistogramVec

	// Loop metrics
	loopsCreated   *prometheus.CounterVec
	classesCreated prometheus.Counter
	simulations    *prometheus.CounterVec

	// Batch metrics
	batchLoops    *prometheus.CounterVec
	batchDuration prometheus.Histogram

	// Store metrics
	storeOps      *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
	storeErrors   *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// Graph lint metrics
	lintViolations *prometheus.CounterVec

	// System metrics
	activeBatches prometheus.Gauge
	graphNodes    prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Every recorder is a no-op on the zero value.
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

		operatorRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operator_runs_total",
				Help:      "Total number of operator executions",
			},
			[]string{"operator", "status"},
		),
		operatorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operator_duration_seconds",
				Help:      "Duration of operator execution in seconds",
				Buckets:   buckets,
			},
			[]string{"operator"},
		),

		loopsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loops_created_total",
				Help:      "Total number of loops persisted",
			},
			[]string{"epoch"},
		),
		classesCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classes_created_total",
				Help:      "Total number of loop equivalence classes created",
			},
		),
		simulations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "simulations_total",
				Help:      "Total number of simulations by result",
			},
			[]string{"result"},
		),

		batchLoops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_loops_total",
				Help:      "Total number of loops produced by batch generation",
			},
			[]string{"status"},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Duration of batch generation in seconds",
				Buckets:   buckets,
			},
		),

		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of loop store operations",
			},
			[]string{"backend", "operation"},
		),
		storeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Duration of loop store operations in seconds",
				Buckets:   buckets,
			},
			[]string{"backend", "operation"},
		),
		storeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Total number of loop store errors",
			},
			[]string{"backend", "operation"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		lintViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_lint_violations_total",
				Help:      "Total number of graph lint violations",
			},
			[]string{"policy", "severity"},
		),

		activeBatches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_batches",
				Help:      "Current number of running batch generations",
			},
		),
		graphNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_nodes",
				Help:      "Number of nodes in the loaded day graph",
			},
		),
	}

	registry.MustRegister(
		m.operatorRuns,
		m.operatorDuration,
		m.loopsCreated,
		m.classesCreated,
		m.simulations,
		m.batchLoops,
		m.batchDuration,
		m.storeOps,
		m.storeDuration,
		m.storeErrors,
		m.errorsByClass,
		m.errorsByCode,
		m.lintViolations,
		m.activeBatches,
		m.graphNodes,
	)

	return m, nil
}

// Operator Metrics

// RecordOperator records one operator execution with its status and duration.
func (m *Metrics) RecordOperator(operator, status string, duration time.Duration) {
	if m.operatorRuns == nil {
		return
	}
	m.operatorRuns.WithLabelValues(operator, status).Inc()
	m.operatorDuration.WithLabelValues(operator).Observe(duration.Seconds())
}

// Loop Metrics

// RecordLoopCreated counts a persisted loop.
func (m *Metrics) RecordLoopCreated(epoch string) {
	if m.loopsCreated == nil {
		return
	}
	m.loopsCreated.WithLabelValues(epoch).Inc()
}

// RecordClassCreated counts a new equivalence class.
func (m *Metrics) RecordClassCreated() {
	if m.classesCreated == nil {
		return
	}
	m.classesCreated.Inc()
}

// RecordSimulation counts a simulation by result (success, death, failed).
func (m *Metrics) RecordSimulation(result string) {
	if m.simulations == nil {
		return
	}
	m.simulations.WithLabelValues(result).Inc()
}

// Batch Metrics

// RecordBatchStarted marks a batch generation as running.
func (m *Metrics) RecordBatchStarted() {
	if m.activeBatches == nil {
		return
	}
	m.activeBatches.Inc()
}

// RecordBatchCompleted records a finished batch.
func (m *Metrics) RecordBatchCompleted(succeeded, failed int, duration time.Duration) {
	if m.batchLoops == nil {
		return
	}
	m.batchLoops.WithLabelValues("success").Add(float64(succeeded))
	m.batchLoops.WithLabelValues("failed").Add(float64(failed))
	m.batchDuration.Observe(duration.Seconds())
	m.activeBatches.Dec()
}

// Store Metrics

// RecordStoreOperation records a store call with its duration.
func (m *Metrics) RecordStoreOperation(backend, operation string, duration time.Duration) {
	if m.storeOps == nil {
		return
	}
	m.storeOps.WithLabelValues(backend, operation).Inc()
	m.storeDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordStoreError records a failed store call.
func (m *Metrics) RecordStoreError(backend, operation string) {
	if m.storeErrors == nil {
		return
	}
	m.storeErrors.WithLabelValues(backend, operation).Inc()
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Lint Metrics

// RecordLintViolation records a graph lint violation.
func (m *Metrics) RecordLintViolation(policy, severity string) {
	if m.lintViolations == nil {
		return
	}
	m.lintViolations.WithLabelValues(policy, severity).Inc()
}

// System Metrics

// SetGraphNodes records the size of the loaded graph.
func (m *Metrics) SetGraphNodes(count int) {
	if m.graphNodes == nil {
		return
	}
	m.graphNodes.Set(float64(count))
}

// Registry returns the private registry, or nil when metrics are disabled.
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

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
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

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()

	return nil
}
