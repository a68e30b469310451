package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	JobReasonDeadlineExceeded = "deadline_exceeded"
	JobReasonDBLockTimeout    = "db_lock_timeout"
	JobReasonSerialization    = "serialization_failure"
	JobReasonUniqueViolation  = "unique_violation"
	JobReasonUnknown          = "unknown"
)

// BatchMetrics captures aggregation pipeline health signals.
type BatchMetrics struct {
	jobRuns               *prometheus.CounterVec
	jobDuration           *prometheus.HistogramVec
	jobTimeouts           *prometheus.CounterVec
	jobErrors             *prometheus.CounterVec
	tenantsProcessed      *prometheus.CounterVec
	tenantFailures        *prometheus.CounterVec
	orphanEvents          prometheus.Counter
	consistencyMismatches *prometheus.CounterVec
	runLoopLag            prometheus.Observer
}

var (
	batchMetricsOnce sync.Once
	batchMetrics     *BatchMetrics
)

// Batch returns the singleton batch metrics registry.
func Batch() *BatchMetrics {
	return BatchWithConfig(Config{})
}

// BatchWithConfig returns the singleton batch metrics registry using config labels.
func BatchWithConfig(cfg Config) *BatchMetrics {
	batchMetricsOnce.Do(func() {
		batchMetrics = newBatchMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return batchMetrics
}

// ResetBatchMetricsForTest clears the singleton so tests can swap registries.
func ResetBatchMetricsForTest() {
	batchMetricsOnce = sync.Once{}
	batchMetrics = nil
}

func newBatchMetrics(reg prometheus.Registerer, cfg Config) *BatchMetrics {
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "agendobot-metrics"
	}
	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = "development"
	}
	constLabels := prometheus.Labels{"service": service, "env": env}

	m := &BatchMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "agendobot_batch_job_runs_total",
			Help:        "Number of batch job invocations.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "agendobot_batch_job_duration_seconds",
			Help:        "Batch job wall time.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"job"}),
		jobTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "agendobot_batch_job_timeouts_total",
			Help:        "Batch jobs that hit their deadline.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "agendobot_batch_job_errors_total",
			Help:        "Batch job failures by reason.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
		tenantsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "agendobot_batch_tenants_processed_total",
			Help:        "Tenants successfully aggregated per job.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		tenantFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "agendobot_batch_tenant_failures_total",
			Help:        "Tenants skipped this run after an unrecoverable error.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		orphanEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "agendobot_orphan_events_total",
			Help:        "Conversation events discarded for missing session identifiers.",
			ConstLabels: constLabels,
		}),
		consistencyMismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "agendobot_consistency_mismatches_total",
			Help:        "Platform vs tenant-sum discrepancies by field.",
			ConstLabels: constLabels,
		}, []string{"period", "field"}),
	}

	lag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "agendobot_batch_run_loop_lag_seconds",
		Help:        "How far behind schedule the run loop started.",
		ConstLabels: constLabels,
		Buckets:     prometheus.ExponentialBuckets(0.1, 2, 10),
	})
	m.runLoopLag = lag

	reg.MustRegister(
		m.jobRuns, m.jobDuration, m.jobTimeouts, m.jobErrors,
		m.tenantsProcessed, m.tenantFailures, m.orphanEvents,
		m.consistencyMismatches, lag,
	)
	return m
}

func (m *BatchMetrics) IncJobRun(job string) {
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *BatchMetrics) ObserveJobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *BatchMetrics) IncJobTimeout(job string) {
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *BatchMetrics) IncJobError(job string, err error) {
	m.jobErrors.WithLabelValues(job, ClassifyJobReason(err)).Inc()
}

func (m *BatchMetrics) AddTenantsProcessed(job string, n int) {
	if n > 0 {
		m.tenantsProcessed.WithLabelValues(job).Add(float64(n))
	}
}

func (m *BatchMetrics) IncTenantFailure(job string) {
	m.tenantFailures.WithLabelValues(job).Inc()
}

func (m *BatchMetrics) AddOrphanEvents(n int) {
	if n > 0 {
		m.orphanEvents.Add(float64(n))
	}
}

func (m *BatchMetrics) IncConsistencyMismatch(period, field string) {
	m.consistencyMismatches.WithLabelValues(period, field).Inc()
}

func (m *BatchMetrics) ObserveRunLoopLag(lag time.Duration) {
	m.runLoopLag.Observe(lag.Seconds())
}

// ClassifyJobReason maps an error to a bounded label set.
func ClassifyJobReason(err error) string {
	if err == nil {
		return JobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return JobReasonDeadlineExceeded
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "57014":
			return JobReasonDBLockTimeout
		case "40001", "40P01":
			return JobReasonSerialization
		case "23505":
			return JobReasonUniqueViolation
		}
	}
	return JobReasonUnknown
}
