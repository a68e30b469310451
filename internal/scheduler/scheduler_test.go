package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	billingdomain "github.com/agendobot/metrics/internal/billing/domain"
	"github.com/agendobot/metrics/internal/clock"
	obsmetrics "github.com/agendobot/metrics/internal/observability/metrics"
	perioddomain "github.com/agendobot/metrics/internal/period/domain"
	tenantdomain "github.com/agendobot/metrics/internal/tenant/domain"
	validatordomain "github.com/agendobot/metrics/internal/validator/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

func setupBatchMetrics(t *testing.T) *prometheus.Registry {
	t.Helper()
	registry := prometheus.NewRegistry()
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry

	obsmetrics.ResetBatchMetricsForTest()
	obsmetrics.BatchWithConfig(obsmetrics.Config{
		ServiceName: "agendobot-metrics",
		Environment: "test",
	})

	t.Cleanup(func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetBatchMetricsForTest()
	})
	return registry
}

type fakeTenantRepo struct {
	tenants []tenantdomain.Tenant
	err     error
	calls   int
}

func (f *fakeTenantRepo) ListActive(context.Context) ([]tenantdomain.Tenant, error) {
	f.calls++
	return f.tenants, f.err
}

func (f *fakeTenantRepo) FindByID(context.Context, snowflake.ID) (*tenantdomain.Tenant, error) {
	return nil, nil
}

// callLog records pipeline stages in completion order.
type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *callLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

type fakePeriodSvc struct {
	mu        sync.Mutex
	log       *callLog
	failFor   map[snowflake.ID]bool
	transient map[snowflake.ID]int
}

func (f *fakePeriodSvc) ComputeTenant(_ context.Context, tenant tenantdomain.Tenant) (perioddomain.Summary, error) {
	if f.failFor[tenant.ID] {
		return perioddomain.Summary{}, errors.New("boom")
	}
	f.mu.Lock()
	if n := f.transient[tenant.ID]; n > 0 {
		f.transient[tenant.ID] = n - 1
		f.mu.Unlock()
		return perioddomain.Summary{}, &pgconn.PgError{Code: "40001"}
	}
	f.mu.Unlock()
	if f.log != nil {
		f.log.add("tenant")
	}
	return perioddomain.Summary{Sessions30d: 42}, nil
}

type fakeBillingSvc struct {
	mu     sync.Mutex
	usages []int
}

func (f *fakeBillingSvc) ComputeTenant(_ context.Context, tenant tenantdomain.Tenant, conversationCount int) (billingdomain.BillingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usages = append(f.usages, conversationCount)
	return billingdomain.BillingRecord{TenantID: tenant.ID, ConversationCount: conversationCount}, nil
}

type fakePlatformSvc struct {
	log    *callLog
	failed map[snowflake.ID]bool
	calls  int
}

func (f *fakePlatformSvc) ComputeAll(_ context.Context, _ []tenantdomain.Tenant, failed map[snowflake.ID]bool) error {
	f.calls++
	f.failed = failed
	if f.log != nil {
		f.log.add("platform")
	}
	return nil
}

type fakeValidatorSvc struct {
	log   *callLog
	calls int
}

func (f *fakeValidatorSvc) Validate(context.Context, []tenantdomain.Tenant, map[snowflake.ID]bool) ([]validatordomain.Mismatch, error) {
	f.calls++
	if f.log != nil {
		f.log.add("validator")
	}
	return nil, nil
}

func testTenants(node *snowflake.Node, n int) []tenantdomain.Tenant {
	out := make([]tenantdomain.Tenant, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, tenantdomain.Tenant{ID: node.Generate(), Status: tenantdomain.StatusActive})
	}
	return out
}

func newTestScheduler(t *testing.T, tenants *fakeTenantRepo, period *fakePeriodSvc, billing *fakeBillingSvc, platform *fakePlatformSvc, validator *fakeValidatorSvc, cfg Config) *Scheduler {
	t.Helper()
	s, err := New(Params{
		Log:          zap.NewNop(),
		Clock:        clock.NewFakeClock(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)),
		Tenants:      tenants,
		PeriodSvc:    period,
		BillingSvc:   billing,
		PlatformSvc:  platform,
		ValidatorSvc: validator,
		Config:       cfg,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := setupBatchMetrics(t)

	s := &Scheduler{log: zap.NewNop(), cfg: DefaultConfig(), clock: clock.NewFakeClock(time.Time{})}
	err := s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "agendobot-metrics",
		"env":     "test",
		"job":     "timeout_job",
	}
	if got := getCounterValue(t, registry, "agendobot_batch_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "agendobot-metrics",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.JobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "agendobot_batch_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestRunJobPropagatesNonTimeoutErrors(t *testing.T) {
	setupBatchMetrics(t)

	s := &Scheduler{log: zap.NewNop(), cfg: DefaultConfig(), clock: clock.NewFakeClock(time.Time{})}
	wantErr := errors.New("boom")
	err := s.runJob(context.Background(), "failing_job", time.Second, func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestRunOncePlatformRunsAfterEveryTenant(t *testing.T) {
	setupBatchMetrics(t)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	log := &callLog{}
	tenants := &fakeTenantRepo{tenants: testTenants(node, 5)}
	platform := &fakePlatformSvc{log: log}
	validator := &fakeValidatorSvc{log: log}
	s := newTestScheduler(t, tenants, &fakePeriodSvc{log: log}, &fakeBillingSvc{}, platform, validator, Config{WorkerPoolSize: 3})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	entries := log.snapshot()
	if len(entries) != 7 {
		t.Fatalf("expected 5 tenants + platform + validator, got %v", entries)
	}
	for i := 0; i < 5; i++ {
		if entries[i] != "tenant" {
			t.Fatalf("entry %d should be a tenant stage, got %v", i, entries)
		}
	}
	if entries[5] != "platform" || entries[6] != "validator" {
		t.Fatalf("platform and validator must run after the pool drains, got %v", entries)
	}
}

func TestRunOnceIsolatesTenantFailures(t *testing.T) {
	registry := setupBatchMetrics(t)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	all := testTenants(node, 3)
	badTenant := all[1].ID

	tenants := &fakeTenantRepo{tenants: all}
	platform := &fakePlatformSvc{}
	billing := &fakeBillingSvc{}
	s := newTestScheduler(t, tenants, &fakePeriodSvc{failFor: map[snowflake.ID]bool{badTenant: true}}, billing, platform, &fakeValidatorSvc{}, Config{})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("a tenant failure must not fail the run, got %v", err)
	}

	if !platform.failed[badTenant] {
		t.Fatalf("platform rollup must see the failed tenant, got %v", platform.failed)
	}
	if len(platform.failed) != 1 {
		t.Fatalf("only the failing tenant should be marked, got %v", platform.failed)
	}
	if len(billing.usages) != 2 {
		t.Fatalf("billing must be skipped for the failed tenant, got %d calls", len(billing.usages))
	}
	for _, usage := range billing.usages {
		if usage != 42 {
			t.Fatalf("billing must receive the 30d session count, got %d", usage)
		}
	}

	labels := map[string]string{
		"service": "agendobot-metrics",
		"env":     "test",
		"job":     "tenant_metrics",
	}
	if got := getCounterValue(t, registry, "agendobot_batch_tenant_failures_total", labels); got != 1 {
		t.Fatalf("expected one tenant failure, got %v", got)
	}
	if got := getCounterValue(t, registry, "agendobot_batch_tenants_processed_total", labels); got != 2 {
		t.Fatalf("expected two tenants processed, got %v", got)
	}
}

func TestRunOnceRetriesTransientTenantErrors(t *testing.T) {
	registry := setupBatchMetrics(t)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	tenants := &fakeTenantRepo{tenants: testTenants(node, 1)}
	flaky := tenants.tenants[0].ID

	platform := &fakePlatformSvc{}
	billing := &fakeBillingSvc{}
	period := &fakePeriodSvc{transient: map[snowflake.ID]int{flaky: 1}}
	s := newTestScheduler(t, tenants, period, billing, platform, &fakeValidatorSvc{}, Config{
		RetryMaxWait: 5 * time.Second,
	})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	if len(platform.failed) != 0 {
		t.Fatalf("a transient error must be retried, not flagged, got %v", platform.failed)
	}
	if len(billing.usages) != 1 {
		t.Fatalf("billing must run after the retry succeeds, got %d calls", len(billing.usages))
	}

	labels := map[string]string{
		"service": "agendobot-metrics",
		"env":     "test",
		"job":     "tenant_metrics",
	}
	if got := getCounterValue(t, registry, "agendobot_batch_tenants_processed_total", labels); got != 1 {
		t.Fatalf("expected one tenant processed, got %v", got)
	}
}

func TestRunOnceSkipsDisabledJobs(t *testing.T) {
	setupBatchMetrics(t)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	tenants := &fakeTenantRepo{tenants: testTenants(node, 1)}
	platform := &fakePlatformSvc{}
	validator := &fakeValidatorSvc{}
	s := newTestScheduler(t, tenants, &fakePeriodSvc{}, &fakeBillingSvc{}, platform, validator, Config{
		EnabledJobs: []string{"tenant_metrics"},
	})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if platform.calls != 0 || validator.calls != 0 {
		t.Fatalf("disabled jobs must not run: platform=%d validator=%d", platform.calls, validator.calls)
	}
}

func TestRunOnceWithNoTenantsSkipsJobs(t *testing.T) {
	setupBatchMetrics(t)

	tenants := &fakeTenantRepo{}
	platform := &fakePlatformSvc{}
	s := newTestScheduler(t, tenants, &fakePeriodSvc{}, &fakeBillingSvc{}, platform, &fakeValidatorSvc{}, Config{})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if platform.calls != 0 {
		t.Fatalf("platform rollup should not run without tenants")
	}
}

func TestRunLoopLagMeasuredOnInjectedClock(t *testing.T) {
	registry := setupBatchMetrics(t)

	fake := clock.NewFakeClock(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	s := &Scheduler{log: zap.NewNop(), cfg: DefaultConfig(), clock: fake}

	labels := map[string]string{
		"service": "agendobot-metrics",
		"env":     "test",
	}

	// On schedule: nothing observed.
	s.observeRunLoopLag(fake.Now().Add(time.Minute))
	count, _ := getHistogramSamples(t, registry, "agendobot_batch_run_loop_lag_seconds", labels)
	if count != 0 {
		t.Fatalf("expected no lag samples while on schedule, got %d", count)
	}

	// 90s behind on the fake clock, with no wall time passing.
	s.observeRunLoopLag(fake.Now().Add(-90 * time.Second))
	count, sum := getHistogramSamples(t, registry, "agendobot_batch_run_loop_lag_seconds", labels)
	if count != 1 {
		t.Fatalf("expected one lag sample, got %d", count)
	}
	if sum != 90 {
		t.Fatalf("lag must come from the injected clock, got %v seconds", sum)
	}
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func getHistogramSamples(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) (uint64, float64) {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Histogram == nil {
				t.Fatalf("metric %s is not a histogram", name)
			}
			return metric.GetHistogram().GetSampleCount(), metric.GetHistogram().GetSampleSum()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0, 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
