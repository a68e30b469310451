// Package scheduler drives the periodic aggregation batch: per-tenant
// computation on a bounded worker pool, then the platform rollup as a
// barrier stage, then the consistency check.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	billingdomain "github.com/agendobot/metrics/internal/billing/domain"
	"github.com/agendobot/metrics/internal/clock"
	obsmetrics "github.com/agendobot/metrics/internal/observability/metrics"
	perioddomain "github.com/agendobot/metrics/internal/period/domain"
	platformdomain "github.com/agendobot/metrics/internal/platform/domain"
	tenantdomain "github.com/agendobot/metrics/internal/tenant/domain"
	validatordomain "github.com/agendobot/metrics/internal/validator/domain"
	"github.com/agendobot/metrics/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	Tenants      tenantdomain.Repository
	PeriodSvc    perioddomain.Service
	BillingSvc   billingdomain.Service
	PlatformSvc  platformdomain.Service
	ValidatorSvc validatordomain.Service
	Config       Config `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	tenants      tenantdomain.Repository
	periodSvc    perioddomain.Service
	billingSvc   billingdomain.Service
	platformSvc  platformdomain.Service
	validatorSvc validatordomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Tenants == nil || p.PeriodSvc == nil ||
		p.BillingSvc == nil || p.PlatformSvc == nil || p.ValidatorSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		tenants:      p.Tenants,
		periodSvc:    p.PeriodSvc,
		billingSvc:   p.BillingSvc,
		platformSvc:  p.PlatformSvc,
		validatorSvc: p.ValidatorSvc,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	batch := obsmetrics.Batch()
	batch.IncJobRun(name)

	err := fn(ctx)
	batch.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	// Deadline is a soft timeout: the next scheduled run picks the work
	// back up at tenant granularity.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		batch.IncJobTimeout(name)
	}
	batch.IncJobError(name, err)
	if isTimeout {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes one full pass: tenant metrics and billing on the worker
// pool, then the platform rollup, then the consistency check. The platform
// job never starts before every tenant has finished or been marked failed.
func (s *Scheduler) RunOnce(parent context.Context) error {
	run := newBatchRun(s.clock.Now())
	log := s.log.With(zap.String("run_id", run.id))

	tenants, err := s.listActiveTenants(parent)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	if len(tenants) == 0 {
		log.Info("no active tenants, skipping run")
		return nil
	}

	failed := make(map[snowflake.ID]bool)
	var joined error

	if s.isJobEnabled("tenant_metrics") {
		joined = errors.Join(joined, s.runJob(parent, "tenant_metrics", s.cfg.JobTimeout, func(ctx context.Context) error {
			return s.tenantMetricsJob(ctx, log, run, tenants, failed)
		}))
	}
	if s.isJobEnabled("platform_metrics") {
		joined = errors.Join(joined, s.runJob(parent, "platform_metrics", s.cfg.JobTimeout, func(ctx context.Context) error {
			return s.platformSvc.ComputeAll(ctx, tenants, failed)
		}))
	}
	if s.isJobEnabled("consistency_check") {
		joined = errors.Join(joined, s.runJob(parent, "consistency_check", s.cfg.JobTimeout, func(ctx context.Context) error {
			_, err := s.validatorSvc.Validate(ctx, tenants, failed)
			return err
		}))
	}

	processed, failedCount := run.Counts()
	log.Info("run finished",
		zap.Int("tenants", len(tenants)),
		zap.Int("processed", processed),
		zap.Int("failed", failedCount),
		zap.Duration("elapsed", s.clock.Now().Sub(run.startedAt)),
	)
	return joined
}

// tenantMetricsJob fans tenants out over the worker pool. A tenant failure
// is isolated: logged, counted, recorded in failed, never fatal to the run.
func (s *Scheduler) tenantMetricsJob(ctx context.Context, log *zap.Logger, run *batchRun, tenants []tenantdomain.Tenant, failed map[snowflake.ID]bool) error {
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.WorkerPoolSize)
	for _, tenant := range tenants {
		tenant := tenant
		g.Go(func() error {
			if err := s.computeTenant(ctx, tenant); err != nil {
				log.Error("tenant computation failed",
					zap.Int64("tenant_id", int64(tenant.ID)),
					zap.Error(err),
				)
				obsmetrics.Batch().IncTenantFailure("tenant_metrics")
				run.IncFailed()
				mu.Lock()
				failed[tenant.ID] = true
				mu.Unlock()
				return nil
			}
			run.AddProcessed(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	processed, _ := run.Counts()
	obsmetrics.Batch().AddTenantsProcessed("tenant_metrics", processed)
	return ctx.Err()
}

// computeTenant retries the whole tenant recomputation on transient database
// errors before the tenant is marked failed for the run. Recomputation is
// idempotent, so a retry after a partial upsert just rewrites the same rows.
func (s *Scheduler) computeTenant(ctx context.Context, tenant tenantdomain.Tenant) error {
	return s.retryTransient(ctx, func() error {
		summary, err := s.periodSvc.ComputeTenant(ctx, tenant)
		if err != nil {
			return fmt.Errorf("period: %w", err)
		}
		if _, err := s.billingSvc.ComputeTenant(ctx, tenant, summary.Sessions30d); err != nil {
			return fmt.Errorf("billing: %w", err)
		}
		return nil
	})
}

func (s *Scheduler) listActiveTenants(ctx context.Context) ([]tenantdomain.Tenant, error) {
	var tenants []tenantdomain.Tenant
	err := s.retryTransient(ctx, func() error {
		var err error
		tenants, err = s.tenants.ListActive(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

// retryTransient runs op with exponential backoff, bounded by RetryMaxWait,
// retrying only transient database errors; anything else fails fast.
func (s *Scheduler) retryTransient(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = s.cfg.RetryMaxWait

	wrapped := func() error {
		err := op()
		if err == nil || db.IsTransientErr(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.Retry(wrapped, backoff.WithContext(policy, ctx))
}

// RunForever loops RunOnce on the configured interval until the context is
// cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		s.observeRunLoopLag(nextRun)
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// observeRunLoopLag records how far behind schedule the loop is, measured
// against the injected clock.
func (s *Scheduler) observeRunLoopLag(nextRun time.Time) {
	if lag := s.clock.Now().Sub(nextRun); lag > 0 {
		obsmetrics.Batch().ObserveRunLoopLag(lag)
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
