package service

import (
	"context"
	"fmt"
	"time"

	billingdomain "github.com/agendobot/metrics/internal/billing/domain"
	"github.com/agendobot/metrics/internal/cache"
	"github.com/agendobot/metrics/internal/clock"
	metricdomain "github.com/agendobot/metrics/internal/metric/domain"
	obsmetrics "github.com/agendobot/metrics/internal/observability/metrics"
	"github.com/agendobot/metrics/internal/outcome"
	perioddomain "github.com/agendobot/metrics/internal/period/domain"
	"github.com/agendobot/metrics/internal/platform/domain"
	tenantdomain "github.com/agendobot/metrics/internal/tenant/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Metrics   metricdomain.Repository
	Billing   billingdomain.Repository
	Snapshots cache.Snapshots
	Telemetry *obsmetrics.Metrics
}

type Service struct {
	log       *zap.Logger
	clock     clock.Clock
	metrics   metricdomain.Repository
	billing   billingdomain.Repository
	snapshots cache.Snapshots
	telemetry *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("platform.service"),
		clock:     p.Clock,
		metrics:   p.Metrics,
		billing:   p.Billing,
		snapshots: p.Snapshots,
		telemetry: p.Telemetry,
	}
}

func (s *Service) ComputeAll(ctx context.Context, tenants []tenantdomain.Tenant, failed map[snowflake.ID]bool) error {
	now := s.clock.Now()

	contributing := make(map[snowflake.ID]bool, len(tenants))
	failedCount := 0
	for _, t := range tenants {
		if failed[t.ID] {
			failedCount++
			continue
		}
		contributing[t.ID] = true
	}

	mrr, err := s.monthlyRecurringRevenue(ctx, now)
	if err != nil {
		return fmt.Errorf("mrr: %w", err)
	}

	for _, w := range perioddomain.RollingWindows(now) {
		payload, err := s.computeWindow(ctx, w.Period, contributing)
		if err != nil {
			return fmt.Errorf("window %s: %w", w.Period, err)
		}
		payload.FailedTenants = failedCount
		payload.MRR = mrr

		data, err := metricdomain.MarshalPayload(payload)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", w.Period, err)
		}
		rec := &metricdomain.PlatformPeriodMetrics{
			Period:      w.Period,
			MetricType:  metricdomain.TypePlatform,
			MetricData:  data,
			PeriodStart: w.Start,
			PeriodEnd:   w.End,
			ComputedAt:  now,
		}
		if err := s.metrics.UpsertPlatformMetric(ctx, rec); err != nil {
			return fmt.Errorf("upsert %s: %w", w.Period, err)
		}
		s.telemetry.RecordMetricUpserts(ctx, "platform", 1)

		if err := s.snapshots.SetPlatform(ctx, w.Period, data); err != nil {
			// Cache misses fall back to the table; the snapshot row is
			// already durable at this point.
			s.log.Warn("platform snapshot cache write failed",
				zap.String("period", w.Period), zap.Error(err))
		}

		s.log.Info("platform window computed",
			zap.String("period", w.Period),
			zap.Int("active_tenants", payload.ActiveTenants),
			zap.Int("failed_tenants", failedCount),
			zap.Float64("revenue", payload.Revenue),
		)
	}
	return nil
}

func (s *Service) computeWindow(ctx context.Context, period string, contributing map[snowflake.ID]bool) (metricdomain.PlatformMetrics, error) {
	out := metricdomain.PlatformMetrics{}

	convRows, err := s.metrics.ListTenantMetrics(ctx, period, metricdomain.TypeConversation)
	if err != nil {
		return out, fmt.Errorf("list conversation metrics: %w", err)
	}
	seen := make(map[snowflake.ID]bool, len(convRows))
	for _, row := range convRows {
		if !contributing[row.TenantID] {
			continue
		}
		var m metricdomain.ConversationMetrics
		if err := metricdomain.UnmarshalPayload(row.MetricData, &m); err != nil {
			return out, fmt.Errorf("tenant %d conversation payload: %w", row.TenantID, err)
		}
		seen[row.TenantID] = true
		out.TotalSessions += m.TotalSessions
		out.OrphanEvents += m.OrphanEvents
		out.TotalWeight += m.TotalWeight
		out.TotalCostUSD += m.TotalCostUSD
		for cat, w := range m.CategoryWeights {
			switch outcome.ClassOf(cat) {
			case outcome.ClassSuccess:
				out.SuccessWeight += w
			case outcome.ClassNeutral:
				out.NeutralWeight += w
			case outcome.ClassFailure:
				out.FailureWeight += w
			}
		}
	}
	out.ActiveTenants = len(seen)

	apptRows, err := s.metrics.ListTenantMetrics(ctx, period, metricdomain.TypeAppointment)
	if err != nil {
		return out, fmt.Errorf("list appointment metrics: %w", err)
	}
	for _, row := range apptRows {
		if !contributing[row.TenantID] {
			continue
		}
		var m metricdomain.AppointmentMetrics
		if err := metricdomain.UnmarshalPayload(row.MetricData, &m); err != nil {
			return out, fmt.Errorf("tenant %d appointment payload: %w", row.TenantID, err)
		}
		out.TotalAppointments += m.Total
		out.CompletedAppointments += m.Completed + m.Confirmed
		out.CancelledAppointments += m.Cancelled
		out.NoShowAppointments += m.NoShow
		out.Revenue += m.Revenue
		out.PotentialRevenue += m.PotentialRevenue
		out.LostRevenue += m.LostRevenue
	}

	custRows, err := s.metrics.ListTenantMetrics(ctx, period, metricdomain.TypeCustomer)
	if err != nil {
		return out, fmt.Errorf("list customer metrics: %w", err)
	}
	for _, row := range custRows {
		if !contributing[row.TenantID] {
			continue
		}
		var m metricdomain.CustomerMetrics
		if err := metricdomain.UnmarshalPayload(row.MetricData, &m); err != nil {
			return out, fmt.Errorf("tenant %d customer payload: %w", row.TenantID, err)
		}
		out.NewCustomers += m.NewCustomers
	}

	// Ratios come from the raw sums, never from averaging tenant
	// percentages. Zero denominators resolve to 0.
	if out.TotalWeight > 0 {
		out.EfficiencyPct = (out.SuccessWeight + 0.5*out.NeutralWeight) / out.TotalWeight * 100
	}
	if out.TotalAppointments > 0 {
		out.SuccessRatePct = float64(out.CompletedAppointments) / float64(out.TotalAppointments) * 100
		out.NoShowRatePct = float64(out.NoShowAppointments) / float64(out.TotalAppointments) * 100
	}
	return out, nil
}

func (s *Service) monthlyRecurringRevenue(ctx context.Context, now time.Time) (float64, error) {
	// The billing period is calendar-anchored, so any instant in the month
	// resolves the same period start as the writer's.
	periodStart, _ := billingdomain.CurrentPeriod(now)
	records, err := s.billing.ListByPeriodStart(ctx, periodStart)
	if err != nil {
		return 0, err
	}
	mrr := 0.0
	for _, rec := range records {
		mrr += rec.TotalCharge
	}
	return mrr, nil
}
