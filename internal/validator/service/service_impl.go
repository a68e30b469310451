package service

import (
	"context"
	"fmt"
	"math"

	"github.com/agendobot/metrics/internal/clock"
	"github.com/agendobot/metrics/internal/config"
	metricdomain "github.com/agendobot/metrics/internal/metric/domain"
	obsmetrics "github.com/agendobot/metrics/internal/observability/metrics"
	perioddomain "github.com/agendobot/metrics/internal/period/domain"
	tenantdomain "github.com/agendobot/metrics/internal/tenant/domain"
	"github.com/agendobot/metrics/internal/validator/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Holder  *config.BillingConfigHolder
	Metrics metricdomain.Repository
}

type Service struct {
	log     *zap.Logger
	clock   clock.Clock
	holder  *config.BillingConfigHolder
	metrics metricdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		log:     p.Log.Named("validator.service"),
		clock:   p.Clock,
		holder:  p.Holder,
		metrics: p.Metrics,
	}
}

func (s *Service) Validate(ctx context.Context, tenants []tenantdomain.Tenant, failed map[snowflake.ID]bool) ([]domain.Mismatch, error) {
	tolerance := s.holder.Current().ConsistencyTolerance
	now := s.clock.Now()

	contributing := make(map[snowflake.ID]bool, len(tenants))
	for _, t := range tenants {
		if !failed[t.ID] {
			contributing[t.ID] = true
		}
	}

	var mismatches []domain.Mismatch
	for _, w := range perioddomain.RollingWindows(now) {
		found, err := s.validateWindow(ctx, w.Period, contributing, tolerance)
		if err != nil {
			return nil, fmt.Errorf("window %s: %w", w.Period, err)
		}
		mismatches = append(mismatches, found...)
	}

	for _, m := range mismatches {
		s.log.Error("consistency mismatch",
			zap.String("period", m.Period),
			zap.String("field", m.Field),
			zap.Float64("expected", m.Expected),
			zap.Float64("actual", m.Actual),
		)
		obsmetrics.Batch().IncConsistencyMismatch(m.Period, m.Field)
	}
	return mismatches, nil
}

func (s *Service) validateWindow(ctx context.Context, period string, contributing map[snowflake.ID]bool, tolerance float64) ([]domain.Mismatch, error) {
	snapshot, err := s.metrics.FindPlatformMetric(ctx, period, metricdomain.TypePlatform)
	if err != nil {
		return nil, fmt.Errorf("load platform snapshot: %w", err)
	}
	if snapshot == nil {
		// Nothing published yet for this window; nothing to check.
		return nil, nil
	}
	var platform metricdomain.PlatformMetrics
	if err := metricdomain.UnmarshalPayload(snapshot.MetricData, &platform); err != nil {
		return nil, fmt.Errorf("platform payload: %w", err)
	}

	rows, err := s.metrics.ListTenantMetrics(ctx, period, metricdomain.TypeAppointment)
	if err != nil {
		return nil, fmt.Errorf("list appointment metrics: %w", err)
	}
	var (
		revenue      float64
		appointments int
		activeCount  int
	)
	for _, row := range rows {
		if !contributing[row.TenantID] {
			continue
		}
		var m metricdomain.AppointmentMetrics
		if err := metricdomain.UnmarshalPayload(row.MetricData, &m); err != nil {
			return nil, fmt.Errorf("tenant %d appointment payload: %w", row.TenantID, err)
		}
		activeCount++
		revenue += m.Revenue
		appointments += m.Total
	}

	var mismatches []domain.Mismatch
	if !withinTolerance(revenue, platform.Revenue, tolerance) {
		mismatches = append(mismatches, domain.Mismatch{
			Period: period, Field: "revenue", Expected: revenue, Actual: platform.Revenue,
		})
	}
	if appointments != platform.TotalAppointments {
		mismatches = append(mismatches, domain.Mismatch{
			Period: period, Field: "total_appointments",
			Expected: float64(appointments), Actual: float64(platform.TotalAppointments),
		})
	}
	if activeCount != platform.ActiveTenants {
		mismatches = append(mismatches, domain.Mismatch{
			Period: period, Field: "active_tenants",
			Expected: float64(activeCount), Actual: float64(platform.ActiveTenants),
		})
	}
	return mismatches, nil
}

// withinTolerance compares currency values by relative difference. Two zero
// values always agree.
func withinTolerance(expected, actual, tolerance float64) bool {
	if expected == actual {
		return true
	}
	base := math.Max(math.Abs(expected), math.Abs(actual))
	return math.Abs(expected-actual)/base <= tolerance
}
