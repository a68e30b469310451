package service

import (
	"context"
	"fmt"
	"time"

	appointmentdomain "github.com/agendobot/metrics/internal/appointment/domain"
	"github.com/agendobot/metrics/internal/cache"
	"github.com/agendobot/metrics/internal/clock"
	conversationdomain "github.com/agendobot/metrics/internal/conversation/domain"
	customerdomain "github.com/agendobot/metrics/internal/customer/domain"
	metricdomain "github.com/agendobot/metrics/internal/metric/domain"
	obsmetrics "github.com/agendobot/metrics/internal/observability/metrics"
	"github.com/agendobot/metrics/internal/outcome"
	"github.com/agendobot/metrics/internal/period/domain"
	"github.com/agendobot/metrics/internal/session"
	tenantdomain "github.com/agendobot/metrics/internal/tenant/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	Conversations conversationdomain.Repository
	Appointments  appointmentdomain.Repository
	Customers     customerdomain.Repository
	Metrics       metricdomain.Repository
	Snapshots     cache.Snapshots
	Telemetry     *obsmetrics.Metrics
}

type Service struct {
	log           *zap.Logger
	clock         clock.Clock
	conversations conversationdomain.Repository
	appointments  appointmentdomain.Repository
	customers     customerdomain.Repository
	metrics       metricdomain.Repository
	snapshots     cache.Snapshots
	telemetry     *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:           p.Log.Named("period.service"),
		clock:         p.Clock,
		conversations: p.Conversations,
		appointments:  p.Appointments,
		customers:     p.Customers,
		metrics:       p.Metrics,
		snapshots:     p.Snapshots,
		telemetry:     p.Telemetry,
	}
}

// ComputeTenant recomputes the rolling windows and the historical month
// series for one tenant and upserts the resulting snapshot rows.
func (s *Service) ComputeTenant(ctx context.Context, tenant tenantdomain.Tenant) (domain.Summary, error) {
	now := s.clock.Now()
	summary := domain.Summary{}

	for _, w := range domain.RollingWindows(now) {
		count, orphans, err := s.computeWindow(ctx, tenant.ID, w, now)
		if err != nil {
			return domain.Summary{}, fmt.Errorf("window %s: %w", w.Period, err)
		}
		summary.OrphanEvents += orphans
		switch w.Period {
		case metricdomain.Period7d:
			summary.Sessions7d = count
		case metricdomain.Period30d:
			summary.Sessions30d = count
		case metricdomain.Period90d:
			summary.Sessions90d = count
		}
	}

	if err := s.computeHistorical(ctx, tenant.ID, now); err != nil {
		return domain.Summary{}, fmt.Errorf("historical: %w", err)
	}

	obsmetrics.Batch().AddOrphanEvents(summary.OrphanEvents)
	s.log.Debug("tenant computed",
		zap.Int64("tenant_id", int64(tenant.ID)),
		zap.Int("sessions_30d", summary.Sessions30d),
		zap.Int("orphan_events", summary.OrphanEvents),
	)
	return summary, nil
}

func (s *Service) computeWindow(ctx context.Context, tenantID snowflake.ID, w domain.Window, now time.Time) (int, int, error) {
	events, err := s.conversations.ListByTenantAndRange(ctx, tenantID, w.Start.Add(-domain.SupersetLead), w.End)
	if err != nil {
		return 0, 0, fmt.Errorf("list events: %w", err)
	}
	rec := session.Reconstruct(events)
	sessions := session.FilterByStart(rec.Sessions, w.Start, w.End)
	s.telemetry.RecordSessionsReconstructed(ctx, tenantID.String(), int64(len(sessions)))

	appointments, err := s.appointments.ListByTenantAndRange(ctx, tenantID, w.Start, w.End)
	if err != nil {
		return 0, 0, fmt.Errorf("list appointments: %w", err)
	}

	newCustomers, err := s.customers.CountNewInRange(ctx, tenantID, w.Start, w.End)
	if err != nil {
		return 0, 0, fmt.Errorf("count customers: %w", err)
	}

	conv := buildConversationMetrics(sessions, rec.OrphanEvents)
	appt := buildAppointmentMetrics(appointments)
	cust := metricdomain.CustomerMetrics{
		NewCustomers:    newCustomers,
		UniqueCustomers: countUniqueUsers(appointments),
	}

	for _, p := range []struct {
		metricType string
		payload    any
	}{
		{metricdomain.TypeConversation, conv},
		{metricdomain.TypeAppointment, appt},
		{metricdomain.TypeCustomer, cust},
	} {
		if err := s.upsertTenant(ctx, tenantID, w, p.metricType, p.payload, now); err != nil {
			return 0, 0, err
		}
	}

	s.cacheSnapshot(ctx, tenantID, w.Period, metricdomain.TenantSnapshot{
		Conversation: conv,
		Appointment:  appt,
		Customer:     cust,
	})
	return len(sessions), rec.OrphanEvents, nil
}

// cacheSnapshot pushes the window's combined view to the snapshot cache.
// The table rows are already durable, so a cache failure only costs a warm
// read and is never fatal to the tenant run.
func (s *Service) cacheSnapshot(ctx context.Context, tenantID snowflake.ID, period string, snap metricdomain.TenantSnapshot) {
	data, err := metricdomain.MarshalPayload(snap)
	if err != nil {
		s.log.Warn("tenant snapshot marshal failed",
			zap.Int64("tenant_id", int64(tenantID)),
			zap.String("period", period),
			zap.Error(err),
		)
		return
	}
	if err := s.snapshots.SetTenant(ctx, tenantID.String(), period, data); err != nil {
		s.log.Warn("tenant snapshot cache write failed",
			zap.Int64("tenant_id", int64(tenantID)),
			zap.String("period", period),
			zap.Error(err),
		)
	}
}

func (s *Service) computeHistorical(ctx context.Context, tenantID snowflake.ID, now time.Time) error {
	months := domain.MonthWindows(now)
	oldest := months[len(months)-1]
	newest := months[0]

	events, err := s.conversations.ListByTenantAndRange(ctx, tenantID, oldest.Start.Add(-domain.SupersetLead), newest.End)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	sessions := session.Reconstruct(events).Sessions

	appointments, err := s.appointments.ListByTenantAndRange(ctx, tenantID, oldest.Start, newest.End)
	if err != nil {
		return fmt.Errorf("list appointments: %w", err)
	}

	for i, w := range months {
		revenue := 0.0
		apptCount := 0
		for _, a := range appointments {
			if !w.Contains(a.StartTime) {
				continue
			}
			apptCount++
			if appointmentdomain.RevenueEligible(a.Status) {
				revenue += a.EffectivePrice()
			}
		}

		convCount := 0
		for _, sess := range sessions {
			if w.Contains(sess.StartTime) {
				convCount++
			}
		}

		newCustomers, err := s.customers.CountNewInRange(ctx, tenantID, w.Start, w.End)
		if err != nil {
			return fmt.Errorf("count customers: %w", err)
		}

		payload := metricdomain.HistoricalMetrics{
			MonthIndex:    i,
			MonthLabel:    domain.MonthLabel(w),
			MonthStart:    w.Start,
			MonthEnd:      w.End,
			Revenue:       revenue,
			Appointments:  apptCount,
			Conversations: convCount,
			NewCustomers:  newCustomers,
		}
		if err := s.upsertTenant(ctx, tenantID, w, metricdomain.TypeHistorical, payload, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) upsertTenant(ctx context.Context, tenantID snowflake.ID, w domain.Window, metricType string, payload any, now time.Time) error {
	data, err := metricdomain.MarshalPayload(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", metricType, err)
	}
	rec := &metricdomain.TenantPeriodMetrics{
		TenantID:    tenantID,
		Period:      w.Period,
		MetricType:  metricType,
		MetricData:  data,
		PeriodStart: w.Start,
		PeriodEnd:   w.End,
		ComputedAt:  now,
	}
	if err := s.metrics.UpsertTenantMetric(ctx, rec); err != nil {
		return fmt.Errorf("upsert %s %s: %w", w.Period, metricType, err)
	}
	s.telemetry.RecordMetricUpserts(ctx, "tenant", 1)
	return nil
}

func buildConversationMetrics(sessions []session.ConversationSession, orphans int) metricdomain.ConversationMetrics {
	tally := outcome.Aggregate(sessions)

	m := metricdomain.ConversationMetrics{
		TotalSessions:    tally.Sessions(),
		ExcludedSessions: tally.Excluded,
		OrphanEvents:     orphans,
		CategoryCounts:   tally.Counts,
		CategoryWeights:  tally.WeightedSum,
		TotalWeight:      tally.TotalW,
		EfficiencyPct:    tally.EfficiencyPct(),
	}
	if n := tally.Sessions(); n > 0 {
		m.AvgConfidence = tally.TotalW / float64(n)
		m.SpamRatePct = float64(tally.Counts[outcome.CategorySpam]) / float64(n) * 100
	}
	for _, sess := range sessions {
		if outcome.Excluded(sess.FinalOutcome) {
			continue
		}
		m.TotalMinutes += sess.DurationMins
		m.TotalCostUSD += sess.TotalCostUSD
		m.TotalTokens += sess.TokensUsed
	}
	return m
}

func buildAppointmentMetrics(appointments []appointmentdomain.AppointmentRecord) metricdomain.AppointmentMetrics {
	m := metricdomain.AppointmentMetrics{}
	for _, a := range appointments {
		m.Total++
		switch a.Status {
		case appointmentdomain.StatusCompleted:
			m.Completed++
		case appointmentdomain.StatusConfirmed:
			m.Confirmed++
		case appointmentdomain.StatusCancelled:
			m.Cancelled++
		case appointmentdomain.StatusNoShow:
			m.NoShow++
		default:
			m.Pending++
		}

		price := a.EffectivePrice()
		switch {
		case appointmentdomain.RevenueEligible(a.Status):
			m.Revenue += price
			m.PotentialRevenue += price
		case a.Status == appointmentdomain.StatusNoShow:
			m.LostRevenue += price
			m.PotentialRevenue += price
		}
		// Cancelled appointments count toward neither revenue nor the
		// potential-revenue denominator.
	}
	if m.Total > 0 {
		m.SuccessRatePct = float64(m.Completed+m.Confirmed) / float64(m.Total) * 100
		m.CancellationRatePct = float64(m.Cancelled) / float64(m.Total) * 100
		m.NoShowRatePct = float64(m.NoShow) / float64(m.Total) * 100
	}
	return m
}

func countUniqueUsers(appointments []appointmentdomain.AppointmentRecord) int64 {
	seen := make(map[snowflake.ID]struct{}, len(appointments))
	for _, a := range appointments {
		seen[a.UserID] = struct{}{}
	}
	return int64(len(seen))
}
