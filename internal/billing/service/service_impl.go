package service

import (
	"context"
	"fmt"

	"github.com/agendobot/metrics/internal/billing/domain"
	"github.com/agendobot/metrics/internal/clock"
	"github.com/agendobot/metrics/internal/config"
	obsmetrics "github.com/agendobot/metrics/internal/observability/metrics"
	tenantdomain "github.com/agendobot/metrics/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Holder    *config.BillingConfigHolder
	Repo      domain.Repository
	Telemetry *obsmetrics.Metrics
}

type Service struct {
	log       *zap.Logger
	clock     clock.Clock
	holder    *config.BillingConfigHolder
	repo      domain.Repository
	telemetry *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("billing.service"),
		clock:     p.Clock,
		holder:    p.Holder,
		repo:      p.Repo,
		telemetry: p.Telemetry,
	}
}

// ComputeTenant runs the per-tenant billing state machine and upserts the
// resulting record for the current billing period.
func (s *Service) ComputeTenant(ctx context.Context, tenant tenantdomain.Tenant, conversationCount int) (domain.BillingRecord, error) {
	cfg := s.holder.Current()
	if len(cfg.Tiers) == 0 {
		return domain.BillingRecord{}, config.ErrNoTiersConfigured
	}

	now := s.clock.Now()
	periodStart, periodEnd := domain.CurrentPeriod(now)
	rec := domain.BillingRecord{
		TenantID:          tenant.ID,
		PeriodStart:       periodStart,
		PeriodEnd:         periodEnd,
		ConversationCount: conversationCount,
		ComputedAt:        now,
	}

	trialEnd := tenant.CreatedAt.AddDate(0, 0, cfg.TrialPeriodDays)
	if now.Before(trialEnd) {
		rec.Trial = true
		rec.Tier = domain.TierTrial
	} else {
		tier, overageCount := selectTier(cfg, int64(conversationCount))
		rec.Tier = tier.Name
		rec.FixedPrice = tier.Price
		rec.OverageCount = int(overageCount)
		rec.OverageAmount = float64(overageCount) * cfg.OverageUnitPrice
		rec.TotalCharge = rec.FixedPrice + rec.OverageAmount
	}

	if err := s.repo.Upsert(ctx, &rec); err != nil {
		return domain.BillingRecord{}, fmt.Errorf("upsert billing record: %w", err)
	}
	s.telemetry.RecordBillingComputed(ctx, rec.Tier)
	s.log.Debug("billing computed",
		zap.Int64("tenant_id", int64(tenant.ID)),
		zap.String("tier", rec.Tier),
		zap.Float64("total_charge", rec.TotalCharge),
	)
	return rec, nil
}

// selectTier walks tiers in ascending threshold order and returns the
// smallest one whose included usage covers the count. Usage beyond the top
// tier stays on the top tier and returns the overage unit count; lower tiers
// never charge overage.
func selectTier(cfg config.BillingConfig, usage int64) (config.BillingTier, int64) {
	for _, tier := range cfg.Tiers {
		if usage <= tier.IncludedConversations {
			return tier, 0
		}
	}
	top := cfg.TopTier()
	return top, usage - top.IncludedConversations
}
