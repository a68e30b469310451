package domain

import (
	"context"

	tenantdomain "github.com/agendobot/metrics/internal/tenant/domain"
)

// Service computes one tenant's charge for the current billing period from
// (tenant creation date, current date, usage count). No hidden state.
type Service interface {
	ComputeTenant(ctx context.Context, tenant tenantdomain.Tenant, conversationCount int) (BillingRecord, error)
}
