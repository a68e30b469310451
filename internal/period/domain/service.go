package domain

import (
	"context"

	tenantdomain "github.com/agendobot/metrics/internal/tenant/domain"
)

// Summary is what one tenant run hands back to the orchestrator.
type Summary struct {
	Sessions7d   int
	Sessions30d  int
	Sessions90d  int
	OrphanEvents int
}

// Service recomputes every derived metric for one tenant. Pure function of
// raw rows and the clock; reruns with the same inputs upsert identical
// values.
type Service interface {
	ComputeTenant(ctx context.Context, tenant tenantdomain.Tenant) (Summary, error)
}
