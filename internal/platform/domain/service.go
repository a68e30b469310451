// Package domain defines the platform-wide aggregation contract.
package domain

import (
	"context"

	tenantdomain "github.com/agendobot/metrics/internal/tenant/domain"
	"github.com/bwmarrin/snowflake"
)

// Service rolls tenant snapshots up into one platform snapshot per window.
// It acts as a barrier stage: callers must not invoke it until every tenant
// computation for the run has finished or been marked failed.
type Service interface {
	// ComputeAll sums the persisted tenant metrics of the given tenants for
	// every rolling window, skipping tenants in failed, and replaces the
	// platform snapshots.
	ComputeAll(ctx context.Context, tenants []tenantdomain.Tenant, failed map[snowflake.ID]bool) error
}
