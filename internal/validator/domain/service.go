// Package domain defines the consistency check that guards the platform
// rollup. Detection only: a mismatch is reported, never corrected, and the
// published snapshot stays in place.
package domain

import (
	"context"

	tenantdomain "github.com/agendobot/metrics/internal/tenant/domain"
	"github.com/bwmarrin/snowflake"
)

// Mismatch is one field whose independent re-sum disagrees with the platform
// snapshot beyond tolerance.
type Mismatch struct {
	Period   string
	Field    string
	Expected float64
	Actual   float64
}

type Service interface {
	// Validate re-sums revenue, appointment counts and the active tenant
	// count from the tenant rows and compares against the platform
	// snapshots. Returned mismatches are findings, not failures; the error
	// is reserved for infrastructure problems.
	Validate(ctx context.Context, tenants []tenantdomain.Tenant, failed map[snowflake.ID]bool) ([]Mismatch, error)
}
