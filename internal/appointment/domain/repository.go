package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	// ListByTenantAndRange returns appointments with start_time in [from, to).
	ListByTenantAndRange(ctx context.Context, tenantID snowflake.ID, from, to time.Time) ([]AppointmentRecord, error)
}
