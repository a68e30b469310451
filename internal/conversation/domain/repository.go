package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	// ListByTenantAndRange returns events with created_at in [from, to),
	// ordered by created_at then id so reruns observe a stable order.
	ListByTenantAndRange(ctx context.Context, tenantID snowflake.ID, from, to time.Time) ([]ConversationEvent, error)
}
