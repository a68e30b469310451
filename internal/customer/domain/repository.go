package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	// CountNewInRange counts customers whose first interaction with the
	// tenant falls in [from, to).
	CountNewInRange(ctx context.Context, tenantID snowflake.ID, from, to time.Time) (int64, error)
}
