package domain

import (
	"context"
	"time"
)

type Repository interface {
	// Upsert replaces the record for (tenant_id, period_start).
	Upsert(ctx context.Context, rec *BillingRecord) error

	// ListByPeriodStart returns all tenant records for a billing period,
	// ordered by tenant id.
	ListByPeriodStart(ctx context.Context, periodStart time.Time) ([]BillingRecord, error)
}
