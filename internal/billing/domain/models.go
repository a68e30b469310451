// Package domain holds the billing record and the tier state machine
// contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TierTrial marks a tenant still inside its trial window; no tier logic runs.
const TierTrial = "trial"

// CurrentPeriod returns the calendar-month billing period containing now.
// The boundary is stable for every run inside the month, so the upsert key
// (tenant_id, period_start) replaces instead of appending and readers at a
// later instant resolve the same period.
func CurrentPeriod(now time.Time) (start, end time.Time) {
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}

// BillingRecord is one tenant's charge for one billing period. Upserted on
// (tenant_id, period_start) so recomputation replaces the prior value.
type BillingRecord struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	TenantID          snowflake.ID `gorm:"not null;uniqueIndex:uniq_billing_tenant_period,priority:1"`
	PeriodStart       time.Time    `gorm:"not null;uniqueIndex:uniq_billing_tenant_period,priority:2"`
	PeriodEnd         time.Time    `gorm:"not null"`
	Trial             bool         `gorm:"not null"`
	Tier              string       `gorm:"type:text;not null"`
	ConversationCount int          `gorm:"not null"`
	FixedPrice        float64      `gorm:"type:numeric;not null"`
	OverageCount      int          `gorm:"not null"`
	OverageAmount     float64      `gorm:"type:numeric;not null"`
	TotalCharge       float64      `gorm:"type:numeric;not null"`
	ComputedAt        time.Time    `gorm:"not null"`
}

func (BillingRecord) TableName() string { return "billing_records" }
