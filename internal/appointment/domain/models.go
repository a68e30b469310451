// Package domain contains the appointment record owned by the scheduling
// subsystem; read-only to the aggregation engine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusCompleted = "completed"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
	StatusPending   = "pending"
)

// RevenueEligible reports whether an appointment status counts toward revenue.
func RevenueEligible(status string) bool {
	return status == StatusCompleted || status == StatusConfirmed
}

type AppointmentRecord struct {
	ID                 snowflake.ID `gorm:"primaryKey"`
	TenantID           snowflake.ID `gorm:"not null;index:idx_appointment_tenant_start,priority:1"`
	UserID             snowflake.ID `gorm:"not null;index"`
	Status             string       `gorm:"type:text;not null"`
	QuotedPrice        *float64     `gorm:"type:numeric"`
	FinalPrice         *float64     `gorm:"type:numeric"`
	StartTime          time.Time    `gorm:"not null;index:idx_appointment_tenant_start,priority:2"`
	CancelledAt        *time.Time   `gorm:""`
	CancelledBy        *string      `gorm:"type:text"`
	CancellationReason *string      `gorm:"type:text"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (AppointmentRecord) TableName() string { return "appointments" }

// EffectivePrice is the amount an appointment contributes when revenue
// eligible: final price when present, quoted price otherwise, zero when both
// are missing.
func (a AppointmentRecord) EffectivePrice() float64 {
	if a.FinalPrice != nil {
		return *a.FinalPrice
	}
	if a.QuotedPrice != nil {
		return *a.QuotedPrice
	}
	return 0
}
