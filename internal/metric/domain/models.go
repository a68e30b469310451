// Package domain holds the derived metric records the engine owns. Rows are
// fully recomputed each run and replaced on write; there is no incremental
// mutation path.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Rolling window descriptors.
const (
	Period7d  = "7d"
	Period30d = "30d"
	Period90d = "90d"
)

// Metric type discriminators for the metric_data payload.
const (
	TypeConversation = "conversation_metrics"
	TypeAppointment  = "appointment_metrics"
	TypeCustomer     = "customer_metrics"
	TypeHistorical   = "historical_metrics"
	TypePlatform     = "platform_metrics"
)

// RollingPeriods lists the rolling windows in reporting order.
func RollingPeriods() []string { return []string{Period7d, Period30d, Period90d} }

// HistoricalMonths is the depth of the calendar-month series.
const HistoricalMonths = 6

// MonthPeriod names a historical bucket; index 0 is the most recently
// completed calendar month.
func MonthPeriod(index int) string { return fmt.Sprintf("month_%d", index) }

type TenantPeriodMetrics struct {
	ID          snowflake.ID   `gorm:"primaryKey"`
	TenantID    snowflake.ID   `gorm:"not null;uniqueIndex:uniq_tenant_period_type,priority:1"`
	Period      string         `gorm:"type:text;not null;uniqueIndex:uniq_tenant_period_type,priority:2"`
	MetricType  string         `gorm:"type:text;not null;uniqueIndex:uniq_tenant_period_type,priority:3"`
	MetricData  datatypes.JSON `gorm:"type:jsonb;not null"`
	PeriodStart time.Time      `gorm:"not null"`
	PeriodEnd   time.Time      `gorm:"not null"`
	ComputedAt  time.Time      `gorm:"not null"`
}

func (TenantPeriodMetrics) TableName() string { return "tenant_metrics" }

type PlatformPeriodMetrics struct {
	ID          snowflake.ID   `gorm:"primaryKey"`
	Period      string         `gorm:"type:text;not null;uniqueIndex:uniq_platform_period_type,priority:1"`
	MetricType  string         `gorm:"type:text;not null;uniqueIndex:uniq_platform_period_type,priority:2"`
	MetricData  datatypes.JSON `gorm:"type:jsonb;not null"`
	PeriodStart time.Time      `gorm:"not null"`
	PeriodEnd   time.Time      `gorm:"not null"`
	ComputedAt  time.Time      `gorm:"not null"`
}

func (PlatformPeriodMetrics) TableName() string { return "platform_metrics" }
