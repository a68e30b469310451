package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Repository persists derived metric snapshots. Writes are upserts keyed by
// the records' unique indexes so reruns replace rather than append.
type Repository interface {
	UpsertTenantMetric(ctx context.Context, rec *TenantPeriodMetrics) error
	UpsertPlatformMetric(ctx context.Context, rec *PlatformPeriodMetrics) error

	// ListTenantMetrics returns all tenant rows for a period and metric
	// type, ordered by tenant id.
	ListTenantMetrics(ctx context.Context, period, metricType string) ([]TenantPeriodMetrics, error)

	// FindTenantMetric returns one tenant row or nil when absent.
	FindTenantMetric(ctx context.Context, tenantID snowflake.ID, period, metricType string) (*TenantPeriodMetrics, error)

	// FindPlatformMetric returns the current platform snapshot for a
	// period, or nil when none has been computed yet.
	FindPlatformMetric(ctx context.Context, period, metricType string) (*PlatformPeriodMetrics, error)
}
