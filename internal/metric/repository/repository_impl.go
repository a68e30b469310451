package repository

import (
	"context"
	"errors"

	metricdomain "github.com/agendobot/metrics/internal/metric/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type metricRepo struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func Provide(db *gorm.DB, genID *snowflake.Node) metricdomain.Repository {
	return &metricRepo{db: db, genID: genID}
}

var tenantConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "tenant_id"}, {Name: "period"}, {Name: "metric_type"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"metric_data", "period_start", "period_end", "computed_at",
	}),
}

var platformConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "period"}, {Name: "metric_type"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"metric_data", "period_start", "period_end", "computed_at",
	}),
}

func (r *metricRepo) UpsertTenantMetric(ctx context.Context, rec *metricdomain.TenantPeriodMetrics) error {
	if rec.ID == 0 {
		rec.ID = r.genID.Generate()
	}
	return r.db.WithContext(ctx).Clauses(tenantConflict).Create(rec).Error
}

func (r *metricRepo) UpsertPlatformMetric(ctx context.Context, rec *metricdomain.PlatformPeriodMetrics) error {
	if rec.ID == 0 {
		rec.ID = r.genID.Generate()
	}
	return r.db.WithContext(ctx).Clauses(platformConflict).Create(rec).Error
}

func (r *metricRepo) ListTenantMetrics(ctx context.Context, period, metricType string) ([]metricdomain.TenantPeriodMetrics, error) {
	var rows []metricdomain.TenantPeriodMetrics
	err := r.db.WithContext(ctx).
		Where("period = ? AND metric_type = ?", period, metricType).
		Order("tenant_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *metricRepo) FindTenantMetric(ctx context.Context, tenantID snowflake.ID, period, metricType string) (*metricdomain.TenantPeriodMetrics, error) {
	var row metricdomain.TenantPeriodMetrics
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND period = ? AND metric_type = ?", tenantID, period, metricType).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *metricRepo) FindPlatformMetric(ctx context.Context, period, metricType string) (*metricdomain.PlatformPeriodMetrics, error) {
	var row metricdomain.PlatformPeriodMetrics
	err := r.db.WithContext(ctx).
		Where("period = ? AND metric_type = ?", period, metricType).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
