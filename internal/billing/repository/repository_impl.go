package repository

import (
	"context"
	"time"

	billingdomain "github.com/agendobot/metrics/internal/billing/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type billingRepo struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func Provide(db *gorm.DB, genID *snowflake.Node) billingdomain.Repository {
	return &billingRepo{db: db, genID: genID}
}

var billingConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "tenant_id"}, {Name: "period_start"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"period_end", "trial", "tier", "conversation_count", "fixed_price",
		"overage_count", "overage_amount", "total_charge", "computed_at",
	}),
}

func (r *billingRepo) Upsert(ctx context.Context, rec *billingdomain.BillingRecord) error {
	if rec.ID == 0 {
		rec.ID = r.genID.Generate()
	}
	return r.db.WithContext(ctx).Clauses(billingConflict).Create(rec).Error
}

func (r *billingRepo) ListByPeriodStart(ctx context.Context, periodStart time.Time) ([]billingdomain.BillingRecord, error) {
	var rows []billingdomain.BillingRecord
	err := r.db.WithContext(ctx).
		Where("period_start = ?", periodStart).
		Order("tenant_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
