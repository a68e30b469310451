package repository

import (
	"context"
	"time"

	customerdomain "github.com/agendobot/metrics/internal/customer/domain"
	"github.com/agendobot/metrics/pkg/db/option"
	"github.com/agendobot/metrics/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type customerRepo struct {
	store repository.Repository[customerdomain.TenantCustomer]
}

func Provide(db *gorm.DB) customerdomain.Repository {
	return &customerRepo{store: repository.ProvideStore[customerdomain.TenantCustomer](db)}
}

func (r *customerRepo) CountNewInRange(ctx context.Context, tenantID snowflake.ID, from, to time.Time) (int64, error) {
	return r.store.Count(ctx,
		&customerdomain.TenantCustomer{TenantID: tenantID},
		option.WithTimeRange("first_interaction", from, to),
	)
}
