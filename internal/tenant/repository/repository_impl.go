package repository

import (
	"context"

	tenantdomain "github.com/agendobot/metrics/internal/tenant/domain"
	"github.com/agendobot/metrics/pkg/db/option"
	"github.com/agendobot/metrics/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type tenantRepo struct {
	store repository.Repository[tenantdomain.Tenant]
}

func Provide(db *gorm.DB) tenantdomain.Repository {
	return &tenantRepo{store: repository.ProvideStore[tenantdomain.Tenant](db)}
}

func (r *tenantRepo) ListActive(ctx context.Context) ([]tenantdomain.Tenant, error) {
	rows, err := r.store.Find(ctx,
		&tenantdomain.Tenant{Status: tenantdomain.StatusActive},
		option.WithOrderBy("id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]tenantdomain.Tenant, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}

func (r *tenantRepo) FindByID(ctx context.Context, id snowflake.ID) (*tenantdomain.Tenant, error) {
	return r.store.FindOne(ctx, &tenantdomain.Tenant{ID: id})
}
