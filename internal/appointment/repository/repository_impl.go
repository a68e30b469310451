package repository

import (
	"context"
	"time"

	appointmentdomain "github.com/agendobot/metrics/internal/appointment/domain"
	"github.com/agendobot/metrics/pkg/db/option"
	"github.com/agendobot/metrics/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type appointmentRepo struct {
	store repository.Repository[appointmentdomain.AppointmentRecord]
}

func Provide(db *gorm.DB) appointmentdomain.Repository {
	return &appointmentRepo{store: repository.ProvideStore[appointmentdomain.AppointmentRecord](db)}
}

func (r *appointmentRepo) ListByTenantAndRange(ctx context.Context, tenantID snowflake.ID, from, to time.Time) ([]appointmentdomain.AppointmentRecord, error) {
	rows, err := r.store.Find(ctx,
		&appointmentdomain.AppointmentRecord{TenantID: tenantID},
		option.WithTimeRange("start_time", from, to),
		option.WithOrderBy("start_time ASC, id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]appointmentdomain.AppointmentRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}
