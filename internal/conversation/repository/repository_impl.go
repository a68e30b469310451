package repository

import (
	"context"
	"time"

	conversationdomain "github.com/agendobot/metrics/internal/conversation/domain"
	"github.com/agendobot/metrics/pkg/db/option"
	"github.com/agendobot/metrics/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type conversationRepo struct {
	store repository.Repository[conversationdomain.ConversationEvent]
}

func Provide(db *gorm.DB) conversationdomain.Repository {
	return &conversationRepo{store: repository.ProvideStore[conversationdomain.ConversationEvent](db)}
}

func (r *conversationRepo) ListByTenantAndRange(ctx context.Context, tenantID snowflake.ID, from, to time.Time) ([]conversationdomain.ConversationEvent, error) {
	rows, err := r.store.Find(ctx,
		&conversationdomain.ConversationEvent{TenantID: tenantID},
		option.WithTimeRange("created_at", from, to),
		option.WithOrderBy("created_at ASC, id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]conversationdomain.ConversationEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}
