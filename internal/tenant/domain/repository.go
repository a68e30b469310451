package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	ListActive(ctx context.Context) ([]Tenant, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Tenant, error)
}
