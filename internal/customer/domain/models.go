package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TenantCustomer links an end user to a tenant. FirstInteraction is the
// moment the link was created and is what new-customer counts key on.
type TenantCustomer struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	TenantID         snowflake.ID `gorm:"not null;index:idx_user_tenant_first,priority:1"`
	UserID           snowflake.ID `gorm:"not null;index"`
	FirstInteraction time.Time    `gorm:"not null;index:idx_user_tenant_first,priority:2"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TenantCustomer) TableName() string { return "user_tenants" }
