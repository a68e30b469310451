// Package domain contains the raw conversation event log. Rows are produced by
// the messaging layer and are append-only; this engine never mutates them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ConversationEvent is a single raw message-level event.
type ConversationEvent struct {
	ID                snowflake.ID      `gorm:"primaryKey"`
	TenantID          snowflake.ID      `gorm:"not null;index:idx_conversation_tenant_time,priority:1"`
	SessionID         *string           `gorm:"type:text;index"`
	IsFromUser        bool              `gorm:"not null"`
	Outcome           *string           `gorm:"column:conversation_outcome;type:text"`
	ConfidenceScore   *float64          `gorm:"type:numeric"`
	APICostUSD        *float64          `gorm:"column:api_cost_usd;type:numeric"`
	ProcessingCostUSD *float64          `gorm:"column:processing_cost_usd;type:numeric"`
	TokensUsed        *int64            `gorm:""`
	DurationMinutes   *float64          `gorm:"type:numeric"`
	Context           datatypes.JSONMap `gorm:"column:conversation_context;type:jsonb"`
	CreatedAt         time.Time         `gorm:"not null;index:idx_conversation_tenant_time,priority:2"`
}

func (ConversationEvent) TableName() string { return "conversation_history" }
