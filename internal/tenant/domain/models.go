// Package domain contains the read-only tenant entity owned by the platform core.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusCancelled = "cancelled"
)

// Tenant is a business account on the conversational-commerce platform.
type Tenant struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	BusinessName string       `gorm:"type:text;not null"`
	Vertical     string       `gorm:"column:domain;type:text"`
	Status       string       `gorm:"type:text;not null;index"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Tenant) TableName() string { return "tenants" }
