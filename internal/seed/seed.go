// Package seed loads demo fixtures for local development: one tenant with a
// few weeks of conversation and appointment traffic, enough to exercise every
// window the aggregator computes.
package seed

import (
	"context"
	"errors"
	"time"

	appointmentdomain "github.com/agendobot/metrics/internal/appointment/domain"
	conversationdomain "github.com/agendobot/metrics/internal/conversation/domain"
	customerdomain "github.com/agendobot/metrics/internal/customer/domain"
	tenantdomain "github.com/agendobot/metrics/internal/tenant/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const demoBusinessName = "Demo Barbershop"

// EnsureDemoData seeds the demo tenant once; reruns are no-ops.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing tenantdomain.Tenant
		err := tx.Where("business_name = ?", demoBusinessName).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		tenant := tenantdomain.Tenant{
			ID:           node.Generate(),
			BusinessName: demoBusinessName,
			Vertical:     "barbershop",
			Status:       tenantdomain.StatusActive,
			CreatedAt:    now.AddDate(0, -3, 0),
		}
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}

		users := make([]snowflake.ID, 0, 5)
		for i := 0; i < 5; i++ {
			userID := node.Generate()
			users = append(users, userID)
			customer := customerdomain.TenantCustomer{
				ID:               node.Generate(),
				TenantID:         tenant.ID,
				UserID:           userID,
				FirstInteraction: now.AddDate(0, 0, -10*(i+1)),
				CreatedAt:        now.AddDate(0, 0, -10*(i+1)),
			}
			if err := tx.Create(&customer).Error; err != nil {
				return err
			}
		}

		outcomes := []string{
			"appointment_created",
			"price_inquiry",
			"appointment_cancelled",
			"booking_abandoned",
			"spam_detected",
		}
		for i, code := range outcomes {
			sessionID := uuid.NewString()
			start := now.AddDate(0, 0, -(i*5 + 1))
			confidence := 0.9 - float64(i)*0.1
			cost := 0.02

			for msg := 0; msg < 3; msg++ {
				ev := conversationdomain.ConversationEvent{
					ID:              node.Generate(),
					TenantID:        tenant.ID,
					SessionID:       &sessionID,
					IsFromUser:      msg%2 == 0,
					ConfidenceScore: &confidence,
					APICostUSD:      &cost,
					CreatedAt:       start.Add(time.Duration(msg) * time.Minute),
				}
				if msg == 2 {
					outcome := code
					ev.Outcome = &outcome
				}
				if err := tx.Create(&ev).Error; err != nil {
					return err
				}
			}
		}

		prices := []float64{45, 60, 30, 55}
		statuses := []string{
			appointmentdomain.StatusCompleted,
			appointmentdomain.StatusConfirmed,
			appointmentdomain.StatusNoShow,
			appointmentdomain.StatusCancelled,
		}
		for i, status := range statuses {
			price := prices[i]
			appt := appointmentdomain.AppointmentRecord{
				ID:          node.Generate(),
				TenantID:    tenant.ID,
				UserID:      users[i%len(users)],
				Status:      status,
				QuotedPrice: &price,
				StartTime:   now.AddDate(0, 0, -(i*7 + 2)),
				CreatedAt:   now.AddDate(0, 0, -(i*7 + 3)),
			}
			if status == appointmentdomain.StatusCompleted {
				final := price + 5
				appt.FinalPrice = &final
			}
			if err := tx.Create(&appt).Error; err != nil {
				return err
			}
		}

		return nil
	})
}
