package main

import (
	"github.com/agendobot/metrics/internal/appointment"
	"github.com/agendobot/metrics/internal/billing"
	"github.com/agendobot/metrics/internal/cache"
	"github.com/agendobot/metrics/internal/clock"
	"github.com/agendobot/metrics/internal/config"
	"github.com/agendobot/metrics/internal/conversation"
	"github.com/agendobot/metrics/internal/customer"
	"github.com/agendobot/metrics/internal/logger"
	"github.com/agendobot/metrics/internal/metric"
	"github.com/agendobot/metrics/internal/migration"
	"github.com/agendobot/metrics/internal/observability"
	"github.com/agendobot/metrics/internal/period"
	"github.com/agendobot/metrics/internal/platform"
	"github.com/agendobot/metrics/internal/scheduler"
	"github.com/agendobot/metrics/internal/tenant"
	"github.com/agendobot/metrics/internal/validator"
	"github.com/agendobot/metrics/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Raw entities
		tenant.Module,
		conversation.Module,
		appointment.Module,
		customer.Module,

		// Aggregation pipeline
		metric.Module,
		period.Module,
		platform.Module,
		validator.Module,
		billing.Module,
		cache.Module,

		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
