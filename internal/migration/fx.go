package migration

import (
	billingdomain "github.com/agendobot/metrics/internal/billing/domain"
	"github.com/agendobot/metrics/internal/config"
	metricdomain "github.com/agendobot/metrics/internal/metric/domain"
	"github.com/agendobot/metrics/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Non-postgres targets are dev/test only; gorm keeps the
			// derived tables in shape there.
			if err := conn.AutoMigrate(
				&metricdomain.TenantPeriodMetrics{},
				&metricdomain.PlatformPeriodMetrics{},
				&billingdomain.BillingRecord{},
			); err != nil {
				return err
			}
		}

		if cfg.SeedDemoData {
			return seed.EnsureDemoData(conn)
		}
		return nil
	}),
)
