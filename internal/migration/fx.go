package migration

import (
	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/shopfloor/moldtrack/internal/alert/domain"
	assetdomain "github.com/shopfloor/moldtrack/internal/asset/domain"
	"github.com/shopfloor/moldtrack/internal/config"
	productiondomain "github.com/shopfloor/moldtrack/internal/production/domain"
	"github.com/shopfloor/moldtrack/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, thresholds *config.ThresholdsHolder) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql deployments are dev-grade; gorm's schema sync
			// is enough there and skips the postgres-only partial index.
			if err := conn.AutoMigrate(
				&assetdomain.Mold{},
				&productiondomain.ProductionEntry{},
				&alertdomain.Alert{},
			); err != nil {
				return err
			}
		}

		if cfg.SeedDemoMolds {
			return seed.EnsureDemoMolds(conn, node, thresholds.Get())
		}
		return nil
	}),
)
