package migration

import (
	auditdomain "github.com/verdantgrid/h2ledger/internal/audit/domain"
	"github.com/verdantgrid/h2ledger/internal/config"
	creditdomain "github.com/verdantgrid/h2ledger/internal/credit/domain"
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
			return RunMigrations(sqlDB)
		}
		return conn.AutoMigrate(
			&creditdomain.Credit{},
			&auditdomain.Transaction{},
		)
	}),
)
