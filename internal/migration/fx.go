package migration

import (
	affiliatedomain "github.com/worldcitisim/affiliates/internal/affiliate/domain"
	auditdomain "github.com/worldcitisim/affiliates/internal/audit/domain"
	"github.com/worldcitisim/affiliates/internal/config"
	identitydomain "github.com/worldcitisim/affiliates/internal/identity/domain"
	ledgerdomain "github.com/worldcitisim/affiliates/internal/ledger/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Non-Postgres deployments (sqlite dev mode) take the schema
			// straight from the models.
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)

// AutoMigrate creates the schema from the domain models. Used by sqlite
// dev deployments and in-memory test databases.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&identitydomain.User{},
		&affiliatedomain.Affiliate{},
		&ledgerdomain.Entry{},
		&auditdomain.AuditLog{},
	)
}
