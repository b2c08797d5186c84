package migration

import (
	"context"

	"github.com/smallbiznis/cloudnest/internal/config"
	"github.com/smallbiznis/cloudnest/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Migrate(conn, cfg.DBType); err != nil {
			return err
		}
		return seed.Run(context.Background(), conn, seed.Options{
			AdminEmail: cfg.BootstrapAdminEmail,
			Log:        log,
		})
	}),
)
