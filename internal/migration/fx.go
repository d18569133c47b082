package migration

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module runs the schema steps during fx start-up; a failure aborts the app.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
		_, err := Run(context.Background(), conn, log.Named("migration"))
		return err
	}),
)
