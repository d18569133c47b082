package main

import (
	"github.com/smallbiznis/taxtracker/internal/clock"
	"github.com/smallbiznis/taxtracker/internal/config"
	"github.com/smallbiznis/taxtracker/internal/migration"
	"github.com/smallbiznis/taxtracker/internal/observability"
	"github.com/smallbiznis/taxtracker/internal/seed"
	"github.com/smallbiznis/taxtracker/internal/server"
	"github.com/smallbiznis/taxtracker/internal/taxrecord"
	"github.com/smallbiznis/taxtracker/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Core Infrastructure
		config.Module,
		observability.Module,
		db.Module,
		clock.Module,

		// Schema must be current before any route is served.
		migration.Module,

		taxrecord.Module,
		seed.Module,
		server.Module,
	)
	app.Run()
}
