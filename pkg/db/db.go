package db

import (
	"context"
	"fmt"

	"github.com/smallbiznis/taxtracker/internal/config"
	obslogger "github.com/smallbiznis/taxtracker/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprom "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(NewDB),
)

// NewDB opens the configured database and closes the pool when the app stops.
func NewDB(lc fx.Lifecycle, appCfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	cfg := ConfigFromApp(appCfg)
	conn, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	log.Info("database opened",
		zap.String("type", cfg.Type),
		zap.String("dialect", conn.Dialector.Name()),
		zap.Int("max_open_conn", cfg.MaxOpenConn),
	)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return conn, nil
}

// Open connects with pool limits applied and tracing attached.
func Open(cfg Config) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: obslogger.NewGormLogger(obslogger.DefaultGormLoggerConfig()),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if cfg.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	}
	if cfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := conn.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName(dbName(cfg)),
		otelgorm.WithoutQueryVariables(),
	)); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}

	if cfg.MetricsEnabled {
		if err := conn.Use(gormprom.New(gormprom.Config{
			DBName:          dbName(cfg),
			RefreshInterval: 15,
			StartServer:     false,
		})); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("register metrics plugin: %w", err)
		}
	}

	return conn, nil
}

func dbName(cfg Config) string {
	switch cfg.Type {
	case "postgres", "mysql":
		return cfg.Name
	default:
		return sqlitePath(cfg.Path)
	}
}
