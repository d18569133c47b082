package seed

import (
	"context"
	"errors"

	"github.com/smallbiznis/taxtracker/internal/config"
	taxdomain "github.com/smallbiznis/taxtracker/internal/taxrecord/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Invoke(func(cfg config.Config, db *gorm.DB, svc taxdomain.Service, log *zap.Logger) error {
		if !cfg.SeedSampleData {
			return nil
		}
		_, err := EnsureSampleRecords(context.Background(), db, svc, log)
		return err
	}),
)

// SampleRecords are inserted into an empty table for local development.
var SampleRecords = []taxdomain.CreateRequest{
	{Company: "Acme Corp", Amount: "1000", TaxRate: "0.07", Status: "unpaid", DueDate: "2025-04-15"},
	{Company: "Globex", Amount: "2500.50", TaxRate: "0.05", PaymentDate: "2025-06-10", Status: "paid", DueDate: "2025-06-15"},
	{Company: "Initech", Amount: "300", Status: "unpaid", DueDate: "2025-09-15"},
}

// EnsureSampleRecords seeds SampleRecords when the table holds no rows and
// reports how many were inserted. A populated table is left untouched.
func EnsureSampleRecords(ctx context.Context, db *gorm.DB, svc taxdomain.Service, log *zap.Logger) (int, error) {
	if db == nil || svc == nil {
		return 0, errors.New("seed database handle and service are required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	var count int64
	if err := db.WithContext(ctx).Model(&taxdomain.TaxRecord{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		log.Debug("seed skipped, table not empty", zap.Int64("rows", count))
		return 0, nil
	}

	for _, req := range SampleRecords {
		if _, err := svc.Create(ctx, req); err != nil {
			return 0, err
		}
	}

	log.Info("sample tax records seeded", zap.Int("rows", len(SampleRecords)))
	return len(SampleRecords), nil
}
