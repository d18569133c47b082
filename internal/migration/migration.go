package migration

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Step is one schema change. Pending inspects the live schema, so no version
// table is kept and legacy databases converge on the same steps.
type Step struct {
	Version int
	Name    string
	Pending func(m gorm.Migrator) bool
	Apply   func(tx *gorm.DB) error
}

// Report lists step names by outcome, in execution order.
type Report struct {
	Applied []string
	Skipped []string
}

// Run brings the tax record schema up to date.
func Run(ctx context.Context, conn *gorm.DB, log *zap.Logger) (Report, error) {
	return RunSteps(ctx, conn, log, Steps())
}

// RunSteps applies steps in order, skipping those that are not pending.
func RunSteps(ctx context.Context, conn *gorm.DB, log *zap.Logger, steps []Step) (Report, error) {
	var report Report
	if conn == nil {
		return report, errors.New("migration database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := validateSteps(steps); err != nil {
		return report, err
	}

	db := conn.WithContext(ctx)
	for _, step := range steps {
		label := fmt.Sprintf("%04d_%s", step.Version, step.Name)
		if !step.Pending(db.Migrator()) {
			log.Debug("schema step skipped", zap.String("step", label))
			report.Skipped = append(report.Skipped, label)
			continue
		}
		if err := step.Apply(db); err != nil {
			return report, fmt.Errorf("apply %s: %w", label, err)
		}
		log.Info("schema step applied", zap.String("step", label))
		report.Applied = append(report.Applied, label)
	}

	return report, nil
}

func validateSteps(steps []Step) error {
	last := 0
	for _, step := range steps {
		if step.Version <= last {
			return fmt.Errorf("schema step %q: version %d is not greater than %d", step.Name, step.Version, last)
		}
		if step.Pending == nil || step.Apply == nil {
			return fmt.Errorf("schema step %q: pending and apply are required", step.Name)
		}
		last = step.Version
	}
	return nil
}
