package repository

import (
	"context"
	"fmt"

	taxdomain "github.com/smallbiznis/taxtracker/internal/taxrecord/domain"
	"github.com/smallbiznis/taxtracker/pkg/db"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) taxdomain.Repository {
	return &repository{db: db}
}

// Create inserts record and sets its assigned ID. A status outside the
// allowed set is rejected by the table's CHECK constraint.
func (r *repository) Create(ctx context.Context, record *taxdomain.TaxRecord) error {
	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		if db.IsCheckConstraintErr(err) {
			return fmt.Errorf("%w: %v", taxdomain.ErrInvalidStatus, err)
		}
		return err
	}
	return nil
}

func (r *repository) List(ctx context.Context, filter taxdomain.ListRequest) ([]taxdomain.TaxRecord, error) {
	var items []taxdomain.TaxRecord
	stmt := r.db.WithContext(ctx).Model(&taxdomain.TaxRecord{})

	if filter.DueDate != "" {
		stmt = stmt.Where("due_date = ?", filter.DueDate)
	}

	if err := stmt.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes the row with id. Deleting a missing id is not an error.
func (r *repository) Delete(ctx context.Context, id int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&taxdomain.TaxRecord{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
