package domain

import "context"

type Repository interface {
	Create(ctx context.Context, record *TaxRecord) error
	List(ctx context.Context, filter ListRequest) ([]TaxRecord, error)
	// Delete reports how many rows were removed; zero when id is unknown.
	Delete(ctx context.Context, id int64) (int64, error)
}
