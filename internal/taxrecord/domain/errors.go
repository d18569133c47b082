package domain

import "errors"

var (
	ErrInvalidCompany = errors.New("invalid_company")
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrInvalidDueDate = errors.New("invalid_due_date")
	ErrInvalidID      = errors.New("invalid_id")

	// ErrInvalidStatus wraps the storage CHECK rejection for status values
	// outside {paid, unpaid}.
	ErrInvalidStatus = errors.New("invalid_status")
)
