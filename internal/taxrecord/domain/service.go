package domain

import (
	"context"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	Search(ctx context.Context, dueDate string) ([]Response, error)
	Delete(ctx context.Context, id int64) error
	Summarize(ctx context.Context, req SummaryRequest) (*SummaryResponse, error)
}

// DueDateCalendar lists the filing deadlines offered when entering records.
type DueDateCalendar interface {
	DueDates(now time.Time) []string
}

// ListRequest filters by exact due date; an empty DueDate matches every row.
type ListRequest struct {
	DueDate string
}

// CreateRequest carries raw form values; parsing happens in the service.
type CreateRequest struct {
	Company     string
	Amount      string
	TaxRate     string
	PaymentDate string
	Status      string
	DueDate     string
}

type SummaryRequest struct {
	DueDate string
	TaxRate string
}

type Response struct {
	ID          int64    `json:"id"`
	Company     string   `json:"company"`
	Amount      float64  `json:"amount"`
	TaxRate     *float64 `json:"tax_rate"`
	TaxDue      *float64 `json:"tax_due"`
	PaymentDate *string  `json:"payment_date"`
	Status      Status   `json:"status"`
	DueDate     string   `json:"due_date"`
}

// SummaryResponse aggregates the records for one due date. TaxDue is
// TotalAmount * TaxRate using the caller's rate, not the per-record tax_due.
type SummaryResponse struct {
	Records     []Response `json:"records"`
	TotalAmount float64    `json:"total_amount"`
	TaxRate     float64    `json:"tax_rate"`
	TaxDue      float64    `json:"tax_due"`
}
