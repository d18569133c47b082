package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxtracker/internal/observability/metrics"
	taxdomain "github.com/smallbiznis/taxtracker/internal/taxrecord/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Repo    taxdomain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	repo    taxdomain.Repository
	metrics *metrics.Metrics
}

func NewService(p Params) taxdomain.Service {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		log:     log.Named("taxrecord.service"),
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req taxdomain.CreateRequest) (*taxdomain.Response, error) {
	record, err := newRecord(req)
	if err != nil {
		s.metrics.RecordRejected(ctx, err.Error())
		return nil, err
	}

	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, taxdomain.ErrInvalidStatus) {
			s.metrics.RecordRejected(ctx, taxdomain.ErrInvalidStatus.Error())
		}
		return nil, err
	}

	s.metrics.RecordCreated(ctx, string(record.Status), record.TaxRate != nil)
	s.log.Info("tax record created",
		zap.Int64("id", record.ID),
		zap.String("status", string(record.Status)),
		zap.String("due_date", record.DueDate),
	)

	resp := toResponse(record)
	return &resp, nil
}

func (s *Service) List(ctx context.Context) ([]taxdomain.Response, error) {
	return s.Search(ctx, "")
}

// Search returns records whose due_date equals dueDate exactly. An empty
// dueDate returns every record.
func (s *Service) Search(ctx context.Context, dueDate string) ([]taxdomain.Response, error) {
	items, err := s.repo.List(ctx, taxdomain.ListRequest{DueDate: strings.TrimSpace(dueDate)})
	if err != nil {
		return nil, err
	}

	resp := make([]taxdomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

// Delete removes the record with id if present. Unknown ids, including 0,
// are a no-op; only negative ids are rejected.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id < 0 {
		return taxdomain.ErrInvalidID
	}
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if removed == 0 {
		s.log.Debug("tax record delete matched no rows", zap.Int64("id", id))
		return nil
	}

	s.metrics.RecordDeleted(ctx)
	s.log.Info("tax record deleted", zap.Int64("id", id))
	return nil
}

// Summarize totals the amounts due on req.DueDate and applies req.TaxRate to
// the total. Stored per-record tax_due values are not consulted.
func (s *Service) Summarize(ctx context.Context, req taxdomain.SummaryRequest) (*taxdomain.SummaryResponse, error) {
	records, err := s.Search(ctx, req.DueDate)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, record := range records {
		total = total.Add(decimal.NewFromFloat(record.Amount))
	}

	rate, ok := parseTaxRate(req.TaxRate)
	if !ok {
		rate = decimal.Zero
	}

	s.metrics.RecordSummary(ctx)

	return &taxdomain.SummaryResponse{
		Records:     records,
		TotalAmount: total.InexactFloat64(),
		TaxRate:     rate.InexactFloat64(),
		TaxDue:      total.Mul(rate).InexactFloat64(),
	}, nil
}

func newRecord(req taxdomain.CreateRequest) (*taxdomain.TaxRecord, error) {
	company := strings.TrimSpace(req.Company)
	if company == "" {
		return nil, taxdomain.ErrInvalidCompany
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	dueDate := strings.TrimSpace(req.DueDate)
	if dueDate == "" {
		return nil, taxdomain.ErrInvalidDueDate
	}

	record := &taxdomain.TaxRecord{
		Company: company,
		Amount:  amount.InexactFloat64(),
		Status:  taxdomain.Status(req.Status),
		DueDate: dueDate,
	}

	if rate, ok := parseTaxRate(req.TaxRate); ok {
		rateValue := rate.InexactFloat64()
		taxDue := amount.Mul(rate).InexactFloat64()
		record.TaxRate = &rateValue
		record.TaxDue = &taxDue
	}

	if paymentDate := strings.TrimSpace(req.PaymentDate); paymentDate != "" {
		record.PaymentDate = &paymentDate
	}

	return record, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	value, ok := parseFinite(raw)
	if !ok || value < 0 {
		return decimal.Zero, taxdomain.ErrInvalidAmount
	}
	return decimal.NewFromFloat(value), nil
}

// parseTaxRate reports ok=false for empty, unparsable or non-finite input,
// which callers treat as "no rate".
func parseTaxRate(raw string) (decimal.Decimal, bool) {
	value, ok := parseFinite(raw)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(value), true
}

func parseFinite(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func toResponse(record *taxdomain.TaxRecord) taxdomain.Response {
	return taxdomain.Response{
		ID:          record.ID,
		Company:     record.Company,
		Amount:      record.Amount,
		TaxRate:     record.TaxRate,
		TaxDue:      record.TaxDue,
		PaymentDate: record.PaymentDate,
		Status:      record.Status,
		DueDate:     record.DueDate,
	}
}
