package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/smallbiznis/taxtracker/internal/migration"
	"github.com/smallbiznis/taxtracker/internal/observability/metrics"
	taxdomain "github.com/smallbiznis/taxtracker/internal/taxrecord/domain"
	"github.com/smallbiznis/taxtracker/internal/taxrecord/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = migration.Run(context.Background(), db, zap.NewNop())
	require.NoError(t, err)
	return db
}

func newTestService(t *testing.T) (taxdomain.Service, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := metrics.New(metrics.Config{ServiceName: "taxtracker-test"}, provider)
	require.NoError(t, err)

	svc := NewService(Params{
		Log:     zap.NewNop(),
		Repo:    repository.NewRepository(setupTestDB(t)),
		Metrics: m,
	})
	return svc, reader
}

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestCreateDerivesTaxDue(t *testing.T) {
	svc, reader := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, taxdomain.CreateRequest{
		Company: "Acme",
		Amount:  "1000",
		TaxRate: "0.07",
		Status:  "unpaid",
		DueDate: "2025-04-15",
	})
	require.NoError(t, err)
	assert.NotZero(t, resp.ID)
	require.NotNil(t, resp.TaxRate)
	require.NotNil(t, resp.TaxDue)
	assert.Equal(t, 0.07, *resp.TaxRate)
	assert.Equal(t, 70.0, *resp.TaxDue)
	assert.Nil(t, resp.PaymentDate)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, *resp, items[0])

	assert.Equal(t, int64(1), counterTotal(t, reader, "taxtracker_records_created_total"))
}

func TestCreateTaxRateLenience(t *testing.T) {
	tests := []struct {
		name    string
		taxRate string
	}{
		{name: "empty", taxRate: ""},
		{name: "whitespace", taxRate: "   "},
		{name: "not a number", taxRate: "abc"},
		{name: "nan", taxRate: "NaN"},
		{name: "infinite", taxRate: "Inf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			resp, err := svc.Create(context.Background(), taxdomain.CreateRequest{
				Company: "Globex",
				Amount:  "200",
				TaxRate: tt.taxRate,
				Status:  "paid",
				DueDate: "2025-06-15",
			})
			require.NoError(t, err)
			assert.Nil(t, resp.TaxRate)
			assert.Nil(t, resp.TaxDue)
		})
	}
}

func TestCreateValidation(t *testing.T) {
	valid := taxdomain.CreateRequest{
		Company:     "Initech",
		Amount:      "50",
		PaymentDate: "2025-04-01",
		Status:      "paid",
		DueDate:     "2025-04-15",
	}

	tests := []struct {
		name    string
		mutate  func(*taxdomain.CreateRequest)
		wantErr error
	}{
		{name: "missing company", mutate: func(r *taxdomain.CreateRequest) { r.Company = "  " }, wantErr: taxdomain.ErrInvalidCompany},
		{name: "missing amount", mutate: func(r *taxdomain.CreateRequest) { r.Amount = "" }, wantErr: taxdomain.ErrInvalidAmount},
		{name: "non numeric amount", mutate: func(r *taxdomain.CreateRequest) { r.Amount = "lots" }, wantErr: taxdomain.ErrInvalidAmount},
		{name: "negative amount", mutate: func(r *taxdomain.CreateRequest) { r.Amount = "-1" }, wantErr: taxdomain.ErrInvalidAmount},
		{name: "infinite amount", mutate: func(r *taxdomain.CreateRequest) { r.Amount = "+Inf" }, wantErr: taxdomain.ErrInvalidAmount},
		{name: "missing due date", mutate: func(r *taxdomain.CreateRequest) { r.DueDate = "" }, wantErr: taxdomain.ErrInvalidDueDate},
		{name: "unknown status", mutate: func(r *taxdomain.CreateRequest) { r.Status = "overdue" }, wantErr: taxdomain.ErrInvalidStatus},
		{name: "empty status", mutate: func(r *taxdomain.CreateRequest) { r.Status = "" }, wantErr: taxdomain.ErrInvalidStatus},
		{name: "padded status", mutate: func(r *taxdomain.CreateRequest) { r.Status = " paid " }, wantErr: taxdomain.ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, reader := newTestService(t)
			req := valid
			tt.mutate(&req)

			resp, err := svc.Create(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, resp)

			items, err := svc.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, items)
			assert.Equal(t, int64(1), counterTotal(t, reader, "taxtracker_records_rejected_total"))
		})
	}
}

func TestCreateTrimsInput(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.Create(context.Background(), taxdomain.CreateRequest{
		Company:     "  Acme  ",
		Amount:      " 12.5 ",
		PaymentDate: " 2025-04-01 ",
		Status:      "paid",
		DueDate:     " 2025-04-15 ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme", resp.Company)
	assert.Equal(t, 12.5, resp.Amount)
	assert.Equal(t, taxdomain.StatusPaid, resp.Status)
	assert.Equal(t, "2025-04-15", resp.DueDate)
	require.NotNil(t, resp.PaymentDate)
	assert.Equal(t, "2025-04-01", *resp.PaymentDate)
}

func seed(t *testing.T, svc taxdomain.Service, reqs ...taxdomain.CreateRequest) []*taxdomain.Response {
	t.Helper()
	out := make([]*taxdomain.Response, 0, len(reqs))
	for _, req := range reqs {
		resp, err := svc.Create(context.Background(), req)
		require.NoError(t, err)
		out = append(out, resp)
	}
	return out
}

func TestSearch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seed(t, svc,
		taxdomain.CreateRequest{Company: "Acme", Amount: "1000", TaxRate: "0.07", Status: "unpaid", DueDate: "2025-04-15"},
		taxdomain.CreateRequest{Company: "Globex", Amount: "200", Status: "paid", DueDate: "2025-06-15"},
	)

	items, err := svc.Search(ctx, "2025-04-15")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Acme", items[0].Company)

	items, err = svc.Search(ctx, "2025-09-15")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	unfiltered, err := svc.Search(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, all, unfiltered)
	assert.Len(t, all, 2)
}

func TestSummarize(t *testing.T) {
	svc, reader := newTestService(t)
	ctx := context.Background()
	seed(t, svc,
		taxdomain.CreateRequest{Company: "Acme", Amount: "1000", TaxRate: "0.07", Status: "unpaid", DueDate: "2025-04-15"},
		taxdomain.CreateRequest{Company: "Globex", Amount: "200", Status: "paid", DueDate: "2025-06-15"},
		taxdomain.CreateRequest{Company: "Initech", Amount: "0.1", Status: "paid", DueDate: "2025-09-15"},
		taxdomain.CreateRequest{Company: "Hooli", Amount: "0.2", Status: "unpaid", DueDate: "2025-09-15"},
	)

	t.Run("RateApplies", func(t *testing.T) {
		summary, err := svc.Summarize(ctx, taxdomain.SummaryRequest{DueDate: "2025-04-15", TaxRate: "0.05"})
		require.NoError(t, err)
		require.Len(t, summary.Records, 1)
		assert.Equal(t, 1000.0, summary.TotalAmount)
		assert.Equal(t, 0.05, summary.TaxRate)
		assert.Equal(t, 50.0, summary.TaxDue)
	})

	t.Run("DecimalSum", func(t *testing.T) {
		summary, err := svc.Summarize(ctx, taxdomain.SummaryRequest{DueDate: "2025-09-15", TaxRate: "1"})
		require.NoError(t, err)
		assert.Equal(t, 0.3, summary.TotalAmount)
		assert.Equal(t, 0.3, summary.TaxDue)
	})

	t.Run("MissingRateIsZero", func(t *testing.T) {
		for _, rate := range []string{"", "abc"} {
			summary, err := svc.Summarize(ctx, taxdomain.SummaryRequest{DueDate: "2025-06-15", TaxRate: rate})
			require.NoError(t, err)
			assert.Equal(t, 200.0, summary.TotalAmount)
			assert.Zero(t, summary.TaxRate)
			assert.Zero(t, summary.TaxDue)
		}
	})

	t.Run("NoMatches", func(t *testing.T) {
		summary, err := svc.Summarize(ctx, taxdomain.SummaryRequest{DueDate: "2031-01-15", TaxRate: "0.2"})
		require.NoError(t, err)
		assert.Empty(t, summary.Records)
		assert.Zero(t, summary.TotalAmount)
		assert.Zero(t, summary.TaxDue)
	})

	t.Run("EmptyDueDateCoversAll", func(t *testing.T) {
		summary, err := svc.Summarize(ctx, taxdomain.SummaryRequest{TaxRate: "0.1"})
		require.NoError(t, err)
		assert.Len(t, summary.Records, 4)
		assert.Equal(t, 1200.3, summary.TotalAmount)
	})

	assert.Equal(t, int64(6), counterTotal(t, reader, "taxtracker_summaries_total"))
}

func TestDelete(t *testing.T) {
	svc, reader := newTestService(t)
	ctx := context.Background()
	created := seed(t, svc,
		taxdomain.CreateRequest{Company: "Acme", Amount: "1000", Status: "unpaid", DueDate: "2025-04-15"},
		taxdomain.CreateRequest{Company: "Globex", Amount: "200", Status: "paid", DueDate: "2025-06-15"},
	)

	require.NoError(t, svc.Delete(ctx, created[0].ID))
	require.NoError(t, svc.Delete(ctx, 4242))
	require.NoError(t, svc.Delete(ctx, 0))

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, created[1].ID, items[0].ID)

	assert.ErrorIs(t, svc.Delete(ctx, -3), taxdomain.ErrInvalidID)
	assert.Equal(t, int64(1), counterTotal(t, reader, "taxtracker_records_deleted_total"))
}

func TestNewServiceWithoutMetrics(t *testing.T) {
	svc := NewService(Params{Repo: repository.NewRepository(setupTestDB(t))})

	_, err := svc.Create(context.Background(), taxdomain.CreateRequest{
		Company: "Acme", Amount: "1", Status: "paid", DueDate: "2025-04-15",
	})
	require.NoError(t, err)
}
