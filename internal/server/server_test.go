package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/smallbiznis/taxtracker/internal/clock"
	"github.com/smallbiznis/taxtracker/internal/config"
	"github.com/smallbiznis/taxtracker/internal/migration"
	"github.com/smallbiznis/taxtracker/internal/observability"
	taxdomain "github.com/smallbiznis/taxtracker/internal/taxrecord/domain"
	"github.com/smallbiznis/taxtracker/internal/taxrecord/repository"
	"github.com/smallbiznis/taxtracker/internal/taxrecord/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testServer struct {
	srv *Server
	db  *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = migration.Run(context.Background(), db, zap.NewNop())
	require.NoError(t, err)

	srv := NewServer(ServerParams{
		Gin:   NewEngine(observability.Config{Environment: "test"}, nil),
		Cfg:   config.Config{AppName: "taxtracker", AppVersion: "test"},
		DB:    db,
		Clock: clock.NewFakeClock(time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)),
		TaxSvc: service.NewService(service.Params{
			Log:  zap.NewNop(),
			Repo: repository.NewRepository(db),
		}),
		DueDates: service.NewCalendar(nil),
	})
	return &testServer{srv: srv, db: db}
}

func (ts *testServer) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) add(t *testing.T, form url.Values) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/tax/records/add", form)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "/tax/records", rec.Header().Get("Location"))
}

type listBody struct {
	Data          []taxdomain.Response `json:"data"`
	DueDates      []string             `json:"due_dates"`
	SearchDueDate *string              `json:"search_due_date"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func acmeForm() url.Values {
	return url.Values{
		"company":  {"Acme"},
		"amount":   {"1000"},
		"tax_rate": {"0.07"},
		"status":   {"unpaid"},
		"due_date": {"2025-04-15"},
	}
}

func globexForm() url.Values {
	return url.Values{
		"company":      {"Globex"},
		"amount":       {"200"},
		"payment_date": {"2025-06-01"},
		"status":       {"paid"},
		"due_date":     {"2025-06-15"},
	}
}

func TestListTaxRecords(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/tax/records", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[listBody](t, rec)
	assert.Empty(t, body.Data)
	assert.Equal(t, []string{"2025-04-15", "2025-06-15", "2025-09-15", "2026-01-15"}, body.DueDates)
	assert.Nil(t, body.SearchDueDate)

	ts.add(t, acmeForm())
	ts.add(t, globexForm())

	body = decode[listBody](t, ts.do(t, http.MethodGet, "/tax/records", nil))
	require.Len(t, body.Data, 2)
	acme := body.Data[0]
	assert.Equal(t, "Acme", acme.Company)
	require.NotNil(t, acme.TaxDue)
	assert.Equal(t, 70.0, *acme.TaxDue)
	assert.Nil(t, acme.PaymentDate)

	globex := body.Data[1]
	assert.Nil(t, globex.TaxRate)
	assert.Nil(t, globex.TaxDue)
	require.NotNil(t, globex.PaymentDate)
	assert.Equal(t, "2025-06-01", *globex.PaymentDate)
}

func TestAddTaxRecordErrors(t *testing.T) {
	ts := newTestServer(t)

	t.Run("UnknownStatus", func(t *testing.T) {
		form := acmeForm()
		form.Set("status", "overdue")

		rec := ts.do(t, http.MethodPost, "/tax/records/add", form)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decode[errorResponse](t, rec)
		assert.Equal(t, "constraint_violation", body.Error.Type)
		require.Len(t, body.Error.Errors, 1)
		assert.Equal(t, "status", body.Error.Errors[0].Field)
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		form := acmeForm()
		form.Set("amount", "a lot")

		rec := ts.do(t, http.MethodPost, "/tax/records/add", form)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[errorResponse](t, rec)
		assert.Equal(t, "validation_error", body.Error.Type)
		require.Len(t, body.Error.Errors, 1)
		assert.Equal(t, "amount", body.Error.Errors[0].Field)
		assert.Equal(t, "invalid_amount", body.Error.Errors[0].Code)
	})

	t.Run("MissingDueDate", func(t *testing.T) {
		form := acmeForm()
		form.Del("due_date")

		rec := ts.do(t, http.MethodPost, "/tax/records/add", form)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[errorResponse](t, rec)
		require.Len(t, body.Error.Errors, 1)
		assert.Equal(t, "due_date", body.Error.Errors[0].Field)
	})

	t.Run("BadTaxRateIsIgnored", func(t *testing.T) {
		form := acmeForm()
		form.Set("tax_rate", "abc")
		ts.add(t, form)
	})

	body := decode[listBody](t, ts.do(t, http.MethodGet, "/database", nil))
	require.Len(t, body.Data, 1)
	assert.Nil(t, body.Data[0].TaxRate)
	assert.Nil(t, body.Data[0].TaxDue)
}

func TestSearchTaxRecords(t *testing.T) {
	ts := newTestServer(t)
	ts.add(t, acmeForm())
	ts.add(t, globexForm())

	body := decode[listBody](t, ts.do(t, http.MethodGet, "/tax/records/search?due_date=2025-04-15", nil))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Acme", body.Data[0].Company)
	require.NotNil(t, body.SearchDueDate)
	assert.Equal(t, "2025-04-15", *body.SearchDueDate)
	assert.Len(t, body.DueDates, 4)

	body = decode[listBody](t, ts.do(t, http.MethodGet, "/tax/records/search?due_date=", nil))
	assert.Len(t, body.Data, 2)

	body = decode[listBody](t, ts.do(t, http.MethodGet, "/tax/records/search?due_date=1999-01-01", nil))
	assert.NotNil(t, body.Data)
	assert.Empty(t, body.Data)
}

func TestDeleteTaxRecord(t *testing.T) {
	ts := newTestServer(t)
	ts.add(t, acmeForm())
	ts.add(t, globexForm())

	body := decode[listBody](t, ts.do(t, http.MethodGet, "/tax/records", nil))
	require.Len(t, body.Data, 2)
	acmeID := body.Data[0].ID

	rec := ts.do(t, http.MethodPost, fmt.Sprintf("/tax/records/delete/%d", acmeID), nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/tax/records", rec.Header().Get("Location"))

	rec = ts.do(t, http.MethodPost, "/tax/records/delete/9999", nil)
	assert.Equal(t, http.StatusFound, rec.Code)

	for _, id := range []string{"abc", "-1", "1.5"} {
		rec = ts.do(t, http.MethodPost, "/tax/records/delete/"+id, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, id)
	}

	rec = ts.do(t, http.MethodPost, "/tax/records/delete/0", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/tax/records", rec.Header().Get("Location"))

	body = decode[listBody](t, ts.do(t, http.MethodGet, "/tax/records", nil))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Globex", body.Data[0].Company)
}

func TestSummarizeTaxRecords(t *testing.T) {
	ts := newTestServer(t)
	ts.add(t, acmeForm())
	ts.add(t, globexForm())

	type summaryBody struct {
		Data taxdomain.SummaryResponse `json:"data"`
	}

	rec := ts.do(t, http.MethodGet, "/tax/summary?due_date=2025-04-15&tax_rate=0.05", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[summaryBody](t, rec)
	require.Len(t, body.Data.Records, 1)
	assert.Equal(t, 1000.0, body.Data.TotalAmount)
	assert.Equal(t, 0.05, body.Data.TaxRate)
	assert.Equal(t, 50.0, body.Data.TaxDue)

	body = decode[summaryBody](t, ts.do(t, http.MethodGet, "/tax/summary?due_date=2025-06-15", nil))
	assert.Equal(t, 200.0, body.Data.TotalAmount)
	assert.Zero(t, body.Data.TaxRate)
	assert.Zero(t, body.Data.TaxDue)

	for _, target := range []string{"/tax/summary?tax_rate=0.1", "/tax/summary?due_date=&tax_rate=0.1"} {
		rec = ts.do(t, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, rec.Code, target)
		body = decode[summaryBody](t, rec)
		assert.Len(t, body.Data.Records, 2, target)
		assert.Equal(t, 1200.0, body.Data.TotalAmount, target)
		assert.Equal(t, 0.1, body.Data.TaxRate, target)
		assert.Equal(t, 120.0, body.Data.TaxDue, target)
	}
}

func TestIndexAndHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var index struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Routes  []struct {
			Method string `json:"method"`
			Path   string `json:"path"`
		} `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &index))
	assert.Equal(t, "taxtracker", index.Name)
	assert.Equal(t, "test", index.Version)
	paths := make([]string, 0, len(index.Routes))
	for _, r := range index.Routes {
		paths = append(paths, r.Method+" "+r.Path)
	}
	assert.Contains(t, paths, "POST /tax/records/add")
	assert.Contains(t, paths, "GET /tax/summary")

	rec = ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	sqlDB, err := ts.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	rec = ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "service_unavailable", body.Error.Type)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "not_found", body.Error.Type)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantField  string
	}{
		{name: "company", err: taxdomain.ErrInvalidCompany, wantStatus: http.StatusBadRequest, wantType: "validation_error", wantField: "company"},
		{name: "id", err: taxdomain.ErrInvalidID, wantStatus: http.StatusBadRequest, wantType: "validation_error", wantField: "id"},
		{name: "request", err: ErrInvalidRequest, wantStatus: http.StatusBadRequest, wantType: "validation_error", wantField: "request"},
		{name: "wrapped status", err: fmt.Errorf("%w: CHECK constraint failed", taxdomain.ErrInvalidStatus), wantStatus: http.StatusUnprocessableEntity, wantType: "constraint_violation", wantField: "status"},
		{name: "storage", err: fmt.Errorf("disk I/O error"), wantStatus: http.StatusInternalServerError, wantType: "internal_error"},
		{name: "nil", err: nil, wantStatus: http.StatusInternalServerError, wantType: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := mapError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantType, payload.Type)
			if tt.wantField == "" {
				assert.Empty(t, payload.Errors)
				return
			}
			require.Len(t, payload.Errors, 1)
			assert.Equal(t, tt.wantField, payload.Errors[0].Field)
		})
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	kind, code := classifyErrorForLog(taxdomain.ErrInvalidAmount)
	assert.Equal(t, "client", kind)
	assert.Equal(t, "invalid_amount", code)

	kind, code = classifyErrorForLog(fmt.Errorf("boom"))
	assert.Equal(t, "server", kind)
	assert.Equal(t, "internal_error", code)
}
