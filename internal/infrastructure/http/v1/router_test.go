package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ordernum/internal/core/apperror"
	appctx "ordernum/internal/core/context"
	"ordernum/internal/core/id"
	"ordernum/internal/core/numerator"
	"ordernum/internal/domain/auth"
	"ordernum/internal/domain/orders"
	"ordernum/internal/infrastructure/http/v1/dto"
	"ordernum/pkg/logger"
)

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) Create(ctx context.Context, in orders.CreateInput) (*orders.Order, error) {
	args := m.Called(ctx, in)
	o, _ := args.Get(0).(*orders.Order)
	return o, args.Error(1)
}

func (m *mockOrders) Update(ctx context.Context, orderID id.ID, in orders.UpdateInput) (*orders.Order, error) {
	args := m.Called(ctx, orderID, in)
	o, _ := args.Get(0).(*orders.Order)
	return o, args.Error(1)
}

func (m *mockOrders) Process(ctx context.Context, orderID id.ID, action string) (*orders.Order, error) {
	args := m.Called(ctx, orderID, action)
	o, _ := args.Get(0).(*orders.Order)
	return o, args.Error(1)
}

func (m *mockOrders) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(*orders.Order)
	return o, args.Error(1)
}

type previewFunc func(ctx context.Context, rawType string, period numerator.PeriodKey) (string, error)

func (f previewFunc) Preview(ctx context.Context, rawType string, period numerator.PeriodKey) (string, error) {
	return f(ctx, rawType, period)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestRouter(svc *mockOrders, previews previewFunc, validator *auth.JWTService) http.Handler {
	cfg := RouterConfig{
		Logger:   logger.Nop(),
		DB:       pinger{},
		Orders:   svc,
		Previews: previews,
	}
	if validator != nil {
		cfg.JWTValidator = validator
	}
	return NewRouter(cfg)
}

func do(t *testing.T, h http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func sampleOrder() *orders.Order {
	o := orders.NewOrder(numerator.SalesOrder, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))
	o.Number = "SO202512-00003"
	o.PartyID = "P-001"
	o.SetLines([]orders.Line{{ProductID: "A", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("10.50")}})
	return o
}

func TestNextNumber(t *testing.T) {
	var gotType string
	var gotPeriod numerator.PeriodKey
	previews := func(_ context.Context, rawType string, period numerator.PeriodKey) (string, error) {
		gotType, gotPeriod = rawType, period
		return "SO202512-00003", nil
	}
	h := newTestRouter(&mockOrders{}, previews, nil)

	rec := do(t, h, http.MethodGet, "/transactions/next-number?type=sales_order&preview=true&date=202512", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body dto.PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SO202512-00003", body.Formatted)
	assert.Equal(t, "SALES_ORDER", body.Type)
	assert.Equal(t, "202512", body.PeriodKey)
	assert.Equal(t, "sales_order", gotType)
	assert.Equal(t, numerator.PeriodKey("202512"), gotPeriod)
	assert.NotEmpty(t, rec.Header().Get(appctx.HeaderRequestID))
}

func TestNextNumber_AcceptsBusinessDate(t *testing.T) {
	var gotPeriod numerator.PeriodKey
	previews := func(_ context.Context, _ string, period numerator.PeriodKey) (string, error) {
		gotPeriod = period
		return "PO202601-00001", nil
	}
	h := newTestRouter(&mockOrders{}, previews, nil)

	rec := do(t, h, http.MethodGet, "/transactions/next-number?type=PO&date=2026-01-31", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, numerator.PeriodKey("202601"), gotPeriod)
}

func TestNextNumber_BadRequests(t *testing.T) {
	previews := func(context.Context, string, numerator.PeriodKey) (string, error) {
		t.Fatal("preview must not be reached")
		return "", nil
	}
	h := newTestRouter(&mockOrders{}, previews, nil)

	for name, path := range map[string]string{
		"missing type":  "/transactions/next-number?date=202512",
		"bad date":      "/transactions/next-number?type=SO&date=2025-13",
		"preview false": "/transactions/next-number?type=SO&date=202512&preview=false",
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, apperror.CodeValidation, decodeError(t, rec).Code)
		})
	}
}

func TestLegacyPreview(t *testing.T) {
	previews := func(context.Context, string, numerator.PeriodKey) (string, error) {
		return "PO202512-00010", nil
	}
	h := newTestRouter(&mockOrders{}, previews, nil)

	rec := do(t, h, http.MethodGet, "/sequence/preview?type=PO&date=202512", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"next_number":"PO202512-00010"}}`, rec.Body.String())
}

func TestCreateOrder(t *testing.T) {
	svc := &mockOrders{}
	created := sampleOrder()
	svc.On("Create", mock.Anything, mock.MatchedBy(func(in orders.CreateInput) bool {
		return in.Type == numerator.SalesOrder &&
			in.Number == "SO202512-00002" &&
			in.PeriodKey == "202512" &&
			in.Date.Equal(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)) &&
			in.DueDate != nil &&
			len(in.Lines) == 1 && in.Lines[0].UnitPrice.Equal(decimal.RequireFromString("10.5"))
	})).Return(created, nil).Once()
	h := newTestRouter(svc, nil, nil)

	rec := do(t, h, http.MethodPost, "/transactions/transactions", map[string]any{
		"type":          "SALES_ORDER",
		"number":        "SO202512-00002",
		"manual_number": false,
		"period_key":    "202512",
		"date":          "2025-12-01",
		"party_id":      "P-001",
		"due_date":      "2025-12-31",
		"lines":         []map[string]any{{"product_id": "A", "quantity": "2", "unit_price": "10.50"}},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body dto.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, created.ID.String(), body.ID)
	assert.Equal(t, "SO202512-00003", body.Number)
	assert.Equal(t, "2025-12-01", body.Date)
	assert.True(t, decimal.NewFromInt(21).Equal(body.TotalAmount))
	svc.AssertExpectations(t)
}

func TestCreateOrder_Conflict(t *testing.T) {
	svc := &mockOrders{}
	svc.On("Create", mock.Anything, mock.Anything).
		Return(nil, apperror.NewAllocationConflict("SO202512-00002")).Once()
	h := newTestRouter(svc, nil, nil)

	rec := do(t, h, http.MethodPost, "/transactions/transactions", map[string]any{
		"type": "SO", "number": "SO202512-00002", "manual_number": true, "date": "2025-12-01",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, apperror.CodeAllocationConflict, body.Code)
	assert.Equal(t, "SO202512-00002", body.Details["number"])
}

func TestCreateOrder_BadDate(t *testing.T) {
	h := newTestRouter(&mockOrders{}, nil, nil)

	rec := do(t, h, http.MethodPost, "/transactions/transactions", map[string]any{
		"type": "SO", "date": "01.12.2025",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields, _ := decodeError(t, rec).Details["fields"].(map[string]any)
	assert.Contains(t, fields, "date")
}

func TestGetOrder(t *testing.T) {
	svc := &mockOrders{}
	o := sampleOrder()
	svc.On("GetByID", mock.Anything, o.ID).Return(o, nil).Once()
	missing := id.New()
	svc.On("GetByID", mock.Anything, missing).Return(nil, apperror.NewNotFound("order", missing.String())).Once()
	h := newTestRouter(svc, nil, nil)

	rec := do(t, h, http.MethodGet, "/transactions/transactions/"+o.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data dto.OrderResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SO202512-00003", body.Data.Number)

	rec = do(t, h, http.MethodGet, "/transactions/transactions/"+missing.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/transactions/transactions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAndProcessOrder(t *testing.T) {
	svc := &mockOrders{}
	o := sampleOrder()
	svc.On("Update", mock.Anything, o.ID, mock.MatchedBy(func(in orders.UpdateInput) bool {
		return in.Number == o.Number && in.PartyID == "P-002"
	})).Return(o, nil).Once()
	svc.On("Process", mock.Anything, o.ID, "approve").Return(o, nil).Once()
	h := newTestRouter(svc, nil, nil)

	rec := do(t, h, http.MethodPut, "/transactions/transactions/"+o.ID.String(), map[string]any{
		"number": o.Number, "date": "2025-12-02", "party_id": "P-002",
		"lines": []map[string]any{{"product_id": "A", "quantity": 1, "unit_price": 3}},
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPatch, "/transactions/transactions/"+o.ID.String()+"/process", map[string]any{"action": "approve"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestUnhandledErrorIsHidden(t *testing.T) {
	svc := &mockOrders{}
	o := sampleOrder()
	svc.On("GetByID", mock.Anything, o.ID).Return(nil, errors.New("pq: secret detail")).Once()
	h := newTestRouter(svc, nil, nil)

	rec := do(t, h, http.MethodGet, "/transactions/transactions/"+o.ID.String(), nil, appctx.HeaderRequestID, "req-1")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, apperror.CodeInternal, body.Code)
	assert.Equal(t, "req-1", body.Details["request_id"])
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestAuth(t *testing.T) {
	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig("secret"))
	previews := func(ctx context.Context, _ string, _ numerator.PeriodKey) (string, error) {
		assert.Equal(t, "u-7", appctx.GetUserID(ctx))
		return "SO202512-00001", nil
	}
	h := newTestRouter(&mockOrders{}, previews, jwtSvc)

	rec := do(t, h, http.MethodGet, "/transactions/next-number?type=SO&date=202512", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/transactions/next-number?type=SO&date=202512", nil, "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := jwtSvc.GenerateAccessToken("u-7", nil)
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/transactions/next-number?type=SO&date=202512", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReady(t *testing.T) {
	h := NewRouter(RouterConfig{DB: pinger{err: errors.New("down")}, Orders: &mockOrders{}})

	rec := do(t, h, http.MethodGet, "/health/ready", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy")
}
