package transactions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordernum/internal/core/apperror"
	"ordernum/internal/core/numerator"
	"ordernum/internal/domain/numbering"
	"ordernum/internal/infrastructure/client/rest"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(rest.New(srv.URL))
}

func samplePayload() numbering.CommitPayload {
	due := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	return numbering.CommitPayload{
		Type:      numerator.SalesOrder,
		Number:    "SO202512-00001",
		PeriodKey: "202512",
		Date:      time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		PartyID:   "P-001",
		DueDate:   &due,
		Lines: []numbering.Line{{
			ProductID: "PROD-1",
			Quantity:  decimal.NewFromInt(2),
			UnitPrice: decimal.RequireFromString("10.50"),
		}},
	}
}

func TestCreate_SendsPayloadAndReadsRecord(t *testing.T) {
	var method, path string
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": "ent-1",
			"type": "SALES_ORDER",
			"number": "SO202512-00002",
			"manual_number": false,
			"period_key": "202512",
			"total_amount": "21.00",
			"status": "draft"
		}`))
	})

	res, err := c.Create(context.Background(), samplePayload())
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/transactions/transactions", path)
	assert.Equal(t, "SO202512-00001", body["number"])
	assert.Equal(t, false, body["manual_number"])
	assert.Equal(t, "202512", body["period_key"])
	assert.Equal(t, "2025-12-01", body["date"])
	assert.Equal(t, "2025-12-31", body["due_date"])
	assert.Equal(t, "SALES_ORDER", body["type"])

	assert.Equal(t, "ent-1", res.EntityID)
	assert.Equal(t, "SO202512-00002", res.Number)
	assert.Equal(t, numerator.SalesOrder, res.Type)
	assert.True(t, decimal.NewFromInt(21).Equal(res.TotalAmount))
	assert.Equal(t, "draft", res.Status)
}

func TestCreate_DataEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"ent-2","number":"SO202512-00003"}}`))
	})

	res, err := c.Create(context.Background(), samplePayload())
	require.NoError(t, err)
	assert.Equal(t, "ent-2", res.EntityID)
	assert.Equal(t, "SO202512-00003", res.Number)
}

func TestCreate_ConflictIsRecognizedByStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"coded", `{"code":"ALLOCATION_CONFLICT","message":"Number SO202512-00001 is taken","details":{"number":"SO202512-00001"}}`},
		{"uncoded", `{"error":"duplicate key"}`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Create(context.Background(), samplePayload())
			require.Error(t, err)
			assert.True(t, apperror.IsAllocationConflict(err))
			assert.Equal(t, http.StatusConflict, apperror.GetHTTPStatus(err))
		})
	}
}

func TestCreate_ConflictKeepsServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"ALLOCATION_CONFLICT","message":"Number already used"}`))
	})

	_, err := c.Create(context.Background(), samplePayload())
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Number already used", appErr.Message)
}

func TestCreate_OtherFailureIsSubmissionFailed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"VALIDATION_ERROR","message":"validation failed","details":{"fields":{"party_id":"required"}}}`))
	})

	_, err := c.Create(context.Background(), samplePayload())
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)

	assert.Equal(t, apperror.CodeSubmissionFailed, appErr.Code)
	assert.Equal(t, "validation failed", appErr.Message)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Details["server_code"])
	assert.Equal(t, map[string]string{"party_id": "required"}, apperror.FieldErrors(err))
	assert.False(t, apperror.IsAllocationConflict(err))
}

func TestUpdate_UsesPut(t *testing.T) {
	var method, path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		_, _ = w.Write([]byte(`{"id":"ent-9","number":"SO202512-00009"}`))
	})

	res, err := c.Update(context.Background(), "ent-9", samplePayload())
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/transactions/transactions/ent-9", path)
	assert.Equal(t, "SO202512-00009", res.Number)
}

func TestProcess(t *testing.T) {
	var method, path string
	var body map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"id":"ent-9","number":"SO202512-00009","status":"approved"}`))
	})

	res, err := c.Process(context.Background(), "ent-9", ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "/transactions/transactions/ent-9/process", path)
	assert.Equal(t, map[string]string{"action": "approve"}, body)
	assert.Equal(t, "approved", res.Status)
}

func TestGet_LegacyNumberField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"id": "ent-4",
			"type": "purchase_order",
			"doc_number": "PO202511-00017",
			"manual_number": true,
			"date": "2025-11-03",
			"party_id": "V-9",
			"lines": [{"product_id":"RAW-1","quantity":"3","unit_price":"4"}]
		}`))
	})

	existing, err := c.Get(context.Background(), "ent-4")
	require.NoError(t, err)

	assert.Equal(t, "ent-4", existing.ID)
	assert.Equal(t, numerator.PurchaseOrder, existing.Type)
	assert.True(t, existing.Manual)
	assert.Equal(t, "PO202511-00017", existing.StoredNumber())
	assert.Equal(t, time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC), existing.Date)
	require.Len(t, existing.Fields.Lines, 1)
	assert.True(t, decimal.NewFromInt(12).Equal(existing.Fields.Total()))
}

func TestGet_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Get(context.Background(), "missing")
	assert.True(t, apperror.IsNotFound(err))
}
