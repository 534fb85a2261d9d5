// Package transactions commits order drafts to the allocation API and loads
// stored orders back for editing.
package transactions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ordernum/internal/core/apperror"
	"ordernum/internal/core/numerator"
	"ordernum/internal/domain/numbering"
	"ordernum/internal/infrastructure/client/rest"
	"ordernum/pkg/logger"
)

const basePath = "/transactions/transactions"

const dateLayout = "2006-01-02"

// Lifecycle actions accepted by Process.
const (
	ActionApprove = "approve"
	ActionCancel  = "cancel"
)

// Client implements numbering.Committer over HTTP.
type Client struct {
	rest *rest.Client
}

var _ numbering.Committer = (*Client)(nil)

// New creates a transactions client.
func New(rc *rest.Client) *Client {
	return &Client{rest: rc}
}

// Create posts a new order. The server allocates the authoritative number.
func (c *Client) Create(ctx context.Context, payload numbering.CommitPayload) (*numbering.CommitResult, error) {
	rec, err := c.send(ctx, http.MethodPost, basePath, toRequest(payload))
	if err != nil {
		return nil, err
	}
	return rec.toResult(), nil
}

// Update replaces the business fields of an existing order.
func (c *Client) Update(ctx context.Context, entityID string, payload numbering.CommitPayload) (*numbering.CommitResult, error) {
	rec, err := c.send(ctx, http.MethodPut, basePath+"/"+url.PathEscape(entityID), toRequest(payload))
	if err != nil {
		return nil, err
	}
	return rec.toResult(), nil
}

// Process applies a lifecycle action (approve, cancel) to a stored order.
func (c *Client) Process(ctx context.Context, entityID, action string) (*numbering.CommitResult, error) {
	body := map[string]string{"action": action}
	rec, err := c.send(ctx, http.MethodPatch, basePath+"/"+url.PathEscape(entityID)+"/process", body)
	if err != nil {
		return nil, err
	}
	return rec.toResult(), nil
}

// Get loads a stored order so it can be edited under a LOCKED number.
func (c *Client) Get(ctx context.Context, entityID string) (numbering.Existing, error) {
	resp, err := c.rest.Do(ctx, http.MethodGet, basePath+"/"+url.PathEscape(entityID), nil, nil)
	if err != nil {
		return numbering.Existing{}, apperror.NewSubmissionFailed(0, "Failed to load the order").WithCause(err)
	}
	if !resp.OK() {
		appErr := rest.ErrorFromResponse(resp)
		if resp.Status == http.StatusNotFound {
			return numbering.Existing{}, apperror.NewNotFound("order", entityID)
		}
		return numbering.Existing{}, appErr
	}

	raw, err := unwrapData(resp.Body)
	if err != nil {
		return numbering.Existing{}, apperror.NewInternal(err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return numbering.Existing{}, apperror.NewInternal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return numbering.Existing{}, apperror.NewInternal(err)
	}

	existing := numbering.Existing{
		ID:        rec.ID,
		Type:      numerator.NormalizeDocumentType(rec.Type),
		Manual:    rec.ManualNumber,
		RawFields: fields,
		Fields: numbering.Fields{
			PartyID: rec.PartyID,
			DueDate: parseDate(rec.DueDate),
			Lines:   fromLineDTOs(rec.Lines),
			Comment: rec.Comment,
		},
	}
	if d := parseDate(&rec.Date); d != nil {
		existing.Date = *d
	}
	return existing, nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*record, error) {
	resp, err := c.rest.Do(ctx, method, path, nil, body)
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		return nil, commitError(resp)
	}

	raw, err := unwrapData(resp.Body)
	if err != nil {
		logger.Warn(ctx, "unreadable commit response", "status", resp.Status, "error", err)
		return nil, apperror.NewSubmissionFailed(resp.Status, "Server returned an unreadable response").WithCause(err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, apperror.NewSubmissionFailed(resp.Status, "Server returned an unreadable response").WithCause(err)
	}
	return &rec, nil
}

// commitError classifies a failed commit. Any 409 is an allocation conflict,
// whatever the body says.
func commitError(resp *rest.Response) *apperror.AppError {
	server := rest.ErrorFromResponse(resp)

	if resp.Status == http.StatusConflict {
		number, _ := server.Details["number"].(string)
		conflict := apperror.NewAllocationConflict(number)
		if server.Message != "" {
			conflict.Message = server.Message
		}
		return conflict
	}

	failed := apperror.NewSubmissionFailed(resp.Status, server.Message)
	for k, v := range server.Details {
		failed.WithDetail(k, v)
	}
	if server.Code != "" {
		failed.WithDetail("server_code", server.Code)
	}
	return failed
}

// unwrapData returns the object inside a {"data": {...}} envelope, or the
// body itself when there is no envelope.
func unwrapData(body []byte) (json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if data, ok := envelope["data"]; ok && strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		return data, nil
	}
	return body, nil
}

// --- wire types ---

type lineDTO struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type orderRequest struct {
	Type         string    `json:"type"`
	Number       string    `json:"number"`
	ManualNumber bool      `json:"manual_number"`
	PeriodKey    string    `json:"period_key"`
	Date         string    `json:"date"`
	PartyID      string    `json:"party_id"`
	DueDate      *string   `json:"due_date,omitempty"`
	Lines        []lineDTO `json:"lines"`
	Comment      string    `json:"comment,omitempty"`
}

type record struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Number       string          `json:"number"`
	ManualNumber bool            `json:"manual_number"`
	PeriodKey    string          `json:"period_key"`
	Date         string          `json:"date"`
	PartyID      string          `json:"party_id"`
	DueDate      *string         `json:"due_date"`
	Lines        []lineDTO       `json:"lines"`
	Comment      string          `json:"comment"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Status       string          `json:"status"`
}

func toRequest(p numbering.CommitPayload) orderRequest {
	req := orderRequest{
		Type:         string(p.Type),
		Number:       p.Number,
		ManualNumber: p.ManualNumber,
		PeriodKey:    p.PeriodKey.String(),
		Date:         p.Date.Format(dateLayout),
		PartyID:      p.PartyID,
		Comment:      p.Comment,
		Lines:        make([]lineDTO, 0, len(p.Lines)),
	}
	if p.DueDate != nil {
		due := p.DueDate.Format(dateLayout)
		req.DueDate = &due
	}
	for _, l := range p.Lines {
		req.Lines = append(req.Lines, lineDTO{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return req
}

func (r *record) toResult() *numbering.CommitResult {
	return &numbering.CommitResult{
		EntityID:    r.ID,
		Number:      r.Number,
		Type:        numerator.NormalizeDocumentType(r.Type),
		Manual:      r.ManualNumber,
		PeriodKey:   numerator.PeriodKey(r.PeriodKey),
		TotalAmount: r.TotalAmount,
		Status:      r.Status,
	}
}

func fromLineDTOs(in []lineDTO) []numbering.Line {
	out := make([]numbering.Line, 0, len(in))
	for _, l := range in {
		out = append(out, numbering.Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return out
}

func parseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	d, err := time.Parse(dateLayout, (*s)[:min(len(*s), len(dateLayout))])
	if err != nil {
		return nil
	}
	return &d
}
