package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"ordernum/internal/core/numerator"
	"ordernum/internal/domain/orders"
)

// LineRequest is one order line in a request.
type LineRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateOrderRequest is the body of POST /transactions/transactions.
type CreateOrderRequest struct {
	Type         string        `json:"type" binding:"required"`
	Number       string        `json:"number"`
	ManualNumber bool          `json:"manual_number"`
	PeriodKey    string        `json:"period_key"`
	Date         string        `json:"date" binding:"required"`
	PartyID      string        `json:"party_id"`
	DueDate      *string       `json:"due_date"`
	Lines        []LineRequest `json:"lines"`
	Comment      string        `json:"comment"`
}

// ToInput converts the request to service input.
func (r CreateOrderRequest) ToInput() (orders.CreateInput, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return orders.CreateInput{}, err
	}
	due, err := parseOptionalDate("due_date", r.DueDate)
	if err != nil {
		return orders.CreateInput{}, err
	}
	return orders.CreateInput{
		Type:         numerator.NormalizeDocumentType(r.Type),
		Number:       r.Number,
		ManualNumber: r.ManualNumber,
		PeriodKey:    numerator.PeriodKey(r.PeriodKey),
		Date:         date,
		PartyID:      r.PartyID,
		DueDate:      due,
		Comment:      r.Comment,
		Lines:        toLines(r.Lines),
	}, nil
}

// UpdateOrderRequest is the body of PUT /transactions/transactions/:id.
// Type, manual_number and period_key are accepted and ignored.
type UpdateOrderRequest struct {
	Number  string        `json:"number"`
	Date    string        `json:"date" binding:"required"`
	PartyID string        `json:"party_id"`
	DueDate *string       `json:"due_date"`
	Lines   []LineRequest `json:"lines"`
	Comment string        `json:"comment"`
}

// ToInput converts the request to service input.
func (r UpdateOrderRequest) ToInput() (orders.UpdateInput, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return orders.UpdateInput{}, err
	}
	due, err := parseOptionalDate("due_date", r.DueDate)
	if err != nil {
		return orders.UpdateInput{}, err
	}
	return orders.UpdateInput{
		Number:  r.Number,
		Date:    date,
		PartyID: r.PartyID,
		DueDate: due,
		Comment: r.Comment,
		Lines:   toLines(r.Lines),
	}, nil
}

// ProcessRequest is the body of PATCH /transactions/transactions/:id/process.
type ProcessRequest struct {
	Action string `json:"action" binding:"required"`
}

func toLines(in []LineRequest) []orders.Line {
	out := make([]orders.Line, 0, len(in))
	for _, l := range in {
		out = append(out, orders.Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return out
}

// LineResponse is one stored order line.
type LineResponse struct {
	LineNo    int             `json:"line_no"`
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
}

// OrderResponse is a stored order.
type OrderResponse struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Number       string          `json:"number"`
	ManualNumber bool            `json:"manual_number"`
	PeriodKey    string          `json:"period_key"`
	Date         string          `json:"date"`
	PartyID      string          `json:"party_id"`
	DueDate      *string         `json:"due_date,omitempty"`
	Comment      string          `json:"comment,omitempty"`
	Lines        []LineResponse  `json:"lines"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Status       string          `json:"status"`
	Version      int             `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// FromOrder builds the response of an order.
func FromOrder(o *orders.Order) OrderResponse {
	resp := OrderResponse{
		ID:           o.ID.String(),
		Type:         string(o.Type),
		Number:       o.Number,
		ManualNumber: o.ManualNumber,
		PeriodKey:    o.PeriodKey.String(),
		Date:         o.Date.Format(dateLayout),
		PartyID:      o.PartyID,
		DueDate:      formatOptionalDate(o.DueDate),
		Comment:      o.Comment,
		Lines:        make([]LineResponse, 0, len(o.Lines)),
		TotalAmount:  o.TotalAmount,
		Status:       string(o.Status),
		Version:      o.Version,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			LineNo:    l.LineNo,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Amount:    l.Amount,
		})
	}
	return resp
}
