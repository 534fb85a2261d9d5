// Package orders is the server side of order numbering: it stores sales and
// purchase orders and assigns their authoritative numbers.
package orders

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ordernum/internal/core/apperror"
	"ordernum/internal/core/id"
	"ordernum/internal/core/numerator"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusApproved  Status = "approved"
	StatusCancelled Status = "cancelled"
)

// Lifecycle actions.
const (
	ActionApprove = "approve"
	ActionCancel  = "cancel"
)

// Order is a stored sales or purchase order.
type Order struct {
	ID           id.ID                  `db:"id" json:"id"`
	Type         numerator.DocumentType `db:"doc_type" json:"type"`
	Number       string                 `db:"number" json:"number"`
	ManualNumber bool                   `db:"manual_number" json:"manual_number"`
	PeriodKey    numerator.PeriodKey    `db:"period_key" json:"period_key"`
	Date         time.Time              `db:"date" json:"date"`
	PartyID      string                 `db:"party_id" json:"party_id"`
	DueDate      *time.Time             `db:"due_date" json:"due_date,omitempty"`
	Comment      string                 `db:"comment" json:"comment,omitempty"`
	TotalAmount  decimal.Decimal        `db:"total_amount" json:"total_amount"`
	Status       Status                 `db:"status" json:"status"`
	Version      int                    `db:"version" json:"version"`
	CreatedBy    string                 `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time              `db:"updated_at" json:"updated_at"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one order line.
type Line struct {
	OrderID   id.ID           `db:"order_id" json:"-"`
	LineNo    int             `db:"line_no" json:"line_no"`
	ProductID string          `db:"product_id" json:"product_id"`
	Quantity  decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
}

// NewOrder creates a draft order with a fresh id.
func NewOrder(docType numerator.DocumentType, date time.Time) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:        id.New(),
		Type:      numerator.NormalizeDocumentType(string(docType)),
		Date:      date,
		PeriodKey: numerator.PeriodKeyFromDate(date),
		Status:    StatusDraft,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetLines replaces the lines, numbering them and recomputing the total.
func (o *Order) SetLines(lines []Line) {
	o.Lines = make([]Line, 0, len(lines))
	o.TotalAmount = decimal.Zero
	for i, l := range lines {
		l.OrderID = o.ID
		l.LineNo = i + 1
		l.Amount = l.Quantity.Mul(l.UnitPrice)
		o.TotalAmount = o.TotalAmount.Add(l.Amount)
		o.Lines = append(o.Lines, l)
	}
}

// Validate checks the fields every stored order must have.
func (o *Order) Validate() error {
	fields := make(map[string]string)

	if !o.Type.Known() {
		fields["type"] = "must be SALES_ORDER or PURCHASE_ORDER"
	}
	if strings.TrimSpace(o.PartyID) == "" {
		fields["party_id"] = "required"
	}
	if o.Date.IsZero() {
		fields["date"] = "required"
	}
	if o.DueDate != nil && o.DueDate.Before(o.Date) {
		fields["due_date"] = "must not precede date"
	}
	if len(o.Lines) == 0 {
		fields["lines"] = "at least one line is required"
	}
	for _, l := range o.Lines {
		if strings.TrimSpace(l.ProductID) == "" || !l.Quantity.IsPositive() || l.UnitPrice.IsNegative() {
			fields["lines"] = "each line needs a product, a positive quantity and a non-negative price"
			break
		}
	}
	if o.ManualNumber && strings.TrimSpace(o.Number) == "" {
		fields["number"] = "required for a manual number"
	}

	if len(fields) > 0 {
		return apperror.NewFieldValidation(fields)
	}
	return nil
}

// CanModify rejects edits of cancelled orders.
func (o *Order) CanModify() error {
	if o.Status == StatusCancelled {
		return apperror.NewBusinessRule(apperror.CodeInvalidAction, "Cancelled order cannot be modified").
			WithDetail("order_id", o.ID.String())
	}
	return nil
}

// Apply performs a lifecycle action.
func (o *Order) Apply(action string) error {
	switch {
	case action == ActionApprove && o.Status == StatusDraft:
		o.Status = StatusApproved
	case action == ActionCancel && o.Status != StatusCancelled:
		o.Status = StatusCancelled
	default:
		return apperror.NewBusinessRule(apperror.CodeInvalidAction, "Action is not allowed in the current status").
			WithDetail("action", action).
			WithDetail("status", string(o.Status))
	}
	return nil
}
