package numbering

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ordernum/internal/core/apperror"
	"ordernum/internal/core/numerator"
)

// Line is one order line. Pricing beyond quantity × price is owned elsewhere.
type Line struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Amount returns quantity × unit price.
func (l Line) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Valid reports whether the line can be committed.
func (l Line) Valid() bool {
	return strings.TrimSpace(l.ProductID) != "" &&
		l.Quantity.IsPositive() &&
		!l.UnitPrice.IsNegative()
}

// Fields are the business fields edited alongside the number.
type Fields struct {
	PartyID string
	DueDate *time.Time
	Lines   []Line
	Comment string
}

func (f Fields) clone() Fields {
	out := f
	out.Lines = append([]Line(nil), f.Lines...)
	if f.DueDate != nil {
		due := *f.DueDate
		out.DueDate = &due
	}
	return out
}

// Total sums the line amounts.
func (f Fields) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range f.Lines {
		total = total.Add(l.Amount())
	}
	return total
}

// Existing is a stored order loaded for editing.
type Existing struct {
	ID        string
	Type      numerator.DocumentType
	Date      time.Time
	Manual    bool
	Fields    Fields
	RawFields map[string]any
}

// legacyNumberFields are tried, in order, when a record carries no canonical number.
var legacyNumberFields = []string{
	"doc_number",
	"document_number",
	"order_number",
	"transaction_number",
	"reference",
}

// StoredNumber returns the record's number, falling back through legacy field names.
func (e Existing) StoredNumber() string {
	if s, ok := e.RawFields["number"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	for _, key := range legacyNumberFields {
		if s, ok := e.RawFields[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// validate runs the field checks of a submit attempt.
func validate(docType numerator.DocumentType, mode Mode, number string, date time.Time, f Fields) error {
	errs := make(map[string]string)

	if !docType.Known() {
		errs["type"] = "document type must be SALES_ORDER or PURCHASE_ORDER"
	}
	if strings.TrimSpace(f.PartyID) == "" {
		errs["partyId"] = "party is required"
	}
	if date.IsZero() {
		errs["date"] = "date is required"
	}
	if f.DueDate != nil && !date.IsZero() && f.DueDate.Before(date) {
		errs["dueDate"] = "due date must not precede the order date"
	}

	validLines := 0
	for _, l := range f.Lines {
		if l.Valid() {
			validLines++
		}
	}
	if validLines == 0 {
		errs["lines"] = "at least one valid line is required"
	}

	if mode == ModeManual && strings.TrimSpace(number) == "" {
		errs["number"] = "number is required"
	}

	if len(errs) > 0 {
		return apperror.NewFieldValidation(errs)
	}
	return nil
}
