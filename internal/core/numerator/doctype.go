package numerator

import "strings"

// DocumentType identifies which sequence a document draws from.
type DocumentType string

const (
	SalesOrder    DocumentType = "SALES_ORDER"
	PurchaseOrder DocumentType = "PURCHASE_ORDER"
)

// NormalizeDocumentType maps short aliases and differently-cased canonical
// values to one of the two canonical codes.
// Unrecognized input is returned unchanged.
func NormalizeDocumentType(raw string) DocumentType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SO", "SALES_ORDER", "SALES-ORDER", "SALESORDER":
		return SalesOrder
	case "PO", "PURCHASE_ORDER", "PURCHASE-ORDER", "PURCHASEORDER":
		return PurchaseOrder
	}
	return DocumentType(raw)
}

// Known reports whether t is one of the canonical codes.
func (t DocumentType) Known() bool {
	return t == SalesOrder || t == PurchaseOrder
}

// Prefix returns the short code used in formatted numbers ("SO", "PO").
// Unknown types use their raw value.
func (t DocumentType) Prefix() string {
	switch t {
	case SalesOrder:
		return "SO"
	case PurchaseOrder:
		return "PO"
	}
	return string(t)
}

// WireName returns the lower-case name used by the primary preview endpoint.
func (t DocumentType) WireName() string {
	switch t {
	case SalesOrder:
		return "sales_order"
	case PurchaseOrder:
		return "purchase_order"
	}
	return string(t)
}
