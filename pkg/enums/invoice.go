package enums

import "fmt"

// InvoiceStatus maps to the invoice status column.
type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "draft"
	InvoiceStatusIssued InvoiceStatus = "issued"
	InvoiceStatusPaid   InvoiceStatus = "paid"
	InvoiceStatusVoid   InvoiceStatus = "void"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:  {InvoiceStatusIssued, InvoiceStatusVoid},
	InvoiceStatusIssued: {InvoiceStatusPaid, InvoiceStatusVoid},
}

// CanTransition reports whether moving from s to target is allowed.
func (s InvoiceStatus) CanTransition(target InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ParseInvoiceStatus converts raw input into InvoiceStatus.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	switch InvoiceStatus(value) {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusPaid, InvoiceStatusVoid:
		return InvoiceStatus(value), nil
	}
	return "", fmt.Errorf("invalid invoice status %q", value)
}
