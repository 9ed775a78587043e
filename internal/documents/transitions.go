package documents

import "github.com/odyssey-erp/odyssey-books/internal/shared"

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusSent, InvoiceStatusVoid},
	InvoiceStatusSent:    {InvoiceStatusViewed, InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusVoid},
	InvoiceStatusViewed:  {InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusVoid},
	InvoiceStatusPartial: {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusVoid},
	InvoiceStatusOverdue: {InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusVoid},
}

var quotationTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft: {InvoiceStatusSent},
	InvoiceStatusSent:  {InvoiceStatusAccepted, InvoiceStatusDeclined},
}

var billTransitions = map[BillStatus][]BillStatus{
	BillStatusDraft:   {BillStatusOpen, BillStatusVoid},
	BillStatusOpen:    {BillStatusPartial, BillStatusPaid, BillStatusOverdue, BillStatusVoid},
	BillStatusPartial: {BillStatusPaid, BillStatusOverdue, BillStatusVoid},
	BillStatusOverdue: {BillStatusPartial, BillStatusPaid, BillStatusVoid},
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft: {OrderStatusSent, OrderStatusCancelled},
	OrderStatusSent:  {OrderStatusConverted, OrderStatusCancelled},
}

var creditMemoTransitions = map[CreditMemoStatus][]CreditMemoStatus{
	CreditMemoStatusDraft:  {CreditMemoStatusIssued},
	CreditMemoStatusIssued: {CreditMemoStatusVoid},
}

func allowed[S comparable](table map[S][]S, from, to S) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionInvoice checks the invoice or quotation table for kind.
func CanTransitionInvoice(kind InvoiceKind, from, to InvoiceStatus) bool {
	if kind == KindQuotation {
		return allowed(quotationTransitions, from, to)
	}
	return allowed(invoiceTransitions, from, to)
}

func CanTransitionBill(from, to BillStatus) bool { return allowed(billTransitions, from, to) }

func CanTransitionOrder(from, to OrderStatus) bool { return allowed(orderTransitions, from, to) }

func CanTransitionCreditMemo(from, to CreditMemoStatus) bool {
	return allowed(creditMemoTransitions, from, to)
}

// CheckInvoice returns a ValidationError for a disallowed transition.
func CheckInvoice(inv Invoice, to InvoiceStatus) error {
	if !CanTransitionInvoice(inv.Kind, inv.Status, to) {
		return shared.InvalidWrap("status", ErrInvalidTransition, "%s %s cannot move from %s to %s",
			kindLabel(inv.Kind), inv.Number, inv.Status, to)
	}
	return nil
}

// CheckBill returns a ValidationError for a disallowed transition.
func CheckBill(bill Bill, to BillStatus) error {
	if !CanTransitionBill(bill.Status, to) {
		return shared.InvalidWrap("status", ErrInvalidTransition, "bill %s cannot move from %s to %s", bill.Number, bill.Status, to)
	}
	return nil
}

// CheckOrder returns a ValidationError for a disallowed transition.
func CheckOrder(label, number string, from, to OrderStatus) error {
	if !CanTransitionOrder(from, to) {
		return shared.InvalidWrap("status", ErrInvalidTransition, "%s %s cannot move from %s to %s", label, number, from, to)
	}
	return nil
}

// CheckCreditMemo returns a ValidationError for a disallowed transition.
func CheckCreditMemo(memo CreditMemo, to CreditMemoStatus) error {
	if !CanTransitionCreditMemo(memo.Status, to) {
		return shared.InvalidWrap("status", ErrInvalidTransition, "credit memo %s cannot move from %s to %s", memo.Number, memo.Status, to)
	}
	return nil
}

func kindLabel(kind InvoiceKind) string {
	if kind == KindQuotation {
		return "quotation"
	}
	return "invoice"
}

// SettledInvoiceStatus is the status after a payment or credit leaves
// balance due.
func SettledInvoiceStatus(inv Invoice) InvoiceStatus {
	if inv.BalanceDue.IsZero() {
		return InvoiceStatusPaid
	}
	return InvoiceStatusPartial
}

// SettledBillStatus is the status after a payment leaves balance due.
func SettledBillStatus(bill Bill) BillStatus {
	if bill.BalanceDue.IsZero() {
		return BillStatusPaid
	}
	return BillStatusPartial
}
