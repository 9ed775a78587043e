package lifecycle

import "github.com/odyssey-erp/odyssey-books/internal/documents"

// Machine names a document state machine.
type Machine string

const (
	MachineInvoice       Machine = "invoice"
	MachineQuotation     Machine = "quotation"
	MachineBill          Machine = "bill"
	MachinePurchaseOrder Machine = "purchase_order"
	MachineSalesOrder    Machine = "sales_order"
	MachineCreditMemo    Machine = "credit_memo"
)

// CanTransition reports whether machine allows from → to.
func CanTransition(machine Machine, from, to string) bool {
	switch machine {
	case MachineInvoice:
		return documents.CanTransitionInvoice(documents.KindInvoice, documents.InvoiceStatus(from), documents.InvoiceStatus(to))
	case MachineQuotation:
		return documents.CanTransitionInvoice(documents.KindQuotation, documents.InvoiceStatus(from), documents.InvoiceStatus(to))
	case MachineBill:
		return documents.CanTransitionBill(documents.BillStatus(from), documents.BillStatus(to))
	case MachinePurchaseOrder, MachineSalesOrder:
		return documents.CanTransitionOrder(documents.OrderStatus(from), documents.OrderStatus(to))
	case MachineCreditMemo:
		return documents.CanTransitionCreditMemo(documents.CreditMemoStatus(from), documents.CreditMemoStatus(to))
	}
	return false
}
