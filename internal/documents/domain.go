package documents

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// PARTIES
// ============================================================================

type Customer struct {
	ID        int64           `json:"id"`
	TenantID  int64           `json:"tenant_id"`
	Name      string          `json:"name"`
	Email     string          `json:"email,omitempty"`
	IsActive  bool            `json:"is_active"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Vendor struct {
	ID        int64           `json:"id"`
	TenantID  int64           `json:"tenant_id"`
	Name      string          `json:"name"`
	Email     string          `json:"email,omitempty"`
	IsActive  bool            `json:"is_active"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type PartyInput struct {
	Name  string
	Email string
}

// ============================================================================
// LINES
// ============================================================================

// Line is shared by every document type.
type Line struct {
	ID          int64           `json:"id"`
	Position    int             `json:"position"`
	ProductID   *int64          `json:"product_id,omitempty"`
	AccountID   *int64          `json:"account_id,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	TaxPct      decimal.Decimal `json:"tax_pct"`
	Subtotal    decimal.Decimal `json:"line_subtotal"`
	Tax         decimal.Decimal `json:"line_tax"`
	Total       decimal.Decimal `json:"line_total"`
}

type LineInput struct {
	ProductID   *int64
	AccountID   *int64
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal
	TaxPct      decimal.Decimal
}

// Input returns the line as input, used when copying between documents.
func (l Line) Input() LineInput {
	return LineInput{
		ProductID:   l.ProductID,
		AccountID:   l.AccountID,
		Description: l.Description,
		Quantity:    l.Quantity,
		UnitPrice:   l.UnitPrice,
		DiscountPct: l.DiscountPct,
		TaxPct:      l.TaxPct,
	}
}

// Inputs converts lines back to inputs.
func Inputs(lines []Line) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Input())
	}
	return out
}

// ============================================================================
// INVOICE / QUOTATION
// ============================================================================

type InvoiceKind string

const (
	KindInvoice   InvoiceKind = "INVOICE"
	KindQuotation InvoiceKind = "QUOTATION"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft    InvoiceStatus = "DRAFT"
	InvoiceStatusSent     InvoiceStatus = "SENT"
	InvoiceStatusViewed   InvoiceStatus = "VIEWED"
	InvoiceStatusPartial  InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid     InvoiceStatus = "PAID"
	InvoiceStatusOverdue  InvoiceStatus = "OVERDUE"
	InvoiceStatusVoid     InvoiceStatus = "VOID"
	InvoiceStatusAccepted InvoiceStatus = "ACCEPTED"
	InvoiceStatusDeclined InvoiceStatus = "DECLINED"
)

// OpenInvoiceStatuses count toward customer balances and aging.
var OpenInvoiceStatuses = []InvoiceStatus{InvoiceStatusSent, InvoiceStatusViewed, InvoiceStatusPartial, InvoiceStatusOverdue}

// IsOpen reports whether the status carries a receivable.
func (s InvoiceStatus) IsOpen() bool {
	switch s {
	case InvoiceStatusSent, InvoiceStatusViewed, InvoiceStatusPartial, InvoiceStatusOverdue:
		return true
	}
	return false
}

type Invoice struct {
	ID                 int64           `json:"id"`
	TenantID           int64           `json:"tenant_id"`
	Kind               InvoiceKind     `json:"kind"`
	Number             string          `json:"number"`
	CustomerID         int64           `json:"customer_id"`
	IssueDate          time.Time       `json:"issue_date"`
	DueDate            time.Time       `json:"due_date"`
	Status             InvoiceStatus   `json:"status"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	AmountPaid         decimal.Decimal `json:"amount_paid"`
	AmountCredited     decimal.Decimal `json:"amount_credited"`
	BalanceDue         decimal.Decimal `json:"balance_due"`
	JournalEntryID     *int64          `json:"journal_entry_id,omitempty"`
	ConvertedInvoiceID *int64          `json:"converted_invoice_id,omitempty"`
	SourceQuotationID  *int64          `json:"source_quotation_id,omitempty"`
	SalesOrderID       *int64          `json:"sales_order_id,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	SentAt             *time.Time      `json:"sent_at,omitempty"`
	CreatedBy          int64           `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Lines              []Line          `json:"lines,omitempty"`
}

// ApplyPayment adds amount to amount_paid and recomputes balance_due.
func (inv *Invoice) ApplyPayment(amount decimal.Decimal) {
	inv.AmountPaid = inv.AmountPaid.Add(amount)
	inv.BalanceDue = inv.TotalAmount.Sub(inv.AmountPaid)
}

type InvoiceFilter struct {
	Kind       InvoiceKind
	CustomerID int64
	Statuses   []InvoiceStatus
	DueBefore  *time.Time
	Limit      int
	Offset     int
}

// ============================================================================
// BILL
// ============================================================================

type BillStatus string

const (
	BillStatusDraft   BillStatus = "DRAFT"
	BillStatusOpen    BillStatus = "OPEN"
	BillStatusPartial BillStatus = "PARTIAL"
	BillStatusPaid    BillStatus = "PAID"
	BillStatusOverdue BillStatus = "OVERDUE"
	BillStatusVoid    BillStatus = "VOID"
)

// OpenBillStatuses count toward vendor balances and aging.
var OpenBillStatuses = []BillStatus{BillStatusOpen, BillStatusPartial, BillStatusOverdue}

// IsOpen reports whether the status carries a payable.
func (s BillStatus) IsOpen() bool {
	switch s {
	case BillStatusOpen, BillStatusPartial, BillStatusOverdue:
		return true
	}
	return false
}

type Bill struct {
	ID              int64           `json:"id"`
	TenantID        int64           `json:"tenant_id"`
	Number          string          `json:"number"`
	VendorID        int64           `json:"vendor_id"`
	BillDate        time.Time       `json:"bill_date"`
	DueDate         time.Time       `json:"due_date"`
	Status          BillStatus      `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	BalanceDue      decimal.Decimal `json:"balance_due"`
	JournalEntryID  *int64          `json:"journal_entry_id,omitempty"`
	PurchaseOrderID *int64          `json:"purchase_order_id,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	CreatedBy       int64           `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Lines           []Line          `json:"lines,omitempty"`
}

// ApplyPayment adds amount to amount_paid and recomputes balance_due.
func (b *Bill) ApplyPayment(amount decimal.Decimal) {
	b.AmountPaid = b.AmountPaid.Add(amount)
	b.BalanceDue = b.TotalAmount.Sub(b.AmountPaid)
}

type BillFilter struct {
	VendorID  int64
	Statuses  []BillStatus
	DueBefore *time.Time
	Limit     int
	Offset    int
}

// ============================================================================
// CREDIT MEMO
// ============================================================================

type CreditMemoStatus string

const (
	CreditMemoStatusDraft  CreditMemoStatus = "DRAFT"
	CreditMemoStatusIssued CreditMemoStatus = "ISSUED"
	CreditMemoStatusVoid   CreditMemoStatus = "VOID"
)

type CreditMemo struct {
	ID             int64            `json:"id"`
	TenantID       int64            `json:"tenant_id"`
	Number         string           `json:"number"`
	CustomerID     int64            `json:"customer_id"`
	InvoiceID      *int64           `json:"invoice_id,omitempty"`
	MemoDate       time.Time        `json:"memo_date"`
	Status         CreditMemoStatus `json:"status"`
	Reason         string           `json:"reason,omitempty"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
	TaxAmount      decimal.Decimal  `json:"tax_amount"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
	AppliedAmount  decimal.Decimal  `json:"applied_amount"`
	JournalEntryID *int64           `json:"journal_entry_id,omitempty"`
	CreatedBy      int64            `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	Lines          []Line           `json:"lines,omitempty"`
}

// ============================================================================
// PURCHASE / SALES ORDERS
// ============================================================================

type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "DRAFT"
	OrderStatusSent      OrderStatus = "SENT"
	OrderStatusConverted OrderStatus = "CONVERTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type PurchaseOrder struct {
	ID              int64           `json:"id"`
	TenantID        int64           `json:"tenant_id"`
	Number          string          `json:"number"`
	VendorID        int64           `json:"vendor_id"`
	OrderDate       time.Time       `json:"order_date"`
	ExpectedDate    *time.Time      `json:"expected_date,omitempty"`
	Status          OrderStatus     `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ConvertedBillID *int64          `json:"converted_bill_id,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedBy       int64           `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Lines           []Line          `json:"lines,omitempty"`
}

type SalesOrder struct {
	ID                 int64           `json:"id"`
	TenantID           int64           `json:"tenant_id"`
	Number             string          `json:"number"`
	CustomerID         int64           `json:"customer_id"`
	OrderDate          time.Time       `json:"order_date"`
	ExpectedDate       *time.Time      `json:"expected_date,omitempty"`
	Status             OrderStatus     `json:"status"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	ConvertedInvoiceID *int64          `json:"converted_invoice_id,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	CreatedBy          int64           `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Lines              []Line          `json:"lines,omitempty"`
}

// ============================================================================
// PAYMENTS
// ============================================================================

type PaymentDirection string

const (
	PaymentReceived PaymentDirection = "RECEIVED"
	PaymentSent     PaymentDirection = "SENT"
)

type DocumentType string

const (
	DocumentInvoice DocumentType = "INVOICE"
	DocumentBill    DocumentType = "BILL"
)

type Payment struct {
	ID             int64                `json:"id"`
	TenantID       int64                `json:"tenant_id"`
	Number         string               `json:"number"`
	Direction      PaymentDirection     `json:"direction"`
	PartyID        int64                `json:"party_id"`
	Amount         decimal.Decimal      `json:"amount"`
	Unapplied      decimal.Decimal      `json:"unapplied"`
	PaymentDate    time.Time            `json:"payment_date"`
	Method         string               `json:"method,omitempty"`
	Reference      string               `json:"reference,omitempty"`
	JournalEntryID *int64               `json:"journal_entry_id,omitempty"`
	CreatedBy      int64                `json:"created_by"`
	CreatedAt      time.Time            `json:"created_at"`
	Applications   []PaymentApplication `json:"applications"`
}

type PaymentApplication struct {
	ID            int64           `json:"id"`
	PaymentID     int64           `json:"payment_id"`
	DocumentType  DocumentType    `json:"document_type"`
	DocumentID    int64           `json:"document_id"`
	AmountApplied decimal.Decimal `json:"amount_applied"`
}
