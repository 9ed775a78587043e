package documents

import (
	"context"

	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// TxRepository exposes transactional document operations.
type TxRepository interface {
	shared.Savepointer
	LastSequence(ctx context.Context, tenantID int64, series Series) (int64, error)

	InsertCustomer(ctx context.Context, c Customer) (Customer, error)
	InsertVendor(ctx context.Context, v Vendor) (Vendor, error)
	GetCustomer(ctx context.Context, tenantID, id int64) (Customer, error)
	GetVendor(ctx context.Context, tenantID, id int64) (Vendor, error)

	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, tenantID, id int64) (Invoice, error)
	UpdateInvoice(ctx context.Context, inv Invoice) error
	ReplaceInvoiceLines(ctx context.Context, invoiceID int64, lines []Line) ([]Line, error)
	ListInvoices(ctx context.Context, tenantID int64, filter InvoiceFilter) ([]Invoice, error)

	InsertBill(ctx context.Context, bill Bill) (Bill, error)
	GetBillForUpdate(ctx context.Context, tenantID, id int64) (Bill, error)
	UpdateBill(ctx context.Context, bill Bill) error
	ReplaceBillLines(ctx context.Context, billID int64, lines []Line) ([]Line, error)
	ListBills(ctx context.Context, tenantID int64, filter BillFilter) ([]Bill, error)

	InsertCreditMemo(ctx context.Context, memo CreditMemo) (CreditMemo, error)
	GetCreditMemoForUpdate(ctx context.Context, tenantID, id int64) (CreditMemo, error)
	UpdateCreditMemo(ctx context.Context, memo CreditMemo) error
	DeleteCreditMemo(ctx context.Context, tenantID, id int64) error

	InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	GetPurchaseOrderForUpdate(ctx context.Context, tenantID, id int64) (PurchaseOrder, error)
	UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error

	InsertSalesOrder(ctx context.Context, so SalesOrder) (SalesOrder, error)
	GetSalesOrderForUpdate(ctx context.Context, tenantID, id int64) (SalesOrder, error)
	UpdateSalesOrder(ctx context.Context, so SalesOrder) error

	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	SetPaymentJournal(ctx context.Context, tenantID, paymentID, entryID int64) error
}

// RepositoryPort is the read side plus transactional access.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetCustomer(ctx context.Context, tenantID, id int64) (Customer, error)
	GetVendor(ctx context.Context, tenantID, id int64) (Vendor, error)
	ListCustomers(ctx context.Context, tenantID int64) ([]Customer, error)
	ListVendors(ctx context.Context, tenantID int64) ([]Vendor, error)
	GetInvoice(ctx context.Context, tenantID, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, tenantID int64, filter InvoiceFilter) ([]Invoice, error)
	GetBill(ctx context.Context, tenantID, id int64) (Bill, error)
	ListBills(ctx context.Context, tenantID int64, filter BillFilter) ([]Bill, error)
	GetCreditMemo(ctx context.Context, tenantID, id int64) (CreditMemo, error)
	GetPurchaseOrder(ctx context.Context, tenantID, id int64) (PurchaseOrder, error)
	GetSalesOrder(ctx context.Context, tenantID, id int64) (SalesOrder, error)
	GetPayment(ctx context.Context, tenantID, id int64) (Payment, error)
}

// Repository persists documents in PostgreSQL.
type Repository struct {
	m *db.Manager
}

// NewRepository constructs Repository.
func NewRepository(m *db.Manager) *Repository {
	return &Repository{m: m}
}

// WithTx runs fn in the transaction carried by ctx or a new one.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.m.WithTx(ctx, func(ctx context.Context) error {
		return fn(ctx, r)
	})
}

// Savepoint isolates one numbering attempt.
func (r *Repository) Savepoint(ctx context.Context, fn func(context.Context) error) error {
	return r.m.Savepoint(ctx, fn)
}

// LastSequence returns the highest sequential number used in series.
func (r *Repository) LastSequence(ctx context.Context, tenantID int64, series Series) (int64, error) {
	return db.MaxSequence(ctx, r.m.Conn(ctx), series.Table(), tenantID, series.Prefix())
}
