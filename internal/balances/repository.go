package balances

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
)

// TxRepository writes cached balances under row locks.
type TxRepository interface {
	LockAccount(ctx context.Context, tenantID, id int64) (accounts.Account, error)
	SetAccountBalance(ctx context.Context, tenantID, id int64, balance decimal.Decimal, at time.Time) error
	LockCustomer(ctx context.Context, tenantID, id int64) error
	SetCustomerBalance(ctx context.Context, tenantID, id int64, balance decimal.Decimal, at time.Time) error
	LockVendor(ctx context.Context, tenantID, id int64) error
	SetVendorBalance(ctx context.Context, tenantID, id int64, balance decimal.Decimal, at time.Time) error
	OpenInvoiceBalance(ctx context.Context, tenantID, customerID int64) (decimal.Decimal, error)
	OpenBillBalance(ctx context.Context, tenantID, vendorID int64) (decimal.Decimal, error)
}

// RepositoryPort is the read side plus transactional access.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetAccount(ctx context.Context, tenantID, id int64) (accounts.Account, error)
	ListAccounts(ctx context.Context, tenantID int64) ([]accounts.Account, error)
	// OpenBalances sums balance_due of open invoices (receivable) and open
	// bills (payable) across the tenant.
	OpenBalances(ctx context.Context, tenantID int64) (receivable, payable decimal.Decimal, err error)
	// UnappliedCredits sums customer and vendor credit not yet applied to a
	// document: unapplied payments plus the unapplied part of issued credit
	// memos.
	UnappliedCredits(ctx context.Context, tenantID int64) (customer, vendor decimal.Decimal, err error)
}

// Repository persists balances in PostgreSQL.
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

func (r *Repository) LockAccount(ctx context.Context, tenantID, id int64) (accounts.Account, error) {
	var a accounts.Account
	err := r.m.Conn(ctx).QueryRow(ctx, `SELECT id, tenant_id, code, name, type, parent_id, is_active, balance, created_at, updated_at
FROM accounts WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id).
		Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return accounts.Account{}, db.NotFound(err, "account", id)
	}
	return a, nil
}

func (r *Repository) SetAccountBalance(ctx context.Context, tenantID, id int64, balance decimal.Decimal, at time.Time) error {
	_, err := r.m.Conn(ctx).Exec(ctx, `UPDATE accounts SET balance=$3, updated_at=$4 WHERE tenant_id=$1 AND id=$2`, tenantID, id, balance, at)
	return err
}

func (r *Repository) lockParty(ctx context.Context, table, entity string, tenantID, id int64) error {
	var locked int64
	err := r.m.Conn(ctx).QueryRow(ctx, `SELECT id FROM `+table+` WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id).Scan(&locked)
	if err != nil {
		return db.NotFound(err, entity, id)
	}
	return nil
}

func (r *Repository) LockCustomer(ctx context.Context, tenantID, id int64) error {
	return r.lockParty(ctx, "customers", "customer", tenantID, id)
}

func (r *Repository) LockVendor(ctx context.Context, tenantID, id int64) error {
	return r.lockParty(ctx, "vendors", "vendor", tenantID, id)
}

func (r *Repository) SetCustomerBalance(ctx context.Context, tenantID, id int64, balance decimal.Decimal, at time.Time) error {
	_, err := r.m.Conn(ctx).Exec(ctx, `UPDATE customers SET balance=$3, updated_at=$4 WHERE tenant_id=$1 AND id=$2`, tenantID, id, balance, at)
	return err
}

func (r *Repository) SetVendorBalance(ctx context.Context, tenantID, id int64, balance decimal.Decimal, at time.Time) error {
	_, err := r.m.Conn(ctx).Exec(ctx, `UPDATE vendors SET balance=$3, updated_at=$4 WHERE tenant_id=$1 AND id=$2`, tenantID, id, balance, at)
	return err
}

var (
	openInvoiceStatuses = []string{"SENT", "VIEWED", "PARTIAL", "OVERDUE"}
	openBillStatuses    = []string{"OPEN", "PARTIAL", "OVERDUE"}
)

func (r *Repository) OpenInvoiceBalance(ctx context.Context, tenantID, customerID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.m.Conn(ctx).QueryRow(ctx, `SELECT COALESCE(SUM(balance_due), 0) FROM invoices
WHERE tenant_id=$1 AND customer_id=$2 AND kind='INVOICE' AND status = ANY($3)`, tenantID, customerID, openInvoiceStatuses).Scan(&sum)
	return sum, err
}

func (r *Repository) OpenBillBalance(ctx context.Context, tenantID, vendorID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.m.Conn(ctx).QueryRow(ctx, `SELECT COALESCE(SUM(balance_due), 0) FROM bills
WHERE tenant_id=$1 AND vendor_id=$2 AND status = ANY($3)`, tenantID, vendorID, openBillStatuses).Scan(&sum)
	return sum, err
}

func (r *Repository) GetAccount(ctx context.Context, tenantID, id int64) (accounts.Account, error) {
	var a accounts.Account
	err := r.m.Conn(ctx).QueryRow(ctx, `SELECT id, tenant_id, code, name, type, parent_id, is_active, balance, created_at, updated_at
FROM accounts WHERE tenant_id=$1 AND id=$2`, tenantID, id).
		Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return accounts.Account{}, db.NotFound(err, "account", id)
	}
	return a, nil
}

func (r *Repository) ListAccounts(ctx context.Context, tenantID int64) ([]accounts.Account, error) {
	rows, err := r.m.Conn(ctx).Query(ctx, `SELECT id, tenant_id, code, name, type, parent_id, is_active, balance, created_at, updated_at
FROM accounts WHERE tenant_id=$1 ORDER BY code`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounts.Account
	for rows.Next() {
		var a accounts.Account
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) OpenBalances(ctx context.Context, tenantID int64) (decimal.Decimal, decimal.Decimal, error) {
	conn := r.m.Conn(ctx)
	var receivable, payable decimal.Decimal
	if err := conn.QueryRow(ctx, `SELECT COALESCE(SUM(balance_due), 0) FROM invoices
WHERE tenant_id=$1 AND kind='INVOICE' AND status = ANY($2)`, tenantID, openInvoiceStatuses).Scan(&receivable); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := conn.QueryRow(ctx, `SELECT COALESCE(SUM(balance_due), 0) FROM bills
WHERE tenant_id=$1 AND status = ANY($2)`, tenantID, openBillStatuses).Scan(&payable); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return receivable, payable, nil
}

func (r *Repository) UnappliedCredits(ctx context.Context, tenantID int64) (decimal.Decimal, decimal.Decimal, error) {
	conn := r.m.Conn(ctx)
	var customer, vendor, memos decimal.Decimal
	if err := conn.QueryRow(ctx, `SELECT
COALESCE(SUM(unapplied) FILTER (WHERE direction='RECEIVED'), 0),
COALESCE(SUM(unapplied) FILTER (WHERE direction='SENT'), 0)
FROM payments WHERE tenant_id=$1`, tenantID).Scan(&customer, &vendor); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := conn.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount - applied_amount), 0) FROM credit_memos
WHERE tenant_id=$1 AND status='ISSUED'`, tenantID).Scan(&memos); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return customer.Add(memos), vendor, nil
}
