package documents

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// ============================================================================
// LINES
// ============================================================================

type lineTable struct {
	table string
	fk    string
}

var (
	invoiceLineTable    = lineTable{table: "invoice_lines", fk: "invoice_id"}
	billLineTable       = lineTable{table: "bill_lines", fk: "bill_id"}
	creditMemoLineTable = lineTable{table: "credit_memo_lines", fk: "credit_memo_id"}
	poLineTable         = lineTable{table: "purchase_order_lines", fk: "purchase_order_id"}
	soLineTable         = lineTable{table: "sales_order_lines", fk: "sales_order_id"}
)

func (r *Repository) insertLines(ctx context.Context, t lineTable, docID int64, lines []Line) ([]Line, error) {
	conn := r.m.Conn(ctx)
	out := make([]Line, 0, len(lines))
	query := fmt.Sprintf(`INSERT INTO %s (%s, position, product_id, account_id, description, quantity, unit_price, discount_pct, tax_pct,
line_subtotal, line_tax, line_total) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`, t.table, t.fk)
	for i, l := range lines {
		l.Position = i + 1
		if err := conn.QueryRow(ctx, query, docID, l.Position, l.ProductID, l.AccountID, l.Description, l.Quantity, l.UnitPrice,
			l.DiscountPct, l.TaxPct, l.Subtotal, l.Tax, l.Total).Scan(&l.ID); err != nil {
			return nil, fmt.Errorf("documents: insert %s: %w", t.table, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *Repository) replaceLines(ctx context.Context, t lineTable, docID int64, lines []Line) ([]Line, error) {
	if _, err := r.m.Conn(ctx).Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s=$1`, t.table, t.fk), docID); err != nil {
		return nil, err
	}
	return r.insertLines(ctx, t, docID, lines)
}

func (r *Repository) loadLines(ctx context.Context, t lineTable, ids []int64) (map[int64][]Line, error) {
	out := make(map[int64][]Line, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.m.Conn(ctx).Query(ctx, fmt.Sprintf(`SELECT %s, id, position, product_id, account_id, description, quantity, unit_price,
discount_pct, tax_pct, line_subtotal, line_tax, line_total FROM %s WHERE %s = ANY($1) ORDER BY %s, position`, t.fk, t.table, t.fk, t.fk), ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var docID int64
		var l Line
		if err := rows.Scan(&docID, &l.ID, &l.Position, &l.ProductID, &l.AccountID, &l.Description, &l.Quantity, &l.UnitPrice,
			&l.DiscountPct, &l.TaxPct, &l.Subtotal, &l.Tax, &l.Total); err != nil {
			return nil, err
		}
		out[docID] = append(out[docID], l)
	}
	return out, rows.Err()
}

// ============================================================================
// PARTIES
// ============================================================================

const partyColumns = `id, tenant_id, name, email, is_active, balance, created_at, updated_at`

func (r *Repository) InsertCustomer(ctx context.Context, c Customer) (Customer, error) {
	err := r.m.Conn(ctx).QueryRow(ctx, `INSERT INTO customers (tenant_id, name, email, is_active, balance, created_at, updated_at)
VALUES ($1, $2, $3, TRUE, 0, $4, $4) RETURNING `+partyColumns, c.TenantID, c.Name, c.Email, c.CreatedAt).
		Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.IsActive, &c.Balance, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *Repository) InsertVendor(ctx context.Context, v Vendor) (Vendor, error) {
	err := r.m.Conn(ctx).QueryRow(ctx, `INSERT INTO vendors (tenant_id, name, email, is_active, balance, created_at, updated_at)
VALUES ($1, $2, $3, TRUE, 0, $4, $4) RETURNING `+partyColumns, v.TenantID, v.Name, v.Email, v.CreatedAt).
		Scan(&v.ID, &v.TenantID, &v.Name, &v.Email, &v.IsActive, &v.Balance, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (r *Repository) GetCustomer(ctx context.Context, tenantID, id int64) (Customer, error) {
	var c Customer
	err := r.m.Conn(ctx).QueryRow(ctx, `SELECT `+partyColumns+` FROM customers WHERE tenant_id=$1 AND id=$2`, tenantID, id).
		Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.IsActive, &c.Balance, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Customer{}, db.NotFound(err, "customer", id)
	}
	return c, nil
}

func (r *Repository) GetVendor(ctx context.Context, tenantID, id int64) (Vendor, error) {
	var v Vendor
	err := r.m.Conn(ctx).QueryRow(ctx, `SELECT `+partyColumns+` FROM vendors WHERE tenant_id=$1 AND id=$2`, tenantID, id).
		Scan(&v.ID, &v.TenantID, &v.Name, &v.Email, &v.IsActive, &v.Balance, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return Vendor{}, db.NotFound(err, "vendor", id)
	}
	return v, nil
}

func (r *Repository) ListCustomers(ctx context.Context, tenantID int64) ([]Customer, error) {
	rows, err := r.m.Conn(ctx).Query(ctx, `SELECT `+partyColumns+` FROM customers WHERE tenant_id=$1 ORDER BY name, id`, tenantID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Customer, error) {
		var c Customer
		err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.IsActive, &c.Balance, &c.CreatedAt, &c.UpdatedAt)
		return c, err
	})
}

func (r *Repository) ListVendors(ctx context.Context, tenantID int64) ([]Vendor, error) {
	rows, err := r.m.Conn(ctx).Query(ctx, `SELECT `+partyColumns+` FROM vendors WHERE tenant_id=$1 ORDER BY name, id`, tenantID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Vendor, error) {
		var v Vendor
		err := row.Scan(&v.ID, &v.TenantID, &v.Name, &v.Email, &v.IsActive, &v.Balance, &v.CreatedAt, &v.UpdatedAt)
		return v, err
	})
}

// ============================================================================
// INVOICES
// ============================================================================

const invoiceColumns = `id, tenant_id, kind, number, customer_id, issue_date, due_date, status, subtotal, tax_amount, discount_amount,
total_amount, amount_paid, amount_credited, balance_due, journal_entry_id, converted_invoice_id, source_quotation_id, sales_order_id,
notes, sent_at, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.Kind, &inv.Number, &inv.CustomerID, &inv.IssueDate, &inv.DueDate, &inv.Status,
		&inv.Subtotal, &inv.TaxAmount, &inv.DiscountAmount, &inv.TotalAmount, &inv.AmountPaid, &inv.AmountCredited, &inv.BalanceDue,
		&inv.JournalEntryID, &inv.ConvertedInvoiceID, &inv.SourceQuotationID, &inv.SalesOrderID, &inv.Notes, &inv.SentAt,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *Repository) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	row := r.m.Conn(ctx).QueryRow(ctx, `INSERT INTO invoices (tenant_id, kind, number, customer_id, issue_date, due_date, status, subtotal,
tax_amount, discount_amount, total_amount, amount_paid, amount_credited, balance_due, journal_entry_id, converted_invoice_id,
source_quotation_id, sales_order_id, notes, sent_at, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $22)
RETURNING `+invoiceColumns,
		inv.TenantID, string(inv.Kind), inv.Number, inv.CustomerID, inv.IssueDate, inv.DueDate, string(inv.Status), inv.Subtotal,
		inv.TaxAmount, inv.DiscountAmount, inv.TotalAmount, inv.AmountPaid, inv.AmountCredited, inv.BalanceDue, inv.JournalEntryID,
		inv.ConvertedInvoiceID, inv.SourceQuotationID, inv.SalesOrderID, inv.Notes, inv.SentAt, inv.CreatedBy, inv.CreatedAt)
	inserted, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, db.Translate(err)
	}
	inserted.Lines, err = r.insertLines(ctx, invoiceLineTable, inserted.ID, inv.Lines)
	if err != nil {
		return Invoice{}, err
	}
	return inserted, nil
}

func (r *Repository) getInvoice(ctx context.Context, tenantID, id int64, lock bool) (Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id=$1 AND id=$2`
	if lock {
		query += ` FOR UPDATE`
	}
	inv, err := scanInvoice(r.m.Conn(ctx).QueryRow(ctx, query, tenantID, id))
	if err != nil {
		return Invoice{}, db.NotFound(err, "invoice", id)
	}
	lines, err := r.loadLines(ctx, invoiceLineTable, []int64{id})
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines = lines[id]
	return inv, nil
}

func (r *Repository) GetInvoice(ctx context.Context, tenantID, id int64) (Invoice, error) {
	return r.getInvoice(ctx, tenantID, id, false)
}

func (r *Repository) GetInvoiceForUpdate(ctx context.Context, tenantID, id int64) (Invoice, error) {
	return r.getInvoice(ctx, tenantID, id, true)
}

func (r *Repository) UpdateInvoice(ctx context.Context, inv Invoice) error {
	_, err := r.m.Conn(ctx).Exec(ctx, `UPDATE invoices SET customer_id=$3, issue_date=$4, due_date=$5, status=$6, subtotal=$7, tax_amount=$8,
discount_amount=$9, total_amount=$10, amount_paid=$11, amount_credited=$12, balance_due=$13, journal_entry_id=$14,
converted_invoice_id=$15, notes=$16, sent_at=$17, updated_at=$18
WHERE tenant_id=$1 AND id=$2`,
		inv.TenantID, inv.ID, inv.CustomerID, inv.IssueDate, inv.DueDate, string(inv.Status), inv.Subtotal, inv.TaxAmount,
		inv.DiscountAmount, inv.TotalAmount, inv.AmountPaid, inv.AmountCredited, inv.BalanceDue, inv.JournalEntryID,
		inv.ConvertedInvoiceID, inv.Notes, inv.SentAt, inv.UpdatedAt)
	return err
}

func (r *Repository) ReplaceInvoiceLines(ctx context.Context, invoiceID int64, lines []Line) ([]Line, error) {
	return r.replaceLines(ctx, invoiceLineTable, invoiceID, lines)
}

type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *whereBuilder) sql() string { return strings.Join(w.conds, " AND ") }

func pageSQL(limit, offset int) string {
	out := ""
	if limit > 0 {
		out += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		out += fmt.Sprintf(" OFFSET %d", offset)
	}
	return out
}

func (r *Repository) ListInvoices(ctx context.Context, tenantID int64, filter InvoiceFilter) ([]Invoice, error) {
	w := &whereBuilder{}
	w.add("tenant_id=$%d", tenantID)
	if filter.Kind != "" {
		w.add("kind=$%d", string(filter.Kind))
	}
	if filter.CustomerID != 0 {
		w.add("customer_id=$%d", filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		w.add("status = ANY($%d)", statuses)
	}
	if filter.DueBefore != nil {
		w.add("due_date < $%d", *filter.DueBefore)
	}
	rows, err := r.m.Conn(ctx).Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE `+w.sql()+` ORDER BY issue_date, id`+
		pageSQL(filter.Limit, filter.Offset), w.args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Invoice, error) {
		return scanInvoice(row)
	})
}

// ============================================================================
// BILLS
// ============================================================================

const billColumns = `id, tenant_id, number, vendor_id, bill_date, due_date, status, subtotal, tax_amount, total_amount, amount_paid,
balance_due, journal_entry_id, purchase_order_id, notes, approved_at, created_by, created_at, updated_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.TenantID, &b.Number, &b.VendorID, &b.BillDate, &b.DueDate, &b.Status, &b.Subtotal, &b.TaxAmount,
		&b.TotalAmount, &b.AmountPaid, &b.BalanceDue, &b.JournalEntryID, &b.PurchaseOrderID, &b.Notes, &b.ApprovedAt,
		&b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *Repository) InsertBill(ctx context.Context, bill Bill) (Bill, error) {
	row := r.m.Conn(ctx).QueryRow(ctx, `INSERT INTO bills (tenant_id, number, vendor_id, bill_date, due_date, status, subtotal, tax_amount,
total_amount, amount_paid, balance_due, journal_entry_id, purchase_order_id, notes, approved_at, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
RETURNING `+billColumns,
		bill.TenantID, bill.Number, bill.VendorID, bill.BillDate, bill.DueDate, string(bill.Status), bill.Subtotal, bill.TaxAmount,
		bill.TotalAmount, bill.AmountPaid, bill.BalanceDue, bill.JournalEntryID, bill.PurchaseOrderID, bill.Notes, bill.ApprovedAt,
		bill.CreatedBy, bill.CreatedAt)
	inserted, err := scanBill(row)
	if err != nil {
		return Bill{}, db.Translate(err)
	}
	inserted.Lines, err = r.insertLines(ctx, billLineTable, inserted.ID, bill.Lines)
	if err != nil {
		return Bill{}, err
	}
	return inserted, nil
}

func (r *Repository) getBill(ctx context.Context, tenantID, id int64, lock bool) (Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE tenant_id=$1 AND id=$2`
	if lock {
		query += ` FOR UPDATE`
	}
	bill, err := scanBill(r.m.Conn(ctx).QueryRow(ctx, query, tenantID, id))
	if err != nil {
		return Bill{}, db.NotFound(err, "bill", id)
	}
	lines, err := r.loadLines(ctx, billLineTable, []int64{id})
	if err != nil {
		return Bill{}, err
	}
	bill.Lines = lines[id]
	return bill, nil
}

func (r *Repository) GetBill(ctx context.Context, tenantID, id int64) (Bill, error) {
	return r.getBill(ctx, tenantID, id, false)
}

func (r *Repository) GetBillForUpdate(ctx context.Context, tenantID, id int64) (Bill, error) {
	return r.getBill(ctx, tenantID, id, true)
}

func (r *Repository) UpdateBill(ctx context.Context, bill Bill) error {
	_, err := r.m.Conn(ctx).Exec(ctx, `UPDATE bills SET vendor_id=$3, bill_date=$4, due_date=$5, status=$6, subtotal=$7, tax_amount=$8,
total_amount=$9, amount_paid=$10, balance_due=$11, journal_entry_id=$12, notes=$13, approved_at=$14, updated_at=$15
WHERE tenant_id=$1 AND id=$2`,
		bill.TenantID, bill.ID, bill.VendorID, bill.BillDate, bill.DueDate, string(bill.Status), bill.Subtotal, bill.TaxAmount,
		bill.TotalAmount, bill.AmountPaid, bill.BalanceDue, bill.JournalEntryID, bill.Notes, bill.ApprovedAt, bill.UpdatedAt)
	return err
}

func (r *Repository) ReplaceBillLines(ctx context.Context, billID int64, lines []Line) ([]Line, error) {
	return r.replaceLines(ctx, billLineTable, billID, lines)
}

func (r *Repository) ListBills(ctx context.Context, tenantID int64, filter BillFilter) ([]Bill, error) {
	w := &whereBuilder{}
	w.add("tenant_id=$%d", tenantID)
	if filter.VendorID != 0 {
		w.add("vendor_id=$%d", filter.VendorID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		w.add("status = ANY($%d)", statuses)
	}
	if filter.DueBefore != nil {
		w.add("due_date < $%d", *filter.DueBefore)
	}
	rows, err := r.m.Conn(ctx).Query(ctx, `SELECT `+billColumns+` FROM bills WHERE `+w.sql()+` ORDER BY bill_date, id`+
		pageSQL(filter.Limit, filter.Offset), w.args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Bill, error) {
		return scanBill(row)
	})
}

// ============================================================================
// CREDIT MEMOS
// ============================================================================

const creditMemoColumns = `id, tenant_id, number, customer_id, invoice_id, memo_date, status, reason, subtotal, tax_amount, total_amount,
applied_amount, journal_entry_id, created_by, created_at, updated_at`

func scanCreditMemo(row pgx.Row) (CreditMemo, error) {
	var m CreditMemo
	err := row.Scan(&m.ID, &m.TenantID, &m.Number, &m.CustomerID, &m.InvoiceID, &m.MemoDate, &m.Status, &m.Reason, &m.Subtotal,
		&m.TaxAmount, &m.TotalAmount, &m.AppliedAmount, &m.JournalEntryID, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *Repository) InsertCreditMemo(ctx context.Context, memo CreditMemo) (CreditMemo, error) {
	row := r.m.Conn(ctx).QueryRow(ctx, `INSERT INTO credit_memos (tenant_id, number, customer_id, invoice_id, memo_date, status, reason,
subtotal, tax_amount, total_amount, applied_amount, journal_entry_id, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
RETURNING `+creditMemoColumns,
		memo.TenantID, memo.Number, memo.CustomerID, memo.InvoiceID, memo.MemoDate, string(memo.Status), memo.Reason, memo.Subtotal,
		memo.TaxAmount, memo.TotalAmount, memo.AppliedAmount, memo.JournalEntryID, memo.CreatedBy, memo.CreatedAt)
	inserted, err := scanCreditMemo(row)
	if err != nil {
		return CreditMemo{}, db.Translate(err)
	}
	inserted.Lines, err = r.insertLines(ctx, creditMemoLineTable, inserted.ID, memo.Lines)
	if err != nil {
		return CreditMemo{}, err
	}
	return inserted, nil
}

func (r *Repository) getCreditMemo(ctx context.Context, tenantID, id int64, lock bool) (CreditMemo, error) {
	query := `SELECT ` + creditMemoColumns + ` FROM credit_memos WHERE tenant_id=$1 AND id=$2`
	if lock {
		query += ` FOR UPDATE`
	}
	memo, err := scanCreditMemo(r.m.Conn(ctx).QueryRow(ctx, query, tenantID, id))
	if err != nil {
		return CreditMemo{}, db.NotFound(err, "credit memo", id)
	}
	lines, err := r.loadLines(ctx, creditMemoLineTable, []int64{id})
	if err != nil {
		return CreditMemo{}, err
	}
	memo.Lines = lines[id]
	return memo, nil
}

func (r *Repository) GetCreditMemo(ctx context.Context, tenantID, id int64) (CreditMemo, error) {
	return r.getCreditMemo(ctx, tenantID, id, false)
}

func (r *Repository) GetCreditMemoForUpdate(ctx context.Context, tenantID, id int64) (CreditMemo, error) {
	return r.getCreditMemo(ctx, tenantID, id, true)
}

func (r *Repository) UpdateCreditMemo(ctx context.Context, memo CreditMemo) error {
	_, err := r.m.Conn(ctx).Exec(ctx, `UPDATE credit_memos SET status=$3, applied_amount=$4, journal_entry_id=$5, updated_at=$6
WHERE tenant_id=$1 AND id=$2`, memo.TenantID, memo.ID, string(memo.Status), memo.AppliedAmount, memo.JournalEntryID, memo.UpdatedAt)
	return err
}

func (r *Repository) DeleteCreditMemo(ctx context.Context, tenantID, id int64) error {
	tag, err := r.m.Conn(ctx).Exec(ctx, `DELETE FROM credit_memos WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("credit memo", id)
	}
	return nil
}

// ============================================================================
// ORDERS
// ============================================================================

const orderColumns = `id, tenant_id, number, %s, order_date, expected_date, status, subtotal, tax_amount, total_amount, %s, notes,
created_by, created_at, updated_at`

var (
	poColumns = fmt.Sprintf(orderColumns, "vendor_id", "converted_bill_id")
	soColumns = fmt.Sprintf(orderColumns, "customer_id", "converted_invoice_id")
)

func scanPurchaseOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.TenantID, &po.Number, &po.VendorID, &po.OrderDate, &po.ExpectedDate, &po.Status, &po.Subtotal,
		&po.TaxAmount, &po.TotalAmount, &po.ConvertedBillID, &po.Notes, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
	return po, err
}

func scanSalesOrder(row pgx.Row) (SalesOrder, error) {
	var so SalesOrder
	err := row.Scan(&so.ID, &so.TenantID, &so.Number, &so.CustomerID, &so.OrderDate, &so.ExpectedDate, &so.Status, &so.Subtotal,
		&so.TaxAmount, &so.TotalAmount, &so.ConvertedInvoiceID, &so.Notes, &so.CreatedBy, &so.CreatedAt, &so.UpdatedAt)
	return so, err
}

func (r *Repository) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	row := r.m.Conn(ctx).QueryRow(ctx, `INSERT INTO purchase_orders (tenant_id, number, vendor_id, order_date, expected_date, status,
subtotal, tax_amount, total_amount, notes, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
RETURNING `+poColumns,
		po.TenantID, po.Number, po.VendorID, po.OrderDate, po.ExpectedDate, string(po.Status), po.Subtotal, po.TaxAmount,
		po.TotalAmount, po.Notes, po.CreatedBy, po.CreatedAt)
	inserted, err := scanPurchaseOrder(row)
	if err != nil {
		return PurchaseOrder{}, db.Translate(err)
	}
	inserted.Lines, err = r.insertLines(ctx, poLineTable, inserted.ID, po.Lines)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return inserted, nil
}

func (r *Repository) getPurchaseOrder(ctx context.Context, tenantID, id int64, lock bool) (PurchaseOrder, error) {
	query := `SELECT ` + poColumns + ` FROM purchase_orders WHERE tenant_id=$1 AND id=$2`
	if lock {
		query += ` FOR UPDATE`
	}
	po, err := scanPurchaseOrder(r.m.Conn(ctx).QueryRow(ctx, query, tenantID, id))
	if err != nil {
		return PurchaseOrder{}, db.NotFound(err, "purchase order", id)
	}
	lines, err := r.loadLines(ctx, poLineTable, []int64{id})
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines = lines[id]
	return po, nil
}

func (r *Repository) GetPurchaseOrder(ctx context.Context, tenantID, id int64) (PurchaseOrder, error) {
	return r.getPurchaseOrder(ctx, tenantID, id, false)
}

func (r *Repository) GetPurchaseOrderForUpdate(ctx context.Context, tenantID, id int64) (PurchaseOrder, error) {
	return r.getPurchaseOrder(ctx, tenantID, id, true)
}

func (r *Repository) UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	_, err := r.m.Conn(ctx).Exec(ctx, `UPDATE purchase_orders SET status=$3, converted_bill_id=$4, notes=$5, updated_at=$6
WHERE tenant_id=$1 AND id=$2`, po.TenantID, po.ID, string(po.Status), po.ConvertedBillID, po.Notes, po.UpdatedAt)
	return err
}

func (r *Repository) InsertSalesOrder(ctx context.Context, so SalesOrder) (SalesOrder, error) {
	row := r.m.Conn(ctx).QueryRow(ctx, `INSERT INTO sales_orders (tenant_id, number, customer_id, order_date, expected_date, status,
subtotal, tax_amount, total_amount, notes, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
RETURNING `+soColumns,
		so.TenantID, so.Number, so.CustomerID, so.OrderDate, so.ExpectedDate, string(so.Status), so.Subtotal, so.TaxAmount,
		so.TotalAmount, so.Notes, so.CreatedBy, so.CreatedAt)
	inserted, err := scanSalesOrder(row)
	if err != nil {
		return SalesOrder{}, db.Translate(err)
	}
	inserted.Lines, err = r.insertLines(ctx, soLineTable, inserted.ID, so.Lines)
	if err != nil {
		return SalesOrder{}, err
	}
	return inserted, nil
}

func (r *Repository) getSalesOrder(ctx context.Context, tenantID, id int64, lock bool) (SalesOrder, error) {
	query := `SELECT ` + soColumns + ` FROM sales_orders WHERE tenant_id=$1 AND id=$2`
	if lock {
		query += ` FOR UPDATE`
	}
	so, err := scanSalesOrder(r.m.Conn(ctx).QueryRow(ctx, query, tenantID, id))
	if err != nil {
		return SalesOrder{}, db.NotFound(err, "sales order", id)
	}
	lines, err := r.loadLines(ctx, soLineTable, []int64{id})
	if err != nil {
		return SalesOrder{}, err
	}
	so.Lines = lines[id]
	return so, nil
}

func (r *Repository) GetSalesOrder(ctx context.Context, tenantID, id int64) (SalesOrder, error) {
	return r.getSalesOrder(ctx, tenantID, id, false)
}

func (r *Repository) GetSalesOrderForUpdate(ctx context.Context, tenantID, id int64) (SalesOrder, error) {
	return r.getSalesOrder(ctx, tenantID, id, true)
}

func (r *Repository) UpdateSalesOrder(ctx context.Context, so SalesOrder) error {
	_, err := r.m.Conn(ctx).Exec(ctx, `UPDATE sales_orders SET status=$3, converted_invoice_id=$4, notes=$5, updated_at=$6
WHERE tenant_id=$1 AND id=$2`, so.TenantID, so.ID, string(so.Status), so.ConvertedInvoiceID, so.Notes, so.UpdatedAt)
	return err
}

// ============================================================================
// PAYMENTS
// ============================================================================

const paymentColumns = `id, tenant_id, number, direction, party_id, amount, unapplied, payment_date, method, reference, journal_entry_id,
created_by, created_at`

func (r *Repository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	conn := r.m.Conn(ctx)
	var out Payment
	err := conn.QueryRow(ctx, `INSERT INTO payments (tenant_id, number, direction, party_id, amount, unapplied, payment_date, method,
reference, journal_entry_id, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING `+paymentColumns,
		p.TenantID, p.Number, string(p.Direction), p.PartyID, p.Amount, p.Unapplied, p.PaymentDate, p.Method, p.Reference,
		p.JournalEntryID, p.CreatedBy, p.CreatedAt).
		Scan(&out.ID, &out.TenantID, &out.Number, &out.Direction, &out.PartyID, &out.Amount, &out.Unapplied, &out.PaymentDate,
			&out.Method, &out.Reference, &out.JournalEntryID, &out.CreatedBy, &out.CreatedAt)
	if err != nil {
		return Payment{}, db.Translate(err)
	}
	for _, app := range p.Applications {
		app.PaymentID = out.ID
		if err := conn.QueryRow(ctx, `INSERT INTO payment_applications (payment_id, document_type, document_id, amount_applied)
VALUES ($1, $2, $3, $4) RETURNING id`, app.PaymentID, string(app.DocumentType), app.DocumentID, app.AmountApplied).Scan(&app.ID); err != nil {
			return Payment{}, fmt.Errorf("documents: insert payment application: %w", err)
		}
		out.Applications = append(out.Applications, app)
	}
	return out, nil
}

func (r *Repository) SetPaymentJournal(ctx context.Context, tenantID, paymentID, entryID int64) error {
	_, err := r.m.Conn(ctx).Exec(ctx, `UPDATE payments SET journal_entry_id=$3 WHERE tenant_id=$1 AND id=$2`, tenantID, paymentID, entryID)
	return err
}

func (r *Repository) GetPayment(ctx context.Context, tenantID, id int64) (Payment, error) {
	conn := r.m.Conn(ctx)
	var p Payment
	err := conn.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE tenant_id=$1 AND id=$2`, tenantID, id).
		Scan(&p.ID, &p.TenantID, &p.Number, &p.Direction, &p.PartyID, &p.Amount, &p.Unapplied, &p.PaymentDate, &p.Method,
			&p.Reference, &p.JournalEntryID, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		return Payment{}, db.NotFound(err, "payment", id)
	}
	rows, err := conn.Query(ctx, `SELECT id, payment_id, document_type, document_id, amount_applied FROM payment_applications
WHERE payment_id=$1 ORDER BY id`, id)
	if err != nil {
		return Payment{}, err
	}
	p.Applications, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (PaymentApplication, error) {
		var a PaymentApplication
		err := row.Scan(&a.ID, &a.PaymentID, &a.DocumentType, &a.DocumentID, &a.AmountApplied)
		return a, err
	})
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}
