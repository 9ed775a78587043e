package memdb

import (
	"cmp"
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// DocumentRepo implements documents.RepositoryPort.
type DocumentRepo struct{ *Store }

// Documents returns the party and document repository.
func (s *Store) Documents() *DocumentRepo { return &DocumentRepo{s} }

// WithTx runs fn in the transaction carried by ctx or a new one.
func (r *DocumentRepo) WithTx(ctx context.Context, fn func(context.Context, documents.TxRepository) error) error {
	return r.withTx(ctx, func(ctx context.Context) error { return fn(ctx, r) })
}

// numbers lists the numbers stored in the table of series for a tenant.
func (s *Store) numbers(tenantID int64, series documents.Series) []string {
	var out []string
	collect := func(tenant int64, number string) {
		if tenant == tenantID {
			out = append(out, number)
		}
	}
	switch series.Table() {
	case "invoices":
		for _, v := range s.data.invoices {
			collect(v.TenantID, v.Number)
		}
	case "bills":
		for _, v := range s.data.bills {
			collect(v.TenantID, v.Number)
		}
	case "credit_memos":
		for _, v := range s.data.memos {
			collect(v.TenantID, v.Number)
		}
	case "purchase_orders":
		for _, v := range s.data.pos {
			collect(v.TenantID, v.Number)
		}
	case "sales_orders":
		for _, v := range s.data.sos {
			collect(v.TenantID, v.Number)
		}
	case "payments":
		for _, v := range s.data.payments {
			collect(v.TenantID, v.Number)
		}
	}
	return out
}

func (s *Store) LastSequence(ctx context.Context, tenantID int64, series documents.Series) (int64, error) {
	defer s.read(ctx)()
	var max int64
	for _, number := range s.numbers(tenantID, series) {
		if seq, ok := shared.ParseSequence(series.Prefix(), number); ok && seq > max {
			max = seq
		}
	}
	return max, nil
}

// claim checks the unique number constraint of series. Callers hold the
// write lock.
func (s *Store) claim(tenantID int64, series documents.Series, number string) error {
	if err := s.injected(series.Constraint()); err != nil {
		return err
	}
	if slices.Contains(s.numbers(tenantID, series), number) {
		return &shared.DuplicateKeyError{Constraint: series.Constraint()}
	}
	return nil
}

func (s *Store) lines(in []documents.Line) []documents.Line {
	out := make([]documents.Line, len(in))
	for i, l := range in {
		l.ID = s.data.id()
		l.Position = i + 1
		out[i] = l
	}
	return out
}

// ============================================================================
// PARTIES
// ============================================================================

func (s *Store) InsertCustomer(ctx context.Context, c documents.Customer) (documents.Customer, error) {
	defer s.write(ctx)()
	c.ID = s.data.id()
	c.IsActive = true
	c.Balance = decimal.Zero
	c.UpdatedAt = c.CreatedAt
	s.data.customers[c.ID] = c
	return c, nil
}

func (s *Store) InsertVendor(ctx context.Context, v documents.Vendor) (documents.Vendor, error) {
	defer s.write(ctx)()
	v.ID = s.data.id()
	v.IsActive = true
	v.Balance = decimal.Zero
	v.UpdatedAt = v.CreatedAt
	s.data.vendors[v.ID] = v
	return v, nil
}

func (s *Store) GetCustomer(ctx context.Context, tenantID, id int64) (documents.Customer, error) {
	defer s.read(ctx)()
	c, ok := s.data.customers[id]
	if !ok || c.TenantID != tenantID {
		return documents.Customer{}, shared.NotFound("customer", id)
	}
	return c, nil
}

func (s *Store) GetVendor(ctx context.Context, tenantID, id int64) (documents.Vendor, error) {
	defer s.read(ctx)()
	v, ok := s.data.vendors[id]
	if !ok || v.TenantID != tenantID {
		return documents.Vendor{}, shared.NotFound("vendor", id)
	}
	return v, nil
}

func (s *Store) ListCustomers(ctx context.Context, tenantID int64) ([]documents.Customer, error) {
	defer s.read(ctx)()
	out := sortedValues(s.data.customers, func(c documents.Customer) bool { return c.TenantID == tenantID })
	slices.SortStableFunc(out, func(a, b documents.Customer) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) ListVendors(ctx context.Context, tenantID int64) ([]documents.Vendor, error) {
	defer s.read(ctx)()
	out := sortedValues(s.data.vendors, func(v documents.Vendor) bool { return v.TenantID == tenantID })
	slices.SortStableFunc(out, func(a, b documents.Vendor) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

// SetPartyActive toggles a customer or vendor. There is no API for it, the
// fixtures use it to cover inactive parties.
func (s *Store) SetPartyActive(customerID, vendorID int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.data.customers[customerID]; ok {
		c.IsActive = active
		s.data.customers[customerID] = c
	}
	if v, ok := s.data.vendors[vendorID]; ok {
		v.IsActive = active
		s.data.vendors[vendorID] = v
	}
}

// ============================================================================
// INVOICES
// ============================================================================

func (s *Store) InsertInvoice(ctx context.Context, inv documents.Invoice) (documents.Invoice, error) {
	defer s.write(ctx)()
	if err := s.claim(inv.TenantID, documents.SeriesForKind(inv.Kind), inv.Number); err != nil {
		return documents.Invoice{}, err
	}
	inv.ID = s.data.id()
	inv.UpdatedAt = inv.CreatedAt
	inv.Lines = s.lines(inv.Lines)
	s.data.invoices[inv.ID] = inv
	inv.Lines = slices.Clone(inv.Lines)
	return inv, nil
}

func (s *Store) GetInvoice(ctx context.Context, tenantID, id int64) (documents.Invoice, error) {
	defer s.read(ctx)()
	inv, ok := s.data.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return documents.Invoice{}, shared.NotFound("invoice", id)
	}
	inv.Lines = slices.Clone(inv.Lines)
	return inv, nil
}

func (s *Store) GetInvoiceForUpdate(ctx context.Context, tenantID, id int64) (documents.Invoice, error) {
	return s.GetInvoice(ctx, tenantID, id)
}

// UpdateInvoice writes the mutable columns; kind, number, origin links and
// lines are kept.
func (s *Store) UpdateInvoice(ctx context.Context, inv documents.Invoice) error {
	defer s.write(ctx)()
	stored, ok := s.data.invoices[inv.ID]
	if !ok || stored.TenantID != inv.TenantID {
		return nil
	}
	inv.Kind = stored.Kind
	inv.Number = stored.Number
	inv.SourceQuotationID = stored.SourceQuotationID
	inv.SalesOrderID = stored.SalesOrderID
	inv.CreatedBy = stored.CreatedBy
	inv.CreatedAt = stored.CreatedAt
	inv.Lines = stored.Lines
	s.data.invoices[inv.ID] = inv
	return nil
}

func (s *Store) ReplaceInvoiceLines(ctx context.Context, invoiceID int64, lines []documents.Line) ([]documents.Line, error) {
	defer s.write(ctx)()
	inv, ok := s.data.invoices[invoiceID]
	if !ok {
		return nil, shared.NotFound("invoice", invoiceID)
	}
	inv.Lines = s.lines(lines)
	s.data.invoices[invoiceID] = inv
	return slices.Clone(inv.Lines), nil
}

func (s *Store) ListInvoices(ctx context.Context, tenantID int64, f documents.InvoiceFilter) ([]documents.Invoice, error) {
	defer s.read(ctx)()
	out := sortedValues(s.data.invoices, func(inv documents.Invoice) bool {
		switch {
		case inv.TenantID != tenantID:
			return false
		case f.Kind != "" && inv.Kind != f.Kind:
			return false
		case f.CustomerID != 0 && inv.CustomerID != f.CustomerID:
			return false
		case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, inv.Status):
			return false
		case f.DueBefore != nil && !inv.DueDate.Before(*f.DueBefore):
			return false
		}
		return true
	})
	slices.SortStableFunc(out, func(a, b documents.Invoice) int { return a.IssueDate.Compare(b.IssueDate) })
	out = page(out, f.Limit, f.Offset)
	for i := range out {
		out[i].Lines = nil
	}
	return out, nil
}

// ============================================================================
// BILLS
// ============================================================================

func (s *Store) InsertBill(ctx context.Context, bill documents.Bill) (documents.Bill, error) {
	defer s.write(ctx)()
	if err := s.claim(bill.TenantID, documents.SeriesBill, bill.Number); err != nil {
		return documents.Bill{}, err
	}
	bill.ID = s.data.id()
	bill.UpdatedAt = bill.CreatedAt
	bill.Lines = s.lines(bill.Lines)
	s.data.bills[bill.ID] = bill
	bill.Lines = slices.Clone(bill.Lines)
	return bill, nil
}

func (s *Store) GetBill(ctx context.Context, tenantID, id int64) (documents.Bill, error) {
	defer s.read(ctx)()
	bill, ok := s.data.bills[id]
	if !ok || bill.TenantID != tenantID {
		return documents.Bill{}, shared.NotFound("bill", id)
	}
	bill.Lines = slices.Clone(bill.Lines)
	return bill, nil
}

func (s *Store) GetBillForUpdate(ctx context.Context, tenantID, id int64) (documents.Bill, error) {
	return s.GetBill(ctx, tenantID, id)
}

func (s *Store) UpdateBill(ctx context.Context, bill documents.Bill) error {
	defer s.write(ctx)()
	stored, ok := s.data.bills[bill.ID]
	if !ok || stored.TenantID != bill.TenantID {
		return nil
	}
	bill.Number = stored.Number
	bill.PurchaseOrderID = stored.PurchaseOrderID
	bill.CreatedBy = stored.CreatedBy
	bill.CreatedAt = stored.CreatedAt
	bill.Lines = stored.Lines
	s.data.bills[bill.ID] = bill
	return nil
}

func (s *Store) ReplaceBillLines(ctx context.Context, billID int64, lines []documents.Line) ([]documents.Line, error) {
	defer s.write(ctx)()
	bill, ok := s.data.bills[billID]
	if !ok {
		return nil, shared.NotFound("bill", billID)
	}
	bill.Lines = s.lines(lines)
	s.data.bills[billID] = bill
	return slices.Clone(bill.Lines), nil
}

func (s *Store) ListBills(ctx context.Context, tenantID int64, f documents.BillFilter) ([]documents.Bill, error) {
	defer s.read(ctx)()
	out := sortedValues(s.data.bills, func(b documents.Bill) bool {
		switch {
		case b.TenantID != tenantID:
			return false
		case f.VendorID != 0 && b.VendorID != f.VendorID:
			return false
		case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, b.Status):
			return false
		case f.DueBefore != nil && !b.DueDate.Before(*f.DueBefore):
			return false
		}
		return true
	})
	slices.SortStableFunc(out, func(a, b documents.Bill) int { return a.BillDate.Compare(b.BillDate) })
	out = page(out, f.Limit, f.Offset)
	for i := range out {
		out[i].Lines = nil
	}
	return out, nil
}

// ============================================================================
// CREDIT MEMOS
// ============================================================================

func (s *Store) InsertCreditMemo(ctx context.Context, memo documents.CreditMemo) (documents.CreditMemo, error) {
	defer s.write(ctx)()
	if err := s.claim(memo.TenantID, documents.SeriesCreditMemo, memo.Number); err != nil {
		return documents.CreditMemo{}, err
	}
	memo.ID = s.data.id()
	memo.UpdatedAt = memo.CreatedAt
	memo.Lines = s.lines(memo.Lines)
	s.data.memos[memo.ID] = memo
	memo.Lines = slices.Clone(memo.Lines)
	return memo, nil
}

func (s *Store) GetCreditMemo(ctx context.Context, tenantID, id int64) (documents.CreditMemo, error) {
	defer s.read(ctx)()
	memo, ok := s.data.memos[id]
	if !ok || memo.TenantID != tenantID {
		return documents.CreditMemo{}, shared.NotFound("credit memo", id)
	}
	memo.Lines = slices.Clone(memo.Lines)
	return memo, nil
}

func (s *Store) GetCreditMemoForUpdate(ctx context.Context, tenantID, id int64) (documents.CreditMemo, error) {
	return s.GetCreditMemo(ctx, tenantID, id)
}

func (s *Store) UpdateCreditMemo(ctx context.Context, memo documents.CreditMemo) error {
	defer s.write(ctx)()
	stored, ok := s.data.memos[memo.ID]
	if !ok || stored.TenantID != memo.TenantID {
		return nil
	}
	stored.Status = memo.Status
	stored.AppliedAmount = memo.AppliedAmount
	stored.JournalEntryID = memo.JournalEntryID
	stored.UpdatedAt = memo.UpdatedAt
	s.data.memos[memo.ID] = stored
	return nil
}

func (s *Store) DeleteCreditMemo(ctx context.Context, tenantID, id int64) error {
	defer s.write(ctx)()
	memo, ok := s.data.memos[id]
	if !ok || memo.TenantID != tenantID {
		return shared.NotFound("credit memo", id)
	}
	delete(s.data.memos, id)
	return nil
}

// ============================================================================
// ORDERS
// ============================================================================

func (s *Store) InsertPurchaseOrder(ctx context.Context, po documents.PurchaseOrder) (documents.PurchaseOrder, error) {
	defer s.write(ctx)()
	if err := s.claim(po.TenantID, documents.SeriesPurchaseOrder, po.Number); err != nil {
		return documents.PurchaseOrder{}, err
	}
	po.ID = s.data.id()
	po.UpdatedAt = po.CreatedAt
	po.Lines = s.lines(po.Lines)
	s.data.pos[po.ID] = po
	po.Lines = slices.Clone(po.Lines)
	return po, nil
}

func (s *Store) GetPurchaseOrder(ctx context.Context, tenantID, id int64) (documents.PurchaseOrder, error) {
	defer s.read(ctx)()
	po, ok := s.data.pos[id]
	if !ok || po.TenantID != tenantID {
		return documents.PurchaseOrder{}, shared.NotFound("purchase order", id)
	}
	po.Lines = slices.Clone(po.Lines)
	return po, nil
}

func (s *Store) GetPurchaseOrderForUpdate(ctx context.Context, tenantID, id int64) (documents.PurchaseOrder, error) {
	return s.GetPurchaseOrder(ctx, tenantID, id)
}

func (s *Store) UpdatePurchaseOrder(ctx context.Context, po documents.PurchaseOrder) error {
	defer s.write(ctx)()
	stored, ok := s.data.pos[po.ID]
	if !ok || stored.TenantID != po.TenantID {
		return nil
	}
	stored.Status = po.Status
	stored.ConvertedBillID = po.ConvertedBillID
	stored.Notes = po.Notes
	stored.UpdatedAt = po.UpdatedAt
	s.data.pos[po.ID] = stored
	return nil
}

func (s *Store) InsertSalesOrder(ctx context.Context, so documents.SalesOrder) (documents.SalesOrder, error) {
	defer s.write(ctx)()
	if err := s.claim(so.TenantID, documents.SeriesSalesOrder, so.Number); err != nil {
		return documents.SalesOrder{}, err
	}
	so.ID = s.data.id()
	so.UpdatedAt = so.CreatedAt
	so.Lines = s.lines(so.Lines)
	s.data.sos[so.ID] = so
	so.Lines = slices.Clone(so.Lines)
	return so, nil
}

func (s *Store) GetSalesOrder(ctx context.Context, tenantID, id int64) (documents.SalesOrder, error) {
	defer s.read(ctx)()
	so, ok := s.data.sos[id]
	if !ok || so.TenantID != tenantID {
		return documents.SalesOrder{}, shared.NotFound("sales order", id)
	}
	so.Lines = slices.Clone(so.Lines)
	return so, nil
}

func (s *Store) GetSalesOrderForUpdate(ctx context.Context, tenantID, id int64) (documents.SalesOrder, error) {
	return s.GetSalesOrder(ctx, tenantID, id)
}

func (s *Store) UpdateSalesOrder(ctx context.Context, so documents.SalesOrder) error {
	defer s.write(ctx)()
	stored, ok := s.data.sos[so.ID]
	if !ok || stored.TenantID != so.TenantID {
		return nil
	}
	stored.Status = so.Status
	stored.ConvertedInvoiceID = so.ConvertedInvoiceID
	stored.Notes = so.Notes
	stored.UpdatedAt = so.UpdatedAt
	s.data.sos[so.ID] = stored
	return nil
}

// ============================================================================
// PAYMENTS
// ============================================================================

func (s *Store) InsertPayment(ctx context.Context, p documents.Payment) (documents.Payment, error) {
	defer s.write(ctx)()
	if err := s.claim(p.TenantID, documents.SeriesForDirection(p.Direction), p.Number); err != nil {
		return documents.Payment{}, err
	}
	p.ID = s.data.id()
	apps := make([]documents.PaymentApplication, len(p.Applications))
	for i, app := range p.Applications {
		app.ID = s.data.id()
		app.PaymentID = p.ID
		apps[i] = app
	}
	p.Applications = apps
	s.data.payments[p.ID] = p
	p.Applications = slices.Clone(apps)
	return p, nil
}

func (s *Store) SetPaymentJournal(ctx context.Context, tenantID, paymentID, entryID int64) error {
	defer s.write(ctx)()
	if p, ok := s.data.payments[paymentID]; ok && p.TenantID == tenantID {
		p.JournalEntryID = &entryID
		s.data.payments[paymentID] = p
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, tenantID, id int64) (documents.Payment, error) {
	defer s.read(ctx)()
	p, ok := s.data.payments[id]
	if !ok || p.TenantID != tenantID {
		return documents.Payment{}, shared.NotFound("payment", id)
	}
	p.Applications = slices.Clone(p.Applications)
	return p, nil
}
