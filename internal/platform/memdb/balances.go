package memdb

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/balances"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
)

// BalanceRepo implements balances.RepositoryPort.
type BalanceRepo struct{ *Store }

// Balances returns the cached balance repository.
func (s *Store) Balances() *BalanceRepo { return &BalanceRepo{s} }

// WithTx runs fn in the transaction carried by ctx or a new one.
func (r *BalanceRepo) WithTx(ctx context.Context, fn func(context.Context, balances.TxRepository) error) error {
	return r.withTx(ctx, func(ctx context.Context) error { return fn(ctx, r) })
}

func (s *Store) LockAccount(ctx context.Context, tenantID, id int64) (accounts.Account, error) {
	return s.GetAccount(ctx, tenantID, id)
}

func (s *Store) SetAccountBalance(ctx context.Context, tenantID, id int64, balance decimal.Decimal, at time.Time) error {
	defer s.write(ctx)()
	if a, ok := s.data.accounts[id]; ok && a.TenantID == tenantID {
		a.Balance = balance
		a.UpdatedAt = at
		s.data.accounts[id] = a
	}
	return nil
}

func (s *Store) LockCustomer(ctx context.Context, tenantID, id int64) error {
	_, err := s.GetCustomer(ctx, tenantID, id)
	return err
}

func (s *Store) LockVendor(ctx context.Context, tenantID, id int64) error {
	_, err := s.GetVendor(ctx, tenantID, id)
	return err
}

func (s *Store) SetCustomerBalance(ctx context.Context, tenantID, id int64, balance decimal.Decimal, at time.Time) error {
	defer s.write(ctx)()
	if c, ok := s.data.customers[id]; ok && c.TenantID == tenantID {
		c.Balance = balance
		c.UpdatedAt = at
		s.data.customers[id] = c
	}
	return nil
}

func (s *Store) SetVendorBalance(ctx context.Context, tenantID, id int64, balance decimal.Decimal, at time.Time) error {
	defer s.write(ctx)()
	if v, ok := s.data.vendors[id]; ok && v.TenantID == tenantID {
		v.Balance = balance
		v.UpdatedAt = at
		s.data.vendors[id] = v
	}
	return nil
}

// openInvoices sums balance_due of open invoices; customerID zero means all.
func (s *Store) openInvoices(tenantID, customerID int64) decimal.Decimal {
	sum := decimal.Zero
	for _, inv := range s.data.invoices {
		if inv.TenantID == tenantID && inv.Kind == documents.KindInvoice && inv.Status.IsOpen() &&
			(customerID == 0 || inv.CustomerID == customerID) {
			sum = sum.Add(inv.BalanceDue)
		}
	}
	return sum
}

func (s *Store) openBills(tenantID, vendorID int64) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range s.data.bills {
		if b.TenantID == tenantID && b.Status.IsOpen() && (vendorID == 0 || b.VendorID == vendorID) {
			sum = sum.Add(b.BalanceDue)
		}
	}
	return sum
}

func (s *Store) OpenInvoiceBalance(ctx context.Context, tenantID, customerID int64) (decimal.Decimal, error) {
	defer s.read(ctx)()
	return s.openInvoices(tenantID, customerID), nil
}

func (s *Store) OpenBillBalance(ctx context.Context, tenantID, vendorID int64) (decimal.Decimal, error) {
	defer s.read(ctx)()
	return s.openBills(tenantID, vendorID), nil
}

func (s *Store) OpenBalances(ctx context.Context, tenantID int64) (decimal.Decimal, decimal.Decimal, error) {
	defer s.read(ctx)()
	return s.openInvoices(tenantID, 0), s.openBills(tenantID, 0), nil
}

func (s *Store) UnappliedCredits(ctx context.Context, tenantID int64) (decimal.Decimal, decimal.Decimal, error) {
	defer s.read(ctx)()
	customer, vendor := decimal.Zero, decimal.Zero
	for _, p := range s.data.payments {
		if p.TenantID != tenantID {
			continue
		}
		if p.Direction == documents.PaymentReceived {
			customer = customer.Add(p.Unapplied)
		} else {
			vendor = vendor.Add(p.Unapplied)
		}
	}
	for _, m := range s.data.memos {
		if m.TenantID == tenantID && m.Status == documents.CreditMemoStatusIssued {
			customer = customer.Add(m.TotalAmount.Sub(m.AppliedAmount))
		}
	}
	return customer, vendor, nil
}
