package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/lifecycle"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
	"github.com/odyssey-erp/odyssey-books/internal/testing/booktest"
)

func issuedMemo(t *testing.T, b *booktest.Books, customerID int64, invoiceID *int64, lines ...documents.LineInput) documents.CreditMemo {
	t.Helper()
	memo, err := b.Lifecycle.CreateCreditMemo(ctx, b.Scope, lifecycle.CreditMemoInput{
		CustomerID: customerID,
		InvoiceID:  invoiceID,
		Reason:     "damaged",
		Lines:      lines,
	})
	require.NoError(t, err)
	require.Equal(t, documents.CreditMemoStatusDraft, memo.Status)
	memo, err = b.Lifecycle.IssueCreditMemo(ctx, b.Scope, memo.ID)
	require.NoError(t, err)
	return memo
}

func TestIssueCreditMemoCreditsLinkedInvoice(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	inv := sentInvoice(t, b, c.ID, taxed("2", "50", "10"))

	memo := issuedMemo(t, b, c.ID, &inv.ID, taxed("1", "50", "10"))
	require.Equal(t, "CM-00001", memo.Number)
	require.Equal(t, documents.CreditMemoStatusIssued, memo.Status)
	require.NotNil(t, memo.JournalEntryID)
	booktest.RequireDecimal(t, "55", memo.TotalAmount)
	booktest.RequireDecimal(t, "55", memo.AppliedAmount)

	stored, err := b.Lifecycle.GetInvoice(ctx, b.Scope, inv.ID)
	require.NoError(t, err)
	require.Equal(t, documents.InvoiceStatusPartial, stored.Status)
	booktest.RequireDecimal(t, "55", stored.AmountCredited)
	booktest.RequireDecimal(t, "55", stored.BalanceDue)

	booktest.RequireDecimal(t, "55", b.Balance(t, accounts.RoleAccountsReceivable))
	booktest.RequireDecimal(t, "-50", b.Balance(t, accounts.RoleSalesReturns))
	booktest.RequireDecimal(t, "5", b.Balance(t, accounts.RoleSalesTaxPayable))
	b.RequireBalanced(t)
}

func TestCreditMemoAppliedAmountIsCappedAtBalanceDue(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	inv := sentInvoice(t, b, c.ID, booktest.Line("1", "100"))
	receive(t, b, c.ID, "40", apply(inv.ID, "40"))

	memo := issuedMemo(t, b, c.ID, &inv.ID, booktest.Line("1", "150"))
	booktest.RequireDecimal(t, "60", memo.AppliedAmount)

	stored, err := b.Lifecycle.GetInvoice(ctx, b.Scope, inv.ID)
	require.NoError(t, err)
	require.Equal(t, documents.InvoiceStatusPaid, stored.Status)
	booktest.RequireDecimal(t, "0", stored.BalanceDue)

	// the unapplied 90 stays on the receivable as a customer credit
	booktest.RequireDecimal(t, "-90", b.Balance(t, accounts.RoleAccountsReceivable))
	b.RequireBalanced(t)
}

func TestUnlinkedCreditMemo(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	memo := issuedMemo(t, b, c.ID, nil, booktest.Line("1", "30"))
	booktest.RequireDecimal(t, "0", memo.AppliedAmount)
	booktest.RequireDecimal(t, "-30", b.Balance(t, accounts.RoleAccountsReceivable))
	b.RequireBalanced(t)
}

func TestCreditMemoReturnsStockAtCurrentCost(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	p := b.Product(t, "WID-1", "20", "5", "10")
	inv := sentInvoice(t, b, c.ID, booktest.ProductLine(p.ID, "4", "20"))
	booktest.RequireDecimal(t, "20", b.Balance(t, accounts.RoleCOGS))

	issuedMemo(t, b, c.ID, &inv.ID, booktest.ProductLine(p.ID, "1", "20"))
	booktest.RequireDecimal(t, "15", b.Balance(t, accounts.RoleCOGS))
	booktest.RequireDecimal(t, "35", b.Balance(t, accounts.RoleInventory))

	product, err := b.Inventory.GetProduct(ctx, b.Scope, p.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "7", product.QuantityOnHand)
	b.RequireBalanced(t)
}

func TestCreateCreditMemoForAnotherCustomersInvoice(t *testing.T) {
	b := booktest.New(t)
	acme := b.Customer(t, "Acme")
	globex := b.Customer(t, "Globex")
	inv := sentInvoice(t, b, acme.ID, booktest.Line("1", "100"))

	_, err := b.Lifecycle.CreateCreditMemo(ctx, b.Scope, lifecycle.CreditMemoInput{
		CustomerID: globex.ID,
		InvoiceID:  &inv.ID,
		Lines:      []documents.LineInput{booktest.Line("1", "10")},
	})
	require.ErrorIs(t, err, documents.ErrPartyMismatch)

	missing := int64(9999)
	_, err = b.Lifecycle.CreateCreditMemo(ctx, b.Scope, lifecycle.CreditMemoInput{
		CustomerID: acme.ID,
		InvoiceID:  &missing,
		Lines:      []documents.LineInput{booktest.Line("1", "10")},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestVoidCreditMemoRestoresCredit(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	inv := sentInvoice(t, b, c.ID, booktest.Line("1", "100"))
	memo := issuedMemo(t, b, c.ID, &inv.ID, booktest.Line("1", "30"))

	voided, err := b.Lifecycle.VoidCreditMemo(ctx, b.Scope, memo.ID, "issued in error")
	require.NoError(t, err)
	require.Equal(t, documents.CreditMemoStatusVoid, voided.Status)
	booktest.RequireDecimal(t, "0", voided.AppliedAmount)

	stored, err := b.Lifecycle.GetInvoice(ctx, b.Scope, inv.ID)
	require.NoError(t, err)
	require.Equal(t, documents.InvoiceStatusSent, stored.Status)
	booktest.RequireDecimal(t, "0", stored.AmountCredited)
	booktest.RequireDecimal(t, "100", stored.BalanceDue)
	booktest.RequireDecimal(t, "100", b.Balance(t, accounts.RoleAccountsReceivable))
	booktest.RequireDecimal(t, "0", b.Balance(t, accounts.RoleSalesReturns))

	entries, err := b.Journals.ListEntries(ctx, b.Scope, journals.ListFilter{SourceType: journals.SourceCreditMemo, SourceID: memo.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, journals.JournalStatusVoid, entries[0].Status)

	_, err = b.Lifecycle.VoidCreditMemo(ctx, b.Scope, memo.ID, "")
	require.ErrorIs(t, err, documents.ErrInvalidTransition)
	b.RequireBalanced(t)
}

func TestVoidCreditMemoKeepsCreditOnPaidInvoice(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	inv := sentInvoice(t, b, c.ID, booktest.Line("1", "100"))
	memo := issuedMemo(t, b, c.ID, &inv.ID, booktest.Line("1", "30"))
	receive(t, b, c.ID, "70", apply(inv.ID, "70"))

	voided, err := b.Lifecycle.VoidCreditMemo(ctx, b.Scope, memo.ID, "")
	require.NoError(t, err)
	booktest.RequireDecimal(t, "30", voided.AppliedAmount)

	stored, err := b.Lifecycle.GetInvoice(ctx, b.Scope, inv.ID)
	require.NoError(t, err)
	require.Equal(t, documents.InvoiceStatusPaid, stored.Status)
	booktest.RequireDecimal(t, "30", stored.AmountCredited)

	// the receivable comes back on the ledger while the invoice stays
	// settled; reconciliation surfaces the gap
	report, err := b.Balances.Reconcile(ctx, b.Scope)
	require.NoError(t, err)
	require.False(t, report.Balanced())
	booktest.RequireDecimal(t, "30", report.ReceivableDiff)
}

func TestDeleteCreditMemo(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	draft, err := b.Lifecycle.CreateCreditMemo(ctx, b.Scope, lifecycle.CreditMemoInput{
		CustomerID: c.ID,
		Lines:      []documents.LineInput{booktest.Line("1", "10")},
	})
	require.NoError(t, err)
	require.NoError(t, b.Lifecycle.DeleteCreditMemo(ctx, b.Scope, draft.ID))
	_, err = b.Lifecycle.GetCreditMemo(ctx, b.Scope, draft.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	issued := issuedMemo(t, b, c.ID, nil, booktest.Line("1", "10"))
	err = b.Lifecycle.DeleteCreditMemo(ctx, b.Scope, issued.ID)
	require.ErrorIs(t, err, documents.ErrImmutable)
	b.RequireBalanced(t)
}
