package posting_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	"github.com/odyssey-erp/odyssey-books/internal/lifecycle"
	"github.com/odyssey-erp/odyssey-books/internal/posting"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
	"github.com/odyssey-erp/odyssey-books/internal/testing/booktest"
)

var (
	ctx = context.Background()
	D   = booktest.D
)

type wantLine struct {
	account int64
	debit   string
	credit  string
	entity  journals.EntityType
}

func requireLines(t *testing.T, entry journals.JournalEntry, want ...wantLine) {
	t.Helper()
	require.Len(t, entry.Lines, len(want))
	for i, w := range want {
		got := entry.Lines[i]
		require.Equal(t, w.account, got.AccountID, "line %d account", i+1)
		booktest.RequireDecimal(t, w.debit, got.Debit, "line", i+1)
		booktest.RequireDecimal(t, w.credit, got.Credit, "line", i+1)
		require.Equal(t, w.entity, got.EntityType, "line %d entity", i+1)
	}
}

func entryWithRef(t *testing.T, b *booktest.Books, source journals.SourceType, id int64, event string) journals.JournalEntry {
	t.Helper()
	entries, err := b.Journals.ListEntries(ctx, b.Scope, journals.ListFilter{SourceType: source, SourceID: id})
	require.NoError(t, err)
	ref := journals.SourceRef(b.Scope.TenantID, source, id, event)
	for _, e := range entries {
		if e.SourceRef != nil && *e.SourceRef == *ref {
			return e
		}
	}
	t.Fatalf("no %s entry for %s %d", event, source, id)
	return journals.JournalEntry{}
}

func TestInvoiceEntryShape(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	services, err := b.Accounts.CreateAccount(ctx, b.Scope, accounts.AccountInput{Code: "4300", Name: "Service Revenue", Type: accounts.AccountTypeRevenue})
	require.NoError(t, err)
	consulting, err := b.Inventory.CreateProduct(ctx, b.Scope, inventory.ProductInput{
		SKU:              "CONSULT",
		Name:             "Consulting hour",
		SalesPrice:       D("50"),
		RevenueAccountID: &services.ID,
	})
	require.NoError(t, err)

	line := booktest.ProductLine(consulting.ID, "2", "50")
	line.TaxPct = D("10")
	inv, err := b.Lifecycle.CreateInvoice(ctx, b.Scope, lifecycle.InvoiceInput{
		CustomerID: c.ID,
		Discount:   D("5"),
		Lines:      []documents.LineInput{line, booktest.Line("1", "30")},
	})
	require.NoError(t, err)
	booktest.RequireDecimal(t, "135", inv.TotalAmount)

	sent, err := b.Lifecycle.SendInvoice(ctx, b.Scope, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, sent.JournalEntryID)

	entry, err := b.Journals.GetEntry(ctx, b.Scope, *sent.JournalEntryID)
	require.NoError(t, err)
	require.Equal(t, journals.JournalStatusPosted, entry.Status)
	require.Equal(t, journals.SourceInvoice, entry.SourceType)
	require.Equal(t, "Invoice "+inv.Number, entry.Memo)
	requireLines(t, entry,
		wantLine{account: b.ByRole[accounts.RoleAccountsReceivable].ID, debit: "135", entity: journals.EntityCustomer},
		wantLine{account: b.ByRole[accounts.RoleSalesDiscounts].ID, debit: "5"},
		wantLine{account: services.ID, credit: "100"},
		wantLine{account: b.ByRole[accounts.RoleDefaultRevenue].ID, credit: "30"},
		wantLine{account: b.ByRole[accounts.RoleSalesTaxPayable].ID, credit: "10"},
	)
	require.Equal(t, c.ID, entry.Lines[0].EntityID)
	b.RequireBalanced(t)
}

func TestInvoiceLineAccountOverridesProduct(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	other, err := b.Accounts.CreateAccount(ctx, b.Scope, accounts.AccountInput{Code: "4900", Name: "Other Income", Type: accounts.AccountTypeRevenue})
	require.NoError(t, err)

	line := booktest.Line("1", "25")
	line.AccountID = &other.ID
	inv, err := b.Lifecycle.CreateInvoice(ctx, b.Scope, lifecycle.InvoiceInput{CustomerID: c.ID, Lines: []documents.LineInput{line}})
	require.NoError(t, err)
	sent, err := b.Lifecycle.SendInvoice(ctx, b.Scope, inv.ID)
	require.NoError(t, err)

	entry, err := b.Journals.GetEntry(ctx, b.Scope, *sent.JournalEntryID)
	require.NoError(t, err)
	requireLines(t, entry,
		wantLine{account: b.ByRole[accounts.RoleAccountsReceivable].ID, debit: "25", entity: journals.EntityCustomer},
		wantLine{account: other.ID, credit: "25"},
	)
}

func TestInvoiceRejectsLineAccountOfWrongType(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	bank := b.ByRole[accounts.RoleBank].ID

	line := booktest.Line("1", "25")
	line.AccountID = &bank
	inv, err := b.Lifecycle.CreateInvoice(ctx, b.Scope, lifecycle.InvoiceInput{CustomerID: c.ID, Lines: []documents.LineInput{line}})
	require.NoError(t, err)

	_, err = b.Lifecycle.SendInvoice(ctx, b.Scope, inv.ID)
	require.ErrorIs(t, err, shared.ErrValidation)

	got, err := b.Lifecycle.GetInvoice(ctx, b.Scope, inv.ID)
	require.NoError(t, err)
	require.Equal(t, documents.InvoiceStatusDraft, got.Status)
	entries, err := b.Journals.ListEntries(ctx, b.Scope, journals.ListFilter{SourceType: journals.SourceInvoice, SourceID: inv.ID})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestQuotationsNeverPost(t *testing.T) {
	b := booktest.New(t)
	res, err := b.Poster.PostInvoice(ctx, b.Scope, documents.Invoice{
		ID:          1,
		Kind:        documents.KindQuotation,
		Number:      "QUO-00001",
		CustomerID:  1,
		TotalAmount: D("100"),
		Subtotal:    D("100"),
		Lines:       []documents.Line{documents.CalculateLine(booktest.Line("1", "100"))},
	})
	require.NoError(t, err)
	require.Empty(t, res.Entries)
	require.True(t, res.Affected.Empty())
}

func TestPaymentEntryShape(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	v := b.Vendor(t, "Supplies Co")
	bank := b.ByRole[accounts.RoleBank].ID

	inv, err := b.Lifecycle.CreateInvoice(ctx, b.Scope, lifecycle.InvoiceInput{CustomerID: c.ID, Lines: []documents.LineInput{booktest.Line("1", "100")}})
	require.NoError(t, err)
	_, err = b.Lifecycle.SendInvoice(ctx, b.Scope, inv.ID)
	require.NoError(t, err)
	received, err := b.Lifecycle.RecordPayment(ctx, b.Scope, posting.PaymentInput{
		Direction:    documents.PaymentReceived,
		PartyID:      c.ID,
		Amount:       D("100"),
		Applications: []posting.ApplicationInput{{DocumentID: inv.ID, Amount: D("100")}},
	})
	require.NoError(t, err)
	require.NotNil(t, received.JournalEntryID)
	entry, err := b.Journals.GetEntry(ctx, b.Scope, *received.JournalEntryID)
	require.NoError(t, err)
	require.Equal(t, journals.SourcePayment, entry.SourceType)
	requireLines(t, entry,
		wantLine{account: bank, debit: "100"},
		wantLine{account: b.ByRole[accounts.RoleAccountsReceivable].ID, credit: "100", entity: journals.EntityCustomer},
	)

	bill, err := b.Lifecycle.CreateBill(ctx, b.Scope, lifecycle.BillInput{VendorID: v.ID, Lines: []documents.LineInput{booktest.Line("1", "40")}})
	require.NoError(t, err)
	_, err = b.Lifecycle.ApproveBill(ctx, b.Scope, bill.ID)
	require.NoError(t, err)
	sent, err := b.Lifecycle.RecordPayment(ctx, b.Scope, posting.PaymentInput{
		Direction:    documents.PaymentSent,
		PartyID:      v.ID,
		Amount:       D("40"),
		Applications: []posting.ApplicationInput{{DocumentID: bill.ID, Amount: D("40")}},
	})
	require.NoError(t, err)
	entry, err = b.Journals.GetEntry(ctx, b.Scope, *sent.JournalEntryID)
	require.NoError(t, err)
	requireLines(t, entry,
		wantLine{account: bank, credit: "40"},
		wantLine{account: b.ByRole[accounts.RoleAccountsPayable].ID, debit: "40", entity: journals.EntityVendor},
	)
	require.Equal(t, v.ID, entry.Lines[1].EntityID)
	b.RequireBalanced(t)
}

func TestBillCostRoundingLandsOnExpense(t *testing.T) {
	b := booktest.New(t)
	v := b.Vendor(t, "Screws Ltd")
	screw := b.Product(t, "SCREW", "0.05", "0.01", "")

	bill, err := b.Lifecycle.CreateBill(ctx, b.Scope, lifecycle.BillInput{
		VendorID: v.ID,
		Lines:    []documents.LineInput{booktest.ProductLine(screw.ID, "1000", "0.01001")},
	})
	require.NoError(t, err)
	booktest.RequireDecimal(t, "10.01", bill.TotalAmount)
	_, err = b.Lifecycle.ApproveBill(ctx, b.Scope, bill.ID)
	require.NoError(t, err)

	product, err := b.Inventory.GetProduct(ctx, b.Scope, screw.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "1000", product.QuantityOnHand)
	booktest.RequireDecimal(t, "0.01", product.Cost)

	remainder := entryWithRef(t, b, journals.SourceBill, bill.ID, "ap")
	requireLines(t, remainder,
		wantLine{account: b.ByRole[accounts.RoleDefaultExpense].ID, debit: "0.01"},
		wantLine{account: b.ByRole[accounts.RoleAccountsPayable].ID, credit: "0.01", entity: journals.EntityVendor},
	)
	booktest.RequireDecimal(t, "10", b.Balance(t, accounts.RoleInventory))
	booktest.RequireDecimal(t, "10.01", b.Balance(t, accounts.RoleAccountsPayable))
	b.RequireBalanced(t)
}

func TestReverseDocumentRestoresStockAndReportsParties(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	widget := b.Product(t, "WID-1", "20", "4", "5")

	inv, err := b.Lifecycle.CreateInvoice(ctx, b.Scope, lifecycle.InvoiceInput{
		CustomerID: c.ID,
		Lines:      []documents.LineInput{booktest.ProductLine(widget.ID, "2", "20")},
	})
	require.NoError(t, err)
	_, err = b.Lifecycle.SendInvoice(ctx, b.Scope, inv.ID)
	require.NoError(t, err)
	cogs := entryWithRef(t, b, journals.SourceInvoice, inv.ID, "cogs")
	requireLines(t, cogs,
		wantLine{account: b.ByRole[accounts.RoleCOGS].ID, debit: "8"},
		wantLine{account: b.ByRole[accounts.RoleInventory].ID, credit: "8"},
	)

	res, err := b.Poster.ReverseDocument(ctx, b.Scope, journals.SourceInvoice, inv.ID, booktest.Today, "entered twice")
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	for _, e := range res.Entries {
		require.Equal(t, journals.JournalStatusVoid, e.Status)
	}
	require.Equal(t, []int64{c.ID}, res.Affected.CustomerIDs)
	require.Empty(t, res.Affected.VendorIDs)
	require.Len(t, res.Movements, 1)
	booktest.RequireDecimal(t, "2", res.Movements[0].Quantity)

	product, err := b.Inventory.GetProduct(ctx, b.Scope, widget.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "5", product.QuantityOnHand)
}
