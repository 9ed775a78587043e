package balances_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/balances"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/lifecycle"
	"github.com/odyssey-erp/odyssey-books/internal/posting"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
	"github.com/odyssey-erp/odyssey-books/internal/testing/booktest"
)

var (
	ctx = context.Background()
	D   = booktest.D
)

func manual(t *testing.T, b *booktest.Books, dayOffset int, debit, credit accounts.Role, amount string) journals.JournalEntry {
	t.Helper()
	entry, err := b.Journals.CreateEntry(ctx, b.Scope, journals.EntryInput{
		Date: booktest.Today.AddDate(0, 0, dayOffset),
		Memo: "Manual",
		Post: true,
		Lines: []journals.PostingLineInput{
			journals.Debit(b.ByRole[debit].ID, D(amount)),
			journals.Credit(b.ByRole[credit].ID, D(amount)),
		},
	})
	require.NoError(t, err)
	return entry
}

func cached(t *testing.T, b *booktest.Books, role accounts.Role) string {
	t.Helper()
	account, err := b.Accounts.GetAccount(ctx, b.Scope, b.ByRole[role].ID)
	require.NoError(t, err)
	return account.Balance.String()
}

func TestAffectedMerge(t *testing.T) {
	a := balances.Affected{AccountIDs: []int64{3, 1}}
	a.Merge(balances.Affected{AccountIDs: []int64{1, 0, 2}, CustomerIDs: []int64{9}})
	a.Merge(balances.Affected{CustomerIDs: []int64{9}, VendorIDs: []int64{0}})
	require.Equal(t, []int64{3, 1, 2}, a.AccountIDs)
	require.Equal(t, []int64{9}, a.CustomerIDs)
	require.Empty(t, a.VendorIDs)
	require.False(t, a.Empty())
	require.True(t, balances.Affected{}.Empty())
}

func TestAccountBalanceAsOf(t *testing.T) {
	b := booktest.New(t)
	manual(t, b, -3, accounts.RoleBank, accounts.RoleDefaultRevenue, "100")
	manual(t, b, -1, accounts.RoleDefaultExpense, accounts.RoleBank, "30")
	manual(t, b, 0, accounts.RoleBank, accounts.RoleDefaultRevenue, "5")
	bank := b.ByRole[accounts.RoleBank].ID

	earlier := booktest.Today.AddDate(0, 0, -2)
	dated, err := b.Balances.AccountBalance(ctx, b.Scope, bank, &earlier)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "100", dated.Balance)
	require.Equal(t, "0", cached(t, b, accounts.RoleBank), "dated balances do not touch the cache")

	current, err := b.Balances.AccountBalance(ctx, b.Scope, bank, nil)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "75", current.Balance)
	booktest.RequireDecimal(t, "105", current.DebitTotal)
	booktest.RequireDecimal(t, "30", current.CreditTotal)
	require.Equal(t, "75", cached(t, b, accounts.RoleBank))

	revenue, err := b.Balances.AccountBalance(ctx, b.Scope, b.ByRole[accounts.RoleDefaultRevenue].ID, nil)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "105", revenue.Balance, "credit normal accounts grow with credits")

	_, err = b.Balances.AccountBalance(ctx, b.Scope, 9999, nil)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRecomputeAllRepairsDriftedCache(t *testing.T) {
	b := booktest.New(t)
	manual(t, b, 0, accounts.RoleBank, accounts.RoleDefaultRevenue, "40")
	manual(t, b, 0, accounts.RoleDefaultExpense, accounts.RoleBank, "15")
	require.Equal(t, "0", cached(t, b, accounts.RoleDefaultRevenue))

	report, err := b.Balances.RecomputeAll(ctx, b.Scope)
	require.NoError(t, err)
	require.Len(t, report.Succeeded, len(booktest.Chart))
	require.Empty(t, report.Failed)

	require.Equal(t, "25", cached(t, b, accounts.RoleBank))
	require.Equal(t, "40", cached(t, b, accounts.RoleDefaultRevenue))
	require.Equal(t, "15", cached(t, b, accounts.RoleDefaultExpense))
	b.RequireBalanced(t)
}

func TestRefresh(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	manual(t, b, 0, accounts.RoleBank, accounts.RoleDefaultRevenue, "12")

	require.NoError(t, b.Balances.Refresh(ctx, b.Scope, balances.Affected{}))
	require.Equal(t, "0", cached(t, b, accounts.RoleBank))

	err := b.Balances.Refresh(ctx, b.Scope, balances.Affected{
		AccountIDs:  []int64{b.ByRole[accounts.RoleDefaultRevenue].ID, b.ByRole[accounts.RoleBank].ID},
		CustomerIDs: []int64{c.ID},
	})
	require.NoError(t, err)
	require.Equal(t, "12", cached(t, b, accounts.RoleBank))
	require.Equal(t, "12", cached(t, b, accounts.RoleDefaultRevenue))

	err = b.Balances.Refresh(ctx, b.Scope, balances.Affected{CustomerIDs: []int64{9999}})
	require.ErrorIs(t, err, shared.ErrNotFound)

	err = b.Balances.Refresh(ctx, shared.Scope{}, balances.Affected{AccountIDs: []int64{1}})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPartyBalancesFollowDocuments(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	v := b.Vendor(t, "Supplies Co")

	inv, err := b.Lifecycle.CreateInvoice(ctx, b.Scope, lifecycle.InvoiceInput{CustomerID: c.ID, Lines: []documents.LineInput{booktest.Line("2", "30")}})
	require.NoError(t, err)
	_, err = b.Lifecycle.SendInvoice(ctx, b.Scope, inv.ID)
	require.NoError(t, err)
	bill, err := b.Lifecycle.CreateBill(ctx, b.Scope, lifecycle.BillInput{VendorID: v.ID, Lines: []documents.LineInput{booktest.Line("1", "45")}})
	require.NoError(t, err)
	_, err = b.Lifecycle.ApproveBill(ctx, b.Scope, bill.ID)
	require.NoError(t, err)

	customer, err := b.Parties.GetCustomer(ctx, b.Scope, c.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "60", customer.Balance)
	vendor, err := b.Parties.GetVendor(ctx, b.Scope, v.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "45", vendor.Balance)

	_, err = b.Lifecycle.RecordPayment(ctx, b.Scope, posting.PaymentInput{
		Direction:    documents.PaymentReceived,
		PartyID:      c.ID,
		Amount:       D("25"),
		Applications: []posting.ApplicationInput{{DocumentID: inv.ID, Amount: D("25")}},
	})
	require.NoError(t, err)
	customer, err = b.Parties.GetCustomer(ctx, b.Scope, c.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "35", customer.Balance)

	direct, err := b.Balances.CustomerBalance(ctx, b.Scope, c.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "35", direct)
	b.RequireBalanced(t)
}

func TestReconcileFlagsManualReceivableEntries(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	inv, err := b.Lifecycle.CreateInvoice(ctx, b.Scope, lifecycle.InvoiceInput{CustomerID: c.ID, Lines: []documents.LineInput{booktest.Line("1", "80")}})
	require.NoError(t, err)
	_, err = b.Lifecycle.SendInvoice(ctx, b.Scope, inv.ID)
	require.NoError(t, err)

	report, err := b.Balances.Reconcile(ctx, b.Scope)
	require.NoError(t, err)
	require.True(t, report.Balanced())
	booktest.RequireDecimal(t, "80", report.ReceivableLedger)
	booktest.RequireDecimal(t, "80", report.CustomerBalances)

	manual(t, b, 0, accounts.RoleAccountsReceivable, accounts.RoleDefaultRevenue, "7")
	manual(t, b, 0, accounts.RoleDefaultExpense, accounts.RoleAccountsPayable, "3")
	report, err = b.Balances.Reconcile(ctx, b.Scope)
	require.NoError(t, err)
	require.False(t, report.Balanced())
	booktest.RequireDecimal(t, "7", report.ReceivableDiff)
	booktest.RequireDecimal(t, "3", report.PayableDiff)
}

func TestReconcileNeedsControlAccounts(t *testing.T) {
	b := booktest.New(t, booktest.WithoutRoles(accounts.RoleAccountsPayable))
	_, err := b.Balances.Reconcile(ctx, b.Scope)
	require.ErrorIs(t, err, shared.ErrConfiguration)
}
