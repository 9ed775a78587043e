package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
	"github.com/odyssey-erp/odyssey-books/internal/testing/booktest"
)

func cachedBalance(t *testing.T, b *booktest.Books, role accounts.Role) string {
	t.Helper()
	account, err := b.Accounts.GetAccount(ctx, b.Scope, b.ByRole[role].ID)
	require.NoError(t, err)
	return account.Balance.String()
}

func TestManualJournalEntryRefreshesCachedBalances(t *testing.T) {
	b := booktest.New(t)
	bank := b.ByRole[accounts.RoleBank].ID
	equity := b.ByRole[accounts.RoleOpeningBalanceEquity].ID

	entry, err := b.Lifecycle.RecordJournalEntry(ctx, b.Scope, journals.EntryInput{
		Memo:  "Opening cash",
		Post:  true,
		Lines: []journals.PostingLineInput{journals.Debit(bank, D("1000")), journals.Credit(equity, D("1000"))},
	})
	require.NoError(t, err)
	require.Equal(t, journals.JournalStatusPosted, entry.Status)
	require.Equal(t, "1000", cachedBalance(t, b, accounts.RoleBank))
	require.Equal(t, "1000", cachedBalance(t, b, accounts.RoleOpeningBalanceEquity))

	voided, err := b.Lifecycle.VoidJournalEntry(ctx, b.Scope, entry.ID, "Wrong bank")
	require.NoError(t, err)
	require.Equal(t, journals.JournalStatusVoid, voided.Status)
	require.Equal(t, "0", cachedBalance(t, b, accounts.RoleBank))
	require.Equal(t, "0", cachedBalance(t, b, accounts.RoleOpeningBalanceEquity))
	b.RequireBalanced(t)
}

func TestManualJournalEntryWithCustomerLine(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	ar := b.ByRole[accounts.RoleAccountsReceivable].ID
	revenue := b.ByRole[accounts.RoleDefaultRevenue].ID

	_, err := b.Lifecycle.RecordJournalEntry(ctx, b.Scope, journals.EntryInput{
		Memo: "Late fee",
		Post: true,
		Lines: []journals.PostingLineInput{
			journals.Debit(ar, D("25")).For(journals.EntityCustomer, c.ID),
			journals.Credit(revenue, D("25")),
		},
	})
	require.NoError(t, err)
	require.Equal(t, "25", cachedBalance(t, b, accounts.RoleAccountsReceivable))
	require.Equal(t, "25", cachedBalance(t, b, accounts.RoleDefaultRevenue))
}

func TestRejectedManualJournalEntryWritesNothing(t *testing.T) {
	b := booktest.New(t)
	bank := b.ByRole[accounts.RoleBank].ID
	equity := b.ByRole[accounts.RoleOpeningBalanceEquity].ID

	_, err := b.Lifecycle.RecordJournalEntry(ctx, b.Scope, journals.EntryInput{
		Memo:  "Lopsided",
		Post:  true,
		Lines: []journals.PostingLineInput{journals.Debit(bank, D("10")), journals.Credit(equity, D("9"))},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	entries, err := b.Journals.ListEntries(ctx, b.Scope, journals.ListFilter{})
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Equal(t, "0", cachedBalance(t, b, accounts.RoleBank))
}
