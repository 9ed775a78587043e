package accounts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
	"github.com/odyssey-erp/odyssey-books/internal/testing/booktest"
)

var ctx = context.Background()

func TestSignedBalance(t *testing.T) {
	debit, credit := booktest.D("120"), booktest.D("20")
	cases := map[accounts.AccountType]string{
		accounts.AccountTypeAsset:     "100",
		accounts.AccountTypeExpense:   "100",
		accounts.AccountTypeLiability: "-100",
		accounts.AccountTypeEquity:    "-100",
		accounts.AccountTypeRevenue:   "-100",
	}
	for typ, want := range cases {
		booktest.RequireDecimal(t, want, typ.SignedBalance(debit, credit), typ)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	b := booktest.New(t)
	missing := int64(9999)
	bank := b.ByRole[accounts.RoleBank].ID

	cases := []struct {
		name  string
		input accounts.AccountInput
	}{
		{"missing name", accounts.AccountInput{Code: "1010", Type: accounts.AccountTypeAsset}},
		{"non numeric code", accounts.AccountInput{Code: "10A0", Name: "Petty cash", Type: accounts.AccountTypeAsset}},
		{"code out of range", accounts.AccountInput{Code: "999", Name: "Petty cash", Type: accounts.AccountTypeAsset}},
		{"unknown type", accounts.AccountInput{Code: "1010", Name: "Petty cash", Type: "CONTRA"}},
		{"duplicate code", accounts.AccountInput{Code: "1000", Name: "Petty cash", Type: accounts.AccountTypeAsset}},
		{"missing parent", accounts.AccountInput{Code: "1010", Name: "Petty cash", Type: accounts.AccountTypeAsset, ParentID: &missing}},
		{"parent of another type", accounts.AccountInput{Code: "6010", Name: "Travel", Type: accounts.AccountTypeExpense, ParentID: &bank}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Accounts.CreateAccount(ctx, b.Scope, tc.input)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}

	child, err := b.Accounts.CreateAccount(ctx, b.Scope, accounts.AccountInput{Code: " 1010 ", Name: "Petty cash", Type: accounts.AccountTypeAsset, ParentID: &bank})
	require.NoError(t, err)
	require.Equal(t, "1010", child.Code)
	require.True(t, child.IsActive)
	booktest.RequireDecimal(t, "0", child.Balance)
}

func TestListAccountsOrderedByCode(t *testing.T) {
	b := booktest.New(t)
	list, err := b.Accounts.ListAccounts(ctx, b.Scope)
	require.NoError(t, err)
	require.Len(t, list, len(booktest.Chart))
	for i := 1; i < len(list); i++ {
		require.Less(t, list[i-1].Code, list[i].Code)
	}

	renamed, err := b.Accounts.UpdateAccount(ctx, b.Scope, list[0].ID, "Operating Bank")
	require.NoError(t, err)
	require.Equal(t, "Operating Bank", renamed.Name)
	_, err = b.Accounts.UpdateAccount(ctx, b.Scope, list[0].ID, "  ")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestResolveAllReportsMissingRole(t *testing.T) {
	b := booktest.New(t, booktest.WithoutRoles(accounts.RoleSalesTaxPayable))

	set, err := b.Accounts.ResolveAll(ctx, b.Scope, accounts.RoleBank, accounts.RoleAccountsReceivable, accounts.RoleBank)
	require.NoError(t, err)
	require.Len(t, set, 2)
	require.Equal(t, b.ByRole[accounts.RoleBank].ID, set.ID(accounts.RoleBank))

	_, err = b.Accounts.ResolveAll(ctx, b.Scope, accounts.RoleBank, accounts.RoleSalesTaxPayable)
	require.ErrorIs(t, err, shared.ErrConfiguration)
	var cfg *shared.ConfigurationError
	require.ErrorAs(t, err, &cfg)
	require.Equal(t, "SALES_TAX_PAYABLE", cfg.Role)
}

func TestConfigureRolesChecksAccountType(t *testing.T) {
	b := booktest.New(t)

	err := b.Accounts.ConfigureRoles(ctx, b.Scope, map[accounts.Role]int64{
		accounts.RoleBank: b.ByRole[accounts.RoleDefaultRevenue].ID,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	err = b.Accounts.ConfigureRoles(ctx, b.Scope, map[accounts.Role]int64{"PETTY_CASH": b.ByRole[accounts.RoleBank].ID})
	require.ErrorIs(t, err, shared.ErrValidation)

	err = b.Accounts.ConfigureRoles(ctx, b.Scope, map[accounts.Role]int64{accounts.RoleBank: 9999})
	require.ErrorIs(t, err, shared.ErrValidation)

	savings, err := b.Accounts.CreateAccount(ctx, b.Scope, accounts.AccountInput{Code: "1010", Name: "Savings", Type: accounts.AccountTypeAsset})
	require.NoError(t, err)
	require.NoError(t, b.Accounts.ConfigureRoles(ctx, b.Scope, map[accounts.Role]int64{accounts.RoleBank: savings.ID}))
	resolved, err := b.Accounts.Resolve(ctx, b.Scope, accounts.RoleBank)
	require.NoError(t, err)
	require.Equal(t, savings.ID, resolved.ID)

	mappings, err := b.Accounts.RoleMappings(ctx, b.Scope)
	require.NoError(t, err)
	require.Len(t, mappings, len(accounts.Roles()))
}

func TestDeactivate(t *testing.T) {
	b := booktest.New(t)
	spare, err := b.Accounts.CreateAccount(ctx, b.Scope, accounts.AccountInput{Code: "6900", Name: "Spare", Type: accounts.AccountTypeExpense})
	require.NoError(t, err)

	require.NoError(t, b.Accounts.Deactivate(ctx, b.Scope, spare.ID))
	require.NoError(t, b.Accounts.Deactivate(ctx, b.Scope, spare.ID), "already inactive")
	got, err := b.Accounts.GetAccount(ctx, b.Scope, spare.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	err = b.Accounts.ConfigureRoles(ctx, b.Scope, map[accounts.Role]int64{accounts.RoleDefaultExpense: spare.ID})
	require.ErrorIs(t, err, shared.ErrValidation, "inactive accounts cannot take a role")

	err = b.Accounts.Deactivate(ctx, b.Scope, b.ByRole[accounts.RoleBank].ID)
	require.ErrorIs(t, err, accounts.ErrAccountInUse, "mapped accounts stay active")

	b.Product(t, "WID-1", "20", "5", "1")
	unmapped := b.ByRole[accounts.RoleInventory].ID
	require.NoError(t, b.Accounts.ConfigureRoles(ctx, b.Scope, map[accounts.Role]int64{accounts.RoleInventory: b.ByRole[accounts.RoleBank].ID}))
	err = b.Accounts.Deactivate(ctx, b.Scope, unmapped)
	require.ErrorIs(t, err, accounts.ErrAccountInUse, "accounts with ledger lines stay active")
}

func TestGetAccountIsTenantScoped(t *testing.T) {
	first := booktest.New(t)
	second := booktest.New(t, booktest.WithTenant(2, first.Store))

	_, err := second.Accounts.GetAccount(ctx, second.Scope, first.ByRole[accounts.RoleBank].ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
