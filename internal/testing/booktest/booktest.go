// Package booktest wires the books services over the in-memory store for
// tests: one tenant, a seeded chart of accounts, mapped roles and a fixed
// clock.
package booktest

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/balances"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	"github.com/odyssey-erp/odyssey-books/internal/lifecycle"
	"github.com/odyssey-erp/odyssey-books/internal/platform/memdb"
	"github.com/odyssey-erp/odyssey-books/internal/posting"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("ODYSSEY_TEST_MODE") == "" {
			_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		}
	})
}

// Today is the fixed business date of every fixture.
var Today = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

// Now is the fixed clock of every fixture.
func Now() time.Time { return Today.Add(9 * time.Hour) }

// Chart is the seeded chart of accounts: code, name, type and the role the
// account is mapped to.
var Chart = []struct {
	Code string
	Name string
	Type accounts.AccountType
	Role accounts.Role
}{
	{"1000", "Bank", accounts.AccountTypeAsset, accounts.RoleBank},
	{"1100", "Accounts Receivable", accounts.AccountTypeAsset, accounts.RoleAccountsReceivable},
	{"1200", "Inventory", accounts.AccountTypeAsset, accounts.RoleInventory},
	{"2000", "Accounts Payable", accounts.AccountTypeLiability, accounts.RoleAccountsPayable},
	{"2100", "Sales Tax Payable", accounts.AccountTypeLiability, accounts.RoleSalesTaxPayable},
	{"3000", "Opening Balance Equity", accounts.AccountTypeEquity, accounts.RoleOpeningBalanceEquity},
	{"4000", "Sales", accounts.AccountTypeRevenue, accounts.RoleDefaultRevenue},
	{"4100", "Sales Discounts", accounts.AccountTypeRevenue, accounts.RoleSalesDiscounts},
	{"4200", "Sales Returns", accounts.AccountTypeRevenue, accounts.RoleSalesReturns},
	{"5000", "Cost of Goods Sold", accounts.AccountTypeExpense, accounts.RoleCOGS},
	{"5100", "Inventory Adjustments", accounts.AccountTypeExpense, accounts.RoleInventoryAdjustment},
	{"6000", "General Expense", accounts.AccountTypeExpense, accounts.RoleDefaultExpense},
}

// Books is a fully wired set of services for one tenant.
type Books struct {
	Store     *memdb.Store
	Scope     shared.Scope
	Audit     *shared.AuditLogger
	Accounts  *accounts.Service
	Journals  *journals.Service
	Inventory *inventory.Service
	Parties   *documents.Service
	Poster    *posting.Poster
	Balances  *balances.Service
	Lifecycle *lifecycle.Service
	// ByRole holds the seeded account of every role.
	ByRole map[accounts.Role]accounts.Account
}

// Option adjusts the fixture before seeding.
type Option func(*options)

type options struct {
	skipRoles []accounts.Role
	tenantID  int64
	store     *memdb.Store
}

// WithoutRoles leaves roles unmapped to exercise configuration errors.
func WithoutRoles(roles ...accounts.Role) Option {
	return func(o *options) { o.skipRoles = append(o.skipRoles, roles...) }
}

// WithTenant seeds a tenant other than 1, optionally sharing a store.
func WithTenant(tenantID int64, store *memdb.Store) Option {
	return func(o *options) {
		o.tenantID = tenantID
		o.store = store
	}
}

// Logger discards output unless ODYSSEY_TEST_VERBOSE is set.
func Logger() *slog.Logger {
	if os.Getenv("ODYSSEY_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.DiscardHandler)
}

// New wires and seeds the books.
func New(t testing.TB, opts ...Option) *Books {
	t.Helper()
	o := options{tenantID: 1}
	for _, opt := range opts {
		opt(&o)
	}
	store := o.store
	if store == nil {
		store = memdb.New()
	}
	logger := Logger()
	audit := shared.NewAuditLogger(store)

	b := &Books{
		Store:  store,
		Scope:  shared.Scope{TenantID: o.tenantID, ActorID: 7},
		Audit:  audit,
		ByRole: map[accounts.Role]accounts.Account{},
	}
	b.Accounts = accounts.NewService(store.Accounts(), audit, accounts.DefaultConfig(), logger)
	b.Accounts.WithNow(Now)
	b.Journals = journals.NewService(store.Journals(), b.Accounts, audit, logger)
	b.Journals.WithNow(Now)
	b.Inventory = inventory.NewService(store.Inventory(), b.Accounts, b.Journals, logger)
	b.Inventory.WithNow(Now)
	b.Parties = documents.NewService(store.Documents(), logger)
	b.Poster = posting.NewPoster(store.Documents(), b.Accounts, b.Journals, b.Inventory, logger)
	b.Poster.WithNow(Now)
	b.Balances = balances.NewService(store.Balances(), b.Journals, b.Accounts, logger)
	b.Lifecycle = lifecycle.NewService(store.Documents(), b.Poster, b.Inventory, b.Journals, b.Balances, logger)
	b.Lifecycle.WithAudit(audit)
	b.Lifecycle.WithNow(Now)

	ctx := context.Background()
	skip := map[accounts.Role]bool{}
	for _, r := range o.skipRoles {
		skip[r] = true
	}
	mapping := map[accounts.Role]int64{}
	for _, c := range Chart {
		account, err := b.Accounts.CreateAccount(ctx, b.Scope, accounts.AccountInput{Code: c.Code, Name: c.Name, Type: c.Type})
		require.NoError(t, err)
		b.ByRole[c.Role] = account
		if !skip[c.Role] {
			mapping[c.Role] = account.ID
		}
	}
	require.NoError(t, b.Accounts.ConfigureRoles(ctx, b.Scope, mapping))
	return b
}

// Customer creates a customer.
func (b *Books) Customer(t testing.TB, name string) documents.Customer {
	t.Helper()
	c, err := b.Parties.CreateCustomer(context.Background(), b.Scope, documents.PartyInput{Name: name})
	require.NoError(t, err)
	return c
}

// Vendor creates a vendor.
func (b *Books) Vendor(t testing.TB, name string) documents.Vendor {
	t.Helper()
	v, err := b.Parties.CreateVendor(context.Background(), b.Scope, documents.PartyInput{Name: name})
	require.NoError(t, err)
	return v
}

// Product creates a stock tracked product with optional opening stock.
func (b *Books) Product(t testing.TB, sku string, price, cost, opening string) inventory.Product {
	t.Helper()
	in := inventory.ProductInput{
		SKU:             sku,
		Name:            "Product " + sku,
		TrackInventory:  true,
		SalesPrice:      D(price),
		Cost:            D(cost),
		OpeningQuantity: D(opening),
		OpeningDate:     Today,
	}
	p, err := b.Inventory.CreateProduct(context.Background(), b.Scope, in)
	require.NoError(t, err)
	// opening stock posts outside the lifecycle
	_, err = b.Balances.RecomputeAll(context.Background(), b.Scope)
	require.NoError(t, err)
	return p
}

// D parses a decimal literal; the empty string is zero.
func D(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(s)
}

// Line builds a free text line at quantity × price.
func Line(qty, price string) documents.LineInput {
	return documents.LineInput{Description: "Service", Quantity: D(qty), UnitPrice: D(price)}
}

// ProductLine builds a line selling or buying a product.
func ProductLine(productID int64, qty, price string) documents.LineInput {
	return documents.LineInput{ProductID: &productID, Description: "Goods", Quantity: D(qty), UnitPrice: D(price)}
}

// Balance returns the ledger balance of the account mapped to role.
func (b *Books) Balance(t testing.TB, role accounts.Role) decimal.Decimal {
	t.Helper()
	res, err := b.Balances.AccountBalance(context.Background(), b.Scope, b.ByRole[role].ID, nil)
	require.NoError(t, err)
	return res.Balance
}

// RequireDecimal compares decimals by value.
func RequireDecimal(t testing.TB, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, D(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

// RequireBalanced checks the books invariants: total debits equal total
// credits, no stored entry is unbalanced, the control accounts agree with
// the documents and every cached balance matches the ledger.
func (b *Books) RequireBalanced(t testing.TB) {
	t.Helper()
	ctx := context.Background()
	activity, err := b.Journals.AccountActivity(ctx, b.Scope, nil)
	require.NoError(t, err)
	debit, credit := decimal.Zero, decimal.Zero
	for _, a := range activity {
		debit = debit.Add(a.Debit)
		credit = credit.Add(a.Credit)
	}
	require.Truef(t, debit.Equal(credit), "ledger debits %s credits %s", debit, credit)

	unbalanced, err := b.Journals.UnbalancedEntries(ctx, b.Scope)
	require.NoError(t, err)
	require.Empty(t, unbalanced)

	report, err := b.Balances.Reconcile(ctx, b.Scope)
	require.NoError(t, err)
	require.Truef(t, report.Balanced(), "reconcile: receivable diff %s payable diff %s", report.ReceivableDiff, report.PayableDiff)

	list, err := b.Accounts.ListAccounts(ctx, b.Scope)
	require.NoError(t, err)
	for _, account := range list {
		res, err := b.Balances.AccountBalance(ctx, b.Scope, account.ID, &Today)
		require.NoError(t, err)
		require.Truef(t, res.Balance.Equal(account.Balance), "account %s cached %s ledger %s", account.Code, account.Balance, res.Balance)
	}
}
