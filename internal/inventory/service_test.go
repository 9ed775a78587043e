package inventory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
	"github.com/odyssey-erp/odyssey-books/internal/testing/booktest"
)

var (
	ctx = context.Background()
	D   = booktest.D
)

func cost(s string) *decimal.Decimal {
	v := D(s)
	return &v
}

func TestCreateProductValidation(t *testing.T) {
	b := booktest.New(t)
	b.Product(t, "WID-1", "20", "5", "0")

	cases := []struct {
		name  string
		input inventory.ProductInput
		is    error
	}{
		{name: "missing sku", input: inventory.ProductInput{Name: "Widget"}},
		{name: "missing name", input: inventory.ProductInput{SKU: "WID-2"}},
		{name: "negative cost", input: inventory.ProductInput{SKU: "WID-2", Name: "Widget", Cost: D("-1")}},
		{name: "negative price", input: inventory.ProductInput{SKU: "WID-2", Name: "Widget", SalesPrice: D("-1")}},
		{name: "duplicate sku", input: inventory.ProductInput{SKU: " WID-1 ", Name: "Widget"}},
		{
			name:  "opening stock on a service",
			input: inventory.ProductInput{SKU: "SVC-1", Name: "Consulting", OpeningQuantity: D("1")},
			is:    inventory.ErrNotTracked,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Inventory.CreateProduct(ctx, b.Scope, tc.input)
			require.ErrorIs(t, err, shared.ErrValidation)
			if tc.is != nil {
				require.ErrorIs(t, err, tc.is)
			}
		})
	}
}

func TestOpeningStockPostsAgainstEquity(t *testing.T) {
	b := booktest.New(t)
	p := b.Product(t, "WID-1", "20", "5", "10")
	booktest.RequireDecimal(t, "10", p.QuantityOnHand)
	booktest.RequireDecimal(t, "5", p.Cost)

	booktest.RequireDecimal(t, "50", b.Balance(t, accounts.RoleInventory))
	booktest.RequireDecimal(t, "50", b.Balance(t, accounts.RoleOpeningBalanceEquity))

	history, err := b.Inventory.GetMovementHistory(ctx, b.Scope, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, inventory.MovementAdjustment, history[0].Type)
	require.Equal(t, booktest.Today, history[0].OccurredAt)
	require.NotNil(t, history[0].JournalEntryID)
	b.RequireBalanced(t)
}

func TestWeightedAverageCost(t *testing.T) {
	b := booktest.New(t)
	v := b.Vendor(t, "Supplies Co")
	p := b.Product(t, "WID-1", "20", "5", "10")

	_, err := b.Inventory.RecordMovement(ctx, b.Scope, inventory.MovementInput{
		ProductID:   p.ID,
		Quantity:    D("10"),
		UnitCost:    cost("8"),
		Type:        inventory.MovementPurchase,
		PostJournal: true,
		VendorID:    v.ID,
	})
	require.NoError(t, err)
	product, err := b.Inventory.GetProduct(ctx, b.Scope, p.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "20", product.QuantityOnHand)
	booktest.RequireDecimal(t, "6.5", product.Cost)
	booktest.RequireDecimal(t, "80", b.Balance(t, accounts.RoleAccountsPayable))

	// sales and customer returns move quantity only
	_, err = b.Inventory.RecordMovement(ctx, b.Scope, inventory.MovementInput{ProductID: p.ID, Quantity: D("-15"), Type: inventory.MovementSale})
	require.NoError(t, err)
	_, err = b.Inventory.RecordMovement(ctx, b.Scope, inventory.MovementInput{ProductID: p.ID, Quantity: D("2"), UnitCost: cost("1"), Type: inventory.MovementSaleReturn})
	require.NoError(t, err)
	product, err = b.Inventory.GetProduct(ctx, b.Scope, p.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "7", product.QuantityOnHand)
	booktest.RequireDecimal(t, "6.5", product.Cost)

	// sold out, the next receipt sets the cost outright
	_, err = b.Inventory.RecordMovement(ctx, b.Scope, inventory.MovementInput{ProductID: p.ID, Quantity: D("-7"), Type: inventory.MovementSale})
	require.NoError(t, err)
	_, err = b.Inventory.RecordMovement(ctx, b.Scope, inventory.MovementInput{ProductID: p.ID, Quantity: D("3"), UnitCost: cost("9.25"), Type: inventory.MovementPurchase})
	require.NoError(t, err)
	product, err = b.Inventory.GetProduct(ctx, b.Scope, p.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "9.25", product.Cost)
}

func TestPurchaseJournalCarriesVendor(t *testing.T) {
	b := booktest.New(t)
	v := b.Vendor(t, "Supplies Co")
	p := b.Product(t, "WID-1", "20", "5", "0")

	m, err := b.Inventory.RecordMovement(ctx, b.Scope, inventory.MovementInput{
		ProductID:   p.ID,
		Quantity:    D("4"),
		UnitCost:    cost("2.5"),
		Type:        inventory.MovementPurchase,
		PostJournal: true,
		VendorID:    v.ID,
	})
	require.NoError(t, err)
	booktest.RequireDecimal(t, "10", m.TotalValue)

	entry, err := b.Journals.GetEntry(ctx, b.Scope, *m.JournalEntryID)
	require.NoError(t, err)
	require.Equal(t, journals.SourceStockMovement, entry.SourceType)
	require.Equal(t, m.ID, entry.SourceID)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, b.ByRole[accounts.RoleInventory].ID, entry.Lines[0].AccountID)
	require.Equal(t, journals.EntityProduct, entry.Lines[0].EntityType)
	require.Equal(t, b.ByRole[accounts.RoleAccountsPayable].ID, entry.Lines[1].AccountID)
	require.Equal(t, journals.EntityVendor, entry.Lines[1].EntityType)
	require.Equal(t, v.ID, entry.Lines[1].EntityID)
}

func TestMovementRejections(t *testing.T) {
	b := booktest.New(t)
	p := b.Product(t, "WID-1", "20", "5", "3")
	svc, err := b.Inventory.CreateProduct(ctx, b.Scope, inventory.ProductInput{SKU: "SVC-1", Name: "Consulting"})
	require.NoError(t, err)

	cases := []struct {
		name  string
		input inventory.MovementInput
		is    error
	}{
		{"positive sale", inventory.MovementInput{ProductID: p.ID, Quantity: D("1"), Type: inventory.MovementSale}, inventory.ErrInvalidQuantity},
		{"negative purchase", inventory.MovementInput{ProductID: p.ID, Quantity: D("-1"), Type: inventory.MovementPurchase}, inventory.ErrInvalidQuantity},
		{"zero adjustment", inventory.MovementInput{ProductID: p.ID, Quantity: D("0"), Type: inventory.MovementAdjustment}, inventory.ErrInvalidQuantity},
		{"unknown type", inventory.MovementInput{ProductID: p.ID, Quantity: D("1"), Type: "TRANSFER"}, inventory.ErrInvalidMovementType},
		{"below zero", inventory.MovementInput{ProductID: p.ID, Quantity: D("-4"), Type: inventory.MovementSale}, inventory.ErrNegativeStock},
		{"untracked", inventory.MovementInput{ProductID: svc.ID, Quantity: D("1"), Type: inventory.MovementAdjustment}, inventory.ErrNotTracked},
		{"negative unit cost", inventory.MovementInput{ProductID: p.ID, Quantity: D("1"), UnitCost: cost("-1"), Type: inventory.MovementPurchase}, shared.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Inventory.RecordMovement(ctx, b.Scope, tc.input)
			require.ErrorIs(t, err, tc.is)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}

	product, err := b.Inventory.GetProduct(ctx, b.Scope, p.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "3", product.QuantityOnHand)
	history, err := b.Inventory.GetMovementHistory(ctx, b.Scope, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestMovementHistoryRunningBalance(t *testing.T) {
	b := booktest.New(t)
	p := b.Product(t, "WID-1", "20", "5", "10")

	_, err := b.Inventory.RecordMovement(ctx, b.Scope, inventory.MovementInput{ProductID: p.ID, Quantity: D("-3"), Type: inventory.MovementSale})
	require.NoError(t, err)
	_, err = b.Inventory.RecordMovement(ctx, b.Scope, inventory.MovementInput{ProductID: p.ID, Quantity: D("5"), Type: inventory.MovementAdjustment, Memo: "found"})
	require.NoError(t, err)

	history, err := b.Inventory.GetMovementHistory(ctx, b.Scope, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	want := []struct {
		qty, running string
		typ          inventory.MovementType
	}{
		{"5", "12", inventory.MovementAdjustment},
		{"-3", "7", inventory.MovementSale},
		{"10", "10", inventory.MovementAdjustment},
	}
	for i, w := range want {
		require.Equal(t, w.typ, history[i].Type)
		booktest.RequireDecimal(t, w.qty, history[i].Quantity, i)
		booktest.RequireDecimal(t, w.running, history[i].RunningBalance, i)
	}
	require.Nil(t, history[1].JournalEntryID, "sales are costed by the invoice")
}

func TestReverseReferenceIsRepeatable(t *testing.T) {
	b := booktest.New(t)
	p := b.Product(t, "WID-1", "20", "5", "2")
	ref := inventory.Reference{Type: journals.SourceBill, ID: 99}

	_, err := b.Inventory.RecordMovement(ctx, b.Scope, inventory.MovementInput{
		ProductID: p.ID,
		Quantity:  D("4"),
		UnitCost:  cost("8"),
		Type:      inventory.MovementPurchase,
		Reference: ref,
	})
	require.NoError(t, err)

	counters, err := b.Inventory.ReverseReference(ctx, b.Scope, ref, booktest.Today, "Void bill 99")
	require.NoError(t, err)
	require.Len(t, counters, 1)
	booktest.RequireDecimal(t, "-4", counters[0].Quantity)
	booktest.RequireDecimal(t, "8", counters[0].UnitCost)
	require.Nil(t, counters[0].JournalEntryID)
	require.Equal(t, ref, counters[0].Reference)

	again, err := b.Inventory.ReverseReference(ctx, b.Scope, ref, booktest.Today, "Void bill 99")
	require.NoError(t, err)
	require.Empty(t, again)

	product, err := b.Inventory.GetProduct(ctx, b.Scope, p.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "2", product.QuantityOnHand)
	booktest.RequireDecimal(t, "5", product.Cost, "reversed receipt leaves the average")
}

func TestListProducts(t *testing.T) {
	b := booktest.New(t)
	b.Product(t, "WID-2", "20", "5", "0")
	b.Product(t, "WID-1", "20", "5", "0")
	_, err := b.Inventory.CreateProduct(ctx, b.Scope, inventory.ProductInput{SKU: "SVC-1", Name: "Consulting"})
	require.NoError(t, err)

	all, err := b.Inventory.ListProducts(ctx, b.Scope, inventory.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "SVC-1", all[0].SKU)

	tracked, err := b.Inventory.ListProducts(ctx, b.Scope, inventory.ProductFilter{TrackedOnly: true})
	require.NoError(t, err)
	require.Len(t, tracked, 2)
	require.Equal(t, "WID-1", tracked[0].SKU)

	found, err := b.Inventory.ListProducts(ctx, b.Scope, inventory.ProductFilter{Search: "consult"})
	require.NoError(t, err)
	require.Len(t, found, 1)
}
