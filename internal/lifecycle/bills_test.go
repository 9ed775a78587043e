package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	"github.com/odyssey-erp/odyssey-books/internal/lifecycle"
	"github.com/odyssey-erp/odyssey-books/internal/posting"
	"github.com/odyssey-erp/odyssey-books/internal/testing/booktest"
)

func TestApproveBillWithStockAndServiceLines(t *testing.T) {
	b := booktest.New(t)
	v := b.Vendor(t, "Supplies Co")
	p := b.Product(t, "WID-1", "20", "5", "10")

	bill := openBill(t, b, v.ID, booktest.ProductLine(p.ID, "10", "8"), taxed("1", "20", "10"))
	require.Equal(t, "BILL-00001", bill.Number)
	require.Equal(t, documents.BillStatusOpen, bill.Status)
	require.NotNil(t, bill.ApprovedAt)
	require.NotNil(t, bill.JournalEntryID)
	booktest.RequireDecimal(t, "102", bill.TotalAmount)
	booktest.RequireDecimal(t, "102", bill.BalanceDue)

	booktest.RequireDecimal(t, "102", b.Balance(t, accounts.RoleAccountsPayable))
	booktest.RequireDecimal(t, "130", b.Balance(t, accounts.RoleInventory))
	booktest.RequireDecimal(t, "22", b.Balance(t, accounts.RoleDefaultExpense))

	product, err := b.Inventory.GetProduct(ctx, b.Scope, p.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "20", product.QuantityOnHand)
	booktest.RequireDecimal(t, "6.5", product.Cost)

	entries, err := b.Journals.ListEntries(ctx, b.Scope, journals.ListFilter{SourceType: journals.SourceBill, SourceID: bill.ID})
	require.NoError(t, err)
	require.Len(t, entries, 2, "one receipt journal and one remainder entry")

	balance, err := b.Balances.VendorBalance(ctx, b.Scope, v.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "102", balance)
	b.RequireBalanced(t)
}

func TestBillPaymentAndResale(t *testing.T) {
	b := booktest.New(t)
	v := b.Vendor(t, "Supplies Co")
	c := b.Customer(t, "Acme")
	p := b.Product(t, "WID-1", "20", "5", "10")
	bill := openBill(t, b, v.ID, booktest.ProductLine(p.ID, "10", "8"))

	paid, err := b.Lifecycle.RecordPayment(ctx, b.Scope, posting.PaymentInput{
		Direction:    documents.PaymentSent,
		PartyID:      v.ID,
		Amount:       D("80"),
		Applications: []posting.ApplicationInput{apply(bill.ID, "80")},
	})
	require.NoError(t, err)
	require.Equal(t, "VPAY-00001", paid.Number)
	require.Equal(t, documents.DocumentBill, paid.Applications[0].DocumentType)

	stored, err := b.Lifecycle.GetBill(ctx, b.Scope, bill.ID)
	require.NoError(t, err)
	require.Equal(t, documents.BillStatusPaid, stored.Status)
	booktest.RequireDecimal(t, "0", b.Balance(t, accounts.RoleAccountsPayable))
	booktest.RequireDecimal(t, "-80", b.Balance(t, accounts.RoleBank))

	// resale costs out at the new weighted average of 6.5
	sentInvoice(t, b, c.ID, booktest.ProductLine(p.ID, "4", "20"))
	booktest.RequireDecimal(t, "26", b.Balance(t, accounts.RoleCOGS))
	booktest.RequireDecimal(t, "104", b.Balance(t, accounts.RoleInventory))
	b.RequireBalanced(t)
}

func TestVendorPaymentToAnotherVendorsBill(t *testing.T) {
	b := booktest.New(t)
	v := b.Vendor(t, "Supplies Co")
	other := b.Vendor(t, "Other Co")
	bill := openBill(t, b, v.ID, booktest.Line("1", "50"))

	_, err := b.Lifecycle.RecordPayment(ctx, b.Scope, posting.PaymentInput{
		Direction:    documents.PaymentSent,
		PartyID:      other.ID,
		Amount:       D("50"),
		Applications: []posting.ApplicationInput{apply(bill.ID, "50")},
	})
	require.ErrorIs(t, err, documents.ErrPartyMismatch)
	b.RequireBalanced(t)
}

func TestUpdateBill(t *testing.T) {
	b := booktest.New(t)
	v := b.Vendor(t, "Supplies Co")
	bill, err := b.Lifecycle.CreateBill(ctx, b.Scope, lifecycle.BillInput{VendorID: v.ID, Lines: []documents.LineInput{booktest.Line("1", "10")}})
	require.NoError(t, err)

	updated, err := b.Lifecycle.UpdateBill(ctx, b.Scope, bill.ID, lifecycle.BillInput{
		VendorID: v.ID,
		Notes:    "corrected",
		Lines:    []documents.LineInput{booktest.Line("2", "10")},
	})
	require.NoError(t, err)
	booktest.RequireDecimal(t, "20", updated.TotalAmount)
	require.Equal(t, "corrected", updated.Notes)

	_, err = b.Lifecycle.ApproveBill(ctx, b.Scope, bill.ID)
	require.NoError(t, err)
	_, err = b.Lifecycle.UpdateBill(ctx, b.Scope, bill.ID, lifecycle.BillInput{VendorID: v.ID, Lines: []documents.LineInput{booktest.Line("1", "1")}})
	require.ErrorIs(t, err, documents.ErrImmutable)
	_, err = b.Lifecycle.ApproveBill(ctx, b.Scope, bill.ID)
	require.ErrorIs(t, err, documents.ErrInvalidTransition)
	booktest.RequireDecimal(t, "20", b.Balance(t, accounts.RoleAccountsPayable))
}

func TestVoidBillRestoresStock(t *testing.T) {
	b := booktest.New(t)
	v := b.Vendor(t, "Supplies Co")
	p := b.Product(t, "WID-1", "20", "5", "10")
	bill := openBill(t, b, v.ID, booktest.ProductLine(p.ID, "10", "8"), booktest.Line("1", "15"))

	voided, err := b.Lifecycle.VoidBill(ctx, b.Scope, bill.ID, "")
	require.NoError(t, err)
	require.Equal(t, documents.BillStatusVoid, voided.Status)
	booktest.RequireDecimal(t, "0", b.Balance(t, accounts.RoleAccountsPayable))
	booktest.RequireDecimal(t, "50", b.Balance(t, accounts.RoleInventory))
	booktest.RequireDecimal(t, "0", b.Balance(t, accounts.RoleDefaultExpense))

	product, err := b.Inventory.GetProduct(ctx, b.Scope, p.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "10", product.QuantityOnHand)
	booktest.RequireDecimal(t, "5", product.Cost)
	booktest.RequireDecimal(t, "50", product.QuantityOnHand.Mul(product.Cost))

	history, err := b.Inventory.GetMovementHistory(ctx, b.Scope, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, inventory.MovementAdjustment, history[0].Movement.Type)
	require.Nil(t, history[0].Movement.JournalEntryID, "counter movements do not post")
	booktest.RequireDecimal(t, "-10", history[0].Movement.Quantity)

	entries, err := b.Journals.ListEntries(ctx, b.Scope, journals.ListFilter{SourceType: journals.SourceBill, SourceID: bill.ID})
	require.NoError(t, err)
	for _, e := range entries {
		require.Equal(t, journals.JournalStatusVoid, e.Status)
		require.Equal(t, "Void bill "+bill.Number, e.VoidReason)
	}
	b.RequireBalanced(t)

	c := b.Customer(t, "Acme")
	sentInvoice(t, b, c.ID, booktest.ProductLine(p.ID, "10", "20"))
	booktest.RequireDecimal(t, "0", b.Balance(t, accounts.RoleInventory))
	booktest.RequireDecimal(t, "50", b.Balance(t, accounts.RoleCOGS))
}

func TestVoidBillWithPaymentsIsRejected(t *testing.T) {
	b := booktest.New(t)
	v := b.Vendor(t, "Supplies Co")
	bill := openBill(t, b, v.ID, booktest.Line("1", "50"))
	_, err := b.Lifecycle.RecordPayment(ctx, b.Scope, posting.PaymentInput{
		Direction:    documents.PaymentSent,
		PartyID:      v.ID,
		Amount:       D("20"),
		Applications: []posting.ApplicationInput{apply(bill.ID, "20")},
	})
	require.NoError(t, err)

	_, err = b.Lifecycle.VoidBill(ctx, b.Scope, bill.ID, "")
	require.ErrorIs(t, err, documents.ErrHasPayments)
	booktest.RequireDecimal(t, "30", b.Balance(t, accounts.RoleAccountsPayable))
	b.RequireBalanced(t)
}

func TestInactiveVendorIsRejected(t *testing.T) {
	b := booktest.New(t)
	v := b.Vendor(t, "Supplies Co")
	b.Store.SetPartyActive(0, v.ID, false)

	_, err := b.Lifecycle.CreateBill(ctx, b.Scope, lifecycle.BillInput{VendorID: v.ID, Lines: []documents.LineInput{booktest.Line("1", "10")}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "inactive")
}
