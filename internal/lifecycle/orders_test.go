package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/lifecycle"
	"github.com/odyssey-erp/odyssey-books/internal/testing/booktest"
)

func TestQuotationNeverPostsAndConvertsToDraftInvoice(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	q, err := b.Lifecycle.CreateQuotation(ctx, b.Scope, lifecycle.InvoiceInput{
		CustomerID: c.ID,
		IssueDate:  booktest.Today.AddDate(0, 0, -5),
		DueDate:    booktest.Today.AddDate(0, 0, 10),
		Notes:      "valid two weeks",
		Lines:      []documents.LineInput{taxed("3", "10", "10")},
	})
	require.NoError(t, err)
	require.Equal(t, "QUO-00001", q.Number)

	_, err = b.Lifecycle.ConvertQuotationToInvoice(ctx, b.Scope, q.ID)
	require.ErrorIs(t, err, documents.ErrInvalidTransition, "draft quotations cannot convert")

	q, err = b.Lifecycle.SendQuotation(ctx, b.Scope, q.ID)
	require.NoError(t, err)
	require.Equal(t, documents.InvoiceStatusSent, q.Status)
	entries, err := b.Journals.ListEntries(ctx, b.Scope, journals.ListFilter{})
	require.NoError(t, err)
	require.Empty(t, entries)

	inv, err := b.Lifecycle.ConvertQuotationToInvoice(ctx, b.Scope, q.ID)
	require.NoError(t, err)
	require.Equal(t, "INV-00001", inv.Number, "quotations and invoices number independently")
	require.Equal(t, documents.InvoiceStatusDraft, inv.Status)
	require.Equal(t, booktest.Today, inv.IssueDate)
	require.Equal(t, booktest.Today.AddDate(0, 0, 15), inv.DueDate, "payment terms carry over")
	require.Equal(t, q.ID, *inv.SourceQuotationID)
	require.Equal(t, "valid two weeks", inv.Notes)
	booktest.RequireDecimal(t, "33", inv.TotalAmount)
	require.Len(t, inv.Lines, 1)

	stored, err := b.Store.Documents().GetInvoice(ctx, b.Scope.TenantID, q.ID)
	require.NoError(t, err)
	require.Equal(t, documents.InvoiceStatusAccepted, stored.Status)
	require.Equal(t, inv.ID, *stored.ConvertedInvoiceID)

	_, err = b.Lifecycle.ConvertQuotationToInvoice(ctx, b.Scope, q.ID)
	require.ErrorIs(t, err, documents.ErrInvalidTransition)
	booktest.RequireDecimal(t, "0", b.Balance(t, accounts.RoleAccountsReceivable))
	b.RequireBalanced(t)
}

func TestDeclinedQuotationIsFinal(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	q, err := b.Lifecycle.CreateQuotation(ctx, b.Scope, invoiceInput(c.ID, booktest.Line("1", "10")))
	require.NoError(t, err)
	_, err = b.Lifecycle.SendQuotation(ctx, b.Scope, q.ID)
	require.NoError(t, err)

	declined, err := b.Lifecycle.DeclineQuotation(ctx, b.Scope, q.ID)
	require.NoError(t, err)
	require.Equal(t, documents.InvoiceStatusDeclined, declined.Status)

	_, err = b.Lifecycle.ConvertQuotationToInvoice(ctx, b.Scope, q.ID)
	require.ErrorIs(t, err, documents.ErrInvalidTransition)
	_, err = b.Lifecycle.UpdateQuotation(ctx, b.Scope, q.ID, invoiceInput(c.ID, booktest.Line("1", "20")))
	require.ErrorIs(t, err, documents.ErrImmutable)
}

func TestConvertPurchaseOrderToApprovedBill(t *testing.T) {
	b := booktest.New(t)
	v := b.Vendor(t, "Supplies Co")
	p := b.Product(t, "WID-1", "20", "5", "0")

	po, err := b.Lifecycle.CreatePurchaseOrder(ctx, b.Scope, lifecycle.OrderInput{
		PartyID: v.ID,
		Notes:   "rush",
		Lines:   []documents.LineInput{booktest.ProductLine(p.ID, "5", "4")},
	})
	require.NoError(t, err)
	require.Equal(t, "PO-00001", po.Number)
	booktest.RequireDecimal(t, "20", po.TotalAmount)

	_, err = b.Lifecycle.ConvertPOToBill(ctx, b.Scope, po.ID)
	require.ErrorIs(t, err, documents.ErrInvalidTransition, "only sent orders convert")

	_, err = b.Lifecycle.SendPurchaseOrder(ctx, b.Scope, po.ID)
	require.NoError(t, err)
	bill, err := b.Lifecycle.ConvertPOToBill(ctx, b.Scope, po.ID)
	require.NoError(t, err)
	require.Equal(t, documents.BillStatusOpen, bill.Status)
	require.Equal(t, po.ID, *bill.PurchaseOrderID)
	require.Equal(t, booktest.Today.AddDate(0, 0, lifecycle.DefaultPaymentTermsDays), bill.DueDate)
	booktest.RequireDecimal(t, "20", bill.BalanceDue)

	stored, err := b.Lifecycle.GetPurchaseOrder(ctx, b.Scope, po.ID)
	require.NoError(t, err)
	require.Equal(t, documents.OrderStatusConverted, stored.Status)
	require.Equal(t, bill.ID, *stored.ConvertedBillID)

	booktest.RequireDecimal(t, "20", b.Balance(t, accounts.RoleAccountsPayable))
	booktest.RequireDecimal(t, "20", b.Balance(t, accounts.RoleInventory))
	product, err := b.Inventory.GetProduct(ctx, b.Scope, p.ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "5", product.QuantityOnHand)
	booktest.RequireDecimal(t, "4", product.Cost)

	_, err = b.Lifecycle.CancelPurchaseOrder(ctx, b.Scope, po.ID)
	require.ErrorIs(t, err, documents.ErrInvalidTransition)
	b.RequireBalanced(t)
}

func TestCancelledPurchaseOrderCannotConvert(t *testing.T) {
	b := booktest.New(t)
	v := b.Vendor(t, "Supplies Co")
	po, err := b.Lifecycle.CreatePurchaseOrder(ctx, b.Scope, lifecycle.OrderInput{
		PartyID: v.ID,
		Lines:   []documents.LineInput{booktest.Line("1", "10")},
	})
	require.NoError(t, err)
	cancelled, err := b.Lifecycle.CancelPurchaseOrder(ctx, b.Scope, po.ID)
	require.NoError(t, err)
	require.Equal(t, documents.OrderStatusCancelled, cancelled.Status)

	_, err = b.Lifecycle.ConvertPOToBill(ctx, b.Scope, po.ID)
	require.ErrorIs(t, err, documents.ErrInvalidTransition)
}

func TestConvertSalesOrderToSentInvoice(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	p := b.Product(t, "WID-1", "20", "5", "10")
	expected := booktest.Today.AddDate(0, 0, 3)

	so, err := b.Lifecycle.CreateSalesOrder(ctx, b.Scope, lifecycle.OrderInput{
		PartyID:      c.ID,
		ExpectedDate: &expected,
		Lines:        []documents.LineInput{booktest.ProductLine(p.ID, "2", "20")},
	})
	require.NoError(t, err)
	require.Equal(t, "SO-00001", so.Number)
	require.Equal(t, expected, *so.ExpectedDate)

	_, err = b.Lifecycle.SendSalesOrder(ctx, b.Scope, so.ID)
	require.NoError(t, err)
	inv, err := b.Lifecycle.ConvertSOToInvoice(ctx, b.Scope, so.ID)
	require.NoError(t, err)
	require.Equal(t, documents.InvoiceStatusSent, inv.Status)
	require.Equal(t, so.ID, *inv.SalesOrderID)
	booktest.RequireDecimal(t, "40", inv.BalanceDue)

	stored, err := b.Lifecycle.GetSalesOrder(ctx, b.Scope, so.ID)
	require.NoError(t, err)
	require.Equal(t, documents.OrderStatusConverted, stored.Status)
	require.Equal(t, inv.ID, *stored.ConvertedInvoiceID)

	booktest.RequireDecimal(t, "40", b.Balance(t, accounts.RoleAccountsReceivable))
	booktest.RequireDecimal(t, "10", b.Balance(t, accounts.RoleCOGS))
	b.RequireBalanced(t)
}

func TestSalesOrderConversionRollsBackOnStockShortage(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	p := b.Product(t, "WID-1", "20", "5", "1")
	so, err := b.Lifecycle.CreateSalesOrder(ctx, b.Scope, lifecycle.OrderInput{
		PartyID: c.ID,
		Lines:   []documents.LineInput{booktest.ProductLine(p.ID, "2", "20")},
	})
	require.NoError(t, err)
	_, err = b.Lifecycle.SendSalesOrder(ctx, b.Scope, so.ID)
	require.NoError(t, err)

	_, err = b.Lifecycle.ConvertSOToInvoice(ctx, b.Scope, so.ID)
	require.Error(t, err)

	stored, err := b.Lifecycle.GetSalesOrder(ctx, b.Scope, so.ID)
	require.NoError(t, err)
	require.Equal(t, documents.OrderStatusSent, stored.Status)
	invoices, err := b.Store.Documents().ListInvoices(ctx, b.Scope.TenantID, documents.InvoiceFilter{Kind: documents.KindInvoice})
	require.NoError(t, err)
	require.Empty(t, invoices, "the invoice insert is rolled back with the order")
	b.RequireBalanced(t)
}

func TestOrderExpectedDateBeforeOrderDate(t *testing.T) {
	b := booktest.New(t)
	c := b.Customer(t, "Acme")
	early := booktest.Today.AddDate(0, 0, -1)
	_, err := b.Lifecycle.CreateSalesOrder(ctx, b.Scope, lifecycle.OrderInput{
		PartyID:      c.ID,
		ExpectedDate: &early,
		Lines:        []documents.LineInput{booktest.Line("1", "10")},
	})
	require.Error(t, err)
}
