package lifecycle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/lifecycle"
	"github.com/odyssey-erp/odyssey-books/internal/posting"
	"github.com/odyssey-erp/odyssey-books/internal/testing/booktest"
)

var ctx = context.Background()

var D = booktest.D

func taxed(qty, price, pct string) documents.LineInput {
	l := booktest.Line(qty, price)
	l.TaxPct = D(pct)
	return l
}

// sentInvoice creates and sends an invoice to customerID.
func sentInvoice(t *testing.T, b *booktest.Books, customerID int64, lines ...documents.LineInput) documents.Invoice {
	t.Helper()
	inv, err := b.Lifecycle.CreateInvoice(ctx, b.Scope, lifecycle.InvoiceInput{CustomerID: customerID, Lines: lines})
	require.NoError(t, err)
	inv, err = b.Lifecycle.SendInvoice(ctx, b.Scope, inv.ID)
	require.NoError(t, err)
	return inv
}

// openBill creates and approves a bill from vendorID.
func openBill(t *testing.T, b *booktest.Books, vendorID int64, lines ...documents.LineInput) documents.Bill {
	t.Helper()
	bill, err := b.Lifecycle.CreateBill(ctx, b.Scope, lifecycle.BillInput{VendorID: vendorID, Lines: lines})
	require.NoError(t, err)
	bill, err = b.Lifecycle.ApproveBill(ctx, b.Scope, bill.ID)
	require.NoError(t, err)
	return bill
}

func receive(t *testing.T, b *booktest.Books, customerID int64, amount string, apps ...posting.ApplicationInput) documents.Payment {
	t.Helper()
	p, err := b.Lifecycle.RecordPayment(ctx, b.Scope, posting.PaymentInput{
		Direction:    documents.PaymentReceived,
		PartyID:      customerID,
		Amount:       D(amount),
		Method:       "bank_transfer",
		Applications: apps,
	})
	require.NoError(t, err)
	return p
}

func apply(id int64, amount string) posting.ApplicationInput {
	return posting.ApplicationInput{DocumentID: id, Amount: D(amount)}
}

func invoiceInput(customerID int64, lines ...documents.LineInput) lifecycle.InvoiceInput {
	return lifecycle.InvoiceInput{CustomerID: customerID, Lines: lines}
}
