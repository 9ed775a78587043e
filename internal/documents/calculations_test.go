package documents

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculateLine(t *testing.T) {
	line := CalculateLine(LineInput{
		Description: "  Widgets ",
		Quantity:    dec("3"),
		UnitPrice:   dec("19.99"),
		DiscountPct: dec("10"),
		TaxPct:      dec("7.5"),
	})
	require.Equal(t, "Widgets", line.Description)
	require.True(t, line.Subtotal.Equal(dec("53.97")), line.Subtotal.String())
	require.True(t, line.Tax.Equal(dec("4.05")), line.Tax.String())
	require.True(t, line.Total.Equal(dec("58.02")), line.Total.String())
}

func TestCalculateTotals(t *testing.T) {
	lines, totals := CalculateTotals([]LineInput{
		{Description: "a", Quantity: dec("2"), UnitPrice: dec("50"), TaxPct: dec("10")},
		{Description: "b", Quantity: dec("1"), UnitPrice: dec("30")},
	}, dec("5.004"))
	require.Len(t, lines, 2)
	require.Equal(t, 1, lines[0].Position)
	require.Equal(t, 2, lines[1].Position)
	require.True(t, totals.Subtotal.Equal(dec("130")))
	require.True(t, totals.Tax.Equal(dec("10")))
	require.True(t, totals.Discount.Equal(dec("5")))
	require.True(t, totals.Total.Equal(dec("135")))
}

func TestValidateLines(t *testing.T) {
	ok := LineInput{Description: "Service", Quantity: dec("1"), UnitPrice: dec("10")}
	cases := []struct {
		name     string
		lines    []LineInput
		discount string
	}{
		{"no lines", nil, "0"},
		{"zero quantity", []LineInput{{Description: "x", UnitPrice: dec("1")}}, "0"},
		{"negative price", []LineInput{{Description: "x", Quantity: dec("1"), UnitPrice: dec("-1")}}, "0"},
		{"discount above 100", []LineInput{{Description: "x", Quantity: dec("1"), DiscountPct: dec("101")}}, "0"},
		{"negative tax", []LineInput{{Description: "x", Quantity: dec("1"), TaxPct: dec("-1")}}, "0"},
		{"blank line", []LineInput{{Description: "  ", Quantity: dec("1")}}, "0"},
		{"negative discount", []LineInput{ok}, "-1"},
		{"discount exceeds total", []LineInput{ok}, "10.01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, ValidateLines(tc.lines, dec(tc.discount)), shared.ErrValidation)
		})
	}
	require.NoError(t, ValidateLines([]LineInput{ok}, dec("10")))
}

func TestTransitions(t *testing.T) {
	require.True(t, CanTransitionInvoice(KindInvoice, InvoiceStatusDraft, InvoiceStatusSent))
	require.True(t, CanTransitionInvoice(KindInvoice, InvoiceStatusOverdue, InvoiceStatusPartial))
	require.False(t, CanTransitionInvoice(KindInvoice, InvoiceStatusPaid, InvoiceStatusVoid))
	require.False(t, CanTransitionInvoice(KindInvoice, InvoiceStatusSent, InvoiceStatusAccepted))
	require.True(t, CanTransitionInvoice(KindQuotation, InvoiceStatusSent, InvoiceStatusAccepted))
	require.False(t, CanTransitionInvoice(KindQuotation, InvoiceStatusDraft, InvoiceStatusVoid))

	require.True(t, CanTransitionBill(BillStatusDraft, BillStatusOpen))
	require.False(t, CanTransitionBill(BillStatusPaid, BillStatusOpen))
	require.True(t, CanTransitionOrder(OrderStatusSent, OrderStatusConverted))
	require.False(t, CanTransitionOrder(OrderStatusConverted, OrderStatusCancelled))
	require.True(t, CanTransitionCreditMemo(CreditMemoStatusIssued, CreditMemoStatusVoid))
	require.False(t, CanTransitionCreditMemo(CreditMemoStatusDraft, CreditMemoStatusVoid))

	err := CheckInvoice(Invoice{Kind: KindQuotation, Number: "QUO-00001", Status: InvoiceStatusDeclined}, InvoiceStatusSent)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "quotation QUO-00001")
}

func TestSettledStatus(t *testing.T) {
	require.Equal(t, InvoiceStatusPaid, SettledInvoiceStatus(Invoice{BalanceDue: decimal.Zero}))
	require.Equal(t, InvoiceStatusPartial, SettledInvoiceStatus(Invoice{BalanceDue: dec("0.01")}))
	require.Equal(t, BillStatusPaid, SettledBillStatus(Bill{}))
}

func TestSeries(t *testing.T) {
	require.Equal(t, "INV", SeriesForKind(KindInvoice).Prefix())
	require.Equal(t, SeriesQuotation, SeriesForKind(KindQuotation))
	require.Equal(t, SeriesInvoice.Table(), SeriesQuotation.Table(), "invoices and quotations share a table")
	require.Equal(t, SeriesVendorPayment, SeriesForDirection(PaymentSent))
	require.Equal(t, SeriesCustomerPayment, SeriesForDirection(PaymentReceived))
	require.Equal(t, "uq_"+SeriesBill.Table()+"_number", SeriesBill.Constraint())
}
