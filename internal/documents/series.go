package documents

// Series is a document numbering sequence.
type Series string

const (
	SeriesInvoice         Series = "INV"
	SeriesQuotation       Series = "QUO"
	SeriesBill            Series = "BILL"
	SeriesPurchaseOrder   Series = "PO"
	SeriesSalesOrder      Series = "SO"
	SeriesCreditMemo      Series = "CM"
	SeriesCustomerPayment Series = "PAY"
	SeriesVendorPayment   Series = "VPAY"
)

// Prefix is the number prefix of the series.
func (s Series) Prefix() string { return string(s) }

// Table is the table holding numbers of the series.
func (s Series) Table() string {
	switch s {
	case SeriesInvoice, SeriesQuotation:
		return "invoices"
	case SeriesBill:
		return "bills"
	case SeriesPurchaseOrder:
		return "purchase_orders"
	case SeriesSalesOrder:
		return "sales_orders"
	case SeriesCreditMemo:
		return "credit_memos"
	case SeriesCustomerPayment, SeriesVendorPayment:
		return "payments"
	}
	return ""
}

// Constraint is the unique constraint guarding the series numbers.
func (s Series) Constraint() string {
	return "uq_" + s.Table() + "_number"
}

// SeriesForKind returns the invoice or quotation series.
func SeriesForKind(kind InvoiceKind) Series {
	if kind == KindQuotation {
		return SeriesQuotation
	}
	return SeriesInvoice
}

// SeriesForDirection returns the payment series.
func SeriesForDirection(d PaymentDirection) Series {
	if d == PaymentSent {
		return SeriesVendorPayment
	}
	return SeriesCustomerPayment
}
