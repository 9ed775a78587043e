package documents

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// CalculateLine prices one line: subtotal is quantity × unit price less the
// line discount, tax applies to the discounted subtotal. Each amount is
// rounded to cents.
func CalculateLine(in LineInput) Line {
	gross := in.Quantity.Mul(in.UnitPrice)
	net := shared.RoundMoney(gross.Mul(hundred.Sub(in.DiscountPct)).Div(hundred))
	tax := shared.Percent(net, in.TaxPct)
	return Line{
		ProductID:   in.ProductID,
		AccountID:   in.AccountID,
		Description: strings.TrimSpace(in.Description),
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		DiscountPct: in.DiscountPct,
		TaxPct:      in.TaxPct,
		Subtotal:    net,
		Tax:         tax,
		Total:       net.Add(tax),
	}
}

// Totals aggregates document amounts.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// CalculateTotals prices every line and applies a document-level discount.
func CalculateTotals(inputs []LineInput, discount decimal.Decimal) ([]Line, Totals) {
	lines := make([]Line, 0, len(inputs))
	totals := Totals{Discount: shared.RoundMoney(discount)}
	for i, in := range inputs {
		line := CalculateLine(in)
		line.Position = i + 1
		lines = append(lines, line)
		totals.Subtotal = totals.Subtotal.Add(line.Subtotal)
		totals.Tax = totals.Tax.Add(line.Tax)
	}
	totals.Total = totals.Subtotal.Add(totals.Tax).Sub(totals.Discount)
	return lines, totals
}

// ValidateLines checks line inputs and the document discount.
func ValidateLines(inputs []LineInput, discount decimal.Decimal) error {
	if len(inputs) == 0 {
		return shared.Invalid("lines", "at least one line is required")
	}
	for i, in := range inputs {
		n := i + 1
		switch {
		case !in.Quantity.IsPositive():
			return shared.Invalid("lines", "line %d quantity must be positive", n)
		case in.UnitPrice.IsNegative():
			return shared.Invalid("lines", "line %d unit price cannot be negative", n)
		case in.DiscountPct.IsNegative() || in.DiscountPct.GreaterThan(hundred):
			return shared.Invalid("lines", "line %d discount must be between 0 and 100", n)
		case in.TaxPct.IsNegative():
			return shared.Invalid("lines", "line %d tax cannot be negative", n)
		case in.ProductID == nil && in.AccountID == nil && strings.TrimSpace(in.Description) == "":
			return shared.Invalid("lines", "line %d needs a product, account or description", n)
		}
	}
	if discount.IsNegative() {
		return shared.Invalid("discount_amount", "discount cannot be negative")
	}
	_, totals := CalculateTotals(inputs, decimal.Zero)
	if shared.RoundMoney(discount).GreaterThan(totals.Subtotal.Add(totals.Tax)) {
		return shared.Invalid("discount_amount", "discount exceeds document amount")
	}
	return nil
}
