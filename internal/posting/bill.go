package posting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type stockLine struct {
	line     documents.Line
	product  inventory.Product
	unitCost decimal.Decimal
	value    decimal.Decimal
}

// PostBill books an approved bill. Tracked product lines enter stock as
// PURCHASE movements that post DR inventory / CR payable themselves; the
// remainder (other lines, every line's tax, cost rounding) goes to exactly
// one entry with DR per expense account and CR payable. The payable credited
// across all entries equals the bill total.
func (p *Poster) PostBill(ctx context.Context, scope shared.Scope, bill documents.Bill) (Result, error) {
	if err := scope.Validate(); err != nil {
		return Result{}, err
	}
	products, err := p.lineProducts(ctx, scope, bill.Lines)
	if err != nil {
		return Result{}, err
	}

	var stock []stockLine
	stockValue := decimal.Zero
	for _, l := range bill.Lines {
		product, ok := tracked(l, products)
		if !ok {
			continue
		}
		unitCost := shared.RoundCost(l.Subtotal.Div(l.Quantity))
		value := shared.RoundMoney(l.Quantity.Mul(unitCost))
		stock = append(stock, stockLine{line: l, product: product, unitCost: unitCost, value: value})
		stockValue = stockValue.Add(value)
	}
	remainder := bill.TotalAmount.Sub(stockValue)

	// Every line expenses its tax; untracked lines also expense their
	// subtotal. Cost rounding of tracked lines lands on the first one.
	expense := make([]decimal.Decimal, len(bill.Lines))
	rounding := remainder
	firstStock := -1
	for i, l := range bill.Lines {
		_, isStock := tracked(l, products)
		amount := l.Tax
		if !isStock {
			amount = amount.Add(l.Subtotal)
		} else if firstStock < 0 {
			firstStock = i
		}
		expense[i] = amount
		rounding = rounding.Sub(amount)
	}
	if !rounding.IsZero() && firstStock >= 0 {
		expense[firstStock] = expense[firstStock].Add(rounding)
	}

	needed := []accounts.Role{accounts.RoleAccountsPayable}
	if len(stock) > 0 {
		needed = append(needed, accounts.RoleInventory)
	}
	for i, l := range bill.Lines {
		if l.AccountID != nil {
			if err := p.checkAccount(ctx, scope, *l.AccountID, accounts.AccountTypeExpense); err != nil {
				return Result{}, err
			}
		}
		if !expense[i].IsZero() && expenseAccount(l, products) == 0 {
			needed = append(needed, accounts.RoleDefaultExpense)
		}
	}
	roles, err := p.roles.ResolveAll(ctx, scope, needed...)
	if err != nil {
		return Result{}, err
	}

	var result Result
	result.Affected.VendorIDs = []int64{bill.VendorID}
	memo := "Bill " + bill.Number

	for _, s := range stock {
		cost := s.unitCost
		movement, err := p.stock.RecordMovement(ctx, scope, inventory.MovementInput{
			ProductID:   s.product.ID,
			Quantity:    s.line.Quantity,
			UnitCost:    &cost,
			Type:        inventory.MovementPurchase,
			Reference:   inventory.Reference{Type: journals.SourceBill, ID: bill.ID},
			Date:        bill.BillDate,
			Memo:        fmt.Sprintf("%s line %d", memo, s.line.Position),
			PostJournal: true,
			VendorID:    bill.VendorID,
		})
		if err != nil {
			return Result{}, err
		}
		result.Movements = append(result.Movements, movement)
		result.Affected.AccountIDs = appendIDs(result.Affected.AccountIDs, roles.ID(accounts.RoleInventory), roles.ID(accounts.RoleAccountsPayable))
	}

	debits := newAmounts()
	for i, l := range bill.Lines {
		if expense[i].IsZero() {
			continue
		}
		id := expenseAccount(l, products)
		if id == 0 {
			id = roles.ID(accounts.RoleDefaultExpense)
		}
		debits.add(id, expense[i])
	}
	lines := debits.lines(memo)
	if ap, ok := signed(roles.ID(accounts.RoleAccountsPayable), remainder.Neg()); ok {
		lines = append(lines, ap.For(journals.EntityVendor, bill.VendorID))
	}
	if len(lines) >= 2 {
		entry, err := p.post(ctx, scope, journals.EntryInput{
			Date:       bill.BillDate,
			Memo:       memo,
			SourceType: journals.SourceBill,
			SourceID:   bill.ID,
			SourceRef:  journals.SourceRef(scope.TenantID, journals.SourceBill, bill.ID, "ap"),
			Post:       true,
			Lines:      lines,
		})
		if err != nil {
			return Result{}, err
		}
		result.addEntry(entry)
	}
	p.logger.InfoContext(ctx, "bill posted",
		slog.Int64("tenant_id", scope.TenantID),
		slog.String("number", bill.Number),
		slog.String("total", bill.TotalAmount.StringFixed(2)),
		slog.String("stock_value", stockValue.StringFixed(2)))
	return result, nil
}
