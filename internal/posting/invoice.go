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

// PostInvoice books a sent invoice: DR receivable for the total, CR revenue
// per account, CR sales tax, DR sales discounts. Tracked product lines
// leave stock through SALE movements and one cost of goods entry.
// Quotations never post.
func (p *Poster) PostInvoice(ctx context.Context, scope shared.Scope, inv documents.Invoice) (Result, error) {
	if err := scope.Validate(); err != nil {
		return Result{}, err
	}
	if inv.Kind == documents.KindQuotation {
		return Result{}, nil
	}
	products, err := p.lineProducts(ctx, scope, inv.Lines)
	if err != nil {
		return Result{}, err
	}

	needed := []accounts.Role{accounts.RoleAccountsReceivable}
	hasStock := false
	for _, l := range inv.Lines {
		if l.AccountID != nil {
			if err := p.checkAccount(ctx, scope, *l.AccountID, accounts.AccountTypeRevenue); err != nil {
				return Result{}, err
			}
		} else if revenueAccount(l, products) == 0 {
			needed = append(needed, accounts.RoleDefaultRevenue)
		}
		if _, ok := tracked(l, products); ok {
			hasStock = true
		}
	}
	if inv.TaxAmount.IsPositive() {
		needed = append(needed, accounts.RoleSalesTaxPayable)
	}
	if inv.DiscountAmount.IsPositive() {
		needed = append(needed, accounts.RoleSalesDiscounts)
	}
	if hasStock {
		needed = append(needed, accounts.RoleCOGS, accounts.RoleInventory)
	}
	roles, err := p.roles.ResolveAll(ctx, scope, needed...)
	if err != nil {
		return Result{}, err
	}

	var result Result
	result.Affected.CustomerIDs = []int64{inv.CustomerID}

	revenue := newAmounts()
	for _, l := range inv.Lines {
		id := revenueAccount(l, products)
		if id == 0 {
			id = roles.ID(accounts.RoleDefaultRevenue)
		}
		revenue.add(id, l.Subtotal.Neg())
	}
	memo := "Invoice " + inv.Number
	var lines []journals.PostingLineInput
	if inv.TotalAmount.IsPositive() {
		lines = append(lines, journals.Debit(roles.ID(accounts.RoleAccountsReceivable), inv.TotalAmount).
			For(journals.EntityCustomer, inv.CustomerID))
	}
	if inv.DiscountAmount.IsPositive() {
		lines = append(lines, journals.Debit(roles.ID(accounts.RoleSalesDiscounts), inv.DiscountAmount))
	}
	lines = append(lines, revenue.lines(memo)...)
	if inv.TaxAmount.IsPositive() {
		lines = append(lines, journals.Credit(roles.ID(accounts.RoleSalesTaxPayable), inv.TaxAmount))
	}
	if len(lines) >= 2 {
		entry, err := p.post(ctx, scope, journals.EntryInput{
			Date:       inv.IssueDate,
			Memo:       memo,
			SourceType: journals.SourceInvoice,
			SourceID:   inv.ID,
			SourceRef:  journals.SourceRef(scope.TenantID, journals.SourceInvoice, inv.ID, "ar"),
			Post:       true,
			Lines:      lines,
		})
		if err != nil {
			return Result{}, err
		}
		result.addEntry(entry)
	}

	cogs := decimal.Zero
	for _, l := range inv.Lines {
		product, ok := tracked(l, products)
		if !ok {
			continue
		}
		movement, err := p.stock.RecordMovement(ctx, scope, inventory.MovementInput{
			ProductID: product.ID,
			Quantity:  l.Quantity.Neg(),
			Type:      inventory.MovementSale,
			Reference: inventory.Reference{Type: journals.SourceInvoice, ID: inv.ID},
			Date:      inv.IssueDate,
			Memo:      fmt.Sprintf("%s line %d", memo, l.Position),
		})
		if err != nil {
			return Result{}, err
		}
		result.Movements = append(result.Movements, movement)
		cogs = cogs.Add(movement.TotalValue)
	}
	if cogs.IsPositive() {
		entry, err := p.post(ctx, scope, journals.EntryInput{
			Date:       inv.IssueDate,
			Memo:       "Cost of goods sold " + inv.Number,
			SourceType: journals.SourceInvoice,
			SourceID:   inv.ID,
			SourceRef:  journals.SourceRef(scope.TenantID, journals.SourceInvoice, inv.ID, "cogs"),
			Post:       true,
			Lines: []journals.PostingLineInput{
				journals.Debit(roles.ID(accounts.RoleCOGS), cogs),
				journals.Credit(roles.ID(accounts.RoleInventory), cogs),
			},
		})
		if err != nil {
			return Result{}, err
		}
		result.addEntry(entry)
	}
	p.logger.InfoContext(ctx, "invoice posted",
		slog.Int64("tenant_id", scope.TenantID),
		slog.String("number", inv.Number),
		slog.String("total", inv.TotalAmount.StringFixed(2)),
		slog.String("cogs", cogs.StringFixed(2)))
	return result, nil
}

// revenueAccount picks the line account, then the product revenue account.
// Zero means the default revenue role.
func revenueAccount(l documents.Line, products map[int64]inventory.Product) int64 {
	if l.AccountID != nil {
		return *l.AccountID
	}
	if l.ProductID != nil {
		if product, ok := products[*l.ProductID]; ok && product.RevenueAccountID != nil {
			return *product.RevenueAccountID
		}
	}
	return 0
}

// expenseAccount picks the line account, then the product expense account.
// Zero means the default expense role.
func expenseAccount(l documents.Line, products map[int64]inventory.Product) int64 {
	if l.AccountID != nil {
		return *l.AccountID
	}
	if l.ProductID != nil {
		if product, ok := products[*l.ProductID]; ok && product.ExpenseAccountID != nil {
			return *product.ExpenseAccountID
		}
	}
	return 0
}
