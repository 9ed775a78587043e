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

// PostCreditMemo books an issued credit memo: DR sales returns for the
// subtotal, DR sales tax, CR receivable for the total. Tracked product lines
// come back into stock at current cost (DR inventory / CR cost of goods).
// A linked open invoice is credited up to its balance due. The returned memo
// carries the journal link and the applied amount; the caller stores it.
func (p *Poster) PostCreditMemo(ctx context.Context, scope shared.Scope, memo documents.CreditMemo) (documents.CreditMemo, Result, error) {
	if err := scope.Validate(); err != nil {
		return documents.CreditMemo{}, Result{}, err
	}
	products, err := p.lineProducts(ctx, scope, memo.Lines)
	if err != nil {
		return documents.CreditMemo{}, Result{}, err
	}
	needed := []accounts.Role{accounts.RoleSalesReturns, accounts.RoleAccountsReceivable}
	if memo.TaxAmount.IsPositive() {
		needed = append(needed, accounts.RoleSalesTaxPayable)
	}
	for _, l := range memo.Lines {
		if _, ok := tracked(l, products); ok {
			needed = append(needed, accounts.RoleInventory, accounts.RoleCOGS)
			break
		}
	}
	roles, err := p.roles.ResolveAll(ctx, scope, needed...)
	if err != nil {
		return documents.CreditMemo{}, Result{}, err
	}

	var result Result
	result.Affected.CustomerIDs = []int64{memo.CustomerID}
	label := "Credit memo " + memo.Number
	err = p.docs.WithTx(ctx, func(ctx context.Context, tx documents.TxRepository) error {
		var lines []journals.PostingLineInput
		if memo.Subtotal.IsPositive() {
			lines = append(lines, journals.Debit(roles.ID(accounts.RoleSalesReturns), memo.Subtotal))
		}
		if memo.TaxAmount.IsPositive() {
			lines = append(lines, journals.Debit(roles.ID(accounts.RoleSalesTaxPayable), memo.TaxAmount))
		}
		if memo.TotalAmount.IsPositive() {
			lines = append(lines, journals.Credit(roles.ID(accounts.RoleAccountsReceivable), memo.TotalAmount).
				For(journals.EntityCustomer, memo.CustomerID))
		}
		if len(lines) >= 2 {
			entry, err := p.post(ctx, scope, journals.EntryInput{
				Date:       memo.MemoDate,
				Memo:       label,
				SourceType: journals.SourceCreditMemo,
				SourceID:   memo.ID,
				SourceRef:  journals.SourceRef(scope.TenantID, journals.SourceCreditMemo, memo.ID, "ar"),
				Post:       true,
				Lines:      lines,
			})
			if err != nil {
				return err
			}
			memo.JournalEntryID = &entry.ID
			result.addEntry(entry)
		}

		for _, l := range memo.Lines {
			product, ok := tracked(l, products)
			if !ok {
				continue
			}
			movement, err := p.stock.RecordMovement(ctx, scope, inventory.MovementInput{
				ProductID:   product.ID,
				Quantity:    l.Quantity,
				Type:        inventory.MovementSaleReturn,
				Reference:   inventory.Reference{Type: journals.SourceCreditMemo, ID: memo.ID},
				Date:        memo.MemoDate,
				Memo:        fmt.Sprintf("%s line %d", label, l.Position),
				PostJournal: true,
			})
			if err != nil {
				return err
			}
			result.Movements = append(result.Movements, movement)
			result.Affected.AccountIDs = appendIDs(result.Affected.AccountIDs, roles.ID(accounts.RoleInventory), roles.ID(accounts.RoleCOGS))
		}

		memo.AppliedAmount = decimal.Zero
		if memo.InvoiceID == nil {
			return nil
		}
		inv, err := tx.GetInvoiceForUpdate(ctx, scope.TenantID, *memo.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Kind != documents.KindInvoice || !inv.Status.IsOpen() {
			return nil
		}
		applied := shared.MinDecimal(memo.TotalAmount, inv.BalanceDue)
		if !applied.IsPositive() {
			return nil
		}
		inv.ApplyPayment(applied)
		inv.AmountCredited = inv.AmountCredited.Add(applied)
		if next := documents.SettledInvoiceStatus(inv); next != inv.Status {
			if err := documents.CheckInvoice(inv, next); err != nil {
				return err
			}
			inv.Status = next
		}
		inv.UpdatedAt = p.now()
		memo.AppliedAmount = applied
		return tx.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return documents.CreditMemo{}, Result{}, err
	}
	p.logger.InfoContext(ctx, "credit memo posted",
		slog.Int64("tenant_id", scope.TenantID),
		slog.String("number", memo.Number),
		slog.String("total", memo.TotalAmount.StringFixed(2)),
		slog.String("applied", memo.AppliedAmount.StringFixed(2)))
	return memo, result, nil
}
