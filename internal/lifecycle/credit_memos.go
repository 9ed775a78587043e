package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// CreditMemoInput creates a credit memo draft.
type CreditMemoInput struct {
	Number     string
	CustomerID int64
	InvoiceID  *int64
	Date       time.Time
	Reason     string
	Lines      []documents.LineInput
}

// CreateCreditMemo stores a draft credit memo, optionally linked to an
// invoice of the same customer.
func (s *Service) CreateCreditMemo(ctx context.Context, scope shared.Scope, in CreditMemoInput) (documents.CreditMemo, error) {
	if in.CustomerID == 0 {
		return documents.CreditMemo{}, shared.Invalid("customer_id", "customer is required")
	}
	if err := documents.ValidateLines(in.Lines, decimal.Zero); err != nil {
		return documents.CreditMemo{}, err
	}
	date, _, err := s.dates(in.Date, time.Time{})
	if err != nil {
		return documents.CreditMemo{}, err
	}
	lines, totals := documents.CalculateTotals(in.Lines, decimal.Zero)
	now := s.now()
	memo := documents.CreditMemo{
		TenantID:      scope.TenantID,
		Number:        strings.TrimSpace(in.Number),
		CustomerID:    in.CustomerID,
		InvoiceID:     in.InvoiceID,
		MemoDate:      date,
		Status:        documents.CreditMemoStatusDraft,
		Reason:        strings.TrimSpace(in.Reason),
		Subtotal:      totals.Subtotal,
		TaxAmount:     totals.Tax,
		TotalAmount:   totals.Total,
		AppliedAmount: decimal.Zero,
		CreatedBy:     scope.ActorID,
		CreatedAt:     now,
		UpdatedAt:     now,
		Lines:         lines,
	}
	var created documents.CreditMemo
	err = s.run(ctx, scope, "credit_memo.create", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		if _, err := s.customer(ctx, scope, tx, memo.CustomerID); err != nil {
			return outcome{}, err
		}
		if memo.InvoiceID != nil {
			inv, err := tx.GetInvoiceForUpdate(ctx, scope.TenantID, *memo.InvoiceID)
			if errors.Is(err, shared.ErrNotFound) || (err == nil && inv.Kind != documents.KindInvoice) {
				return outcome{}, shared.Invalid("invoice_id", "invoice %d does not exist", *memo.InvoiceID)
			}
			if err != nil {
				return outcome{}, err
			}
			if inv.CustomerID != memo.CustomerID {
				return outcome{}, shared.InvalidWrap("invoice_id", documents.ErrPartyMismatch, "invoice %s belongs to another customer", inv.Number)
			}
		}
		_, err := s.assign(ctx, scope, tx, documents.SeriesCreditMemo, memo.Number, func(ctx context.Context, number string) error {
			memo.Number = number
			stored, err := tx.InsertCreditMemo(ctx, memo)
			if err != nil {
				return err
			}
			created = stored
			return nil
		})
		if err != nil {
			return outcome{}, err
		}
		return outcome{entity: "credit_memo", entityID: created.ID, meta: map[string]any{"number": created.Number}}, nil
	})
	if err != nil {
		return documents.CreditMemo{}, err
	}
	return created, nil
}

// IssueCreditMemo posts the memo and credits its linked invoice.
func (s *Service) IssueCreditMemo(ctx context.Context, scope shared.Scope, id int64) (documents.CreditMemo, error) {
	var issued documents.CreditMemo
	err := s.run(ctx, scope, "credit_memo.issue", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		memo, err := tx.GetCreditMemoForUpdate(ctx, scope.TenantID, id)
		if err != nil {
			return outcome{}, err
		}
		if err := documents.CheckCreditMemo(memo, documents.CreditMemoStatusIssued); err != nil {
			return outcome{}, err
		}
		memo, result, err := s.poster.PostCreditMemo(ctx, scope, memo)
		if err != nil {
			return outcome{}, err
		}
		memo.Status = documents.CreditMemoStatusIssued
		memo.UpdatedAt = s.now()
		if err := tx.UpdateCreditMemo(ctx, memo); err != nil {
			return outcome{}, err
		}
		touchCustomer(&result, memo.CustomerID)
		issued = memo
		return outcome{result: result, entity: "credit_memo", entityID: memo.ID, meta: map[string]any{
			"number":  memo.Number,
			"total":   memo.TotalAmount.StringFixed(2),
			"applied": memo.AppliedAmount.StringFixed(2),
		}}, nil
	})
	if err != nil {
		return documents.CreditMemo{}, err
	}
	return issued, nil
}

// VoidCreditMemo voids an issued memo with its entries and stock returns.
// The credit applied to the linked invoice is restored unless that invoice
// is PAID or VOID.
func (s *Service) VoidCreditMemo(ctx context.Context, scope shared.Scope, id int64, reason string) (documents.CreditMemo, error) {
	reason = strings.TrimSpace(reason)
	var voided documents.CreditMemo
	err := s.run(ctx, scope, "credit_memo.void", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		memo, err := tx.GetCreditMemoForUpdate(ctx, scope.TenantID, id)
		if err != nil {
			return outcome{}, err
		}
		if err := documents.CheckCreditMemo(memo, documents.CreditMemoStatusVoid); err != nil {
			return outcome{}, err
		}
		result, err := s.poster.ReverseDocument(ctx, scope, journals.SourceCreditMemo, memo.ID, s.today(), voidReason("credit memo", memo.Number, reason))
		if err != nil {
			return outcome{}, err
		}
		if memo.InvoiceID != nil && memo.AppliedAmount.IsPositive() {
			inv, err := tx.GetInvoiceForUpdate(ctx, scope.TenantID, *memo.InvoiceID)
			if err != nil {
				return outcome{}, err
			}
			if inv.Status != documents.InvoiceStatusPaid && inv.Status != documents.InvoiceStatusVoid {
				if err := tx.UpdateInvoice(ctx, s.restoreCredit(inv, memo.AppliedAmount)); err != nil {
					return outcome{}, err
				}
				memo.AppliedAmount = decimal.Zero
			}
		}
		memo.Status = documents.CreditMemoStatusVoid
		memo.UpdatedAt = s.now()
		if err := tx.UpdateCreditMemo(ctx, memo); err != nil {
			return outcome{}, err
		}
		touchCustomer(&result, memo.CustomerID)
		voided = memo
		return outcome{result: result, entity: "credit_memo", entityID: memo.ID, meta: map[string]any{"reason": reason}}, nil
	})
	if err != nil {
		return documents.CreditMemo{}, err
	}
	return voided, nil
}

// restoreCredit takes amount back off the invoice. The status is derived
// from the remaining payments and the due date rather than the transition
// table, since the change undoes an earlier settlement.
func (s *Service) restoreCredit(inv documents.Invoice, amount decimal.Decimal) documents.Invoice {
	amount = shared.MinDecimal(amount, inv.AmountCredited)
	inv.AmountCredited = inv.AmountCredited.Sub(amount)
	inv.ApplyPayment(amount.Neg())
	switch {
	case inv.AmountPaid.IsPositive():
		inv.Status = documents.InvoiceStatusPartial
	case inv.DueDate.Before(s.today()):
		inv.Status = documents.InvoiceStatusOverdue
	default:
		inv.Status = documents.InvoiceStatusSent
	}
	inv.UpdatedAt = s.now()
	return inv
}

// DeleteCreditMemo removes a draft memo.
func (s *Service) DeleteCreditMemo(ctx context.Context, scope shared.Scope, id int64) error {
	return s.run(ctx, scope, "credit_memo.delete", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		memo, err := tx.GetCreditMemoForUpdate(ctx, scope.TenantID, id)
		if err != nil {
			return outcome{}, err
		}
		if memo.Status != documents.CreditMemoStatusDraft {
			return outcome{}, shared.InvalidWrap("status", documents.ErrImmutable, "credit memo %s is %s and can only be voided", memo.Number, memo.Status)
		}
		if err := tx.DeleteCreditMemo(ctx, scope.TenantID, memo.ID); err != nil {
			return outcome{}, err
		}
		return outcome{entity: "credit_memo", entityID: memo.ID, meta: map[string]any{"number": memo.Number}}, nil
	})
}

// GetCreditMemo returns a credit memo with its lines.
func (s *Service) GetCreditMemo(ctx context.Context, scope shared.Scope, id int64) (documents.CreditMemo, error) {
	if err := scope.Validate(); err != nil {
		return documents.CreditMemo{}, err
	}
	return s.docs.GetCreditMemo(ctx, scope.TenantID, id)
}
