package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/posting"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// InvoiceInput creates or replaces an invoice or quotation draft.
type InvoiceInput struct {
	Number     string
	CustomerID int64
	IssueDate  time.Time
	DueDate    time.Time
	Discount   decimal.Decimal
	Notes      string
	Lines      []documents.LineInput
}

func (s *Service) draftInvoice(scope shared.Scope, kind documents.InvoiceKind, in InvoiceInput) (documents.Invoice, error) {
	if in.CustomerID == 0 {
		return documents.Invoice{}, shared.Invalid("customer_id", "customer is required")
	}
	if err := documents.ValidateLines(in.Lines, in.Discount); err != nil {
		return documents.Invoice{}, err
	}
	issue, due, err := s.dates(in.IssueDate, in.DueDate)
	if err != nil {
		return documents.Invoice{}, err
	}
	lines, totals := documents.CalculateTotals(in.Lines, in.Discount)
	now := s.now()
	return documents.Invoice{
		TenantID:       scope.TenantID,
		Kind:           kind,
		Number:         strings.TrimSpace(in.Number),
		CustomerID:     in.CustomerID,
		IssueDate:      issue,
		DueDate:        due,
		Status:         documents.InvoiceStatusDraft,
		Subtotal:       totals.Subtotal,
		TaxAmount:      totals.Tax,
		DiscountAmount: totals.Discount,
		TotalAmount:    totals.Total,
		AmountPaid:     decimal.Zero,
		AmountCredited: decimal.Zero,
		BalanceDue:     decimal.Zero,
		Notes:          strings.TrimSpace(in.Notes),
		CreatedBy:      scope.ActorID,
		CreatedAt:      now,
		UpdatedAt:      now,
		Lines:          lines,
	}, nil
}

// insertInvoice numbers and stores a draft.
func (s *Service) insertInvoice(ctx context.Context, scope shared.Scope, tx documents.TxRepository, inv documents.Invoice) (documents.Invoice, error) {
	if _, err := s.customer(ctx, scope, tx, inv.CustomerID); err != nil {
		return documents.Invoice{}, err
	}
	var stored documents.Invoice
	_, err := s.assign(ctx, scope, tx, documents.SeriesForKind(inv.Kind), inv.Number, func(ctx context.Context, number string) error {
		inv.Number = number
		created, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return err
		}
		stored = created
		return nil
	})
	return stored, err
}

// CreateInvoice stores a draft invoice.
func (s *Service) CreateInvoice(ctx context.Context, scope shared.Scope, in InvoiceInput) (documents.Invoice, error) {
	return s.createInvoice(ctx, scope, documents.KindInvoice, in)
}

func (s *Service) createInvoice(ctx context.Context, scope shared.Scope, kind documents.InvoiceKind, in InvoiceInput) (documents.Invoice, error) {
	draft, err := s.draftInvoice(scope, kind, in)
	if err != nil {
		return documents.Invoice{}, err
	}
	var created documents.Invoice
	err = s.run(ctx, scope, string(machineOf(kind))+".create", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		inv, err := s.insertInvoice(ctx, scope, tx, draft)
		if err != nil {
			return outcome{}, err
		}
		created = inv
		return outcome{entity: string(machineOf(kind)), entityID: inv.ID, meta: map[string]any{"number": inv.Number}}, nil
	})
	if err != nil {
		return documents.Invoice{}, err
	}
	return created, nil
}

func machineOf(kind documents.InvoiceKind) Machine {
	if kind == documents.KindQuotation {
		return MachineQuotation
	}
	return MachineInvoice
}

// lockInvoice loads an invoice of kind for update.
func lockInvoice(ctx context.Context, scope shared.Scope, tx documents.TxRepository, id int64, kind documents.InvoiceKind) (documents.Invoice, error) {
	inv, err := tx.GetInvoiceForUpdate(ctx, scope.TenantID, id)
	if err != nil {
		return documents.Invoice{}, err
	}
	if inv.Kind != kind {
		return documents.Invoice{}, shared.NotFound(string(machineOf(kind)), id)
	}
	return inv, nil
}

// UpdateInvoice replaces a draft. Sent invoices without payments accept
// metadata changes only: due date and notes.
func (s *Service) UpdateInvoice(ctx context.Context, scope shared.Scope, id int64, in InvoiceInput) (documents.Invoice, error) {
	return s.updateInvoice(ctx, scope, documents.KindInvoice, id, in)
}

func (s *Service) updateInvoice(ctx context.Context, scope shared.Scope, kind documents.InvoiceKind, id int64, in InvoiceInput) (documents.Invoice, error) {
	var updated documents.Invoice
	err := s.run(ctx, scope, string(machineOf(kind))+".update", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		inv, err := lockInvoice(ctx, scope, tx, id, kind)
		if err != nil {
			return outcome{}, err
		}
		switch {
		case inv.Status == documents.InvoiceStatusDraft:
			draft, err := s.draftInvoice(scope, kind, in)
			if err != nil {
				return outcome{}, err
			}
			if _, err := s.customer(ctx, scope, tx, draft.CustomerID); err != nil {
				return outcome{}, err
			}
			inv.CustomerID = draft.CustomerID
			inv.IssueDate, inv.DueDate = draft.IssueDate, draft.DueDate
			inv.Subtotal, inv.TaxAmount = draft.Subtotal, draft.TaxAmount
			inv.DiscountAmount, inv.TotalAmount = draft.DiscountAmount, draft.TotalAmount
			inv.Notes = draft.Notes
			inv.Lines, err = tx.ReplaceInvoiceLines(ctx, inv.ID, draft.Lines)
			if err != nil {
				return outcome{}, err
			}
		case kind == documents.KindInvoice && metadataEditable(inv):
			if len(in.Lines) > 0 || (in.CustomerID != 0 && in.CustomerID != inv.CustomerID) {
				return outcome{}, shared.InvalidWrap("lines", documents.ErrImmutable, "invoice %s is %s; only due date and notes can change", inv.Number, inv.Status)
			}
			if !in.DueDate.IsZero() {
				due := journals.DateOnly(in.DueDate)
				if due.Before(inv.IssueDate) {
					return outcome{}, shared.Invalid("due_date", "due date is before the document date")
				}
				inv.DueDate = due
			}
			inv.Notes = strings.TrimSpace(in.Notes)
		default:
			return outcome{}, immutable(string(machineOf(kind)), inv.Number, inv.Status)
		}
		inv.UpdatedAt = s.now()
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return outcome{}, err
		}
		updated = inv
		return outcome{entity: string(machineOf(kind)), entityID: inv.ID}, nil
	})
	if err != nil {
		return documents.Invoice{}, err
	}
	return updated, nil
}

func metadataEditable(inv documents.Invoice) bool {
	return (inv.Status == documents.InvoiceStatusSent || inv.Status == documents.InvoiceStatusViewed) && inv.AmountPaid.IsZero()
}

// sendInvoice posts inv and opens its receivable.
func (s *Service) sendInvoice(ctx context.Context, scope shared.Scope, tx documents.TxRepository, inv documents.Invoice) (documents.Invoice, posting.Result, error) {
	if err := documents.CheckInvoice(inv, documents.InvoiceStatusSent); err != nil {
		return documents.Invoice{}, posting.Result{}, err
	}
	result, err := s.poster.PostInvoice(ctx, scope, inv)
	if err != nil {
		return documents.Invoice{}, posting.Result{}, err
	}
	now := s.now()
	inv.Status = documents.InvoiceStatusSent
	inv.SentAt = &now
	inv.BalanceDue = inv.TotalAmount.Sub(inv.AmountPaid)
	inv.JournalEntryID = linkedEntry(result)
	inv.UpdatedAt = now
	if err := tx.UpdateInvoice(ctx, inv); err != nil {
		return documents.Invoice{}, posting.Result{}, err
	}
	touchCustomer(&result, inv.CustomerID)
	return inv, result, nil
}

// SendInvoice posts the invoice to the ledger and moves it to SENT.
func (s *Service) SendInvoice(ctx context.Context, scope shared.Scope, id int64) (documents.Invoice, error) {
	var sent documents.Invoice
	err := s.run(ctx, scope, "invoice.send", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		inv, err := lockInvoice(ctx, scope, tx, id, documents.KindInvoice)
		if err != nil {
			return outcome{}, err
		}
		inv, result, err := s.sendInvoice(ctx, scope, tx, inv)
		if err != nil {
			return outcome{}, err
		}
		sent = inv
		return outcome{result: result, entity: "invoice", entityID: inv.ID,
			meta: map[string]any{"number": inv.Number, "total": inv.TotalAmount.StringFixed(2)}}, nil
	})
	if err != nil {
		return documents.Invoice{}, err
	}
	return sent, nil
}

// MarkInvoiceViewed records that the customer opened a sent invoice.
func (s *Service) MarkInvoiceViewed(ctx context.Context, scope shared.Scope, id int64) (documents.Invoice, error) {
	var viewed documents.Invoice
	err := s.run(ctx, scope, "invoice.view", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		inv, err := lockInvoice(ctx, scope, tx, id, documents.KindInvoice)
		if err != nil {
			return outcome{}, err
		}
		if err := documents.CheckInvoice(inv, documents.InvoiceStatusViewed); err != nil {
			return outcome{}, err
		}
		inv.Status = documents.InvoiceStatusViewed
		inv.UpdatedAt = s.now()
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return outcome{}, err
		}
		viewed = inv
		return outcome{entity: "invoice", entityID: inv.ID}, nil
	})
	if err != nil {
		return documents.Invoice{}, err
	}
	return viewed, nil
}

// VoidInvoice voids an unpaid invoice together with its entries and stock
// movements.
func (s *Service) VoidInvoice(ctx context.Context, scope shared.Scope, id int64, reason string) (documents.Invoice, error) {
	reason = strings.TrimSpace(reason)
	var voided documents.Invoice
	err := s.run(ctx, scope, "invoice.void", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		inv, err := lockInvoice(ctx, scope, tx, id, documents.KindInvoice)
		if err != nil {
			return outcome{}, err
		}
		switch {
		case inv.Status == documents.InvoiceStatusPaid || inv.Status == documents.InvoiceStatusVoid:
			return outcome{}, immutable("invoice", inv.Number, inv.Status)
		case !inv.AmountPaid.IsZero():
			return outcome{}, shared.InvalidWrap("status", documents.ErrHasPayments, "invoice %s has %s applied", inv.Number, inv.AmountPaid.StringFixed(2))
		}
		if err := documents.CheckInvoice(inv, documents.InvoiceStatusVoid); err != nil {
			return outcome{}, err
		}
		var result posting.Result
		if inv.Status != documents.InvoiceStatusDraft {
			result, err = s.poster.ReverseDocument(ctx, scope, journals.SourceInvoice, inv.ID, s.today(), voidReason("invoice", inv.Number, reason))
			if err != nil {
				return outcome{}, err
			}
		}
		inv.Status = documents.InvoiceStatusVoid
		inv.BalanceDue = decimal.Zero
		inv.UpdatedAt = s.now()
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return outcome{}, err
		}
		touchCustomer(&result, inv.CustomerID)
		voided = inv
		return outcome{result: result, entity: "invoice", entityID: inv.ID, meta: map[string]any{"reason": reason}}, nil
	})
	if err != nil {
		return documents.Invoice{}, err
	}
	return voided, nil
}

func voidReason(label, number, reason string) string {
	if reason == "" {
		return "Void " + label + " " + number
	}
	return reason
}

// GetInvoice returns an invoice with its lines.
func (s *Service) GetInvoice(ctx context.Context, scope shared.Scope, id int64) (documents.Invoice, error) {
	if err := scope.Validate(); err != nil {
		return documents.Invoice{}, err
	}
	inv, err := s.docs.GetInvoice(ctx, scope.TenantID, id)
	if err != nil {
		return documents.Invoice{}, err
	}
	if inv.Kind != documents.KindInvoice {
		return documents.Invoice{}, shared.NotFound("invoice", id)
	}
	return inv, nil
}
