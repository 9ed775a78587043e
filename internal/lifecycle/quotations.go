package lifecycle

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// CreateQuotation stores a draft quotation. Quotations never post and keep
// a zero balance due.
func (s *Service) CreateQuotation(ctx context.Context, scope shared.Scope, in InvoiceInput) (documents.Invoice, error) {
	return s.createInvoice(ctx, scope, documents.KindQuotation, in)
}

// UpdateQuotation replaces a draft quotation.
func (s *Service) UpdateQuotation(ctx context.Context, scope shared.Scope, id int64, in InvoiceInput) (documents.Invoice, error) {
	return s.updateInvoice(ctx, scope, documents.KindQuotation, id, in)
}

func (s *Service) moveQuotation(ctx context.Context, scope shared.Scope, op string, id int64, to documents.InvoiceStatus) (documents.Invoice, error) {
	var moved documents.Invoice
	err := s.run(ctx, scope, op, func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		q, err := lockInvoice(ctx, scope, tx, id, documents.KindQuotation)
		if err != nil {
			return outcome{}, err
		}
		if err := documents.CheckInvoice(q, to); err != nil {
			return outcome{}, err
		}
		now := s.now()
		if to == documents.InvoiceStatusSent {
			q.SentAt = &now
		}
		q.Status = to
		q.UpdatedAt = now
		if err := tx.UpdateInvoice(ctx, q); err != nil {
			return outcome{}, err
		}
		moved = q
		return outcome{entity: "quotation", entityID: q.ID}, nil
	})
	if err != nil {
		return documents.Invoice{}, err
	}
	return moved, nil
}

// SendQuotation moves a draft quotation to SENT.
func (s *Service) SendQuotation(ctx context.Context, scope shared.Scope, id int64) (documents.Invoice, error) {
	return s.moveQuotation(ctx, scope, "quotation.send", id, documents.InvoiceStatusSent)
}

// DeclineQuotation records the customer's refusal.
func (s *Service) DeclineQuotation(ctx context.Context, scope shared.Scope, id int64) (documents.Invoice, error) {
	return s.moveQuotation(ctx, scope, "quotation.decline", id, documents.InvoiceStatusDeclined)
}

// ConvertQuotationToInvoice copies a sent quotation into a new draft
// invoice and marks the quotation ACCEPTED with the invoice link.
func (s *Service) ConvertQuotationToInvoice(ctx context.Context, scope shared.Scope, id int64) (documents.Invoice, error) {
	var created documents.Invoice
	err := s.run(ctx, scope, "quotation.convert", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		q, err := lockInvoice(ctx, scope, tx, id, documents.KindQuotation)
		if err != nil {
			return outcome{}, err
		}
		if err := documents.CheckInvoice(q, documents.InvoiceStatusAccepted); err != nil {
			return outcome{}, err
		}
		issue := s.today()
		terms := int(q.DueDate.Sub(q.IssueDate).Hours() / 24)
		draft, err := s.draftInvoice(scope, documents.KindInvoice, InvoiceInput{
			CustomerID: q.CustomerID,
			IssueDate:  issue,
			DueDate:    issue.AddDate(0, 0, terms),
			Discount:   q.DiscountAmount,
			Notes:      q.Notes,
			Lines:      documents.Inputs(q.Lines),
		})
		if err != nil {
			return outcome{}, err
		}
		draft.SourceQuotationID = &q.ID
		inv, err := s.insertInvoice(ctx, scope, tx, draft)
		if err != nil {
			return outcome{}, err
		}
		q.Status = documents.InvoiceStatusAccepted
		q.ConvertedInvoiceID = &inv.ID
		q.BalanceDue = decimal.Zero
		q.UpdatedAt = s.now()
		if err := tx.UpdateInvoice(ctx, q); err != nil {
			return outcome{}, err
		}
		created = inv
		return outcome{entity: "quotation", entityID: q.ID,
			meta: map[string]any{"quotation": q.Number, "invoice": inv.Number}}, nil
	})
	if err != nil {
		return documents.Invoice{}, err
	}
	return created, nil
}
