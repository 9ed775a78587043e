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

// BillInput creates or replaces a bill draft.
type BillInput struct {
	Number   string
	VendorID int64
	BillDate time.Time
	DueDate  time.Time
	Notes    string
	Lines    []documents.LineInput
}

func (s *Service) draftBill(scope shared.Scope, in BillInput) (documents.Bill, error) {
	if in.VendorID == 0 {
		return documents.Bill{}, shared.Invalid("vendor_id", "vendor is required")
	}
	if err := documents.ValidateLines(in.Lines, decimal.Zero); err != nil {
		return documents.Bill{}, err
	}
	date, due, err := s.dates(in.BillDate, in.DueDate)
	if err != nil {
		return documents.Bill{}, err
	}
	lines, totals := documents.CalculateTotals(in.Lines, decimal.Zero)
	now := s.now()
	return documents.Bill{
		TenantID:    scope.TenantID,
		Number:      strings.TrimSpace(in.Number),
		VendorID:    in.VendorID,
		BillDate:    date,
		DueDate:     due,
		Status:      documents.BillStatusDraft,
		Subtotal:    totals.Subtotal,
		TaxAmount:   totals.Tax,
		TotalAmount: totals.Total,
		AmountPaid:  decimal.Zero,
		BalanceDue:  decimal.Zero,
		Notes:       strings.TrimSpace(in.Notes),
		CreatedBy:   scope.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Lines:       lines,
	}, nil
}

func (s *Service) insertBill(ctx context.Context, scope shared.Scope, tx documents.TxRepository, bill documents.Bill) (documents.Bill, error) {
	if _, err := s.vendor(ctx, scope, tx, bill.VendorID); err != nil {
		return documents.Bill{}, err
	}
	var stored documents.Bill
	_, err := s.assign(ctx, scope, tx, documents.SeriesBill, bill.Number, func(ctx context.Context, number string) error {
		bill.Number = number
		created, err := tx.InsertBill(ctx, bill)
		if err != nil {
			return err
		}
		stored = created
		return nil
	})
	return stored, err
}

// CreateBill stores a draft bill.
func (s *Service) CreateBill(ctx context.Context, scope shared.Scope, in BillInput) (documents.Bill, error) {
	draft, err := s.draftBill(scope, in)
	if err != nil {
		return documents.Bill{}, err
	}
	var created documents.Bill
	err = s.run(ctx, scope, "bill.create", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		bill, err := s.insertBill(ctx, scope, tx, draft)
		if err != nil {
			return outcome{}, err
		}
		created = bill
		return outcome{entity: "bill", entityID: bill.ID, meta: map[string]any{"number": bill.Number}}, nil
	})
	if err != nil {
		return documents.Bill{}, err
	}
	return created, nil
}

// UpdateBill replaces a draft bill.
func (s *Service) UpdateBill(ctx context.Context, scope shared.Scope, id int64, in BillInput) (documents.Bill, error) {
	var updated documents.Bill
	err := s.run(ctx, scope, "bill.update", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		bill, err := tx.GetBillForUpdate(ctx, scope.TenantID, id)
		if err != nil {
			return outcome{}, err
		}
		if bill.Status != documents.BillStatusDraft {
			return outcome{}, immutable("bill", bill.Number, bill.Status)
		}
		draft, err := s.draftBill(scope, in)
		if err != nil {
			return outcome{}, err
		}
		if _, err := s.vendor(ctx, scope, tx, draft.VendorID); err != nil {
			return outcome{}, err
		}
		bill.VendorID = draft.VendorID
		bill.BillDate, bill.DueDate = draft.BillDate, draft.DueDate
		bill.Subtotal, bill.TaxAmount, bill.TotalAmount = draft.Subtotal, draft.TaxAmount, draft.TotalAmount
		bill.Notes = draft.Notes
		bill.UpdatedAt = s.now()
		bill.Lines, err = tx.ReplaceBillLines(ctx, bill.ID, draft.Lines)
		if err != nil {
			return outcome{}, err
		}
		if err := tx.UpdateBill(ctx, bill); err != nil {
			return outcome{}, err
		}
		updated = bill
		return outcome{entity: "bill", entityID: bill.ID}, nil
	})
	if err != nil {
		return documents.Bill{}, err
	}
	return updated, nil
}

// approveBill posts bill and opens its payable.
func (s *Service) approveBill(ctx context.Context, scope shared.Scope, tx documents.TxRepository, bill documents.Bill) (documents.Bill, posting.Result, error) {
	if err := documents.CheckBill(bill, documents.BillStatusOpen); err != nil {
		return documents.Bill{}, posting.Result{}, err
	}
	result, err := s.poster.PostBill(ctx, scope, bill)
	if err != nil {
		return documents.Bill{}, posting.Result{}, err
	}
	now := s.now()
	bill.Status = documents.BillStatusOpen
	bill.ApprovedAt = &now
	bill.BalanceDue = bill.TotalAmount.Sub(bill.AmountPaid)
	bill.JournalEntryID = linkedEntry(result)
	bill.UpdatedAt = now
	if err := tx.UpdateBill(ctx, bill); err != nil {
		return documents.Bill{}, posting.Result{}, err
	}
	touchVendor(&result, bill.VendorID)
	return bill, result, nil
}

// ApproveBill posts the bill and moves it to OPEN.
func (s *Service) ApproveBill(ctx context.Context, scope shared.Scope, id int64) (documents.Bill, error) {
	var approved documents.Bill
	err := s.run(ctx, scope, "bill.approve", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		bill, err := tx.GetBillForUpdate(ctx, scope.TenantID, id)
		if err != nil {
			return outcome{}, err
		}
		bill, result, err := s.approveBill(ctx, scope, tx, bill)
		if err != nil {
			return outcome{}, err
		}
		approved = bill
		return outcome{result: result, entity: "bill", entityID: bill.ID,
			meta: map[string]any{"number": bill.Number, "total": bill.TotalAmount.StringFixed(2)}}, nil
	})
	if err != nil {
		return documents.Bill{}, err
	}
	return approved, nil
}

// VoidBill voids an unpaid bill, its entries and its stock receipts.
func (s *Service) VoidBill(ctx context.Context, scope shared.Scope, id int64, reason string) (documents.Bill, error) {
	reason = strings.TrimSpace(reason)
	var voided documents.Bill
	err := s.run(ctx, scope, "bill.void", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		bill, err := tx.GetBillForUpdate(ctx, scope.TenantID, id)
		if err != nil {
			return outcome{}, err
		}
		switch {
		case bill.Status == documents.BillStatusPaid || bill.Status == documents.BillStatusVoid:
			return outcome{}, immutable("bill", bill.Number, bill.Status)
		case !bill.AmountPaid.IsZero():
			return outcome{}, shared.InvalidWrap("status", documents.ErrHasPayments, "bill %s has %s paid", bill.Number, bill.AmountPaid.StringFixed(2))
		}
		if err := documents.CheckBill(bill, documents.BillStatusVoid); err != nil {
			return outcome{}, err
		}
		var result posting.Result
		if bill.Status != documents.BillStatusDraft {
			result, err = s.poster.ReverseDocument(ctx, scope, journals.SourceBill, bill.ID, s.today(), voidReason("bill", bill.Number, reason))
			if err != nil {
				return outcome{}, err
			}
		}
		bill.Status = documents.BillStatusVoid
		bill.BalanceDue = decimal.Zero
		bill.UpdatedAt = s.now()
		if err := tx.UpdateBill(ctx, bill); err != nil {
			return outcome{}, err
		}
		touchVendor(&result, bill.VendorID)
		voided = bill
		return outcome{result: result, entity: "bill", entityID: bill.ID, meta: map[string]any{"reason": reason}}, nil
	})
	if err != nil {
		return documents.Bill{}, err
	}
	return voided, nil
}

// GetBill returns a bill with its lines.
func (s *Service) GetBill(ctx context.Context, scope shared.Scope, id int64) (documents.Bill, error) {
	if err := scope.Validate(); err != nil {
		return documents.Bill{}, err
	}
	return s.docs.GetBill(ctx, scope.TenantID, id)
}
