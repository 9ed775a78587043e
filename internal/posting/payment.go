package posting

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// ApplicationInput allocates part of a payment to one document.
type ApplicationInput struct {
	DocumentID int64
	Amount     decimal.Decimal
}

// PaymentInput describes a received or sent payment.
type PaymentInput struct {
	Number       string
	Direction    documents.PaymentDirection
	PartyID      int64
	Amount       decimal.Decimal
	Date         time.Time
	Method       string
	Reference    string
	Applications []ApplicationInput
}

func (in *PaymentInput) normalize() error {
	in.Amount = shared.RoundMoney(in.Amount)
	in.Method = strings.TrimSpace(in.Method)
	in.Reference = strings.TrimSpace(in.Reference)
	switch {
	case in.Direction != documents.PaymentReceived && in.Direction != documents.PaymentSent:
		return shared.Invalid("direction", "unknown direction %q", in.Direction)
	case in.PartyID == 0:
		return shared.Invalid("party_id", "party is required")
	case !in.Amount.IsPositive():
		return shared.Invalid("amount", "amount must be positive")
	}
	seen := make(map[int64]bool, len(in.Applications))
	applied := decimal.Zero
	for i := range in.Applications {
		app := &in.Applications[i]
		app.Amount = shared.RoundMoney(app.Amount)
		if !app.Amount.IsPositive() {
			return shared.Invalid("applications", "application %d amount must be positive", i+1)
		}
		if seen[app.DocumentID] {
			return shared.Invalid("applications", "document %d applied twice", app.DocumentID)
		}
		seen[app.DocumentID] = true
		applied = applied.Add(app.Amount)
	}
	if applied.GreaterThan(in.Amount) {
		return shared.InvalidWrap("applications", documents.ErrOverApplied, "applications %s exceed payment %s",
			applied.StringFixed(2), in.Amount.StringFixed(2))
	}
	return nil
}

// PostPayment validates the applications, stores the payment, settles the
// documents and books DR bank / CR receivable (received) or DR payable /
// CR bank (sent).
func (p *Poster) PostPayment(ctx context.Context, scope shared.Scope, input PaymentInput) (documents.Payment, Result, error) {
	if err := scope.Validate(); err != nil {
		return documents.Payment{}, Result{}, err
	}
	if err := input.normalize(); err != nil {
		return documents.Payment{}, Result{}, err
	}
	control := accounts.RoleAccountsReceivable
	entity := journals.EntityCustomer
	if input.Direction == documents.PaymentSent {
		control = accounts.RoleAccountsPayable
		entity = journals.EntityVendor
	}
	roles, err := p.roles.ResolveAll(ctx, scope, accounts.RoleBank, control)
	if err != nil {
		return documents.Payment{}, Result{}, err
	}
	if input.Date.IsZero() {
		input.Date = p.now()
	}

	var (
		payment documents.Payment
		result  Result
	)
	err = p.docs.WithTx(ctx, func(ctx context.Context, tx documents.TxRepository) error {
		settle, err := p.lockApplications(ctx, scope, tx, input)
		if err != nil {
			return err
		}
		applied := decimal.Zero
		apps := make([]documents.PaymentApplication, 0, len(input.Applications))
		docType := documents.DocumentInvoice
		if input.Direction == documents.PaymentSent {
			docType = documents.DocumentBill
		}
		for _, app := range input.Applications {
			applied = applied.Add(app.Amount)
			apps = append(apps, documents.PaymentApplication{DocumentType: docType, DocumentID: app.DocumentID, AmountApplied: app.Amount})
		}
		record := documents.Payment{
			TenantID:     scope.TenantID,
			Direction:    input.Direction,
			PartyID:      input.PartyID,
			Amount:       input.Amount,
			Unapplied:    input.Amount.Sub(applied),
			PaymentDate:  journals.DateOnly(input.Date),
			Method:       input.Method,
			Reference:    input.Reference,
			CreatedBy:    scope.ActorID,
			CreatedAt:    p.now(),
			Applications: apps,
		}
		series := documents.SeriesForDirection(input.Direction)
		seq := shared.Sequencer{Prefix: series.Prefix(), Constraint: series.Constraint(), Retries: p.retries, Now: p.now}
		if _, err := seq.Assign(ctx, tx, input.Number,
			func(ctx context.Context) (int64, error) { return tx.LastSequence(ctx, scope.TenantID, series) },
			func(ctx context.Context, number string) error {
				record.Number = number
				inserted, err := tx.InsertPayment(ctx, record)
				if err != nil {
					return err
				}
				payment = inserted
				return nil
			}); err != nil {
			return err
		}

		party := journals.Credit(roles.ID(control), payment.Amount).For(entity, payment.PartyID)
		bank := journals.Debit(roles.ID(accounts.RoleBank), payment.Amount)
		if input.Direction == documents.PaymentSent {
			party = journals.Debit(roles.ID(control), payment.Amount).For(entity, payment.PartyID)
			bank = journals.Credit(roles.ID(accounts.RoleBank), payment.Amount)
		}
		entry, err := p.post(ctx, scope, journals.EntryInput{
			Date:       payment.PaymentDate,
			Memo:       "Payment " + payment.Number,
			SourceType: journals.SourcePayment,
			SourceID:   payment.ID,
			SourceRef:  journals.SourceRef(scope.TenantID, journals.SourcePayment, payment.ID, "settle"),
			Post:       true,
			Lines:      []journals.PostingLineInput{bank, party},
		})
		if err != nil {
			return err
		}
		if err := tx.SetPaymentJournal(ctx, scope.TenantID, payment.ID, entry.ID); err != nil {
			return err
		}
		payment.JournalEntryID = &entry.ID
		result.addEntry(entry)
		return settle(ctx)
	})
	if err != nil {
		return documents.Payment{}, Result{}, err
	}
	if input.Direction == documents.PaymentSent {
		result.Affected.VendorIDs = []int64{payment.PartyID}
	} else {
		result.Affected.CustomerIDs = []int64{payment.PartyID}
	}
	p.logger.InfoContext(ctx, "payment posted",
		slog.Int64("tenant_id", scope.TenantID),
		slog.String("number", payment.Number),
		slog.String("direction", string(payment.Direction)),
		slog.String("amount", payment.Amount.StringFixed(2)),
		slog.Int("applications", len(payment.Applications)))
	return payment, result, nil
}

// lockApplications locks and validates every applied document before any
// write and returns the step that settles them.
func (p *Poster) lockApplications(ctx context.Context, scope shared.Scope, tx documents.TxRepository, input PaymentInput) (func(context.Context) error, error) {
	now := p.now()
	if input.Direction == documents.PaymentSent {
		bills := make([]documents.Bill, 0, len(input.Applications))
		for _, app := range input.Applications {
			bill, err := tx.GetBillForUpdate(ctx, scope.TenantID, app.DocumentID)
			if err != nil {
				return nil, applicationErr(err, app.DocumentID)
			}
			if err := checkApplication(bill.Status.IsOpen(), bill.VendorID == input.PartyID, bill.Number, string(bill.Status), app.Amount, bill.BalanceDue); err != nil {
				return nil, err
			}
			bill.ApplyPayment(app.Amount)
			next := documents.SettledBillStatus(bill)
			if next != bill.Status {
				if err := documents.CheckBill(bill, next); err != nil {
					return nil, err
				}
			}
			bill.Status = next
			bill.UpdatedAt = now
			bills = append(bills, bill)
		}
		return func(ctx context.Context) error {
			for _, bill := range bills {
				if err := tx.UpdateBill(ctx, bill); err != nil {
					return err
				}
			}
			return nil
		}, nil
	}
	invoices := make([]documents.Invoice, 0, len(input.Applications))
	for _, app := range input.Applications {
		inv, err := tx.GetInvoiceForUpdate(ctx, scope.TenantID, app.DocumentID)
		if err != nil {
			return nil, applicationErr(err, app.DocumentID)
		}
		open := inv.Kind == documents.KindInvoice && inv.Status.IsOpen()
		if err := checkApplication(open, inv.CustomerID == input.PartyID, inv.Number, string(inv.Status), app.Amount, inv.BalanceDue); err != nil {
			return nil, err
		}
		inv.ApplyPayment(app.Amount)
		next := documents.SettledInvoiceStatus(inv)
		if next != inv.Status {
			if err := documents.CheckInvoice(inv, next); err != nil {
				return nil, err
			}
		}
		inv.Status = next
		inv.UpdatedAt = now
		invoices = append(invoices, inv)
	}
	return func(ctx context.Context) error {
		for _, inv := range invoices {
			if err := tx.UpdateInvoice(ctx, inv); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func applicationErr(err error, id int64) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.Invalid("applications", "document %d does not exist", id)
	}
	return err
}

func checkApplication(open, sameParty bool, number, status string, amount, balanceDue decimal.Decimal) error {
	switch {
	case !open:
		return shared.Invalid("applications", "%s is %s and cannot take payments", number, status)
	case !sameParty:
		return shared.InvalidWrap("applications", documents.ErrPartyMismatch, "%s belongs to another party", number)
	case amount.GreaterThan(balanceDue):
		return shared.InvalidWrap("applications", documents.ErrOverApplied, "%s applied %s exceeds balance due %s",
			number, amount.StringFixed(2), balanceDue.StringFixed(2))
	}
	return nil
}
