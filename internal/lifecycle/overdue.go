package lifecycle

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// OverdueReport lists the documents MarkOverdue moved.
type OverdueReport struct {
	Invoices []string `json:"invoices"`
	Bills    []string `json:"bills"`
}

// MarkOverdue moves open invoices and bills due before asOf to OVERDUE.
// Balances do not change; only the status does.
func (s *Service) MarkOverdue(ctx context.Context, scope shared.Scope, asOf time.Time) (OverdueReport, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	cutoff := journals.DateOnly(asOf)
	var report OverdueReport
	err := s.run(ctx, scope, "overdue.sweep", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		report = OverdueReport{}
		invoices, err := tx.ListInvoices(ctx, scope.TenantID, documents.InvoiceFilter{
			Kind:      documents.KindInvoice,
			Statuses:  []documents.InvoiceStatus{documents.InvoiceStatusSent, documents.InvoiceStatusViewed, documents.InvoiceStatusPartial},
			DueBefore: &cutoff,
		})
		if err != nil {
			return outcome{}, err
		}
		for _, listed := range invoices {
			inv, err := tx.GetInvoiceForUpdate(ctx, scope.TenantID, listed.ID)
			if err != nil {
				return outcome{}, err
			}
			if !inv.DueDate.Before(cutoff) || documents.CheckInvoice(inv, documents.InvoiceStatusOverdue) != nil {
				continue
			}
			inv.Status = documents.InvoiceStatusOverdue
			inv.UpdatedAt = s.now()
			if err := tx.UpdateInvoice(ctx, inv); err != nil {
				return outcome{}, err
			}
			report.Invoices = append(report.Invoices, inv.Number)
		}
		bills, err := tx.ListBills(ctx, scope.TenantID, documents.BillFilter{
			Statuses:  []documents.BillStatus{documents.BillStatusOpen, documents.BillStatusPartial},
			DueBefore: &cutoff,
		})
		if err != nil {
			return outcome{}, err
		}
		for _, listed := range bills {
			bill, err := tx.GetBillForUpdate(ctx, scope.TenantID, listed.ID)
			if err != nil {
				return outcome{}, err
			}
			if !bill.DueDate.Before(cutoff) || documents.CheckBill(bill, documents.BillStatusOverdue) != nil {
				continue
			}
			bill.Status = documents.BillStatusOverdue
			bill.UpdatedAt = s.now()
			if err := tx.UpdateBill(ctx, bill); err != nil {
				return outcome{}, err
			}
			report.Bills = append(report.Bills, bill.Number)
		}
		return outcome{entity: "tenant", entityID: scope.TenantID, meta: map[string]any{
			"as_of":    cutoff.Format(time.DateOnly),
			"invoices": len(report.Invoices),
			"bills":    len(report.Bills),
		}}, nil
	})
	if err != nil {
		return OverdueReport{}, err
	}
	return report, nil
}
