package reports

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// InvoiceQuery narrows an invoice listing.
type InvoiceQuery struct {
	Kind       documents.InvoiceKind
	CustomerID int64
	Status     documents.InvoiceStatus
	Page       int
	PerPage    int
}

// InvoicePage is one page of invoice headers.
type InvoicePage struct {
	Invoices   []documents.Invoice `json:"invoices"`
	Pagination shared.Pagination   `json:"pagination"`
}

// ListInvoices pages through invoice or quotation headers by issue date.
func (s *Service) ListInvoices(ctx context.Context, scope shared.Scope, q InvoiceQuery) (InvoicePage, error) {
	if err := scope.Validate(); err != nil {
		return InvoicePage{}, err
	}
	if q.Kind == "" {
		q.Kind = documents.KindInvoice
	}
	p := shared.NewPagination(q.Page, q.PerPage)
	filter := documents.InvoiceFilter{Kind: q.Kind, CustomerID: q.CustomerID, Limit: p.FetchLimit(), Offset: p.Offset()}
	if q.Status != "" {
		filter.Statuses = []documents.InvoiceStatus{q.Status}
	}
	rows, err := s.docs.ListInvoices(ctx, scope.TenantID, filter)
	if err != nil {
		return InvoicePage{}, err
	}
	if len(rows) > p.PerPage {
		p.HasNext = true
		rows = rows[:p.PerPage]
	}
	if rows == nil {
		rows = []documents.Invoice{}
	}
	return InvoicePage{Invoices: rows, Pagination: p}, nil
}

// LedgerQuery narrows the general ledger report.
type LedgerQuery struct {
	AccountID *int64
	From      *time.Time
	To        *time.Time
	// Limit caps the returned lines; zero means DefaultLedgerLimit.
	Limit int
}

// DefaultLedgerLimit bounds general ledger responses.
const DefaultLedgerLimit = 1000

// LedgerReport is a window of the general ledger.
type LedgerReport struct {
	Lines     []journals.LedgerLine `json:"lines"`
	Truncated bool                  `json:"truncated"`
}

// GeneralLedger collects posted lines with running balances. It stops
// reading once the limit is reached.
func (s *Service) GeneralLedger(ctx context.Context, scope shared.Scope, q LedgerQuery) (LedgerReport, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLedgerLimit
	}
	report := LedgerReport{Lines: []journals.LedgerLine{}}
	for line, err := range s.ledger.GeneralLedger(ctx, scope, journals.GLFilter{AccountID: q.AccountID, From: q.From, To: q.To}) {
		if err != nil {
			return LedgerReport{}, err
		}
		if len(report.Lines) == limit {
			report.Truncated = true
			break
		}
		report.Lines = append(report.Lines, line)
	}
	return report, nil
}
