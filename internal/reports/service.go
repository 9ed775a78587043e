// Package reports builds read projections over the books: trial balance,
// receivable and payable aging, invoice listings and the general ledger.
// Aggregates are cached per tenant and invalidated by the lifecycle after
// every commit.
package reports

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Ledger reads posted journal activity.
type Ledger interface {
	AccountActivity(ctx context.Context, scope shared.Scope, asOf *time.Time) ([]journals.AccountActivity, error)
	GeneralLedger(ctx context.Context, scope shared.Scope, filter journals.GLFilter) iter.Seq2[journals.LedgerLine, error]
}

// Chart lists the chart of accounts.
type Chart interface {
	ListAccounts(ctx context.Context, scope shared.Scope) ([]accounts.Account, error)
}

// Documents lists documents and parties.
type Documents interface {
	ListInvoices(ctx context.Context, tenantID int64, filter documents.InvoiceFilter) ([]documents.Invoice, error)
	ListBills(ctx context.Context, tenantID int64, filter documents.BillFilter) ([]documents.Bill, error)
	ListCustomers(ctx context.Context, tenantID int64) ([]documents.Customer, error)
	ListVendors(ctx context.Context, tenantID int64) ([]documents.Vendor, error)
}

// Service computes reports.
type Service struct {
	ledger Ledger
	chart  Chart
	docs   Documents
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the report service. A nil cache computes every report.
func NewService(ledger Ledger, chart Chart, docs Documents, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledger, chart: chart, docs: docs, cache: cache, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) today() time.Time {
	return journals.DateOnly(s.now())
}

func dateToken(t *time.Time) string {
	if t == nil {
		return "current"
	}
	return t.Format(time.DateOnly)
}

// cached runs build through the tenant cache under key parts.
func (s *Service) cached(ctx context.Context, scope shared.Scope, dest any, build func(context.Context) (any, error), parts ...string) error {
	key, err := s.cache.BuildKey(ctx, scope.TenantID, parts...)
	if err != nil {
		s.logger.WarnContext(ctx, "report cache unavailable",
			slog.Int64("tenant_id", scope.TenantID),
			slog.Any("error", err))
		value, err := build(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	return s.cache.FetchJSON(ctx, key, dest, build)
}
