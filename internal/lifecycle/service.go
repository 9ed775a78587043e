// Package lifecycle drives documents through their state machines. Each
// operation runs in one transaction: side-effect records first, then the
// status flip, then the cached balances it touched.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/balances"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	"github.com/odyssey-erp/odyssey-books/internal/posting"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Poster applies the accounting rules of each document.
type Poster interface {
	PostInvoice(ctx context.Context, scope shared.Scope, inv documents.Invoice) (posting.Result, error)
	PostBill(ctx context.Context, scope shared.Scope, bill documents.Bill) (posting.Result, error)
	PostPayment(ctx context.Context, scope shared.Scope, input posting.PaymentInput) (documents.Payment, posting.Result, error)
	PostCreditMemo(ctx context.Context, scope shared.Scope, memo documents.CreditMemo) (documents.CreditMemo, posting.Result, error)
	ReverseDocument(ctx context.Context, scope shared.Scope, sourceType journals.SourceType, id int64, date time.Time, reason string) (posting.Result, error)
}

// Stock records manual stock movements.
type Stock interface {
	RecordMovement(ctx context.Context, scope shared.Scope, input inventory.MovementInput) (inventory.Movement, error)
}

// Entries is the ledger as the lifecycle sees it: read back journals
// written by other services and record manual ones.
type Entries interface {
	GetEntry(ctx context.Context, scope shared.Scope, id int64) (journals.JournalEntry, error)
	CreateEntry(ctx context.Context, scope shared.Scope, input journals.EntryInput) (journals.JournalEntry, error)
	VoidEntry(ctx context.Context, scope shared.Scope, id int64, reason string) (journals.JournalEntry, error)
}

// Balances refreshes cached balances inside the operation transaction.
type Balances interface {
	Refresh(ctx context.Context, scope shared.Scope, affected balances.Affected) error
}

// AuditPort records lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Metrics observes lifecycle operations.
type Metrics interface {
	ObservePosting(operation string, start time.Time, err error)
}

// Invalidator drops cached reports of a tenant after a commit.
type Invalidator interface {
	Bump(ctx context.Context, tenantID int64) error
}

// Service is the document lifecycle.
type Service struct {
	docs     documents.RepositoryPort
	poster   Poster
	stock    Stock
	entries  Entries
	balances Balances
	audit    AuditPort
	metrics  Metrics
	cache    Invalidator
	logger   *slog.Logger
	retries  int
	now      func() time.Time
}

// NewService wires the lifecycle.
func NewService(docs documents.RepositoryPort, poster Poster, stock Stock, entries Entries, bal Balances, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		docs:     docs,
		poster:   poster,
		stock:    stock,
		entries:  entries,
		balances: bal,
		logger:   logger,
		retries:  shared.DefaultNumberRetries,
		now:      time.Now,
	}
}

// WithAudit enables audit records.
func (s *Service) WithAudit(audit AuditPort) { s.audit = audit }

// WithMetrics enables operation metrics.
func (s *Service) WithMetrics(m Metrics) { s.metrics = m }

// WithCache enables report cache invalidation.
func (s *Service) WithCache(c Invalidator) { s.cache = c }

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithRetryLimit overrides the number of fallback numbering attempts.
func (s *Service) WithRetryLimit(n int) {
	if n > 0 {
		s.retries = n
	}
}

// outcome describes what an operation changed.
type outcome struct {
	result   posting.Result
	entity   string
	entityID int64
	meta     map[string]any
}

// run executes fn and the balance refresh in one transaction. Audit,
// metrics and cache invalidation follow a successful commit.
func (s *Service) run(ctx context.Context, scope shared.Scope, op string, fn func(context.Context, documents.TxRepository) (outcome, error)) error {
	start := time.Now()
	err := scope.Validate()
	var out outcome
	if err == nil {
		err = s.docs.WithTx(ctx, func(ctx context.Context, tx documents.TxRepository) error {
			o, err := fn(ctx, tx)
			if err != nil {
				return err
			}
			out = o
			return s.balances.Refresh(ctx, scope, o.result.Affected)
		})
	}
	if s.metrics != nil {
		s.metrics.ObservePosting(op, start, err)
	}
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "lifecycle operation failed",
			slog.String("operation", op),
			slog.Int64("tenant_id", scope.TenantID),
			slog.Any("error", err))
		return err
	}
	s.record(ctx, scope, op, out)
	if s.cache != nil {
		if err := s.cache.Bump(ctx, scope.TenantID); err != nil {
			s.logger.WarnContext(ctx, "report cache invalidation failed", slog.Int64("tenant_id", scope.TenantID), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, scope shared.Scope, action string, out outcome) {
	if s.audit == nil || out.entity == "" {
		return
	}
	meta := out.meta
	if meta == nil {
		meta = map[string]any{}
	}
	if n := len(out.result.Entries); n > 0 {
		meta["entries"] = n
	}
	if n := len(out.result.Movements); n > 0 {
		meta["movements"] = n
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: scope.TenantID,
		ActorID:  scope.ActorID,
		Action:   action,
		Entity:   out.entity,
		EntityID: strconv.FormatInt(out.entityID, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// assign numbers a new document of series inside tx.
func (s *Service) assign(ctx context.Context, scope shared.Scope, tx documents.TxRepository, series documents.Series, explicit string, insert func(context.Context, string) error) (string, error) {
	seq := shared.Sequencer{Prefix: series.Prefix(), Constraint: series.Constraint(), Retries: s.retries, Now: s.now}
	return seq.Assign(ctx, tx, explicit,
		func(ctx context.Context) (int64, error) { return tx.LastSequence(ctx, scope.TenantID, series) },
		insert)
}

func (s *Service) today() time.Time {
	return journals.DateOnly(s.now())
}

// dates defaults the document date to today and the due date to the
// document date.
func (s *Service) dates(date, due time.Time) (time.Time, time.Time, error) {
	if date.IsZero() {
		date = s.today()
	}
	date = journals.DateOnly(date)
	if due.IsZero() {
		due = date
	}
	due = journals.DateOnly(due)
	if due.Before(date) {
		return date, due, shared.Invalid("due_date", "due date is before the document date")
	}
	return date, due, nil
}

// linkedEntry picks the entry to store on the document: the first entry the
// posting wrote, else the journal of its first movement.
func linkedEntry(result posting.Result) *int64 {
	if id := result.PrimaryEntryID(); id != nil {
		return id
	}
	for _, m := range result.Movements {
		if m.JournalEntryID != nil {
			id := *m.JournalEntryID
			return &id
		}
	}
	return nil
}

func immutable(label, number string, status any) error {
	return shared.InvalidWrap("status", documents.ErrImmutable, "%s %s is %v and cannot change", label, number, status)
}

func (s *Service) customer(ctx context.Context, scope shared.Scope, tx documents.TxRepository, id int64) (documents.Customer, error) {
	if id == 0 {
		return documents.Customer{}, shared.Invalid("customer_id", "customer is required")
	}
	c, err := tx.GetCustomer(ctx, scope.TenantID, id)
	if errors.Is(err, shared.ErrNotFound) {
		return documents.Customer{}, shared.Invalid("customer_id", "customer %d does not exist", id)
	}
	if err != nil {
		return documents.Customer{}, err
	}
	if !c.IsActive {
		return documents.Customer{}, shared.Invalid("customer_id", "customer %s is inactive", c.Name)
	}
	return c, nil
}

func (s *Service) vendor(ctx context.Context, scope shared.Scope, tx documents.TxRepository, id int64) (documents.Vendor, error) {
	if id == 0 {
		return documents.Vendor{}, shared.Invalid("vendor_id", "vendor is required")
	}
	v, err := tx.GetVendor(ctx, scope.TenantID, id)
	if errors.Is(err, shared.ErrNotFound) {
		return documents.Vendor{}, shared.Invalid("vendor_id", "vendor %d does not exist", id)
	}
	if err != nil {
		return documents.Vendor{}, err
	}
	if !v.IsActive {
		return documents.Vendor{}, shared.Invalid("vendor_id", "vendor %s is inactive", v.Name)
	}
	return v, nil
}

func touchCustomer(r *posting.Result, id int64) {
	r.Affected.Merge(balances.Affected{CustomerIDs: []int64{id}})
}

func touchVendor(r *posting.Result, id int64) {
	r.Affected.Merge(balances.Affected{VendorIDs: []int64{id}})
}
