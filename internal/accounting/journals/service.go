package journals

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// AccountLookup resolves accounts referenced by lines.
type AccountLookup interface {
	GetAccount(ctx context.Context, scope shared.Scope, id int64) (accounts.Account, error)
}

// Service is the ledger engine: it validates, numbers and persists entries.
type Service struct {
	repo     Repository
	accounts AccountLookup
	audit    AuditPort
	logger   *slog.Logger
	retries  int
	now      func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo Repository, lookup AccountLookup, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, accounts: lookup, audit: audit, logger: logger, retries: shared.DefaultNumberRetries, now: time.Now}
}

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

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SourceRef derives the deterministic link for a posting event.
func SourceRef(tenantID int64, sourceType SourceType, sourceID int64, event string) *uuid.UUID {
	ref := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%d:%s:%d:%s", tenantID, sourceType, sourceID, event)))
	return &ref
}

// CreateEntry validates and persists a new journal entry with its lines.
func (s *Service) CreateEntry(ctx context.Context, scope shared.Scope, input EntryInput) (JournalEntry, error) {
	return s.createEntry(ctx, scope, input, nil)
}

func (s *Service) createEntry(ctx context.Context, scope shared.Scope, input EntryInput, reversalOf *int64) (JournalEntry, error) {
	if err := scope.Validate(); err != nil {
		return JournalEntry{}, err
	}
	debits, credits, err := input.normalize()
	if err != nil {
		return JournalEntry{}, err
	}
	if input.Date.IsZero() {
		input.Date = s.now()
	}
	var entry JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.checkAccounts(ctx, scope, input.Lines); err != nil {
			return err
		}
		now := s.now()
		record := JournalEntry{
			TenantID:     scope.TenantID,
			Date:         DateOnly(input.Date),
			Memo:         input.Memo,
			Status:       JournalStatusDraft,
			SourceType:   input.SourceType,
			SourceID:     input.SourceID,
			SourceRef:    input.SourceRef,
			ReversalOf:   reversalOf,
			TotalDebits:  debits,
			TotalCredits: credits,
			CreatedBy:    scope.ActorID,
			CreatedAt:    now,
			UpdatedAt:    now,
			Lines:        toJournalLines(input.Lines),
		}
		if input.Post {
			record.Status = JournalStatusPosted
			record.PostedBy = scope.ActorID
			record.PostedAt = &now
		}
		seq := shared.Sequencer{Prefix: NumberPrefix, Constraint: ConstraintNumber, Retries: s.retries, Now: s.now}
		_, err := seq.Assign(ctx, tx, input.Number,
			func(ctx context.Context) (int64, error) {
				return tx.MaxEntrySequence(ctx, scope.TenantID)
			},
			func(ctx context.Context, number string) error {
				record.Number = number
				inserted, err := tx.InsertEntry(ctx, record)
				if err != nil {
					return err
				}
				entry = inserted
				return nil
			})
		if shared.IsDuplicateKey(err, ConstraintSourceRef) {
			return shared.InvalidWrap("source_ref", ErrSourceAlreadyLinked, "%s %d already posted", input.SourceType, input.SourceID)
		}
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if entry.Status == JournalStatusPosted {
		s.record(ctx, scope, "journal.post", entry, map[string]any{
			"number":      entry.Number,
			"source_type": string(entry.SourceType),
			"source_id":   entry.SourceID,
		})
	}
	return entry, nil
}

func (s *Service) checkAccounts(ctx context.Context, scope shared.Scope, lines []PostingLineInput) error {
	checked := make(map[int64]bool, len(lines))
	for _, line := range lines {
		if checked[line.AccountID] {
			continue
		}
		checked[line.AccountID] = true
		account, err := s.accounts.GetAccount(ctx, scope, line.AccountID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.Invalid("lines", "account %d does not exist", line.AccountID)
			}
			return err
		}
		if !account.IsActive {
			return shared.InvalidWrap("lines", ErrInactiveAccount, "account %s is inactive", account.Code)
		}
	}
	return nil
}

func toJournalLines(inputs []PostingLineInput) []JournalLine {
	lines := make([]JournalLine, 0, len(inputs))
	for _, in := range inputs {
		lines = append(lines, JournalLine{
			AccountID:  in.AccountID,
			Debit:      in.Debit,
			Credit:     in.Credit,
			EntityType: in.EntityType,
			EntityID:   in.EntityID,
			Memo:       in.Memo,
		})
	}
	return lines
}

// PostEntry moves a draft entry to posted. Posting a posted entry is a no-op.
func (s *Service) PostEntry(ctx context.Context, scope shared.Scope, id int64) (JournalEntry, error) {
	if err := scope.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	changed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, scope.TenantID, id)
		if err != nil {
			return err
		}
		entry = current
		switch current.Status {
		case JournalStatusPosted:
			return nil
		case JournalStatusVoid:
			return shared.InvalidWrap("status", ErrInvalidStatus, "entry %s is void", current.Number)
		case JournalStatusDraft:
		}
		now := s.now()
		entry.Status = JournalStatusPosted
		entry.PostedBy = scope.ActorID
		entry.PostedAt = &now
		entry.UpdatedAt = now
		changed = true
		return tx.UpdateEntryStatus(ctx, entry)
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if changed {
		s.record(ctx, scope, "journal.post", entry, map[string]any{"number": entry.Number})
	}
	return entry, nil
}

// VoidEntry marks an entry void. Voided entries drop out of every balance.
func (s *Service) VoidEntry(ctx context.Context, scope shared.Scope, id int64, reason string) (JournalEntry, error) {
	if err := scope.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	changed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, scope.TenantID, id)
		if err != nil {
			return err
		}
		entry = current
		if current.Status == JournalStatusVoid {
			return nil
		}
		entry = s.voided(current, reason)
		changed = true
		return tx.UpdateEntryStatus(ctx, entry)
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if changed {
		s.record(ctx, scope, "journal.void", entry, map[string]any{"reason": reason})
	}
	return entry, nil
}

func (s *Service) voided(entry JournalEntry, reason string) JournalEntry {
	now := s.now()
	entry.Status = JournalStatusVoid
	entry.VoidReason = reason
	entry.VoidedAt = &now
	entry.UpdatedAt = now
	return entry
}

// VoidBySource voids every live entry linked to a document and returns them.
func (s *Service) VoidBySource(ctx context.Context, scope shared.Scope, sourceType SourceType, sourceID int64, reason string) ([]JournalEntry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	var voided []JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entries, err := tx.ListEntriesBySource(ctx, scope.TenantID, sourceType, sourceID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Status == JournalStatusVoid {
				continue
			}
			locked, err := tx.GetEntryForUpdate(ctx, scope.TenantID, e.ID)
			if err != nil {
				return err
			}
			v := s.voided(locked, reason)
			if err := tx.UpdateEntryStatus(ctx, v); err != nil {
				return err
			}
			voided = append(voided, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, e := range voided {
		s.record(ctx, scope, "journal.void", e, map[string]any{"reason": reason, "source_type": string(sourceType), "source_id": sourceID})
	}
	return voided, nil
}

// ReverseEntry posts a new entry with every side swapped.
func (s *Service) ReverseEntry(ctx context.Context, scope shared.Scope, input ReverseInput) (JournalEntry, error) {
	if err := scope.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if input.EntryID == 0 {
		return JournalEntry{}, shared.Invalid("entry_id", "entry id required")
	}
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryForUpdate(ctx, scope.TenantID, input.EntryID)
		if err != nil {
			return err
		}
		if original.Status != JournalStatusPosted {
			return shared.InvalidWrap("status", ErrInvalidStatus, "only posted entries can be reversed")
		}
		memo := input.Memo
		if memo == "" {
			memo = "Reversal of " + original.Number
		}
		date := input.Date
		if date.IsZero() {
			date = s.now()
		}
		lines := make([]PostingLineInput, 0, len(original.Lines))
		for _, l := range original.Lines {
			lines = append(lines, PostingLineInput{
				AccountID:  l.AccountID,
				Debit:      l.Credit,
				Credit:     l.Debit,
				EntityType: l.EntityType,
				EntityID:   l.EntityID,
				Memo:       l.Memo,
			})
		}
		id := original.ID
		reversal, err = s.createEntry(ctx, scope, EntryInput{
			Date:       date,
			Memo:       memo,
			SourceType: SourceReversal,
			SourceID:   original.ID,
			SourceRef:  SourceRef(scope.TenantID, SourceReversal, original.ID, "reverse"),
			Post:       true,
			Lines:      lines,
		}, &id)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return reversal, nil
}

// GetEntry returns an entry with its lines.
func (s *Service) GetEntry(ctx context.Context, scope shared.Scope, id int64) (JournalEntry, error) {
	if err := scope.Validate(); err != nil {
		return JournalEntry{}, err
	}
	return s.repo.GetEntry(ctx, scope.TenantID, id)
}

// ListEntries returns entry headers.
func (s *Service) ListEntries(ctx context.Context, scope shared.Scope, filter ListFilter) ([]JournalEntry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListEntries(ctx, scope.TenantID, filter)
}

var errStopIteration = errors.New("journals: stop iteration")

// GeneralLedger lazily yields posted lines ordered by date, entry number and
// line id. Balance is the cumulative debit minus credit up to and including
// the line; with an account and a From date it starts from the account's
// balance before From.
func (s *Service) GeneralLedger(ctx context.Context, scope shared.Scope, filter GLFilter) iter.Seq2[LedgerLine, error] {
	return func(yield func(LedgerLine, error) bool) {
		if err := scope.Validate(); err != nil {
			yield(LedgerLine{}, err)
			return
		}
		running := decimal.Zero
		if filter.AccountID != nil && filter.From != nil {
			before := DateOnly(*filter.From).AddDate(0, 0, -1)
			opening, err := s.repo.AccountTotals(ctx, scope.TenantID, *filter.AccountID, &before)
			if err != nil {
				yield(LedgerLine{}, err)
				return
			}
			running = opening.Debit.Sub(opening.Credit)
		}
		err := s.repo.StreamLedger(ctx, scope.TenantID, filter, func(line LedgerLine) error {
			running = running.Add(line.Debit).Sub(line.Credit)
			line.Balance = running
			if !yield(line, nil) {
				return errStopIteration
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopIteration) {
			yield(LedgerLine{}, err)
		}
	}
}

// AccountTotals sums posted lines of an account up to asOf inclusive.
func (s *Service) AccountTotals(ctx context.Context, scope shared.Scope, accountID int64, asOf *time.Time) (Totals, error) {
	if err := scope.Validate(); err != nil {
		return Totals{}, err
	}
	if asOf != nil {
		d := DateOnly(*asOf)
		asOf = &d
	}
	return s.repo.AccountTotals(ctx, scope.TenantID, accountID, asOf)
}

// AccountActivity returns posted totals grouped by account.
func (s *Service) AccountActivity(ctx context.Context, scope shared.Scope, asOf *time.Time) ([]AccountActivity, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if asOf != nil {
		d := DateOnly(*asOf)
		asOf = &d
	}
	return s.repo.AccountActivity(ctx, scope.TenantID, asOf)
}

// UnbalancedEntries lists posted entries whose stored lines do not balance.
func (s *Service) UnbalancedEntries(ctx context.Context, scope shared.Scope) ([]JournalEntry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.UnbalancedEntries(ctx, scope.TenantID)
}

func (s *Service) record(ctx context.Context, scope shared.Scope, action string, entry JournalEntry, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		TenantID: scope.TenantID,
		ActorID:  scope.ActorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: strconv.FormatInt(entry.ID, 10),
		Meta:     meta,
		At:       s.now(),
	}
	// A failed insert must not poison a transaction the caller still owns.
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Savepoint(ctx, func(ctx context.Context) error {
			return s.audit.Record(ctx, log)
		})
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Int64("entry_id", entry.ID), slog.Any("error", err))
	}
}
