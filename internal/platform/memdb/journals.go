package memdb

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// JournalRepo implements journals.Repository.
type JournalRepo struct{ *Store }

// Journals returns the journal repository.
func (s *Store) Journals() *JournalRepo { return &JournalRepo{s} }

// WithTx runs fn in the transaction carried by ctx or a new one.
func (r *JournalRepo) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return r.withTx(ctx, func(ctx context.Context) error { return fn(ctx, r) })
}

func (s *Store) MaxEntrySequence(ctx context.Context, tenantID int64) (int64, error) {
	defer s.read(ctx)()
	var max int64
	for _, e := range s.data.entries {
		if e.TenantID != tenantID {
			continue
		}
		if seq, ok := shared.ParseSequence(journals.NumberPrefix, e.Number); ok && seq > max {
			max = seq
		}
	}
	return max, nil
}

func (s *Store) InsertEntry(ctx context.Context, e journals.JournalEntry) (journals.JournalEntry, error) {
	defer s.write(ctx)()
	if err := s.injected(journals.ConstraintNumber); err != nil {
		return journals.JournalEntry{}, err
	}
	for _, existing := range s.data.entries {
		if existing.TenantID != e.TenantID {
			continue
		}
		if existing.Number == e.Number {
			return journals.JournalEntry{}, &shared.DuplicateKeyError{Constraint: journals.ConstraintNumber}
		}
		if e.SourceRef != nil && existing.SourceRef != nil && *existing.SourceRef == *e.SourceRef {
			return journals.JournalEntry{}, &shared.DuplicateKeyError{Constraint: journals.ConstraintSourceRef}
		}
	}
	e.ID = s.data.id()
	e.UpdatedAt = e.CreatedAt
	lines := make([]journals.JournalLine, len(e.Lines))
	for i, l := range e.Lines {
		l.ID = s.data.id()
		l.EntryID = e.ID
		lines[i] = l
	}
	e.Lines = lines
	s.data.entries[e.ID] = e
	return withLines(e), nil
}

func withLines(e journals.JournalEntry) journals.JournalEntry {
	e.Lines = slices.Clone(e.Lines)
	return e
}

func (s *Store) GetEntry(ctx context.Context, tenantID, id int64) (journals.JournalEntry, error) {
	defer s.read(ctx)()
	e, ok := s.data.entries[id]
	if !ok || e.TenantID != tenantID {
		return journals.JournalEntry{}, shared.NotFound("journal entry", id)
	}
	return withLines(e), nil
}

func (s *Store) GetEntryForUpdate(ctx context.Context, tenantID, id int64) (journals.JournalEntry, error) {
	return s.GetEntry(ctx, tenantID, id)
}

func (s *Store) UpdateEntryStatus(ctx context.Context, e journals.JournalEntry) error {
	defer s.write(ctx)()
	stored, ok := s.data.entries[e.ID]
	if !ok || stored.TenantID != e.TenantID {
		return nil
	}
	stored.Status = e.Status
	stored.PostedAt = e.PostedAt
	if e.PostedAt != nil {
		stored.PostedBy = e.PostedBy
	}
	stored.VoidReason = e.VoidReason
	stored.VoidedAt = e.VoidedAt
	stored.UpdatedAt = e.UpdatedAt
	s.data.entries[e.ID] = stored
	return nil
}

func (s *Store) ListEntriesBySource(ctx context.Context, tenantID int64, sourceType journals.SourceType, sourceID int64) ([]journals.JournalEntry, error) {
	return s.ListEntries(ctx, tenantID, journals.ListFilter{SourceType: sourceType, SourceID: sourceID})
}

func compareEntries(a, b journals.JournalEntry) int {
	return cmp.Or(a.Date.Compare(b.Date), cmp.Compare(a.Number, b.Number), cmp.Compare(a.ID, b.ID))
}

func (s *Store) ListEntries(ctx context.Context, tenantID int64, f journals.ListFilter) ([]journals.JournalEntry, error) {
	defer s.read(ctx)()
	out := sortedValues(s.data.entries, func(e journals.JournalEntry) bool {
		switch {
		case e.TenantID != tenantID:
			return false
		case f.Status != "" && e.Status != f.Status:
			return false
		case f.SourceType != "" && (e.SourceType != f.SourceType || e.SourceID != f.SourceID):
			return false
		case f.From != nil && e.Date.Before(*f.From):
			return false
		case f.To != nil && e.Date.After(*f.To):
			return false
		}
		return true
	})
	slices.SortFunc(out, compareEntries)
	out = page(out, f.Limit, 0)
	for i := range out {
		out[i] = withLines(out[i])
	}
	return out, nil
}

// posted returns the tenant's posted entries dated on or before asOf.
func (s *Store) posted(tenantID int64, asOf *time.Time) []journals.JournalEntry {
	out := sortedValues(s.data.entries, func(e journals.JournalEntry) bool {
		return e.TenantID == tenantID && e.Status == journals.JournalStatusPosted && (asOf == nil || !e.Date.After(*asOf))
	})
	slices.SortFunc(out, compareEntries)
	return out
}

func (s *Store) StreamLedger(ctx context.Context, tenantID int64, f journals.GLFilter, fn func(journals.LedgerLine) error) error {
	var lines []journals.LedgerLine
	func() {
		defer s.read(ctx)()
		for _, e := range s.posted(tenantID, f.To) {
			if f.From != nil && e.Date.Before(*f.From) {
				continue
			}
			for _, l := range e.Lines {
				if f.AccountID != nil && l.AccountID != *f.AccountID {
					continue
				}
				lines = append(lines, journals.LedgerLine{
					EntryID:     e.ID,
					EntryNumber: e.Number,
					Date:        e.Date,
					LineID:      l.ID,
					AccountID:   l.AccountID,
					Memo:        l.Memo,
					Debit:       l.Debit,
					Credit:      l.Credit,
					EntityType:  l.EntityType,
					EntityID:    l.EntityID,
					SourceType:  e.SourceType,
					SourceID:    e.SourceID,
				})
			}
		}
	}()
	for _, line := range lines {
		if err := fn(line); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AccountTotals(ctx context.Context, tenantID, accountID int64, asOf *time.Time) (journals.Totals, error) {
	defer s.read(ctx)()
	t := journals.Totals{Debit: decimal.Zero, Credit: decimal.Zero}
	for _, e := range s.posted(tenantID, asOf) {
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				t.Debit = t.Debit.Add(l.Debit)
				t.Credit = t.Credit.Add(l.Credit)
			}
		}
	}
	return t, nil
}

func (s *Store) AccountActivity(ctx context.Context, tenantID int64, asOf *time.Time) ([]journals.AccountActivity, error) {
	defer s.read(ctx)()
	totals := map[int64]journals.Totals{}
	for _, e := range s.posted(tenantID, asOf) {
		for _, l := range e.Lines {
			t, ok := totals[l.AccountID]
			if !ok {
				t = journals.Totals{Debit: decimal.Zero, Credit: decimal.Zero}
			}
			t.Debit = t.Debit.Add(l.Debit)
			t.Credit = t.Credit.Add(l.Credit)
			totals[l.AccountID] = t
		}
	}
	out := make([]journals.AccountActivity, 0, len(totals))
	for id, t := range totals {
		out = append(out, journals.AccountActivity{AccountID: id, Totals: t})
	}
	slices.SortFunc(out, func(a, b journals.AccountActivity) int { return cmp.Compare(a.AccountID, b.AccountID) })
	return out, nil
}

func (s *Store) UnbalancedEntries(ctx context.Context, tenantID int64) ([]journals.JournalEntry, error) {
	defer s.read(ctx)()
	var out []journals.JournalEntry
	for _, e := range sortedValues(s.data.entries, func(e journals.JournalEntry) bool {
		return e.TenantID == tenantID && e.Status == journals.JournalStatusPosted
	}) {
		debit, credit := decimal.Zero, decimal.Zero
		for _, l := range e.Lines {
			debit = debit.Add(l.Debit)
			credit = credit.Add(l.Credit)
		}
		if !debit.Equal(credit) || !debit.Equal(e.TotalDebits) {
			out = append(out, withLines(e))
		}
	}
	return out, nil
}

// CorruptEntry overwrites the stored lines of an entry, bypassing every
// check. Used to exercise integrity reports.
func (s *Store) CorruptEntry(id int64, lines []journals.JournalLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.data.entries[id]; ok {
		e.Lines = slices.Clone(lines)
		s.data.entries[id] = e
	}
}
