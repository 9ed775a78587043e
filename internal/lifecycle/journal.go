package lifecycle

import (
	"context"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/posting"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// RecordJournalEntry writes a manual entry and refreshes every balance its
// lines touch, customers and vendors included.
func (s *Service) RecordJournalEntry(ctx context.Context, scope shared.Scope, input journals.EntryInput) (journals.JournalEntry, error) {
	var recorded journals.JournalEntry
	err := s.run(ctx, scope, "journal.record", func(ctx context.Context, _ documents.TxRepository) (outcome, error) {
		entry, err := s.entries.CreateEntry(ctx, scope, input)
		if err != nil {
			return outcome{}, err
		}
		recorded = entry
		return journalOutcome(entry, map[string]any{"number": entry.Number}), nil
	})
	if err != nil {
		return journals.JournalEntry{}, err
	}
	return recorded, nil
}

// VoidJournalEntry voids a manual entry and refreshes what it touched.
func (s *Service) VoidJournalEntry(ctx context.Context, scope shared.Scope, id int64, reason string) (journals.JournalEntry, error) {
	var voided journals.JournalEntry
	err := s.run(ctx, scope, "journal.void", func(ctx context.Context, _ documents.TxRepository) (outcome, error) {
		entry, err := s.entries.VoidEntry(ctx, scope, id, reason)
		if err != nil {
			return outcome{}, err
		}
		voided = entry
		return journalOutcome(entry, map[string]any{"reason": reason}), nil
	})
	if err != nil {
		return journals.JournalEntry{}, err
	}
	return voided, nil
}

func journalOutcome(entry journals.JournalEntry, meta map[string]any) outcome {
	result := posting.Result{Entries: []journals.JournalEntry{entry}}
	result.Affected.Merge(posting.EntryAffected(entry))
	return outcome{result: result, entity: "journal_entry", entityID: entry.ID, meta: meta}
}
