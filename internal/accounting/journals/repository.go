package journals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	shared.Savepointer
	MaxEntrySequence(ctx context.Context, tenantID int64) (int64, error)
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	GetEntryForUpdate(ctx context.Context, tenantID, id int64) (JournalEntry, error)
	UpdateEntryStatus(ctx context.Context, entry JournalEntry) error
	ListEntriesBySource(ctx context.Context, tenantID int64, sourceType SourceType, sourceID int64) ([]JournalEntry, error)
}

// Repository is the read side plus transactional access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntry(ctx context.Context, tenantID, id int64) (JournalEntry, error)
	ListEntries(ctx context.Context, tenantID int64, filter ListFilter) ([]JournalEntry, error)
	StreamLedger(ctx context.Context, tenantID int64, filter GLFilter, fn func(LedgerLine) error) error
	AccountTotals(ctx context.Context, tenantID, accountID int64, asOf *time.Time) (Totals, error)
	AccountActivity(ctx context.Context, tenantID int64, asOf *time.Time) ([]AccountActivity, error)
	UnbalancedEntries(ctx context.Context, tenantID int64) ([]JournalEntry, error)
}

type repository struct {
	m *db.Manager
}

// NewRepository constructs the PostgreSQL journal repository.
func NewRepository(m *db.Manager) Repository {
	return &repository{m: m}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.m.WithTx(ctx, func(ctx context.Context) error {
		return fn(ctx, r)
	})
}

func (r *repository) Savepoint(ctx context.Context, fn func(context.Context) error) error {
	return r.m.Savepoint(ctx, fn)
}

func (r *repository) MaxEntrySequence(ctx context.Context, tenantID int64) (int64, error) {
	return db.MaxSequence(ctx, r.m.Conn(ctx), "journal_entries", tenantID, NumberPrefix)
}

const entryColumns = `id, tenant_id, number, entry_date, memo, status, source_type, source_id, source_ref, reversal_of,
total_debits, total_credits, created_by, COALESCE(posted_by, 0), posted_at, void_reason, voided_at, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.TenantID, &e.Number, &e.Date, &e.Memo, &e.Status, &e.SourceType, &e.SourceID, &e.SourceRef, &e.ReversalOf,
		&e.TotalDebits, &e.TotalCredits, &e.CreatedBy, &e.PostedBy, &e.PostedAt, &e.VoidReason, &e.VoidedAt, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *repository) InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	conn := r.m.Conn(ctx)
	var postedBy *int64
	if entry.PostedAt != nil {
		postedBy = &entry.PostedBy
	}
	row := conn.QueryRow(ctx, `INSERT INTO journal_entries (tenant_id, number, entry_date, memo, status, source_type, source_id, source_ref, reversal_of,
total_debits, total_credits, created_by, posted_by, posted_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
RETURNING `+entryColumns,
		entry.TenantID, entry.Number, entry.Date, entry.Memo, string(entry.Status), string(entry.SourceType), entry.SourceID, entry.SourceRef, entry.ReversalOf,
		entry.TotalDebits, entry.TotalCredits, entry.CreatedBy, postedBy, entry.PostedAt, entry.CreatedAt)
	inserted, err := scanEntry(row)
	if err != nil {
		return JournalEntry{}, db.Translate(err)
	}
	for _, line := range entry.Lines {
		line.EntryID = inserted.ID
		err := conn.QueryRow(ctx, `INSERT INTO journal_entry_lines (entry_id, account_id, debit, credit, entity_type, entity_id, memo)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			line.EntryID, line.AccountID, line.Debit, line.Credit, string(line.EntityType), line.EntityID, line.Memo).Scan(&line.ID)
		if err != nil {
			return JournalEntry{}, fmt.Errorf("journals: insert line: %w", db.Translate(err))
		}
		inserted.Lines = append(inserted.Lines, line)
	}
	return inserted, nil
}

func (r *repository) loadLines(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]int64, len(entries))
	index := make(map[int64]int, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		index[e.ID] = i
	}
	rows, err := r.m.Conn(ctx).Query(ctx, `SELECT id, entry_id, account_id, debit, credit, entity_type, entity_id, memo
FROM journal_entry_lines WHERE entry_id = ANY($1) ORDER BY entry_id, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.Debit, &l.Credit, &l.EntityType, &l.EntityID, &l.Memo); err != nil {
			return err
		}
		i := index[l.EntryID]
		entries[i].Lines = append(entries[i].Lines, l)
	}
	return rows.Err()
}

func (r *repository) getEntry(ctx context.Context, tenantID, id int64, lock bool) (JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE tenant_id=$1 AND id=$2`
	if lock {
		query += ` FOR UPDATE`
	}
	entry, err := scanEntry(r.m.Conn(ctx).QueryRow(ctx, query, tenantID, id))
	if err != nil {
		return JournalEntry{}, db.NotFound(err, "journal entry", id)
	}
	entries := []JournalEntry{entry}
	if err := r.loadLines(ctx, entries); err != nil {
		return JournalEntry{}, err
	}
	return entries[0], nil
}

func (r *repository) GetEntry(ctx context.Context, tenantID, id int64) (JournalEntry, error) {
	return r.getEntry(ctx, tenantID, id, false)
}

func (r *repository) GetEntryForUpdate(ctx context.Context, tenantID, id int64) (JournalEntry, error) {
	return r.getEntry(ctx, tenantID, id, true)
}

func (r *repository) UpdateEntryStatus(ctx context.Context, entry JournalEntry) error {
	var postedBy *int64
	if entry.PostedAt != nil {
		postedBy = &entry.PostedBy
	}
	_, err := r.m.Conn(ctx).Exec(ctx, `UPDATE journal_entries
SET status=$3, posted_by=$4, posted_at=$5, void_reason=$6, voided_at=$7, updated_at=$8
WHERE tenant_id=$1 AND id=$2`,
		entry.TenantID, entry.ID, string(entry.Status), postedBy, entry.PostedAt, entry.VoidReason, entry.VoidedAt, entry.UpdatedAt)
	return err
}

func (r *repository) ListEntriesBySource(ctx context.Context, tenantID int64, sourceType SourceType, sourceID int64) ([]JournalEntry, error) {
	return r.ListEntries(ctx, tenantID, ListFilter{SourceType: sourceType, SourceID: sourceID, withLines: true})
}

func (r *repository) ListEntries(ctx context.Context, tenantID int64, filter ListFilter) ([]JournalEntry, error) {
	var (
		conds = []string{"tenant_id=$1"}
		args  = []any{tenantID}
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status=$%d", string(filter.Status))
	}
	if filter.SourceType != "" {
		add("source_type=$%d", string(filter.SourceType))
		add("source_id=$%d", filter.SourceID)
	}
	if filter.From != nil {
		add("entry_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("entry_date <= $%d", *filter.To)
	}
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY entry_date, number, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	rows, err := r.m.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (JournalEntry, error) {
		return scanEntry(row)
	})
	if err != nil {
		return nil, err
	}
	if filter.withLines {
		if err := r.loadLines(ctx, entries); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (r *repository) StreamLedger(ctx context.Context, tenantID int64, filter GLFilter, fn func(LedgerLine) error) error {
	var (
		conds = []string{"e.tenant_id=$1", "e.status='POSTED'"}
		args  = []any{tenantID}
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.AccountID != nil {
		add("l.account_id=$%d", *filter.AccountID)
	}
	if filter.From != nil {
		add("e.entry_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("e.entry_date <= $%d", *filter.To)
	}
	rows, err := r.m.Conn(ctx).Query(ctx, `SELECT e.id, e.number, e.entry_date, e.source_type, e.source_id, l.id, l.account_id, l.memo, l.debit, l.credit, l.entity_type, l.entity_id
FROM journal_entry_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE `+strings.Join(conds, " AND ")+`
ORDER BY e.entry_date, e.number, l.id`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var line LedgerLine
		if err := rows.Scan(&line.EntryID, &line.EntryNumber, &line.Date, &line.SourceType, &line.SourceID, &line.LineID, &line.AccountID,
			&line.Memo, &line.Debit, &line.Credit, &line.EntityType, &line.EntityID); err != nil {
			return err
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *repository) AccountTotals(ctx context.Context, tenantID, accountID int64, asOf *time.Time) (Totals, error) {
	var t Totals
	err := r.m.Conn(ctx).QueryRow(ctx, `SELECT COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_entry_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE e.tenant_id=$1 AND l.account_id=$2 AND e.status='POSTED' AND ($3::date IS NULL OR e.entry_date <= $3::date)`,
		tenantID, accountID, asOf).Scan(&t.Debit, &t.Credit)
	return t, err
}

func (r *repository) AccountActivity(ctx context.Context, tenantID int64, asOf *time.Time) ([]AccountActivity, error) {
	rows, err := r.m.Conn(ctx).Query(ctx, `SELECT l.account_id, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_entry_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE e.tenant_id=$1 AND e.status='POSTED' AND ($2::date IS NULL OR e.entry_date <= $2::date)
GROUP BY l.account_id ORDER BY l.account_id`, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AccountActivity, error) {
		var a AccountActivity
		err := row.Scan(&a.AccountID, &a.Debit, &a.Credit)
		return a, err
	})
}

func (r *repository) UnbalancedEntries(ctx context.Context, tenantID int64) ([]JournalEntry, error) {
	rows, err := r.m.Conn(ctx).Query(ctx, `SELECT `+entryColumns+` FROM journal_entries je
WHERE je.tenant_id=$1 AND je.status='POSTED' AND EXISTS (
	SELECT 1 FROM journal_entry_lines l WHERE l.entry_id = je.id
	GROUP BY l.entry_id
	HAVING SUM(l.debit) <> SUM(l.credit) OR SUM(l.debit) <> je.total_debits
)
ORDER BY je.id`, tenantID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (JournalEntry, error) {
		return scanEntry(row)
	})
}
