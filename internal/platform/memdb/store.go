// Package memdb is an in-memory implementation of the repository ports.
// It backs service and transport tests. A transaction
// holds the store lock for its whole duration; a failed transaction or
// savepoint restores the snapshot taken when it began.
package memdb

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type roleKey struct {
	tenantID int64
	role     accounts.Role
}

type state struct {
	nextID    int64
	accounts  map[int64]accounts.Account
	roles     map[roleKey]accounts.RoleMapping
	entries   map[int64]journals.JournalEntry
	products  map[int64]inventory.Product
	movements map[int64]inventory.Movement
	customers map[int64]documents.Customer
	vendors   map[int64]documents.Vendor
	invoices  map[int64]documents.Invoice
	bills     map[int64]documents.Bill
	memos     map[int64]documents.CreditMemo
	pos       map[int64]documents.PurchaseOrder
	sos       map[int64]documents.SalesOrder
	payments  map[int64]documents.Payment
	audit     []shared.AuditLog
}

func newState() *state {
	return &state{
		accounts:  map[int64]accounts.Account{},
		roles:     map[roleKey]accounts.RoleMapping{},
		entries:   map[int64]journals.JournalEntry{},
		products:  map[int64]inventory.Product{},
		movements: map[int64]inventory.Movement{},
		customers: map[int64]documents.Customer{},
		vendors:   map[int64]documents.Vendor{},
		invoices:  map[int64]documents.Invoice{},
		bills:     map[int64]documents.Bill{},
		memos:     map[int64]documents.CreditMemo{},
		pos:       map[int64]documents.PurchaseOrder{},
		sos:       map[int64]documents.SalesOrder{},
		payments:  map[int64]documents.Payment{},
	}
}

// clone copies every table. Stored slices are never mutated in place, so
// sharing them between snapshots is safe.
func (st *state) clone() *state {
	return &state{
		nextID:    st.nextID,
		accounts:  maps.Clone(st.accounts),
		roles:     maps.Clone(st.roles),
		entries:   maps.Clone(st.entries),
		products:  maps.Clone(st.products),
		movements: maps.Clone(st.movements),
		customers: maps.Clone(st.customers),
		vendors:   maps.Clone(st.vendors),
		invoices:  maps.Clone(st.invoices),
		bills:     maps.Clone(st.bills),
		memos:     maps.Clone(st.memos),
		pos:       maps.Clone(st.pos),
		sos:       maps.Clone(st.sos),
		payments:  maps.Clone(st.payments),
		audit:     slices.Clone(st.audit),
	}
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

type txKey struct{}

// Store holds every table of every tenant.
type Store struct {
	mu       sync.RWMutex
	data     *state
	failures map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newState(), failures: map[string]int{}}
}

// FailInserts makes the next n inserts guarded by constraint fail with a
// unique violation, as if a concurrent writer took the value first.
func (s *Store) FailInserts(constraint string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[constraint] = n
}

func (s *Store) inTx(ctx context.Context) bool {
	st, ok := ctx.Value(txKey{}).(*Store)
	return ok && st == s
}

// read locks the store for reading unless ctx already owns it.
func (s *Store) read(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// write locks the store for writing unless ctx already owns it.
func (s *Store) write(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) withTx(ctx context.Context, fn func(context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// Savepoint implements shared.Savepointer.
func (s *Store) Savepoint(ctx context.Context, fn func(context.Context) error) error {
	if !s.inTx(ctx) {
		return s.withTx(ctx, fn)
	}
	snapshot := s.data.clone()
	if err := fn(ctx); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// injected consumes one forced failure for constraint. Callers hold the
// write lock.
func (s *Store) injected(constraint string) error {
	if s.failures[constraint] > 0 {
		s.failures[constraint]--
		return &shared.DuplicateKeyError{Constraint: constraint}
	}
	return nil
}

// ListTenants returns every tenant with a chart of accounts.
func (s *Store) ListTenants(ctx context.Context) ([]int64, error) {
	defer s.read(ctx)()
	seen := map[int64]bool{}
	var out []int64
	for _, a := range s.data.accounts {
		if !seen[a.TenantID] {
			seen[a.TenantID] = true
			out = append(out, a.TenantID)
		}
	}
	slices.Sort(out)
	return out, nil
}

// InsertAuditLog implements shared.AuditStore.
func (s *Store) InsertAuditLog(ctx context.Context, log shared.AuditLog) error {
	defer s.write(ctx)()
	log.Meta = maps.Clone(log.Meta)
	s.data.audit = append(s.data.audit, log)
	return nil
}

// AuditLogs returns the recorded audit trail of a tenant.
func (s *Store) AuditLogs(tenantID int64) []shared.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []shared.AuditLog
	for _, l := range s.data.audit {
		if l.TenantID == tenantID {
			out = append(out, l)
		}
	}
	return out
}

// sortedValues returns the rows of m matching keep ordered by id.
func sortedValues[V any](m map[int64]V, keep func(V) bool) []V {
	ids := make([]int64, 0, len(m))
	for id, v := range m {
		if keep(v) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func page[V any](rows []V, limit, offset int) []V {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
