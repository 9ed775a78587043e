package memdb

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// AccountRepo implements accounts.RepositoryPort.
type AccountRepo struct{ *Store }

// Accounts returns the chart of accounts repository.
func (s *Store) Accounts() *AccountRepo { return &AccountRepo{s} }

// WithTx runs fn in the transaction carried by ctx or a new one.
func (r *AccountRepo) WithTx(ctx context.Context, fn func(context.Context, accounts.TxRepository) error) error {
	return r.withTx(ctx, func(ctx context.Context) error { return fn(ctx, r) })
}

func (s *Store) InsertAccount(ctx context.Context, a accounts.Account) (accounts.Account, error) {
	defer s.write(ctx)()
	for _, existing := range s.data.accounts {
		if existing.TenantID == a.TenantID && existing.Code == a.Code {
			return accounts.Account{}, &shared.DuplicateKeyError{Constraint: accounts.ConstraintCode}
		}
	}
	a.ID = s.data.id()
	a.IsActive = true
	a.Balance = decimal.Zero
	a.UpdatedAt = a.CreatedAt
	s.data.accounts[a.ID] = a
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, tenantID, id int64) (accounts.Account, error) {
	defer s.read(ctx)()
	a, ok := s.data.accounts[id]
	if !ok || a.TenantID != tenantID {
		return accounts.Account{}, shared.NotFound("account", id)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, tenantID int64) ([]accounts.Account, error) {
	defer s.read(ctx)()
	out := sortedValues(s.data.accounts, func(a accounts.Account) bool { return a.TenantID == tenantID })
	slices.SortFunc(out, func(a, b accounts.Account) int { return cmp.Compare(a.Code, b.Code) })
	return out, nil
}

func (s *Store) UpdateAccountName(ctx context.Context, tenantID, id int64, name string, at time.Time) error {
	defer s.write(ctx)()
	a, ok := s.data.accounts[id]
	if !ok || a.TenantID != tenantID {
		return shared.NotFound("account", id)
	}
	a.Name = name
	a.UpdatedAt = at
	s.data.accounts[id] = a
	return nil
}

func (s *Store) SetAccountActive(ctx context.Context, tenantID, id int64, active bool, at time.Time) error {
	defer s.write(ctx)()
	if a, ok := s.data.accounts[id]; ok && a.TenantID == tenantID {
		a.IsActive = active
		a.UpdatedAt = at
		s.data.accounts[id] = a
	}
	return nil
}

func (s *Store) CountAccountLines(ctx context.Context, tenantID, id int64) (int64, error) {
	defer s.read(ctx)()
	var n int64
	for _, e := range s.data.entries {
		if e.TenantID != tenantID {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == id {
				n++
			}
		}
	}
	return n, nil
}

func (s *Store) UpsertRoleMapping(ctx context.Context, m accounts.RoleMapping) error {
	defer s.write(ctx)()
	s.data.roles[roleKey{tenantID: m.TenantID, role: m.Role}] = m
	return nil
}

func (s *Store) ListRoleMappings(ctx context.Context, tenantID int64) ([]accounts.RoleMapping, error) {
	defer s.read(ctx)()
	var out []accounts.RoleMapping
	for k, m := range s.data.roles {
		if k.tenantID == tenantID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b accounts.RoleMapping) int { return cmp.Compare(a.Role, b.Role) })
	return out, nil
}
