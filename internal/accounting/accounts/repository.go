package accounts

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	InsertAccount(ctx context.Context, account Account) (Account, error)
	GetAccount(ctx context.Context, tenantID, id int64) (Account, error)
	UpdateAccountName(ctx context.Context, tenantID, id int64, name string, at time.Time) error
	SetAccountActive(ctx context.Context, tenantID, id int64, active bool, at time.Time) error
	CountAccountLines(ctx context.Context, tenantID, id int64) (int64, error)
	UpsertRoleMapping(ctx context.Context, mapping RoleMapping) error
	ListRoleMappings(ctx context.Context, tenantID int64) ([]RoleMapping, error)
}

// RepositoryPort abstracts persistence for the registry.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetAccount(ctx context.Context, tenantID, id int64) (Account, error)
	ListAccounts(ctx context.Context, tenantID int64) ([]Account, error)
	ListRoleMappings(ctx context.Context, tenantID int64) ([]RoleMapping, error)
}

// Repository persists accounts in PostgreSQL.
type Repository struct {
	m *db.Manager
}

// NewRepository constructs Repository.
func NewRepository(m *db.Manager) *Repository {
	return &Repository{m: m}
}

// WithTx runs fn in the transaction carried by ctx or a new one.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.m.WithTx(ctx, func(ctx context.Context) error {
		return fn(ctx, r)
	})
}

const accountColumns = `id, tenant_id, code, name, type, parent_id, is_active, balance, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *Repository) InsertAccount(ctx context.Context, account Account) (Account, error) {
	row := r.m.Conn(ctx).QueryRow(ctx, `INSERT INTO accounts (tenant_id, code, name, type, parent_id, is_active, balance, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, TRUE, 0, $6, $6)
RETURNING `+accountColumns, account.TenantID, account.Code, account.Name, string(account.Type), account.ParentID, account.CreatedAt)
	inserted, err := scanAccount(row)
	if err != nil {
		return Account{}, db.Translate(err)
	}
	return inserted, nil
}

func (r *Repository) GetAccount(ctx context.Context, tenantID, id int64) (Account, error) {
	row := r.m.Conn(ctx).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	a, err := scanAccount(row)
	if err != nil {
		return Account{}, db.NotFound(err, "account", id)
	}
	return a, nil
}

func (r *Repository) ListAccounts(ctx context.Context, tenantID int64) ([]Account, error) {
	rows, err := r.m.Conn(ctx).Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 ORDER BY code`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ListTenants returns every tenant with a chart of accounts.
func (r *Repository) ListTenants(ctx context.Context) ([]int64, error) {
	rows, err := r.m.Conn(ctx).Query(ctx, `SELECT DISTINCT tenant_id FROM accounts ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *Repository) UpdateAccountName(ctx context.Context, tenantID, id int64, name string, at time.Time) error {
	tag, err := r.m.Conn(ctx).Exec(ctx, `UPDATE accounts SET name=$3, updated_at=$4 WHERE tenant_id=$1 AND id=$2`, tenantID, id, name, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("account", id)
	}
	return nil
}

func (r *Repository) SetAccountActive(ctx context.Context, tenantID, id int64, active bool, at time.Time) error {
	_, err := r.m.Conn(ctx).Exec(ctx, `UPDATE accounts SET is_active=$3, updated_at=$4 WHERE tenant_id=$1 AND id=$2`, tenantID, id, active, at)
	return err
}

func (r *Repository) CountAccountLines(ctx context.Context, tenantID, id int64) (int64, error) {
	var count int64
	err := r.m.Conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE e.tenant_id=$1 AND l.account_id=$2`, tenantID, id).Scan(&count)
	return count, err
}

func (r *Repository) UpsertRoleMapping(ctx context.Context, mapping RoleMapping) error {
	_, err := r.m.Conn(ctx).Exec(ctx, `INSERT INTO account_role_mappings (tenant_id, role, account_id, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tenant_id, role) DO UPDATE SET account_id = EXCLUDED.account_id, updated_at = EXCLUDED.updated_at`,
		mapping.TenantID, string(mapping.Role), mapping.AccountID, mapping.UpdatedAt)
	return err
}

func (r *Repository) ListRoleMappings(ctx context.Context, tenantID int64) ([]RoleMapping, error) {
	rows, err := r.m.Conn(ctx).Query(ctx, `SELECT tenant_id, role, account_id, updated_at FROM account_role_mappings WHERE tenant_id=$1 ORDER BY role`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var mappings []RoleMapping
	for rows.Next() {
		var m RoleMapping
		if err := rows.Scan(&m.TenantID, &m.Role, &m.AccountID, &m.UpdatedAt); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}
