package inventory

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
)

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	InsertProduct(ctx context.Context, product Product) (Product, error)
	GetProductForUpdate(ctx context.Context, tenantID, id int64) (Product, error)
	UpdateProductStock(ctx context.Context, tenantID, id int64, qty, cost decimal.Decimal, at time.Time) error
	InsertMovement(ctx context.Context, movement Movement) (Movement, error)
	SetMovementJournal(ctx context.Context, tenantID, movementID, entryID int64) error
	ListMovementsByReference(ctx context.Context, tenantID int64, ref Reference) ([]Movement, error)
}

// RepositoryPort is the read side plus transactional access.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, tenantID, id int64) (Product, error)
	ListProducts(ctx context.Context, tenantID int64, filter ProductFilter) ([]Product, error)
	ListMovements(ctx context.Context, tenantID, productID int64) ([]Movement, error)
}

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	m *db.Manager
}

// NewRepository constructs Repository.
func NewRepository(m *db.Manager) *Repository {
	return &Repository{m: m}
}

// WithTx executes the callback inside the context transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.m.WithTx(ctx, func(ctx context.Context) error {
		return fn(ctx, r)
	})
}

const productColumns = `id, tenant_id, sku, name, track_inventory, quantity_on_hand, cost, sales_price, revenue_account_id, expense_account_id, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.TrackInventory, &p.QuantityOnHand, &p.Cost, &p.SalesPrice,
		&p.RevenueAccountID, &p.ExpenseAccountID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repository) InsertProduct(ctx context.Context, product Product) (Product, error) {
	row := r.m.Conn(ctx).QueryRow(ctx, `INSERT INTO products (tenant_id, sku, name, track_inventory, quantity_on_hand, cost, sales_price,
revenue_account_id, expense_account_id, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8, TRUE, $9, $9)
RETURNING `+productColumns,
		product.TenantID, product.SKU, product.Name, product.TrackInventory, product.Cost, product.SalesPrice,
		product.RevenueAccountID, product.ExpenseAccountID, product.CreatedAt)
	inserted, err := scanProduct(row)
	if err != nil {
		return Product{}, db.Translate(err)
	}
	return inserted, nil
}

func (r *Repository) GetProduct(ctx context.Context, tenantID, id int64) (Product, error) {
	p, err := scanProduct(r.m.Conn(ctx).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if err != nil {
		return Product{}, db.NotFound(err, "product", id)
	}
	return p, nil
}

func (r *Repository) GetProductForUpdate(ctx context.Context, tenantID, id int64) (Product, error) {
	p, err := scanProduct(r.m.Conn(ctx).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
	if err != nil {
		return Product{}, db.NotFound(err, "product", id)
	}
	return p, nil
}

func (r *Repository) ListProducts(ctx context.Context, tenantID int64, filter ProductFilter) ([]Product, error) {
	rows, err := r.m.Conn(ctx).Query(ctx, `SELECT `+productColumns+` FROM products
WHERE tenant_id=$1 AND (NOT $2 OR track_inventory) AND ($3 = '' OR sku ILIKE '%' || $3 || '%' OR name ILIKE '%' || $3 || '%')
ORDER BY sku`, tenantID, filter.TrackedOnly, filter.Search)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		return scanProduct(row)
	})
}

func (r *Repository) UpdateProductStock(ctx context.Context, tenantID, id int64, qty, cost decimal.Decimal, at time.Time) error {
	_, err := r.m.Conn(ctx).Exec(ctx, `UPDATE products SET quantity_on_hand=$3, cost=$4, updated_at=$5 WHERE tenant_id=$1 AND id=$2`,
		tenantID, id, qty, cost, at)
	return err
}

const movementColumns = `id, tenant_id, product_id, quantity, unit_cost, total_value, movement_type, reference_type, reference_id,
journal_entry_id, memo, occurred_at, created_by, created_at`

func scanMovement(row pgx.Row) (Movement, error) {
	var m Movement
	var refType string
	err := row.Scan(&m.ID, &m.TenantID, &m.ProductID, &m.Quantity, &m.UnitCost, &m.TotalValue, &m.Type, &refType, &m.Reference.ID,
		&m.JournalEntryID, &m.Memo, &m.OccurredAt, &m.CreatedBy, &m.CreatedAt)
	m.Reference.Type = journals.SourceType(refType)
	return m, err
}

func (r *Repository) InsertMovement(ctx context.Context, movement Movement) (Movement, error) {
	row := r.m.Conn(ctx).QueryRow(ctx, `INSERT INTO stock_movements (tenant_id, product_id, quantity, unit_cost, total_value, movement_type,
reference_type, reference_id, journal_entry_id, memo, occurred_at, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING `+movementColumns,
		movement.TenantID, movement.ProductID, movement.Quantity, movement.UnitCost, movement.TotalValue, string(movement.Type),
		string(movement.Reference.Type), movement.Reference.ID, movement.JournalEntryID, movement.Memo, movement.OccurredAt,
		movement.CreatedBy, movement.CreatedAt)
	inserted, err := scanMovement(row)
	if err != nil {
		return Movement{}, db.Translate(err)
	}
	return inserted, nil
}

func (r *Repository) SetMovementJournal(ctx context.Context, tenantID, movementID, entryID int64) error {
	_, err := r.m.Conn(ctx).Exec(ctx, `UPDATE stock_movements SET journal_entry_id=$3 WHERE tenant_id=$1 AND id=$2`, tenantID, movementID, entryID)
	return err
}

func (r *Repository) ListMovementsByReference(ctx context.Context, tenantID int64, ref Reference) ([]Movement, error) {
	rows, err := r.m.Conn(ctx).Query(ctx, `SELECT `+movementColumns+` FROM stock_movements
WHERE tenant_id=$1 AND reference_type=$2 AND reference_id=$3 ORDER BY id`, tenantID, string(ref.Type), ref.ID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Movement, error) {
		return scanMovement(row)
	})
}

// ListMovements returns a product's movements newest first. The serial id
// breaks ties between movements sharing a timestamp.
func (r *Repository) ListMovements(ctx context.Context, tenantID, productID int64) ([]Movement, error) {
	rows, err := r.m.Conn(ctx).Query(ctx, `SELECT `+movementColumns+` FROM stock_movements
WHERE tenant_id=$1 AND product_id=$2 ORDER BY occurred_at DESC, id DESC`, tenantID, productID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Movement, error) {
		return scanMovement(row)
	})
}
