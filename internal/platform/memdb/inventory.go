package memdb

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// InventoryRepo implements inventory.RepositoryPort.
type InventoryRepo struct{ *Store }

// Inventory returns the product and stock movement repository.
func (s *Store) Inventory() *InventoryRepo { return &InventoryRepo{s} }

// WithTx runs fn in the transaction carried by ctx or a new one.
func (r *InventoryRepo) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return r.withTx(ctx, func(ctx context.Context) error { return fn(ctx, r) })
}

func (s *Store) InsertProduct(ctx context.Context, p inventory.Product) (inventory.Product, error) {
	defer s.write(ctx)()
	for _, existing := range s.data.products {
		if existing.TenantID == p.TenantID && existing.SKU == p.SKU {
			return inventory.Product{}, &shared.DuplicateKeyError{Constraint: inventory.ConstraintSKU}
		}
	}
	p.ID = s.data.id()
	p.QuantityOnHand = decimal.Zero
	p.IsActive = true
	p.UpdatedAt = p.CreatedAt
	s.data.products[p.ID] = p
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, tenantID, id int64) (inventory.Product, error) {
	defer s.read(ctx)()
	p, ok := s.data.products[id]
	if !ok || p.TenantID != tenantID {
		return inventory.Product{}, shared.NotFound("product", id)
	}
	return p, nil
}

func (s *Store) GetProductForUpdate(ctx context.Context, tenantID, id int64) (inventory.Product, error) {
	return s.GetProduct(ctx, tenantID, id)
}

func (s *Store) ListProducts(ctx context.Context, tenantID int64, f inventory.ProductFilter) ([]inventory.Product, error) {
	defer s.read(ctx)()
	search := strings.ToLower(f.Search)
	out := sortedValues(s.data.products, func(p inventory.Product) bool {
		if p.TenantID != tenantID || (f.TrackedOnly && !p.TrackInventory) {
			return false
		}
		return search == "" || strings.Contains(strings.ToLower(p.SKU), search) || strings.Contains(strings.ToLower(p.Name), search)
	})
	slices.SortFunc(out, func(a, b inventory.Product) int { return cmp.Compare(a.SKU, b.SKU) })
	return out, nil
}

func (s *Store) UpdateProductStock(ctx context.Context, tenantID, id int64, qty, cost decimal.Decimal, at time.Time) error {
	defer s.write(ctx)()
	if p, ok := s.data.products[id]; ok && p.TenantID == tenantID {
		p.QuantityOnHand = qty
		p.Cost = cost
		p.UpdatedAt = at
		s.data.products[id] = p
	}
	return nil
}

func (s *Store) InsertMovement(ctx context.Context, m inventory.Movement) (inventory.Movement, error) {
	defer s.write(ctx)()
	if _, ok := s.data.products[m.ProductID]; !ok {
		return inventory.Movement{}, shared.NotFound("product", m.ProductID)
	}
	m.ID = s.data.id()
	s.data.movements[m.ID] = m
	return m, nil
}

func (s *Store) SetMovementJournal(ctx context.Context, tenantID, movementID, entryID int64) error {
	defer s.write(ctx)()
	if m, ok := s.data.movements[movementID]; ok && m.TenantID == tenantID {
		m.JournalEntryID = &entryID
		s.data.movements[movementID] = m
	}
	return nil
}

func (s *Store) ListMovementsByReference(ctx context.Context, tenantID int64, ref inventory.Reference) ([]inventory.Movement, error) {
	defer s.read(ctx)()
	return sortedValues(s.data.movements, func(m inventory.Movement) bool {
		return m.TenantID == tenantID && m.Reference == ref
	}), nil
}

func (s *Store) ListMovements(ctx context.Context, tenantID, productID int64) ([]inventory.Movement, error) {
	defer s.read(ctx)()
	out := sortedValues(s.data.movements, func(m inventory.Movement) bool {
		return m.TenantID == tenantID && m.ProductID == productID
	})
	slices.SortFunc(out, func(a, b inventory.Movement) int {
		return cmp.Or(b.OccurredAt.Compare(a.OccurredAt), cmp.Compare(b.ID, a.ID))
	})
	return out, nil
}
