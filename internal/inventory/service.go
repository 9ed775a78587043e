package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// RoleResolver resolves posting accounts.
type RoleResolver interface {
	ResolveAll(ctx context.Context, scope shared.Scope, roles ...accounts.Role) (accounts.RoleSet, error)
}

// Ledger persists movement journals.
type Ledger interface {
	CreateEntry(ctx context.Context, scope shared.Scope, input journals.EntryInput) (journals.JournalEntry, error)
}

// Service tracks quantity on hand and moving-average cost.
type Service struct {
	repo   RepositoryPort
	roles  RoleResolver
	ledger Ledger
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the inventory service.
func NewService(repo RepositoryPort, roles RoleResolver, ledger Ledger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, roles: roles, ledger: ledger, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateProduct stores a product and its opening stock in one transaction.
func (s *Service) CreateProduct(ctx context.Context, scope shared.Scope, input ProductInput) (Product, error) {
	if err := scope.Validate(); err != nil {
		return Product{}, err
	}
	sku := strings.TrimSpace(input.SKU)
	name := strings.TrimSpace(input.Name)
	switch {
	case sku == "":
		return Product{}, shared.Invalid("sku", "sku is required")
	case name == "":
		return Product{}, shared.Invalid("name", "name is required")
	case input.Cost.IsNegative():
		return Product{}, shared.Invalid("cost", "cost cannot be negative")
	case input.SalesPrice.IsNegative():
		return Product{}, shared.Invalid("sales_price", "sales price cannot be negative")
	case input.OpeningQuantity.IsNegative():
		return Product{}, shared.Invalid("opening_quantity", "opening quantity cannot be negative")
	case input.OpeningQuantity.IsPositive() && !input.TrackInventory:
		return Product{}, shared.InvalidWrap("opening_quantity", ErrNotTracked, "opening stock requires inventory tracking")
	}
	var product Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertProduct(ctx, Product{
			TenantID:         scope.TenantID,
			SKU:              sku,
			Name:             name,
			TrackInventory:   input.TrackInventory,
			Cost:             shared.RoundCost(input.Cost),
			SalesPrice:       shared.RoundMoney(input.SalesPrice),
			RevenueAccountID: input.RevenueAccountID,
			ExpenseAccountID: input.ExpenseAccountID,
			CreatedAt:        s.now(),
		})
		if err != nil {
			if shared.IsDuplicateKey(err, ConstraintSKU) {
				return shared.Invalid("sku", "sku %s already exists", sku)
			}
			return fmt.Errorf("inventory: insert product: %w", err)
		}
		if input.OpeningQuantity.IsPositive() {
			cost := inserted.Cost
			if _, err := s.recordMovement(ctx, scope, tx, MovementInput{
				ProductID:   inserted.ID,
				Quantity:    input.OpeningQuantity,
				UnitCost:    &cost,
				Type:        MovementAdjustment,
				Date:        input.OpeningDate,
				Memo:        "Opening stock " + sku,
				PostJournal: true,
				OffsetRole:  accounts.RoleOpeningBalanceEquity,
			}); err != nil {
				return err
			}
		}
		product, err = tx.GetProductForUpdate(ctx, scope.TenantID, inserted.ID)
		return err
	})
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, scope shared.Scope, id int64) (Product, error) {
	if err := scope.Validate(); err != nil {
		return Product{}, err
	}
	return s.repo.GetProduct(ctx, scope.TenantID, id)
}

// ListProducts returns products ordered by sku.
func (s *Service) ListProducts(ctx context.Context, scope shared.Scope, filter ProductFilter) ([]Product, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, scope.TenantID, filter)
}

// RecordMovement applies a signed stock change and, when requested, posts
// its journal.
func (s *Service) RecordMovement(ctx context.Context, scope shared.Scope, input MovementInput) (Movement, error) {
	if err := scope.Validate(); err != nil {
		return Movement{}, err
	}
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := s.recordMovement(ctx, scope, tx, input)
		movement = m
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	return movement, nil
}

func (s *Service) recordMovement(ctx context.Context, scope shared.Scope, tx TxRepository, input MovementInput) (Movement, error) {
	if input.ProductID == 0 {
		return Movement{}, shared.Invalid("product_id", "product is required")
	}
	if err := input.Type.checkSign(input.Quantity); err != nil {
		return Movement{}, shared.InvalidWrap("quantity", err, "quantity %s not allowed for %s", input.Quantity, input.Type)
	}
	if input.UnitCost != nil && input.UnitCost.IsNegative() {
		return Movement{}, shared.Invalid("unit_cost", "unit cost cannot be negative")
	}
	postJournal := input.PostJournal && input.Type != MovementSale
	var roles accounts.RoleSet
	var offset accounts.Role
	if postJournal {
		var err error
		roles, offset, err = s.movementRoles(ctx, scope, input)
		if err != nil {
			return Movement{}, err
		}
	}

	product, err := tx.GetProductForUpdate(ctx, scope.TenantID, input.ProductID)
	if err != nil {
		return Movement{}, err
	}
	if !product.TrackInventory {
		return Movement{}, shared.InvalidWrap("product_id", ErrNotTracked, "product %s does not track inventory", product.SKU)
	}
	unitCost := product.Cost
	if input.UnitCost != nil {
		unitCost = shared.RoundCost(*input.UnitCost)
	}
	newQty := product.QuantityOnHand.Add(input.Quantity)
	if newQty.IsNegative() {
		return Movement{}, shared.InvalidWrap("quantity", ErrNegativeStock,
			"product %s has %s on hand, movement needs %s", product.SKU, product.QuantityOnHand, input.Quantity.Abs())
	}
	newCost := product.Cost
	switch {
	case input.unwind:
		newCost = unwindCost(product, input.Quantity, unitCost, newQty)
	case input.Quantity.IsPositive() && input.Type.reweights():
		if product.QuantityOnHand.IsPositive() {
			value := product.QuantityOnHand.Mul(product.Cost).Add(input.Quantity.Mul(unitCost))
			newCost = shared.RoundCost(value.Div(newQty))
		} else {
			newCost = unitCost
		}
	}
	now := s.now()
	occurred := input.Date
	if occurred.IsZero() {
		occurred = now
	}
	movement, err := tx.InsertMovement(ctx, Movement{
		TenantID:   scope.TenantID,
		ProductID:  product.ID,
		Quantity:   input.Quantity,
		UnitCost:   unitCost,
		TotalValue: shared.RoundMoney(input.Quantity.Abs().Mul(unitCost)),
		Type:       input.Type,
		Reference:  input.Reference,
		Memo:       input.Memo,
		OccurredAt: occurred,
		CreatedBy:  scope.ActorID,
		CreatedAt:  now,
	})
	if err != nil {
		return Movement{}, fmt.Errorf("inventory: insert movement: %w", err)
	}
	if postJournal && movement.TotalValue.IsPositive() {
		entry, err := s.ledger.CreateEntry(ctx, scope, movementEntry(scope, product, movement, roles, offset, input))
		if err != nil {
			return Movement{}, fmt.Errorf("inventory: movement journal: %w", err)
		}
		if err := tx.SetMovementJournal(ctx, scope.TenantID, movement.ID, entry.ID); err != nil {
			return Movement{}, err
		}
		movement.JournalEntryID = &entry.ID
	}
	if err := tx.UpdateProductStock(ctx, scope.TenantID, product.ID, newQty, newCost, now); err != nil {
		return Movement{}, err
	}
	s.logger.Debug("stock movement recorded",
		slog.Int64("tenant_id", scope.TenantID),
		slog.Int64("product_id", product.ID),
		slog.String("type", string(movement.Type)),
		slog.String("quantity", movement.Quantity.String()),
		slog.String("on_hand", newQty.String()))
	return movement, nil
}

// unwindCost returns the average cost after qty units valued at unitCost
// leave (qty < 0) or re-enter (qty > 0) stock. The cost is kept when stock
// runs out, and a remaining value below zero floors at zero.
func unwindCost(product Product, qty, unitCost, newQty decimal.Decimal) decimal.Decimal {
	if !newQty.IsPositive() {
		return product.Cost
	}
	value := product.QuantityOnHand.Mul(product.Cost).Add(qty.Mul(unitCost))
	if value.IsNegative() {
		value = decimal.Zero
	}
	return shared.RoundCost(value.Div(newQty))
}

// movementRoles resolves the inventory account and the offset account for
// a self-posting movement. Adjustments fall back to COGS when no
// inventory adjustment account is mapped.
func (s *Service) movementRoles(ctx context.Context, scope shared.Scope, input MovementInput) (accounts.RoleSet, accounts.Role, error) {
	offset := input.OffsetRole
	if offset == "" {
		switch input.Type {
		case MovementPurchase:
			offset = accounts.RoleAccountsPayable
		case MovementAdjustment:
			offset = accounts.RoleInventoryAdjustment
		case MovementReturn, MovementSaleReturn:
			offset = accounts.RoleCOGS
		case MovementSale:
			return nil, "", nil
		}
	}
	roles, err := s.roles.ResolveAll(ctx, scope, accounts.RoleInventory, offset)
	var cfg *shared.ConfigurationError
	if err != nil && input.OffsetRole == "" && offset == accounts.RoleInventoryAdjustment &&
		errors.As(err, &cfg) && cfg.Role == string(accounts.RoleInventoryAdjustment) {
		offset = accounts.RoleCOGS
		roles, err = s.roles.ResolveAll(ctx, scope, accounts.RoleInventory, offset)
	}
	if err != nil {
		return nil, "", err
	}
	return roles, offset, nil
}

func movementEntry(scope shared.Scope, product Product, m Movement, roles accounts.RoleSet, offset accounts.Role, input MovementInput) journals.EntryInput {
	inventory := journals.PostingLineInput{AccountID: roles.ID(accounts.RoleInventory)}.For(journals.EntityProduct, product.ID)
	other := journals.PostingLineInput{AccountID: roles.ID(offset)}
	if m.Type == MovementPurchase && input.VendorID != 0 {
		other = other.For(journals.EntityVendor, input.VendorID)
	}
	if m.Quantity.IsPositive() {
		inventory.Debit = m.TotalValue
		other.Credit = m.TotalValue
	} else {
		other.Debit = m.TotalValue
		inventory.Credit = m.TotalValue
	}
	sourceType, sourceID := m.Reference.Type, m.Reference.ID
	if sourceType == "" {
		sourceType, sourceID = journals.SourceStockMovement, m.ID
	}
	memo := m.Memo
	if memo == "" {
		memo = fmt.Sprintf("%s %s x %s", m.Type, product.SKU, m.Quantity.Abs())
	}
	lines := []journals.PostingLineInput{inventory, other}
	if m.Quantity.IsNegative() {
		lines = []journals.PostingLineInput{other, inventory}
	}
	return journals.EntryInput{
		Date:       m.OccurredAt,
		Memo:       memo,
		SourceType: sourceType,
		SourceID:   sourceID,
		SourceRef:  journals.SourceRef(scope.TenantID, journals.SourceStockMovement, m.ID, "journal"),
		Post:       true,
		Lines:      lines,
	}
}

// GetMovementHistory returns movements newest first, each with the quantity
// on hand right after it, walking backward from the current quantity.
func (s *Service) GetMovementHistory(ctx context.Context, scope shared.Scope, productID int64) ([]HistoryEntry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	product, err := s.repo.GetProduct(ctx, scope.TenantID, productID)
	if err != nil {
		return nil, err
	}
	movements, err := s.repo.ListMovements(ctx, scope.TenantID, productID)
	if err != nil {
		return nil, err
	}
	history := make([]HistoryEntry, 0, len(movements))
	running := product.QuantityOnHand
	for _, m := range movements {
		history = append(history, HistoryEntry{Movement: m, RunningBalance: running})
		running = running.Sub(m.Quantity)
	}
	return history, nil
}

// ReverseReference restores the quantity effect of every movement linked to
// ref with journal-less counter movements. Products already netted to zero
// are skipped, so repeating the call is harmless.
func (s *Service) ReverseReference(ctx context.Context, scope shared.Scope, ref Reference, date time.Time, memo string) ([]Movement, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	var counters []Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		movements, err := tx.ListMovementsByReference(ctx, scope.TenantID, ref)
		if err != nil {
			return err
		}
		type net struct {
			qty   decimal.Decimal
			value decimal.Decimal
		}
		byProduct := make(map[int64]*net)
		var order []int64
		for _, m := range movements {
			n, ok := byProduct[m.ProductID]
			if !ok {
				n = &net{}
				byProduct[m.ProductID] = n
				order = append(order, m.ProductID)
			}
			n.qty = n.qty.Add(m.Quantity)
			if m.Quantity.IsNegative() {
				n.value = n.value.Sub(m.TotalValue)
			} else {
				n.value = n.value.Add(m.TotalValue)
			}
		}
		sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
		for _, productID := range order {
			n := byProduct[productID]
			if n.qty.IsZero() {
				continue
			}
			unitCost := shared.RoundCost(n.value.Abs().Div(n.qty.Abs()))
			counter, err := s.recordMovement(ctx, scope, tx, MovementInput{
				ProductID: productID,
				Quantity:  n.qty.Neg(),
				UnitCost:  &unitCost,
				Type:      MovementAdjustment,
				Reference: ref,
				Date:      date,
				Memo:      memo,
				unwind:    true,
			})
			if err != nil {
				return err
			}
			counters = append(counters, counter)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counters, nil
}
