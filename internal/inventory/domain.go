package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	MovementPurchase   MovementType = "PURCHASE"
	MovementSale       MovementType = "SALE"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementReturn     MovementType = "RETURN"
	MovementSaleReturn MovementType = "SALE_RETURN"
)

// checkSign validates the quantity direction allowed for the type.
func (t MovementType) checkSign(qty decimal.Decimal) error {
	switch t {
	case MovementPurchase, MovementReturn, MovementSaleReturn:
		if !qty.IsPositive() {
			return ErrInvalidQuantity
		}
	case MovementSale:
		if !qty.IsNegative() {
			return ErrInvalidQuantity
		}
	case MovementAdjustment:
		if qty.IsZero() {
			return ErrInvalidQuantity
		}
	default:
		return ErrInvalidMovementType
	}
	return nil
}

// reweights reports whether an increase of this type moves the average cost.
func (t MovementType) reweights() bool {
	return t == MovementPurchase || t == MovementAdjustment
}

var (
	// ErrNegativeStock rejects movements that would take stock below zero.
	ErrNegativeStock = errors.New("insufficient stock")
	// ErrInvalidQuantity rejects zero or wrongly signed quantities.
	ErrInvalidQuantity = errors.New("invalid quantity for movement type")
	// ErrInvalidMovementType rejects unknown types.
	ErrInvalidMovementType = errors.New("invalid movement type")
	// ErrNotTracked rejects movements for products without inventory tracking.
	ErrNotTracked = errors.New("product does not track inventory")
)

// Product is a stocked or service item.
type Product struct {
	ID               int64           `json:"id"`
	TenantID         int64           `json:"tenant_id"`
	SKU              string          `json:"sku"`
	Name             string          `json:"name"`
	TrackInventory   bool            `json:"track_inventory"`
	QuantityOnHand   decimal.Decimal `json:"quantity_on_hand"`
	Cost             decimal.Decimal `json:"cost"`
	SalesPrice       decimal.Decimal `json:"sales_price"`
	RevenueAccountID *int64          `json:"revenue_account_id,omitempty"`
	ExpenseAccountID *int64          `json:"expense_account_id,omitempty"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ProductInput describes a new product with optional opening stock.
type ProductInput struct {
	SKU              string
	Name             string
	TrackInventory   bool
	SalesPrice       decimal.Decimal
	Cost             decimal.Decimal
	RevenueAccountID *int64
	ExpenseAccountID *int64
	OpeningQuantity  decimal.Decimal
	OpeningDate      time.Time
}

// Reference links a movement to its originating document.
type Reference struct {
	Type journals.SourceType `json:"type"`
	ID   int64               `json:"id"`
}

// Movement is one append-only stock change.
type Movement struct {
	ID             int64           `json:"id"`
	TenantID       int64           `json:"tenant_id"`
	ProductID      int64           `json:"product_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	TotalValue     decimal.Decimal `json:"total_value"`
	Type           MovementType    `json:"type"`
	Reference      Reference       `json:"reference"`
	JournalEntryID *int64          `json:"journal_entry_id,omitempty"`
	Memo           string          `json:"memo"`
	OccurredAt     time.Time       `json:"occurred_at"`
	CreatedBy      int64           `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MovementInput requests a stock movement.
type MovementInput struct {
	ProductID int64
	Quantity  decimal.Decimal
	// UnitCost defaults to the product's current cost when nil.
	UnitCost    *decimal.Decimal
	Type        MovementType
	Reference   Reference
	Date        time.Time
	Memo        string
	PostJournal bool
	OffsetRole  accounts.Role
	VendorID    int64

	// unwind backs the movement's value at UnitCost out of the average
	// cost instead of leaving the average untouched.
	unwind bool
}

// HistoryEntry annotates a movement with the quantity on hand after it.
type HistoryEntry struct {
	Movement
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// ProductFilter narrows ListProducts.
type ProductFilter struct {
	TrackedOnly bool
	Search      string
}

// ConstraintSKU is the unique constraint on (tenant_id, sku).
const ConstraintSKU = "uq_products_sku"
