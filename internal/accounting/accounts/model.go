package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is a known type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// DebitNormal reports whether debits increase the balance.
func (t AccountType) DebitNormal() bool {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return true
	case AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue:
		return false
	}
	return true
}

// SignedBalance applies the sign convention of t to line totals.
func (t AccountType) SignedBalance(debits, credits decimal.Decimal) decimal.Decimal {
	if t.DebitNormal() {
		return debits.Sub(credits)
	}
	return credits.Sub(debits)
}

// Account models a chart of accounts node.
type Account struct {
	ID        int64           `json:"id"`
	TenantID  int64           `json:"tenant_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	ParentID  *int64          `json:"parent_id,omitempty"`
	IsActive  bool            `json:"is_active"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AccountInput describes a new account.
type AccountInput struct {
	Code     string
	Name     string
	Type     AccountType
	ParentID *int64
}

// Config bounds account codes.
type Config struct {
	CodeMin int
	CodeMax int
}

// DefaultConfig accepts four digit codes.
func DefaultConfig() Config {
	return Config{CodeMin: 1000, CodeMax: 9999}
}

// ConstraintCode is the unique constraint on (tenant_id, code).
const ConstraintCode = "uq_accounts_code"
