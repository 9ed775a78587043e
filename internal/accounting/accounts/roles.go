package accounts

import "time"

// Role names an account the posting rules need without knowing its code.
type Role string

const (
	RoleAccountsReceivable   Role = "ACCOUNTS_RECEIVABLE"
	RoleAccountsPayable      Role = "ACCOUNTS_PAYABLE"
	RoleInventory            Role = "INVENTORY"
	RoleCOGS                 Role = "COGS"
	RoleBank                 Role = "BANK"
	RoleSalesTaxPayable      Role = "SALES_TAX_PAYABLE"
	RoleDefaultRevenue       Role = "DEFAULT_REVENUE"
	RoleDefaultExpense       Role = "DEFAULT_EXPENSE"
	RoleOpeningBalanceEquity Role = "OPENING_BALANCE_EQUITY"
	RoleSalesDiscounts       Role = "SALES_DISCOUNTS"
	RoleSalesReturns         Role = "SALES_RETURNS"
	RoleInventoryAdjustment  Role = "INVENTORY_ADJUSTMENT"
)

var roleTypes = map[Role]AccountType{
	RoleAccountsReceivable:   AccountTypeAsset,
	RoleAccountsPayable:      AccountTypeLiability,
	RoleInventory:            AccountTypeAsset,
	RoleCOGS:                 AccountTypeExpense,
	RoleBank:                 AccountTypeAsset,
	RoleSalesTaxPayable:      AccountTypeLiability,
	RoleDefaultRevenue:       AccountTypeRevenue,
	RoleDefaultExpense:       AccountTypeExpense,
	RoleOpeningBalanceEquity: AccountTypeEquity,
	RoleSalesDiscounts:       AccountTypeRevenue,
	RoleSalesReturns:         AccountTypeRevenue,
	RoleInventoryAdjustment:  AccountTypeExpense,
}

// Roles lists every role in a stable order.
func Roles() []Role {
	return []Role{
		RoleAccountsReceivable, RoleAccountsPayable, RoleInventory, RoleCOGS, RoleBank,
		RoleSalesTaxPayable, RoleDefaultRevenue, RoleDefaultExpense, RoleOpeningBalanceEquity,
		RoleSalesDiscounts, RoleSalesReturns, RoleInventoryAdjustment,
	}
}

// RequiredType returns the account type a role must map to.
func (r Role) RequiredType() (AccountType, bool) {
	t, ok := roleTypes[r]
	return t, ok
}

// RoleMapping binds a role to an account for a tenant.
type RoleMapping struct {
	TenantID  int64     `json:"tenant_id"`
	Role      Role      `json:"role"`
	AccountID int64     `json:"account_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleSet holds accounts resolved up front for one posting.
type RoleSet map[Role]Account

// ID returns the account id for role, zero when absent.
func (rs RoleSet) ID(role Role) int64 {
	return rs[role].ID
}
