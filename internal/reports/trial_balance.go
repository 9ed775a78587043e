package reports

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// TrialBalanceRow is one account with its net balance on the debit or the
// credit side.
type TrialBalanceRow struct {
	AccountID int64                `json:"account_id"`
	Code      string               `json:"code"`
	Name      string               `json:"name"`
	Type      accounts.AccountType `json:"type"`
	Debit     decimal.Decimal      `json:"debit"`
	Credit    decimal.Decimal      `json:"credit"`
	// Balance follows the sign convention of the account type.
	Balance decimal.Decimal `json:"balance"`
}

// TrialBalanceGroup aggregates rows of one account type.
type TrialBalanceGroup struct {
	Type   accounts.AccountType `json:"type"`
	Rows   []TrialBalanceRow    `json:"rows"`
	Debit  decimal.Decimal      `json:"debit"`
	Credit decimal.Decimal      `json:"credit"`
}

// TrialBalance lists posted balances grouped by account type.
type TrialBalance struct {
	AsOf        *time.Time          `json:"as_of,omitempty"`
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"total_debit"`
	TotalCredit decimal.Decimal     `json:"total_credit"`
}

// Balanced reports whether the debit and credit columns agree.
func (tb TrialBalance) Balanced() bool { return tb.TotalDebit.Equal(tb.TotalCredit) }

var typeOrder = []accounts.AccountType{
	accounts.AccountTypeAsset,
	accounts.AccountTypeLiability,
	accounts.AccountTypeEquity,
	accounts.AccountTypeRevenue,
	accounts.AccountTypeExpense,
}

// TrialBalance returns posted balances as of asOf inclusive, or all posted
// activity when asOf is nil. Accounts without activity are left out.
func (s *Service) TrialBalance(ctx context.Context, scope shared.Scope, asOf *time.Time) (TrialBalance, error) {
	if err := scope.Validate(); err != nil {
		return TrialBalance{}, err
	}
	if asOf != nil {
		d := journals.DateOnly(*asOf)
		asOf = &d
	}
	var tb TrialBalance
	err := s.cached(ctx, scope, &tb, func(ctx context.Context) (any, error) {
		return s.buildTrialBalance(ctx, scope, asOf)
	}, "trial_balance", dateToken(asOf))
	return tb, err
}

func (s *Service) buildTrialBalance(ctx context.Context, scope shared.Scope, asOf *time.Time) (TrialBalance, error) {
	chart, err := s.chart.ListAccounts(ctx, scope)
	if err != nil {
		return TrialBalance{}, err
	}
	activity, err := s.ledger.AccountActivity(ctx, scope, asOf)
	if err != nil {
		return TrialBalance{}, err
	}
	byID := make(map[int64]accounts.Account, len(chart))
	for _, a := range chart {
		byID[a.ID] = a
	}
	return BuildTrialBalance(byID, activity, asOf), nil
}

// BuildTrialBalance groups account activity by type in chart order.
func BuildTrialBalance(chart map[int64]accounts.Account, activity []journals.AccountActivity, asOf *time.Time) TrialBalance {
	groups := make(map[accounts.AccountType]*TrialBalanceGroup)
	for _, act := range activity {
		account, ok := chart[act.AccountID]
		if !ok {
			continue
		}
		net := act.Debit.Sub(act.Credit)
		row := TrialBalanceRow{
			AccountID: account.ID,
			Code:      account.Code,
			Name:      account.Name,
			Type:      account.Type,
			Debit:     decimal.Zero,
			Credit:    decimal.Zero,
			Balance:   account.Type.SignedBalance(act.Debit, act.Credit),
		}
		if net.IsPositive() {
			row.Debit = net
		} else {
			row.Credit = net.Neg()
		}
		grp, ok := groups[account.Type]
		if !ok {
			grp = &TrialBalanceGroup{Type: account.Type, Debit: decimal.Zero, Credit: decimal.Zero}
			groups[account.Type] = grp
		}
		grp.Rows = append(grp.Rows, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
	}

	tb := TrialBalance{AsOf: asOf, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, typ := range typeOrder {
		grp, ok := groups[typ]
		if !ok {
			continue
		}
		slices.SortFunc(grp.Rows, func(a, b TrialBalanceRow) int { return strings.Compare(a.Code, b.Code) })
		tb.Groups = append(tb.Groups, *grp)
		tb.TotalDebit = tb.TotalDebit.Add(grp.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(grp.Credit)
	}
	return tb
}
