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

// StatementLine is one account on a financial statement. Amount follows the
// sign convention of the account type.
type StatementLine struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
}

// StatementSection groups accounts of one type.
type StatementSection struct {
	Type  accounts.AccountType `json:"type"`
	Lines []StatementLine      `json:"lines"`
	Total decimal.Decimal      `json:"total"`
}

// ProfitAndLoss summarises revenue and expense posted between From and To.
type ProfitAndLoss struct {
	From      *time.Time       `json:"from,omitempty"`
	To        *time.Time       `json:"to,omitempty"`
	Revenue   StatementSection `json:"revenue"`
	Expense   StatementSection `json:"expense"`
	NetIncome decimal.Decimal  `json:"net_income"`
}

// BalanceSheet lists asset, liability and equity balances as of a date.
// Without period close, revenue and expense to date appear as
// CurrentEarnings inside equity.
type BalanceSheet struct {
	AsOf                      *time.Time       `json:"as_of,omitempty"`
	Assets                    StatementSection `json:"assets"`
	Liabilities               StatementSection `json:"liabilities"`
	Equity                    StatementSection `json:"equity"`
	CurrentEarnings           decimal.Decimal  `json:"current_earnings"`
	TotalLiabilitiesAndEquity decimal.Decimal  `json:"total_liabilities_and_equity"`
}

// Balanced reports whether assets equal liabilities plus equity.
func (bs BalanceSheet) Balanced() bool {
	return bs.Assets.Total.Equal(bs.TotalLiabilitiesAndEquity)
}

// ProfitAndLoss returns revenue and expense posted in [from, to]. Either
// bound may be nil.
func (s *Service) ProfitAndLoss(ctx context.Context, scope shared.Scope, from, to *time.Time) (ProfitAndLoss, error) {
	if err := scope.Validate(); err != nil {
		return ProfitAndLoss{}, err
	}
	from, to = dateOnlyPtr(from), dateOnlyPtr(to)
	if from != nil && to != nil && from.After(*to) {
		return ProfitAndLoss{}, shared.Invalid("from", "must not be after to")
	}
	var pl ProfitAndLoss
	err := s.cached(ctx, scope, &pl, func(ctx context.Context) (any, error) {
		return s.buildProfitAndLoss(ctx, scope, from, to)
	}, "profit_and_loss", dateToken(from), dateToken(to))
	return pl, err
}

func (s *Service) buildProfitAndLoss(ctx context.Context, scope shared.Scope, from, to *time.Time) (ProfitAndLoss, error) {
	chart, err := s.chartByID(ctx, scope)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	totals, err := s.activityTotals(ctx, scope, to)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	if from != nil {
		before := from.AddDate(0, 0, -1)
		opening, err := s.activityTotals(ctx, scope, &before)
		if err != nil {
			return ProfitAndLoss{}, err
		}
		for id, t := range opening {
			cur := totals[id]
			totals[id] = journals.Totals{Debit: cur.Debit.Sub(t.Debit), Credit: cur.Credit.Sub(t.Credit)}
		}
	}
	sections := buildSections(chart, totals, accounts.AccountTypeRevenue, accounts.AccountTypeExpense)
	pl := ProfitAndLoss{
		From:    from,
		To:      to,
		Revenue: sections[accounts.AccountTypeRevenue],
		Expense: sections[accounts.AccountTypeExpense],
	}
	pl.NetIncome = pl.Revenue.Total.Sub(pl.Expense.Total)
	return pl, nil
}

// BalanceSheet returns balances as of asOf inclusive, or current when nil.
func (s *Service) BalanceSheet(ctx context.Context, scope shared.Scope, asOf *time.Time) (BalanceSheet, error) {
	if err := scope.Validate(); err != nil {
		return BalanceSheet{}, err
	}
	asOf = dateOnlyPtr(asOf)
	var bs BalanceSheet
	err := s.cached(ctx, scope, &bs, func(ctx context.Context) (any, error) {
		return s.buildBalanceSheet(ctx, scope, asOf)
	}, "balance_sheet", dateToken(asOf))
	return bs, err
}

func (s *Service) buildBalanceSheet(ctx context.Context, scope shared.Scope, asOf *time.Time) (BalanceSheet, error) {
	chart, err := s.chartByID(ctx, scope)
	if err != nil {
		return BalanceSheet{}, err
	}
	totals, err := s.activityTotals(ctx, scope, asOf)
	if err != nil {
		return BalanceSheet{}, err
	}
	sections := buildSections(chart, totals, typeOrder...)
	bs := BalanceSheet{
		AsOf:        asOf,
		Assets:      sections[accounts.AccountTypeAsset],
		Liabilities: sections[accounts.AccountTypeLiability],
		Equity:      sections[accounts.AccountTypeEquity],
	}
	bs.CurrentEarnings = sections[accounts.AccountTypeRevenue].Total.Sub(sections[accounts.AccountTypeExpense].Total)
	bs.TotalLiabilitiesAndEquity = bs.Liabilities.Total.Add(bs.Equity.Total).Add(bs.CurrentEarnings)
	return bs, nil
}

func (s *Service) chartByID(ctx context.Context, scope shared.Scope) (map[int64]accounts.Account, error) {
	chart, err := s.chart.ListAccounts(ctx, scope)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]accounts.Account, len(chart))
	for _, a := range chart {
		byID[a.ID] = a
	}
	return byID, nil
}

func (s *Service) activityTotals(ctx context.Context, scope shared.Scope, asOf *time.Time) (map[int64]journals.Totals, error) {
	activity, err := s.ledger.AccountActivity(ctx, scope, asOf)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]journals.Totals, len(activity))
	for _, act := range activity {
		out[act.AccountID] = act.Totals
	}
	return out, nil
}

// buildSections returns one section per requested type. Accounts whose
// totals net to zero are omitted.
func buildSections(chart map[int64]accounts.Account, totals map[int64]journals.Totals, types ...accounts.AccountType) map[accounts.AccountType]StatementSection {
	out := make(map[accounts.AccountType]StatementSection, len(types))
	for _, typ := range types {
		out[typ] = StatementSection{Type: typ, Lines: []StatementLine{}, Total: decimal.Zero}
	}
	for id, t := range totals {
		account, ok := chart[id]
		if !ok {
			continue
		}
		sec, ok := out[account.Type]
		if !ok {
			continue
		}
		amount := account.Type.SignedBalance(t.Debit, t.Credit)
		if amount.IsZero() {
			continue
		}
		sec.Lines = append(sec.Lines, StatementLine{AccountID: id, Code: account.Code, Name: account.Name, Amount: amount})
		sec.Total = sec.Total.Add(amount)
		out[account.Type] = sec
	}
	for typ, sec := range out {
		slices.SortFunc(sec.Lines, func(a, b StatementLine) int { return strings.Compare(a.Code, b.Code) })
		out[typ] = sec
	}
	return out
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := journals.DateOnly(*t)
	return &d
}
