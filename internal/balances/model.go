package balances

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Result is an account balance with the totals it was derived from.
type Result struct {
	AccountID   int64           `json:"account_id"`
	Balance     decimal.Decimal `json:"balance"`
	DebitTotal  decimal.Decimal `json:"debit_total"`
	CreditTotal decimal.Decimal `json:"credit_total"`
}

// Affected names the cached balances a posting touched.
type Affected struct {
	AccountIDs  []int64
	CustomerIDs []int64
	VendorIDs   []int64
}

// Merge adds other to a, keeping ids unique.
func (a *Affected) Merge(other Affected) {
	a.AccountIDs = appendUnique(a.AccountIDs, other.AccountIDs...)
	a.CustomerIDs = appendUnique(a.CustomerIDs, other.CustomerIDs...)
	a.VendorIDs = appendUnique(a.VendorIDs, other.VendorIDs...)
}

// Empty reports whether nothing needs refreshing.
func (a Affected) Empty() bool {
	return len(a.AccountIDs) == 0 && len(a.CustomerIDs) == 0 && len(a.VendorIDs) == 0
}

// sorted returns a copy with ascending ids, the order rows are locked in.
func (a Affected) sorted() Affected {
	out := Affected{
		AccountIDs:  append([]int64(nil), a.AccountIDs...),
		CustomerIDs: append([]int64(nil), a.CustomerIDs...),
		VendorIDs:   append([]int64(nil), a.VendorIDs...),
	}
	for _, ids := range [][]int64{out.AccountIDs, out.CustomerIDs, out.VendorIDs} {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return out
}

func appendUnique(dst []int64, ids ...int64) []int64 {
	for _, id := range ids {
		if id == 0 {
			continue
		}
		found := false
		for _, existing := range dst {
			if existing == id {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, id)
		}
	}
	return dst
}

// ReconcileReport compares the ledger control accounts with the document
// projection. Difference is ledger minus (open balances minus unapplied
// credits); zero when both agree.
type ReconcileReport struct {
	ReceivableLedger    decimal.Decimal `json:"receivable_ledger"`
	CustomerBalances    decimal.Decimal `json:"customer_balances"`
	UnappliedReceipts   decimal.Decimal `json:"unapplied_receipts"`
	ReceivableDiff      decimal.Decimal `json:"receivable_difference"`
	PayableLedger       decimal.Decimal `json:"payable_ledger"`
	VendorBalances      decimal.Decimal `json:"vendor_balances"`
	UnappliedDisbursals decimal.Decimal `json:"unapplied_disbursements"`
	PayableDiff         decimal.Decimal `json:"payable_difference"`
}

// Balanced reports whether both control accounts agree with the documents.
func (r ReconcileReport) Balanced() bool {
	return r.ReceivableDiff.IsZero() && r.PayableDiff.IsZero()
}
