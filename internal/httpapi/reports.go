package httpapi

import (
	"net/http"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/reports"
)

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tb, err := h.svc.Reports.TrialBalance(r.Context(), scopeOf(r), asOf)
	h.respond(w, r, http.StatusOK, tb, err)
}

func (h *Handler) generalLedger(w http.ResponseWriter, r *http.Request) {
	var (
		q   reports.LedgerQuery
		err error
	)
	accountID, err := queryInt64(r, "account_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if accountID > 0 {
		q.AccountID = &accountID
	}
	if q.From, err = queryDate(r, "from"); err != nil {
		h.fail(w, r, err)
		return
	}
	if q.To, err = queryDate(r, "to"); err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := queryInt64(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q.Limit = int(limit)
	report, err := h.svc.Reports.GeneralLedger(r.Context(), scopeOf(r), q)
	h.respond(w, r, http.StatusOK, report, err)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var at time.Time
	if asOf != nil {
		at = *asOf
	}
	report, err := h.svc.Reports.Aging(r.Context(), scopeOf(r), at)
	h.respond(w, r, http.StatusOK, report, err)
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pl, err := h.svc.Reports.ProfitAndLoss(r.Context(), scopeOf(r), from, to)
	h.respond(w, r, http.StatusOK, pl, err)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	bs, err := h.svc.Reports.BalanceSheet(r.Context(), scopeOf(r), asOf)
	h.respond(w, r, http.StatusOK, bs, err)
}

func (h *Handler) reconciliation(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Balances.Reconcile(r.Context(), scopeOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, struct {
		Balanced bool `json:"balanced"`
		Report   any  `json:"report"`
	}{report.Balanced(), report}, nil)
}
