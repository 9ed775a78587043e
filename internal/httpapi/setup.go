package httpapi

import (
	"net/http"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/inventory"
)

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.svc.Accounts.CreateAccount(r.Context(), scopeOf(r), accounts.AccountInput{
		Code:     req.Code,
		Name:     req.Name,
		Type:     accounts.AccountType(req.Type),
		ParentID: req.ParentID,
	})
	h.respond(w, r, http.StatusCreated, account, err)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Accounts.ListAccounts(r.Context(), scopeOf(r))
	if list == nil {
		list = []accounts.Account{}
	}
	h.respond(w, r, http.StatusOK, list, err)
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request, id int64) {
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.svc.Balances.AccountBalance(r.Context(), scopeOf(r), id, asOf)
	h.respond(w, r, http.StatusOK, result, err)
}

func (h *Handler) configureRoles(w http.ResponseWriter, r *http.Request) {
	var req rolesRequest
	if !h.decode(w, r, &req) {
		return
	}
	mapping := make(map[accounts.Role]int64, len(req.Roles))
	for role, id := range req.Roles {
		mapping[accounts.Role(role)] = id
	}
	if err := h.svc.Accounts.ConfigureRoles(r.Context(), scopeOf(r), mapping); err != nil {
		h.fail(w, r, err)
		return
	}
	mappings, err := h.svc.Accounts.RoleMappings(r.Context(), scopeOf(r))
	h.respond(w, r, http.StatusOK, mappings, err)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req partyRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.svc.Parties.CreateCustomer(r.Context(), scopeOf(r), documents.PartyInput{Name: req.Name, Email: req.Email})
	h.respond(w, r, http.StatusCreated, c, err)
}

func (h *Handler) createVendor(w http.ResponseWriter, r *http.Request) {
	var req partyRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.svc.Parties.CreateVendor(r.Context(), scopeOf(r), documents.PartyInput{Name: req.Name, Email: req.Email})
	h.respond(w, r, http.StatusCreated, v, err)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.svc.Inventory.CreateProduct(r.Context(), scopeOf(r), req.input())
	h.respond(w, r, http.StatusCreated, p, err)
}

func (h *Handler) movementHistory(w http.ResponseWriter, r *http.Request, id int64) {
	history, err := h.svc.Inventory.GetMovementHistory(r.Context(), scopeOf(r), id)
	if history == nil && err == nil {
		history = []inventory.HistoryEntry{}
	}
	h.respond(w, r, http.StatusOK, history, err)
}

func (h *Handler) createJournalEntry(w http.ResponseWriter, r *http.Request) {
	var req journalEntryRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry, err := h.svc.Lifecycle.RecordJournalEntry(r.Context(), scopeOf(r), req.input())
	h.respond(w, r, http.StatusCreated, entry, err)
}

func (h *Handler) voidJournalEntry(w http.ResponseWriter, r *http.Request, id int64) {
	var req voidRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry, err := h.svc.Lifecycle.VoidJournalEntry(r.Context(), scopeOf(r), id, req.Reason)
	h.respond(w, r, http.StatusOK, entry, err)
}
