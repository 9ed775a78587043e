// Package httpapi exposes the books over a JSON HTTP API.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/balances"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	"github.com/odyssey-erp/odyssey-books/internal/lifecycle"
	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-books/internal/reports"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Services groups the domain services served by the API.
type Services struct {
	Accounts  *accounts.Service
	Inventory *inventory.Service
	Parties   *documents.Service
	Lifecycle *lifecycle.Service
	Balances  *balances.Service
	Reports   *reports.Service
}

// Handler wires the JSON endpoints.
type Handler struct {
	logger   *slog.Logger
	svc      Services
	validate *validator.Validate
	keys     KeyReserver
}

// NewHandler constructs the API handler.
func NewHandler(logger *slog.Logger, svc Services) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, svc: svc, validate: newValidator()}
}

// WithIdempotency honours the Idempotency-Key header on POST routes.
func (h *Handler) WithIdempotency(keys KeyReserver) {
	h.keys = keys
}

// MountRoutes registers every endpoint behind RequireScope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireScope)
		r.Use(h.idempotent)

		r.Post("/accounts", h.createAccount)
		r.Get("/accounts", h.listAccounts)
		r.Get("/accounts/{id}/balance", h.withID(h.accountBalance))
		r.Put("/account-roles", h.configureRoles)
		r.Post("/customers", h.createCustomer)
		r.Post("/vendors", h.createVendor)
		r.Post("/products", h.createProduct)
		r.Get("/products/{id}/movements", h.withID(h.movementHistory))
		r.Post("/journal-entries", h.createJournalEntry)
		r.Post("/journal-entries/{id}/void", h.withID(h.voidJournalEntry))

		r.Post("/invoices", h.createInvoice)
		r.Get("/invoices", h.listInvoices)
		r.Get("/invoices/{id}", h.withID(h.getInvoice))
		r.Post("/invoices/{id}/send", h.withID(h.sendInvoice))
		r.Post("/invoices/{id}/void", h.withID(h.voidInvoice))
		r.Post("/quotations", h.createQuotation)
		r.Post("/quotations/{id}/convert", h.withID(h.convertQuotation))

		r.Post("/bills", h.createBill)
		r.Get("/bills/{id}", h.withID(h.getBill))
		r.Post("/bills/{id}/approve", h.withID(h.approveBill))
		r.Post("/bills/{id}/void", h.withID(h.voidBill))

		r.Post("/payments", h.recordPayment)
		r.Get("/payments/{id}", h.withID(h.getPayment))
		r.Post("/credit-memos", h.createCreditMemo)
		r.Post("/credit-memos/{id}/issue", h.withID(h.issueCreditMemo))
		r.Post("/credit-memos/{id}/void", h.withID(h.voidCreditMemo))
		r.Post("/stock-movements", h.recordStockMovement)

		r.Post("/purchase-orders", h.createPurchaseOrder)
		r.Post("/purchase-orders/{id}/convert", h.withID(h.convertPurchaseOrder))
		r.Post("/sales-orders", h.createSalesOrder)
		r.Post("/sales-orders/{id}/convert", h.withID(h.convertSalesOrder))

		r.Get("/reports/trial-balance", h.trialBalance)
		r.Get("/reports/general-ledger", h.generalLedger)
		r.Get("/reports/aging", h.aging)
		r.Get("/reports/reconciliation", h.reconciliation)
		r.Get("/reports/profit-and-loss", h.profitAndLoss)
		r.Get("/reports/balance-sheet", h.balanceSheet)
	})
}

// decode reads and validates a request body. It writes the problem
// response itself and reports false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, shared.InvalidWrap("body", err, "malformed JSON"))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			h.fail(w, r, err)
			return false
		}
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			_, name, _ := strings.Cut(fe.Namespace(), ".")
			fields[name] = fieldMessage(fe)
		}
		httpx.InvalidFields(w, fields)
		return false
	}
	return true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gt", "gte", "lt", "lte", "min", "max":
		return "must be " + fe.Tag() + " " + fe.Param()
	}
	return "failed " + fe.Tag()
}

// fail maps err to a problem response. Server-side failures are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	p := httpx.ProblemFor(err)
	if p.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, body any, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, status, body)
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Invalid("id", "invalid id %q", raw)
	}
	return id, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, shared.Invalid(name, "must be a non-negative integer")
	}
	return v, nil
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, shared.Invalid(name, "want YYYY-MM-DD")
	}
	return &t, nil
}

// withID runs fn with the parsed {id} path parameter.
func (h *Handler) withID(fn func(w http.ResponseWriter, r *http.Request, id int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		fn(w, r, id)
	}
}
