package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/httpapi"
	"github.com/odyssey-erp/odyssey-books/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-books/internal/reports"
	"github.com/odyssey-erp/odyssey-books/internal/testing/booktest"
)

type api struct {
	t      *testing.T
	b      *booktest.Books
	router http.Handler
}

func newAPI(t *testing.T, opts ...booktest.Option) *api {
	return newAPIWith(t, nil, opts...)
}

func newAPIWith(t *testing.T, keys httpapi.KeyReserver, opts ...booktest.Option) *api {
	t.Helper()
	b := booktest.New(t, opts...)
	rep := reports.NewService(b.Journals, b.Accounts, b.Store.Documents(), nil, booktest.Logger())
	rep.WithNow(booktest.Now)
	h := httpapi.NewHandler(booktest.Logger(), httpapi.Services{
		Accounts:  b.Accounts,
		Inventory: b.Inventory,
		Parties:   b.Parties,
		Lifecycle: b.Lifecycle,
		Balances:  b.Balances,
		Reports:   rep,
	})
	if keys != nil {
		h.WithIdempotency(keys)
	}
	r := chi.NewRouter()
	h.MountRoutes(r)
	return &api{t: t, b: b, router: r}
}

func (a *api) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		require.NoError(a.t, json.NewEncoder(&buf).Encode(v))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if len(headers) == 0 {
		headers = []string{httpapi.HeaderTenant, fmt.Sprint(a.b.Scope.TenantID), httpapi.HeaderActor, "7"}
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type idBody struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
	Status string `json:"status"`
	Total  string `json:"total_amount"`
}

func (a *api) customer(name string) int64 {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/customers", map[string]any{"name": name})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[idBody](a.t, rec).ID
}

func invoiceBody(customerID int64, qty, price string) map[string]any {
	return map[string]any{
		"customer_id": customerID,
		"issue_date":  booktest.Today.Format("2006-01-02"),
		"due_date":    booktest.Today.AddDate(0, 0, 30).Format("2006-01-02"),
		"lines":       []map[string]any{{"description": "Consulting", "quantity": qty, "unit_price": price, "tax_pct": "10"}},
	}
}

func TestScopeHeadersRequired(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/invoices", nil, "X-Other", "1")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	problem := decodeBody[httpx.ProblemDetail](t, rec)
	assert.Equal(t, httpapi.HeaderTenant, problem.Field)

	rec = a.do(http.MethodGet, "/invoices", nil, httpapi.HeaderTenant, "1", httpapi.HeaderActor, "abc")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, httpapi.HeaderActor, decodeBody[httpx.ProblemDetail](t, rec).Field)
}

func TestInvoiceSendAndReport(t *testing.T) {
	a := newAPI(t)
	customerID := a.customer("Acme")

	rec := a.do(http.MethodPost, "/invoices", invoiceBody(customerID, "2", "50"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decodeBody[idBody](t, rec)
	assert.Equal(t, "DRAFT", inv.Status)
	assert.Equal(t, "INV-00001", inv.Number)
	assert.Equal(t, "110", inv.Total)

	rec = a.do(http.MethodPost, fmt.Sprintf("/invoices/%d/send", inv.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "SENT", decodeBody[idBody](t, rec).Status)

	rec = a.do(http.MethodGet, "/reports/trial-balance", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tb := decodeBody[reports.TrialBalance](t, rec)
	assert.True(t, tb.Balanced())
	booktest.RequireDecimal(t, "110", tb.TotalDebit)

	rec = a.do(http.MethodGet, "/invoices?per_page=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[reports.InvoicePage](t, rec)
	require.Len(t, page.Invoices, 1)
	assert.False(t, page.Pagination.HasNext)

	ar := a.b.ByRole[accounts.RoleAccountsReceivable].ID
	rec = a.do(http.MethodGet, fmt.Sprintf("/reports/general-ledger?account_id=%d", ar), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	gl := decodeBody[reports.LedgerReport](t, rec)
	require.Len(t, gl.Lines, 1)
	booktest.RequireDecimal(t, "110", gl.Lines[0].Balance)

	rec = a.do(http.MethodGet, "/reports/reconciliation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balanced":true`)

	rec = a.do(http.MethodGet, "/reports/profit-and-loss", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	booktest.RequireDecimal(t, "100", decodeBody[reports.ProfitAndLoss](t, rec).NetIncome)

	rec = a.do(http.MethodGet, "/reports/balance-sheet", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[reports.BalanceSheet](t, rec).Balanced())
}

func TestRequestValidation(t *testing.T) {
	a := newAPI(t)
	customerID := a.customer("Acme")

	rec := a.do(http.MethodPost, "/invoices", invoiceBody(customerID, "0", "50"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	problem := decodeBody[httpx.ProblemDetail](t, rec)
	assert.Equal(t, httpx.TypeValidation, problem.Type)
	assert.Contains(t, problem.Errors, "lines[0].quantity")

	rec = a.do(http.MethodPost, "/invoices", map[string]any{"customer_id": customerID})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "is required", decodeBody[httpx.ProblemDetail](t, rec).Errors["lines"])

	rec = a.do(http.MethodPost, "/invoices", `{"customer_id": 1, "colour": "red"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "body", decodeBody[httpx.ProblemDetail](t, rec).Field)

	rec = a.do(http.MethodPost, "/payments", map[string]any{"direction": "SIDEWAYS", "party_id": customerID, "amount": "5"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeBody[httpx.ProblemDetail](t, rec).Errors, "direction")

	rec = a.do(http.MethodGet, "/invoices/abc", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(http.MethodGet, "/reports/aging?as_of=yesterday", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "as_of", decodeBody[httpx.ProblemDetail](t, rec).Field)
}

func TestDomainErrorsMapToProblems(t *testing.T) {
	a := newAPI(t)
	customerID := a.customer("Acme")

	rec := a.do(http.MethodGet, "/invoices/999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, httpx.TypeNotFound, decodeBody[httpx.ProblemDetail](t, rec).Type)

	rec = a.do(http.MethodPost, "/invoices", invoiceBody(customerID, "1", "10"))
	require.Equal(t, http.StatusCreated, rec.Code)
	inv := decodeBody[idBody](t, rec)
	rec = a.do(http.MethodPost, fmt.Sprintf("/invoices/%d/void", inv.ID), map[string]any{"reason": "typo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, fmt.Sprintf("/invoices/%d/send", inv.ID), nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, "void invoices cannot be sent")
}

func TestMissingRoleIsConfigurationProblem(t *testing.T) {
	a := newAPI(t, booktest.WithoutRoles(accounts.RoleAccountsReceivable))
	customerID := a.customer("Acme")

	rec := a.do(http.MethodPost, "/invoices", invoiceBody(customerID, "1", "10"))
	require.Equal(t, http.StatusCreated, rec.Code)
	inv := decodeBody[idBody](t, rec)

	rec = a.do(http.MethodPost, fmt.Sprintf("/invoices/%d/send", inv.ID), nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	problem := decodeBody[httpx.ProblemDetail](t, rec)
	assert.Equal(t, httpx.TypeConfiguration, problem.Type)
	assert.Equal(t, string(accounts.RoleAccountsReceivable), problem.Role)
}

func TestPaymentSettlesInvoice(t *testing.T) {
	a := newAPI(t)
	customerID := a.customer("Acme")
	rec := a.do(http.MethodPost, "/invoices", invoiceBody(customerID, "1", "100"))
	require.Equal(t, http.StatusCreated, rec.Code)
	inv := decodeBody[idBody](t, rec)
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, fmt.Sprintf("/invoices/%d/send", inv.ID), nil).Code)

	rec = a.do(http.MethodPost, "/payments", map[string]any{
		"direction":    "RECEIVED",
		"party_id":     customerID,
		"amount":       "110",
		"date":         booktest.Today.Format("2006-01-02"),
		"applications": []map[string]any{{"document_id": inv.ID, "amount": "110"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, fmt.Sprintf("/invoices/%d", inv.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PAID", decodeBody[idBody](t, rec).Status)
}

func TestProblemForUnknownErrorHidesDetail(t *testing.T) {
	p := httpx.ProblemFor(fmt.Errorf("dial tcp 10.0.0.1:5432: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, p.Status)
	assert.Empty(t, p.Detail)
}

func TestIdempotencyKeyRejectsReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	a := newAPIWith(t, cache.NewIdempotency(client, time.Hour))
	tenant := fmt.Sprint(a.b.Scope.TenantID)

	first := a.do(http.MethodPost, "/customers", map[string]any{"name": "Acme"},
		httpapi.HeaderTenant, tenant, httpapi.HeaderIdempotencyKey, "cust-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	replay := a.do(http.MethodPost, "/customers", map[string]any{"name": "Acme"},
		httpapi.HeaderTenant, tenant, httpapi.HeaderIdempotencyKey, "cust-1")
	require.Equal(t, http.StatusConflict, replay.Code)

	bad := a.do(http.MethodPost, "/customers", map[string]any{},
		httpapi.HeaderTenant, tenant, httpapi.HeaderIdempotencyKey, "cust-2")
	require.Equal(t, http.StatusUnprocessableEntity, bad.Code)
	retry := a.do(http.MethodPost, "/customers", map[string]any{"name": "Beta"},
		httpapi.HeaderTenant, tenant, httpapi.HeaderIdempotencyKey, "cust-2")
	require.Equal(t, http.StatusCreated, retry.Code, "failed requests release their key")
}

func TestJournalEntryRoutesRefreshCachedBalances(t *testing.T) {
	a := newAPI(t)
	bank := a.b.ByRole[accounts.RoleBank].ID
	equity := a.b.ByRole[accounts.RoleOpeningBalanceEquity].ID
	cached := func() string {
		account, err := a.b.Accounts.GetAccount(context.Background(), a.b.Scope, bank)
		require.NoError(t, err)
		return account.Balance.String()
	}

	rec := a.do(http.MethodPost, "/journal-entries", map[string]any{
		"memo": "Owner capital",
		"post": true,
		"lines": []map[string]any{
			{"account_id": bank, "debit": "250"},
			{"account_id": equity, "credit": "250"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decodeBody[idBody](t, rec)
	assert.Equal(t, "250", cached())

	rec = a.do(http.MethodPost, fmt.Sprintf("/journal-entries/%d/void", entry.ID), map[string]any{"reason": "duplicate"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "VOID", decodeBody[idBody](t, rec).Status)
	assert.Equal(t, "0", cached())
}
