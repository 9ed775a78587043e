package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `odyssey_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `odyssey_http_request_duration_seconds_bucket{route="/test"`)
}

func TestObservePostingLabelsOutcome(t *testing.T) {
	metrics := NewMetrics()
	start := time.Now()
	metrics.ObservePosting("invoice.send", start, nil)
	metrics.ObservePosting("invoice.send", start, shared.Invalid("status", "bad"))
	metrics.ObservePosting("bill.approve", start, &shared.ConfigurationError{Role: "ACCOUNTS_PAYABLE"})

	body := scrape(t, metrics)
	require.Contains(t, body, `odyssey_postings_total{operation="invoice.send",outcome="ok"} 1`)
	require.Contains(t, body, `odyssey_postings_total{operation="invoice.send",outcome="invalid"} 1`)
	require.Contains(t, body, `odyssey_postings_total{operation="bill.approve",outcome="configuration"} 1`)
}

func TestOutcome(t *testing.T) {
	require.Equal(t, "ok", Outcome(nil))
	require.Equal(t, "not_found", Outcome(shared.NotFound("invoice", 1)))
	require.Equal(t, "conflict", Outcome(&shared.DuplicateNumberError{Prefix: "INV", Attempts: 4}))
	require.Equal(t, "error", Outcome(errors.New("boom")))
	require.True(t, strings.HasPrefix(Outcome(shared.Invalid("x", "y")), "inv"))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObservePosting("noop", time.Now(), nil)
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
