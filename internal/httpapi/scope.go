package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Scope headers.
const (
	HeaderTenant = "X-Tenant-ID"
	HeaderActor  = "X-Actor-ID"
)

// RequireScope reads the tenant and actor headers into the request
// context. Requests without a valid tenant are rejected.
func RequireScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := headerID(r, HeaderTenant, true)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		actorID, err := headerID(r, HeaderActor, false)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		ctx := shared.ContextWithScope(r.Context(), shared.Scope{TenantID: tenantID, ActorID: actorID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func headerID(r *http.Request, name string, required bool) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(name))
	if raw == "" {
		if required {
			return 0, shared.Invalid(name, "header is required")
		}
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

func scopeOf(r *http.Request) shared.Scope {
	scope, _ := shared.ScopeFromContext(r.Context())
	return scope
}
