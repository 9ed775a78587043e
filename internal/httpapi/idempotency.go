package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-books/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// HeaderIdempotencyKey marks a POST that must run at most once per tenant.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKey = 128

// KeyReserver claims idempotency keys.
type KeyReserver interface {
	Reserve(ctx context.Context, tenantID int64, key string) error
	Release(ctx context.Context, tenantID int64, key string) error
}

// idempotent rejects a replayed Idempotency-Key with 409. The key is
// released again when the request fails, so clients may retry.
func (h *Handler) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderIdempotencyKey)
		if h.keys == nil || r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKey {
			httpx.RespondError(w, shared.Invalid(HeaderIdempotencyKey, "must be at most %d characters", maxIdempotencyKey))
			return
		}
		scope := scopeOf(r)
		if err := h.keys.Reserve(r.Context(), scope.TenantID, key); err != nil {
			if errors.Is(err, cache.ErrKeyInUse) {
				httpx.Problem(w, http.StatusConflict, "Conflict", "request with this idempotency key was already processed")
				return
			}
			h.logger.WarnContext(r.Context(), "idempotency store unavailable", slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if ww.Status() >= http.StatusBadRequest {
			if err := h.keys.Release(r.Context(), scope.TenantID, key); err != nil {
				h.logger.WarnContext(r.Context(), "release idempotency key", slog.Any("error", err))
			}
		}
	})
}
