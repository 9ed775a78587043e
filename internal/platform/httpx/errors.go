// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Problem type URIs.
const (
	TypeValidation    = "/problems/validation"
	TypeNotFound      = "/problems/not-found"
	TypeConflict      = "/problems/conflict"
	TypeConfiguration = "/problems/configuration"
)

// ProblemFor maps a domain error to an RFC7807 problem. Unknown errors
// become a 500 with no detail so storage messages never leak.
func ProblemFor(err error) ProblemDetail {
	var (
		validation *shared.ValidationError
		config     *shared.ConfigurationError
	)
	switch {
	case errors.As(err, &validation):
		return ProblemDetail{Type: TypeValidation, Title: "Validation Failed", Status: http.StatusUnprocessableEntity, Detail: err.Error(), Field: validation.Field}
	case errors.Is(err, shared.ErrValidation):
		return ProblemDetail{Type: TypeValidation, Title: "Validation Failed", Status: http.StatusUnprocessableEntity, Detail: err.Error()}
	case errors.Is(err, shared.ErrNotFound):
		return ProblemDetail{Type: TypeNotFound, Title: "Not Found", Status: http.StatusNotFound, Detail: err.Error()}
	case errors.Is(err, shared.ErrConcurrency), errors.Is(err, shared.ErrDuplicateKey):
		return ProblemDetail{Type: TypeConflict, Title: "Conflict", Status: http.StatusConflict, Detail: err.Error()}
	case errors.As(err, &config):
		return ProblemDetail{Type: TypeConfiguration, Title: "Configuration Error", Status: http.StatusInternalServerError, Detail: err.Error(), Role: config.Role}
	default:
		return ProblemDetail{Title: "Internal Error", Status: http.StatusInternalServerError}
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	p := ProblemFor(err)
	writeProblem(w, p)
}
