package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"payoff/internal/core"
	"payoff/internal/log"
	"payoff/internal/ports"
	"payoff/internal/services"
)

// writeError maps service errors onto status codes.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		InvalidInputError(verr.Error(), verr.DebtID, verr.Field).Write(w)
	case errors.Is(err, core.ErrInvalidInput):
		InvalidInputError(err.Error(), "", "").Write(w)
	case errors.Is(err, ports.ErrNotFound):
		NotFoundError(err.Error()).Write(w)
	case errors.Is(err, services.ErrAsyncUnavailable):
		ServiceUnavailableError("asynchronous simulation is not available").Write(w)
	case errors.Is(err, context.DeadlineExceeded):
		GatewayTimeoutError("simulation took too long").Write(w)
	default:
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, op, nil)
		InternalServerError().Write(w)
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// pathID returns the sanitized {id} wildcard.
func pathID(r *http.Request) string {
	return sanitizeInput(r.PathValue("id"))
}
