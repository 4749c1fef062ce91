package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/infrastructure/resilience"
)

const searchFailedMessage = "search failed, please retry"

// mapError returns the status and the message safe to show to a caller.
// AllSourcesFailed is checked first because it wraps the per-source causes.
func mapError(err error) (int, string) {
	switch {
	case domain.IsKind(err, domain.ErrAllSourcesFailed):
		return http.StatusBadGateway, searchFailedMessage
	case domain.IsKind(err, domain.ErrInvalidQuery), domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, invalidMessage(err)
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case domain.IsKind(err, domain.ErrNoDatasets):
		return http.StatusServiceUnavailable, "no knowledge datasets available"
	case domain.IsKind(err, domain.ErrKnowledgeUnavailable),
		domain.IsKind(err, domain.ErrTemporary),
		resilience.IsCircuitOpen(err):
		return http.StatusServiceUnavailable, "service temporarily unavailable, please retry"
	case domain.IsKind(err, domain.ErrKnowledgeSearchFailed), domain.IsKind(err, domain.ErrSearchProvider):
		return http.StatusBadGateway, searchFailedMessage
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// invalidMessage drops operation prefixes and kinds so the caller sees only
// the innermost reason, e.g. "query is empty".
func invalidMessage(err error) string {
	for {
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			causes := u.Unwrap()
			if len(causes) == 0 {
				return err.Error()
			}
			err = causes[len(causes)-1]
		case interface{ Unwrap() error }:
			next := u.Unwrap()
			if next == nil {
				return err.Error()
			}
			err = next
		default:
			return err.Error()
		}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := mapError(err)
	attrs := []any{
		"request_id", requestIDFromContext(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	}
	if status >= 500 {
		slog.Error("http_request_failed", attrs...)
	} else {
		slog.Warn("http_request_rejected", attrs...)
	}
	writeJSON(w, status, map[string]string{"error": message})
}
