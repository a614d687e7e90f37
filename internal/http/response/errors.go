package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/yungbote/concierge-backend/internal/embedding"
	"github.com/yungbote/concierge-backend/internal/ingestion"
	pkgerrors "github.com/yungbote/concierge-backend/internal/pkg/errors"
	"github.com/yungbote/concierge-backend/internal/platform/apierr"
	"github.com/yungbote/concierge-backend/internal/search"
)

// FromError maps err onto an apierr.Error plus the client-facing summary.
// Details carry the cause only where it is safe to show: infrastructure
// errors behind 5xx responses are never echoed.
func FromError(err error) (*apierr.Error, string) {
	if ae, ok := apierr.As(err); ok {
		status := ae.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		summary := http.StatusText(status)
		if ae.Err != nil && status < http.StatusInternalServerError {
			summary = ae.Err.Error()
		}
		return &apierr.Error{Status: status, Code: ae.Code, Details: ae.Details, Err: err}, summary
	}

	var (
		missingScope *search.MissingScopeError
		backend      *search.SearchBackendError
		timeout      *search.SearchTimeoutError
	)
	switch {
	case errors.As(err, &missingScope):
		return apierr.New(http.StatusBadRequest, "missing_scope", err), "hotel_id is required"
	case errors.Is(err, search.ErrInvalidInput), errors.Is(err, embedding.ErrInvalidInput), errors.Is(err, pkgerrors.ErrInvalidArgument):
		return apierr.WithDetails(http.StatusBadRequest, "invalid_input", err, err.Error()), "invalid request"
	case errors.As(err, &timeout):
		return apierr.WithDetails(http.StatusGatewayTimeout, "search_timeout", err, timeout.Error()), "search timed out"
	case errors.Is(err, embedding.ErrModelUnavailable):
		return apierr.WithDetails(http.StatusInternalServerError, "model_unavailable", err, embedding.ErrModelUnavailable.Error()), "embedding model unavailable"
	case errors.As(err, &backend):
		details := "similarity search failed"
		if backend.Strategy != "" {
			details = backend.Strategy + " search failed"
		}
		return apierr.WithDetails(http.StatusInternalServerError, "search_failed", err, details), "search failed"
	case errors.Is(err, ingestion.ErrFileTooLarge):
		return apierr.WithDetails(http.StatusRequestEntityTooLarge, "file_too_large", err, err.Error()), "file too large"
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		return apierr.WithDetails(http.StatusUnauthorized, "unauthorized", err, err.Error()), "unauthorized"
	case errors.Is(err, pkgerrors.ErrForbidden):
		return apierr.New(http.StatusForbidden, "forbidden", err), "forbidden"
	case errors.Is(err, pkgerrors.ErrNotFound):
		return apierr.New(http.StatusNotFound, "not_found", err), "not found"
	case errors.Is(err, context.DeadlineExceeded):
		return apierr.New(http.StatusGatewayTimeout, "timeout", err), "request timed out"
	default:
		return apierr.New(http.StatusInternalServerError, "internal_error", err), "internal server error"
	}
}
