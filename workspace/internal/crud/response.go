package crud

import (
	"errors"
	"net/http"

	"github.com/teamspace-hq/teamspace/common/httputil"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
	"github.com/teamspace-hq/teamspace/workspace/internal/realtime"
)

// GetResponse carries a single resource; Resource is null when absent.
type GetResponse[T any] struct {
	Resource *T `json:"resource"`
}

// ListResponse carries one page of resources and the rooms the caller may join.
type ListResponse[T any] struct {
	Resources     []T                   `json:"resources"`
	NextPageToken string                `json:"next_page_token"`
	Websockets    []realtime.SignedRoom `json:"websockets"`
}

// UpdateResponse carries the saved resource.
type UpdateResponse[T any] struct {
	Resource T `json:"resource"`
}

// Delete outcomes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// DeleteResponse reports a delete outcome in the body, not the status code.
type DeleteResponse struct {
	Status string `json:"status"`
}

// SaveRequest is the body accepted by save endpoints.
type SaveRequest[P any] struct {
	Resource P `json:"resource"`
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, execution.ErrMissingTenant):
		return http.StatusBadRequest
	case errors.Is(err, execution.ErrMissingActor):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pagination.ErrInvalidCursor):
		return http.StatusBadRequest
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON:API error object.
func WriteError(w http.ResponseWriter, err error) {
	switch status := StatusFor(err); {
	case errors.Is(err, execution.ErrMissingTenant):
		httputil.WriteError(w, status, "missing_tenant", "Missing Company", err.Error())
	case errors.Is(err, execution.ErrMissingActor):
		httputil.WriteUnauthorized(w, err.Error())
	case errors.Is(err, ErrAccessDenied):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, ErrNotFound):
		httputil.WriteError(w, status, "not_found", "Resource Not Found", err.Error())
	case errors.Is(err, pagination.ErrInvalidCursor):
		httputil.WriteError(w, status, "invalid_cursor", "Invalid Page Token", err.Error())
	case errors.Is(err, ErrValidation):
		httputil.WriteValidationError(w, err.Error())
	default:
		httputil.WriteInternalError(w)
	}
}
