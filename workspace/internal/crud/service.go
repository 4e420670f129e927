// Package crud holds the contract shared by every tenant-scoped resource
// family and the generic HTTP controller that binds it to routes.
package crud

import (
	"context"
	"errors"
	"fmt"

	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
)

var (
	// ErrAccessDenied is returned when the actor lacks the capability for the
	// company or resource.
	ErrAccessDenied = errors.New("access denied")
	// ErrNotFound is returned where absence must be told apart from denial.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed or unacceptable save payloads.
	ErrValidation = errors.New("validation failed")
)

// Invalid wraps ErrValidation with a client-facing reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Filters maps recognised filter names to values. Each service documents the
// names it recognises; everything else is ignored.
type Filters map[string]string

// Get returns the value of name, or "".
func (f Filters) Get(name string) string {
	if f == nil {
		return ""
	}
	return f[name]
}

// SaveResult is returned by Save.
type SaveResult[T any] struct {
	Entity T
}

// DeleteResult is returned by Delete. Deleted is false when there was nothing
// the actor could delete.
type DeleteResult struct {
	Deleted bool
}

// Service is the facade each resource family implements. Every method is
// scoped to ec.Company.
type Service[K, T, P any] interface {
	// Get returns nil, nil when the entity is absent or not visible.
	Get(ctx context.Context, key K, ec *execution.Context) (*T, error)
	List(ctx context.Context, q pagination.Query, filters Filters, ec *execution.Context) (*pagination.ListResult[T], error)
	Save(ctx context.Context, key K, patch P, ec *execution.Context) (*SaveResult[T], error)
	Delete(ctx context.Context, key K, ec *execution.Context) (*DeleteResult, error)
}
