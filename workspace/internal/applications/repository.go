package applications

import (
	"context"
	"errors"

	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
)

var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrNotInstalled        = errors.New("application not installed")
)

// Catalog stores marketplace applications.
type Catalog interface {
	GetApplication(ctx context.Context, id string) (*Application, error)
	ListApplications(ctx context.Context) ([]Application, error)
	UpsertApplication(ctx context.Context, app Application) error
}

// Repository stores installations.
type Repository interface {
	GetInstallation(ctx context.Context, companyID, applicationID string) (*Installation, error)
	// ListInstallations returns up to limit installations of a company ordered
	// by (created_at, application_id), strictly after the cursor when given.
	ListInstallations(ctx context.Context, companyID string, after *pagination.Cursor, limit int) ([]Installation, error)
	// Install stores inst unless already present; it returns the stored row
	// and whether it was created.
	Install(ctx context.Context, inst Installation) (Installation, bool, error)
	// Uninstall reports whether a row was removed.
	Uninstall(ctx context.Context, companyID, applicationID string) (bool, error)
}
