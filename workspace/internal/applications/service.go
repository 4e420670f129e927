// Package applications manages which marketplace applications a company
// has installed.
package applications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teamspace-hq/teamspace/common/logging"
	"github.com/teamspace-hq/teamspace/workspace/internal/crud"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
	"github.com/teamspace-hq/teamspace/workspace/internal/realtime"
)

// FilterSearch matches name, description and categories, case-insensitively.
const FilterSearch = "search"

const resourceType = "company_application"

// Service implements crud.Service[Key, CompanyApplication, Patch].
// Members may read; only company admins install and uninstall.
type Service struct {
	catalog  Catalog
	repo     Repository
	codec    *pagination.Codec
	notifier realtime.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(catalog Catalog, repo Repository, codec *pagination.Codec, notifier realtime.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog:  catalog,
		repo:     repo,
		codec:    codec,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

var _ crud.Service[Key, CompanyApplication, Patch] = (*Service)(nil)

func (s *Service) Get(ctx context.Context, key Key, ec *execution.Context) (*CompanyApplication, error) {
	if err := authorize(key, ec, false); err != nil {
		return nil, err
	}
	inst, err := s.repo.GetInstallation(ctx, key.CompanyID, key.ApplicationID)
	if err != nil {
		if errors.Is(err, ErrNotInstalled) {
			return nil, nil
		}
		return nil, err
	}
	return s.hydrate(ctx, *inst)
}

func (s *Service) List(ctx context.Context, q pagination.Query, filters crud.Filters, ec *execution.Context) (*pagination.ListResult[CompanyApplication], error) {
	if !ec.IsMember() {
		return nil, crud.ErrAccessDenied
	}

	fingerprint := pagination.Fingerprint([]string{resourceType, ec.Company.ID}, filters, FilterSearch)
	var after *pagination.Cursor
	var cursor pagination.Cursor
	resume, err := s.codec.Decode(q.PageToken, fingerprint, &cursor)
	if err != nil {
		return nil, err
	}
	if resume {
		after = &cursor
	}

	limit := s.codec.Limit(q.Limit)
	search := strings.ToLower(strings.TrimSpace(filters.Get(FilterSearch)))

	// Scan in batches until limit+1 matches are found, so we know whether a
	// next page exists without a count query.
	matches := make([]CompanyApplication, 0, limit+1)
	for len(matches) <= limit {
		batch, err := s.repo.ListInstallations(ctx, ec.Company.ID, after, limit+1)
		if err != nil {
			return nil, err
		}
		for _, inst := range batch {
			after = &pagination.Cursor{CreatedAt: inst.CreatedAt, ID: inst.ApplicationID}
			ca, err := s.hydrate(ctx, inst)
			if err != nil {
				return nil, err
			}
			if !matchesSearch(ca.Application, search) {
				continue
			}
			matches = append(matches, *ca)
			if len(matches) > limit {
				break
			}
		}
		if len(batch) < limit+1 {
			break
		}
	}

	result := &pagination.ListResult[CompanyApplication]{Entities: matches}
	if len(matches) > limit {
		result.Entities = matches[:limit]
		last := result.Entities[limit-1]
		token, err := s.codec.Encode(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ApplicationID}, fingerprint)
		if err != nil {
			return nil, err
		}
		result.NextPage.PageToken = token
	}
	return result, nil
}

// Save installs the application. Installing twice returns the first installation.
func (s *Service) Save(ctx context.Context, key Key, _ Patch, ec *execution.Context) (*crud.SaveResult[CompanyApplication], error) {
	if err := authorize(key, ec, true); err != nil {
		return nil, err
	}
	if key.ApplicationID == "" {
		return nil, crud.Invalid("application id is required")
	}

	app, err := s.catalog.GetApplication(ctx, key.ApplicationID)
	if err != nil {
		if errors.Is(err, ErrApplicationNotFound) {
			return nil, crud.Invalid("application %q does not exist", key.ApplicationID)
		}
		return nil, err
	}
	if !app.Published && app.CompanyID != key.CompanyID {
		return nil, crud.Invalid("application %q is not published", key.ApplicationID)
	}

	inst, created, err := s.repo.Install(ctx, Installation{
		CompanyID:     key.CompanyID,
		ApplicationID: key.ApplicationID,
		CreatedAt:     s.now().UTC().Truncate(time.Microsecond),
		CreatedBy:     ec.User.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("install: %w", err)
	}

	ca := CompanyApplication{Installation: inst, Application: app.Public()}
	if created {
		s.logger.InfoContext(ctx, "application installed",
			logging.CompanyID(key.CompanyID),
			logging.UserID(ec.User.ID),
			slog.String("application_id", key.ApplicationID))
		s.notifier.Notify(ctx, Rooms(ec), realtime.ActionSaved, resourceType, ca)
	}
	return &crud.SaveResult[CompanyApplication]{Entity: ca}, nil
}

// Delete uninstalls the application; Deleted is false when it was not installed.
func (s *Service) Delete(ctx context.Context, key Key, ec *execution.Context) (*crud.DeleteResult, error) {
	if err := authorize(key, ec, true); err != nil {
		return nil, err
	}
	removed, err := s.repo.Uninstall(ctx, key.CompanyID, key.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("uninstall: %w", err)
	}
	if removed {
		s.logger.InfoContext(ctx, "application uninstalled",
			logging.CompanyID(key.CompanyID),
			logging.UserID(ec.User.ID),
			slog.String("application_id", key.ApplicationID))
		s.notifier.Notify(ctx, Rooms(ec), realtime.ActionDeleted, resourceType, Installation{
			CompanyID:     key.CompanyID,
			ApplicationID: key.ApplicationID,
		})
	}
	return &crud.DeleteResult{Deleted: removed}, nil
}

// Rooms lists the realtime rooms of a company's applications.
func Rooms(ec *execution.Context) []realtime.Room {
	return []realtime.Room{realtime.CompanyApplicationsRoom(ec.Company.ID)}
}

func authorize(key Key, ec *execution.Context, write bool) error {
	if key.CompanyID != ec.Company.ID {
		return crud.ErrAccessDenied
	}
	if write && !ec.IsAdmin() {
		return crud.ErrAccessDenied
	}
	if !ec.IsMember() {
		return crud.ErrAccessDenied
	}
	return nil
}

// hydrate joins an installation with its catalog entry. Installations of
// applications since removed from the catalog keep a nil Application.
func (s *Service) hydrate(ctx context.Context, inst Installation) (*CompanyApplication, error) {
	app, err := s.catalog.GetApplication(ctx, inst.ApplicationID)
	if err != nil {
		if errors.Is(err, ErrApplicationNotFound) {
			return &CompanyApplication{Installation: inst}, nil
		}
		return nil, err
	}
	return &CompanyApplication{Installation: inst, Application: app.Public()}, nil
}

func matchesSearch(app *PublicApplication, search string) bool {
	if search == "" {
		return true
	}
	if app == nil {
		return false
	}
	if strings.Contains(strings.ToLower(app.Identity.Name), search) ||
		strings.Contains(strings.ToLower(app.Identity.Description), search) {
		return true
	}
	for _, c := range app.Identity.Categories {
		if strings.Contains(strings.ToLower(c), search) {
			return true
		}
	}
	return false
}
