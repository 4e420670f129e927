package applications

import (
	"context"
	"sort"
	"sync"

	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
)

// MemoryStore implements Catalog and Repository in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	apps     map[string]Application
	installs map[Key]Installation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		apps:     make(map[string]Application),
		installs: make(map[Key]Installation),
	}
}

func (s *MemoryStore) GetApplication(_ context.Context, id string) (*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, ErrApplicationNotFound
	}
	return &app, nil
}

func (s *MemoryStore) ListApplications(_ context.Context) ([]Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	apps := make([]Application, 0, len(s.apps))
	for _, app := range s.apps {
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	return apps, nil
}

func (s *MemoryStore) UpsertApplication(_ context.Context, app Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[app.ID] = app
	return nil
}

func (s *MemoryStore) GetInstallation(_ context.Context, companyID, applicationID string) (*Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.installs[Key{CompanyID: companyID, ApplicationID: applicationID}]
	if !ok {
		return nil, ErrNotInstalled
	}
	return &inst, nil
}

func (s *MemoryStore) ListInstallations(_ context.Context, companyID string, after *pagination.Cursor, limit int) ([]Installation, error) {
	s.mu.RLock()
	var rows []Installation
	for k, inst := range s.installs {
		if k.CompanyID == companyID {
			rows = append(rows, inst)
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		return pagination.Ascending.Less(installCursor(rows[i]), installCursor(rows[j]))
	})

	out := make([]Installation, 0, limit)
	for _, inst := range rows {
		if after != nil && !pagination.Ascending.Less(*after, installCursor(inst)) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, inst)
	}
	return out, nil
}

func (s *MemoryStore) Install(_ context.Context, inst Installation) (Installation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := Key{CompanyID: inst.CompanyID, ApplicationID: inst.ApplicationID}
	if existing, ok := s.installs[key]; ok {
		return existing, false, nil
	}
	s.installs[key] = inst
	return inst, true, nil
}

func (s *MemoryStore) Uninstall(_ context.Context, companyID, applicationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := Key{CompanyID: companyID, ApplicationID: applicationID}
	if _, ok := s.installs[key]; !ok {
		return false, nil
	}
	delete(s.installs, key)
	return true, nil
}

func installCursor(inst Installation) pagination.Cursor {
	return pagination.Cursor{CreatedAt: inst.CreatedAt, ID: inst.ApplicationID}
}
