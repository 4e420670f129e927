package channels

import (
	"context"
	"sort"
	"sync"

	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
)

// MemoryRepository implements Repository in memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	channels map[Key]Channel
	retired  map[Key]bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		channels: make(map[Key]Channel),
		retired:  make(map[Key]bool),
	}
}

func keyOf(ch Channel) Key {
	return Key{CompanyID: ch.CompanyID, WorkspaceID: ch.WorkspaceID, ChannelID: ch.ID}
}

func clone(ch Channel) Channel {
	ch.Members = append([]string(nil), ch.Members...)
	return ch
}

func (r *MemoryRepository) GetChannel(_ context.Context, key Key) (*Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[key]
	if !ok {
		return nil, ErrChannelNotFound
	}
	ch = clone(ch)
	return &ch, nil
}

func (r *MemoryRepository) ListChannels(_ context.Context, companyID, workspaceID string, after *pagination.Cursor, limit int) ([]Channel, error) {
	r.mu.RLock()
	var rows []Channel
	for k, ch := range r.channels {
		if k.CompanyID == companyID && k.WorkspaceID == workspaceID {
			rows = append(rows, clone(ch))
		}
	}
	r.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		return pagination.Ascending.Less(cursorOf(rows[i]), cursorOf(rows[j]))
	})
	out := make([]Channel, 0, limit)
	for _, ch := range rows {
		if after != nil && !pagination.Ascending.Less(*after, cursorOf(ch)) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, ch)
	}
	return out, nil
}

func (r *MemoryRepository) CreateChannel(_ context.Context, ch Channel) (Channel, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.channels[keyOf(ch)]; ok {
		return clone(existing), false, nil
	}
	if r.retired[keyOf(ch)] {
		return Channel{}, false, ErrChannelRetired
	}
	ch.Members = dedupe(ch.Members)
	r.channels[keyOf(ch)] = clone(ch)
	return ch, true, nil
}

func (r *MemoryRepository) UpdateChannel(_ context.Context, ch Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.channels[keyOf(ch)]
	if !ok {
		return ErrChannelNotFound
	}
	existing.Name = ch.Name
	existing.Description = ch.Description
	existing.Visibility = ch.Visibility
	existing.UpdatedAt = ch.UpdatedAt
	r.channels[keyOf(ch)] = existing
	return nil
}

func (r *MemoryRepository) DeleteChannel(_ context.Context, key Key) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[key]; !ok {
		return false, nil
	}
	delete(r.channels, key)
	r.retired[key] = true
	return true, nil
}

func (r *MemoryRepository) AddMembers(_ context.Context, key Key, userIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[key]
	if !ok {
		return ErrChannelNotFound
	}
	ch.Members = dedupe(append(ch.Members, userIDs...))
	r.channels[key] = ch
	return nil
}

func (r *MemoryRepository) IsMember(_ context.Context, key Key, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[key]
	return ok && ch.HasMember(userID), nil
}

func (r *MemoryRepository) MemberChannels(_ context.Context, companyID, userID string) ([]Ref, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var refs []Ref
	for k, ch := range r.channels {
		if k.CompanyID == companyID && ch.HasMember(userID) {
			refs = append(refs, Ref{CompanyID: k.CompanyID, WorkspaceID: k.WorkspaceID, ChannelID: k.ChannelID})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].WorkspaceID != refs[j].WorkspaceID {
			return refs[i].WorkspaceID < refs[j].WorkspaceID
		}
		return refs[i].ChannelID < refs[j].ChannelID
	})
	return refs, nil
}

func cursorOf(ch Channel) pagination.Cursor {
	return pagination.Cursor{CreatedAt: ch.CreatedAt, ID: ch.ID}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
