package messages

import (
	"context"
	"sort"
	"sync"

	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
)

type threadKey struct {
	companyID string
	threadID  string
}

type memoryThread struct {
	thread   Thread
	messages map[string]Message
}

// MemoryStore implements Store in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[threadKey]*memoryThread
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[threadKey]*memoryThread)}
}

func copyMessage(m Message) Message {
	m.Files = append([]MessageFile(nil), m.Files...)
	return m
}

func (s *MemoryStore) CreateThread(_ context.Context, thread Thread, head Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread.Participants = append([]Participant(nil), thread.Participants...)
	s.threads[threadKey{thread.CompanyID, thread.ID}] = &memoryThread{
		thread:   thread,
		messages: map[string]Message{head.ID: copyMessage(head)},
	}
	return nil
}

func (s *MemoryStore) GetThread(_ context.Context, companyID, threadID string) (*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[threadKey{companyID, threadID}]
	if !ok {
		return nil, ErrThreadNotFound
	}
	thread := t.thread
	thread.Participants = append([]Participant(nil), t.thread.Participants...)
	return &thread, nil
}

func (s *MemoryStore) DeleteThread(_ context.Context, companyID, threadID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := threadKey{companyID, threadID}
	if _, ok := s.threads[k]; !ok {
		return false, nil
	}
	delete(s.threads, k)
	return true, nil
}

func (s *MemoryStore) GetMessage(_ context.Context, companyID, threadID, messageID string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[threadKey{companyID, threadID}]
	if !ok {
		return nil, ErrThreadNotFound
	}
	m, ok := t.messages[messageID]
	if !ok {
		return nil, ErrMessageNotFound
	}
	m = copyMessage(m)
	return &m, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, companyID, threadID string, after *pagination.Cursor, limit int) ([]Message, error) {
	s.mu.RLock()
	t, ok := s.threads[threadKey{companyID, threadID}]
	if !ok {
		s.mu.RUnlock()
		return nil, ErrThreadNotFound
	}
	all := make([]Message, 0, len(t.messages))
	for _, m := range t.messages {
		all = append(all, copyMessage(m))
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return pagination.Ascending.Less(messageCursor(all[i]), messageCursor(all[j]))
	})
	out := make([]Message, 0, limit)
	for _, m := range all {
		if after != nil && !pagination.Ascending.Less(*after, messageCursor(m)) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *MemoryStore) InsertMessage(_ context.Context, msg Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadKey{msg.CompanyID, msg.ThreadID}]
	if !ok {
		return false, nil
	}
	if _, exists := t.messages[msg.ID]; exists {
		return false, nil
	}
	t.messages[msg.ID] = copyMessage(msg)
	return true, nil
}

func (s *MemoryStore) UpdateMessage(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadKey{msg.CompanyID, msg.ThreadID}]
	if !ok {
		return ErrThreadNotFound
	}
	if _, exists := t.messages[msg.ID]; !exists {
		return ErrMessageNotFound
	}
	t.messages[msg.ID] = copyMessage(msg)
	return nil
}

func (s *MemoryStore) DeleteMessage(_ context.Context, companyID, threadID, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadKey{companyID, threadID}]
	if !ok {
		return false, nil
	}
	if _, exists := t.messages[messageID]; !exists {
		return false, nil
	}
	delete(t.messages, messageID)
	return true, nil
}

func (s *MemoryStore) CountReplies(_ context.Context, companyID, threadID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[threadKey{companyID, threadID}]
	if !ok {
		return 0, ErrThreadNotFound
	}
	n := 0
	for id := range t.messages {
		if id != threadID {
			n++
		}
	}
	return n, nil
}

func messageCursor(m Message) pagination.Cursor {
	return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}
