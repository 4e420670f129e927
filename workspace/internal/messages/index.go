package messages

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/teamspace-hq/teamspace/workspace/internal/channels"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
)

// SearchQuery selects messages from an Index. Channels is the allow-list
// of channels the caller may read; an empty list matches nothing.
type SearchQuery struct {
	CompanyID string
	Text      string
	Sender    string
	HasFiles  *bool
	Channels  []channels.Ref
	After     *pagination.Cursor
	Limit     int
}

// Index is the full-text message index. Search returns hits newest first,
// ordered by (created_at, id) descending, strictly after q.After.
type Index interface {
	Name() string
	Upsert(ctx context.Context, msg Message) error
	Remove(ctx context.Context, companyID, threadID, messageID string) error
	Search(ctx context.Context, q SearchQuery) ([]Message, error)
}

// MemoryIndex implements Index in memory. A message matches when every
// query term is a case-insensitive prefix of one of its words.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]map[docKey]Message
}

// docKey mirrors the store's key within a company: message ids are only
// unique inside their thread.
type docKey struct {
	threadID  string
	messageID string
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[string]map[docKey]Message)}
}

func (x *MemoryIndex) Name() string { return "memory" }

func (x *MemoryIndex) Upsert(_ context.Context, msg Message) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	company, ok := x.docs[msg.CompanyID]
	if !ok {
		company = make(map[docKey]Message)
		x.docs[msg.CompanyID] = company
	}
	company[docKey{threadID: msg.ThreadID, messageID: msg.ID}] = copyMessage(msg)
	return nil
}

func (x *MemoryIndex) Remove(_ context.Context, companyID, threadID, messageID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.docs[companyID], docKey{threadID: threadID, messageID: messageID})
	return nil
}

func (x *MemoryIndex) Search(_ context.Context, q SearchQuery) ([]Message, error) {
	terms := tokenize(q.Text)
	allowed := make(map[channels.Ref]bool, len(q.Channels))
	for _, ref := range q.Channels {
		allowed[ref] = true
	}

	x.mu.RLock()
	var hits []Message
	for _, m := range x.docs[q.CompanyID] {
		ref := channels.Ref{CompanyID: m.CompanyID, WorkspaceID: m.WorkspaceID, ChannelID: m.ChannelID}
		if !allowed[ref] {
			continue
		}
		if q.Sender != "" && m.UserID != q.Sender {
			continue
		}
		if q.HasFiles != nil && (len(m.Files) > 0) != *q.HasFiles {
			continue
		}
		if !matchesTerms(m.Text, terms) {
			continue
		}
		hits = append(hits, copyMessage(m))
	}
	x.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		return pagination.Descending.Less(messageCursor(hits[i]), messageCursor(hits[j]))
	})
	out := make([]Message, 0, q.Limit)
	for _, m := range hits {
		if q.After != nil && !pagination.Descending.Less(*q.After, messageCursor(m)) {
			continue
		}
		if len(out) == q.Limit {
			break
		}
		out = append(out, m)
	}
	return out, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func matchesTerms(text string, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	words := tokenize(text)
	for _, term := range terms {
		found := false
		for _, w := range words {
			if strings.HasPrefix(w, term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
