package messages

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teamspace-hq/teamspace/workspace/internal/channels"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
	"github.com/teamspace-hq/teamspace/workspace/internal/realtime"
)

const (
	company   = "c1"
	workspace = "w1"
)

type notification struct {
	rooms  []realtime.Room
	action string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *recordingNotifier) Notify(_ context.Context, rooms []realtime.Room, action, _ string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{rooms: rooms, action: action})
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	svc      *Service
	search   *SearchService
	channels *channels.Service
	store    *MemoryStore
	index    *MemoryIndex
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec := pagination.NewCodec([]byte("cursor-key"), 20, 100)
	chSvc := channels.NewService(channels.NewMemoryRepository(), codec, nil, nil)
	store := NewMemoryStore()
	index := NewMemoryIndex()
	notifier := &recordingNotifier{}
	svc := NewService(store, index, chSvc, codec, notifier, nil)

	var mu sync.Mutex
	tick := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}
	return &fixture{
		t:        t,
		ctx:      context.Background(),
		svc:      svc,
		search:   NewSearchService(svc),
		channels: chSvc,
		store:    store,
		index:    index,
		notifier: notifier,
	}
}

func actor(t *testing.T, userID string) *execution.Context {
	t.Helper()
	ec, err := execution.Build(execution.RequestInfo{
		CompanyID: company,
		Actor:     &execution.Actor{ID: userID, Companies: map[string]execution.Role{company: execution.RoleMember}},
	})
	require.NoError(t, err)
	return ec
}

func text(s string) *string { return &s }

// channel creates a channel owned by owner with the extra members.
func (f *fixture) channel(id, owner string, members ...string) Participant {
	f.t.Helper()
	name := id
	_, err := f.channels.Save(f.ctx, channels.Key{CompanyID: company, WorkspaceID: workspace, ChannelID: id},
		channels.Patch{Name: &name, Members: members}, actor(f.t, owner))
	require.NoError(f.t, err)
	return Participant{Type: ParticipantChannel, ID: id, CompanyID: company, WorkspaceID: workspace}
}

func (f *fixture) thread(userID, body string, participants ...Participant) string {
	f.t.Helper()
	created, err := f.svc.CreateThread(f.ctx, participants, Patch{Text: text(body)}, actor(f.t, userID))
	require.NoError(f.t, err)
	return created.ID
}

func (f *fixture) reply(userID, threadID, body string, files ...MessageFile) Message {
	f.t.Helper()
	msg, err := f.svc.Reply(f.ctx, threadID, Patch{Text: text(body), Files: files}, actor(f.t, userID))
	require.NoError(f.t, err)
	return *msg
}

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }
