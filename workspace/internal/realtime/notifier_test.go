package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamspace-hq/teamspace/common/messaging"
)

type published struct {
	subject string
	data    []byte
}

type fakeBroker struct {
	mu       sync.Mutex
	msgs     []published
	err      error
	handlers map[string]messaging.MessageHandler
}

func (b *fakeBroker) Publish(_ context.Context, subject string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.msgs = append(b.msgs, published{subject, data})
	return nil
}

func (b *fakeBroker) Close() error { return nil }

func (b *fakeBroker) Subscribe(subject string, h messaging.MessageHandler) (messaging.Subscription, error) {
	if b.handlers == nil {
		b.handlers = map[string]messaging.MessageHandler{}
	}
	b.handlers[subject] = h
	return nil, nil
}

func TestBrokerNotifier_Notify(t *testing.T) {
	broker := &fakeBroker{}
	n := NewBrokerNotifier(broker, nil)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return fixed }

	rooms := []Room{ChannelFeedRoom("c1", "w1", "ch1"), ChannelFeedRoom("c1", "w1", "ch2")}
	n.Notify(context.Background(), rooms, ActionSaved, "message", map[string]string{"id": "m1"})

	require.Len(t, broker.msgs, 2)
	assert.Equal(t, "realtime.companies.c1.workspaces.w1.channels.ch1.feed", broker.msgs[0].subject)

	var ev Event
	require.NoError(t, json.Unmarshal(broker.msgs[1].data, &ev))
	assert.Equal(t, rooms[1].Path, ev.Room)
	assert.Equal(t, ActionSaved, ev.Action)
	assert.Equal(t, "message", ev.ResourceType)
	assert.JSONEq(t, `{"id":"m1"}`, string(ev.Resource))
	assert.True(t, fixed.Equal(ev.Time))
}

func TestBrokerNotifier_SwallowsErrors(t *testing.T) {
	broker := &fakeBroker{err: errors.New("broker down")}
	n := NewBrokerNotifier(broker, nil)
	assert.NotPanics(t, func() {
		n.Notify(context.Background(), []Room{CompanyApplicationsRoom("c1")}, ActionDeleted, "application", nil)
	})
	assert.NotPanics(t, func() {
		n.Notify(context.Background(), []Room{CompanyApplicationsRoom("c1")}, ActionSaved, "application", func() {})
	})
}

func TestRelay_DeliversToHub(t *testing.T) {
	broker := &fakeBroker{}
	hub := NewHub()
	_, err := Relay(broker, hub)
	require.NoError(t, err)
	handler := broker.handlers[RelaySubject]
	require.NotNil(t, handler)

	room := CompanyApplicationsRoom("c1").Path
	c := &client{send: make(chan []byte, 1), done: make(chan struct{})}
	hub.join(room, c)

	payload := []byte(`{"room":"` + room + `","action":"saved"}`)
	require.NoError(t, handler(context.Background(), &messaging.Message{Data: payload}))
	assert.Equal(t, payload, <-c.send)

	assert.Error(t, handler(context.Background(), &messaging.Message{Data: []byte("nope")}))
}

func TestLocalNotifier(t *testing.T) {
	hub := NewHub()
	room := CompanyApplicationsRoom("c1")
	c := &client{send: make(chan []byte, 1), done: make(chan struct{})}
	hub.join(room.Path, c)

	NewLocalNotifier(hub).Notify(context.Background(), []Room{room}, ActionSaved, "application", nil)

	var ev Event
	require.NoError(t, json.Unmarshal(<-c.send, &ev))
	assert.Equal(t, room.Path, ev.Room)
	assert.Empty(t, ev.Resource)

	NopNotifier{}.Notify(context.Background(), []Room{room}, ActionSaved, "application", nil)
	assert.Len(t, c.send, 0)
}
