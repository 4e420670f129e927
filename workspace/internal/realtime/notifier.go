package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/teamspace-hq/teamspace/common/logging"
	"github.com/teamspace-hq/teamspace/common/messaging"
	"github.com/teamspace-hq/teamspace/workspace/internal/metrics"
)

// Event actions.
const (
	ActionSaved   = "saved"
	ActionDeleted = "deleted"
)

// Event is the payload delivered to room subscribers.
type Event struct {
	Room         string          `json:"room"`
	Action       string          `json:"action"`
	ResourceType string          `json:"type"`
	Resource     json.RawMessage `json:"resource,omitempty"`
	Time         time.Time       `json:"time"`
}

// Notifier announces resource changes to rooms. Notification is best effort:
// implementations log failures and never fail the request that caused them.
type Notifier interface {
	Notify(ctx context.Context, rooms []Room, action, resourceType string, resource any)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, []Room, string, string, any) {}

// BrokerNotifier publishes events to a message broker on one subject per room.
type BrokerNotifier struct {
	publisher messaging.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewBrokerNotifier(publisher messaging.Publisher, logger *slog.Logger) *BrokerNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrokerNotifier{publisher: publisher, logger: logger, now: time.Now}
}

func (n *BrokerNotifier) Notify(ctx context.Context, rooms []Room, action, resourceType string, resource any) {
	events, err := buildEvents(rooms, action, resourceType, resource, n.now())
	if err != nil {
		metrics.NotifyFailures.Inc()
		n.logger.ErrorContext(ctx, "encode realtime event", logging.Error(err))
		return
	}
	for i, ev := range events {
		subject := messaging.RoomSubject(rooms[i].Path)
		if err := n.publisher.Publish(ctx, subject, ev); err != nil {
			metrics.NotifyFailures.Inc()
			n.logger.WarnContext(ctx, "publish realtime event",
				logging.Room(rooms[i].Path),
				logging.Error(err))
		}
	}
}

// RelaySubject matches every room subject.
const RelaySubject = messaging.SubjectRealtimePrefix + ".>"

// Relay feeds events arriving on the broker into the hub.
func Relay(sub messaging.Subscriber, hub *Hub) (messaging.Subscription, error) {
	return sub.Subscribe(RelaySubject, func(_ context.Context, msg *messaging.Message) error {
		var ev struct {
			Room string `json:"room"`
		}
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return err
		}
		hub.Broadcast(ev.Room, msg.Data)
		return nil
	})
}

// LocalNotifier delivers events straight to an in-process hub, for
// single-instance deployments without a broker.
type LocalNotifier struct {
	hub *Hub
	now func() time.Time
}

func NewLocalNotifier(hub *Hub) *LocalNotifier {
	return &LocalNotifier{hub: hub, now: time.Now}
}

func (n *LocalNotifier) Notify(ctx context.Context, rooms []Room, action, resourceType string, resource any) {
	events, err := buildEvents(rooms, action, resourceType, resource, n.now())
	if err != nil {
		metrics.NotifyFailures.Inc()
		slog.ErrorContext(ctx, "encode realtime event", logging.Error(err))
		return
	}
	for i, ev := range events {
		n.hub.Broadcast(rooms[i].Path, ev)
	}
}

func buildEvents(rooms []Room, action, resourceType string, resource any, now time.Time) ([][]byte, error) {
	var raw json.RawMessage
	if resource != nil {
		b, err := json.Marshal(resource)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	out := make([][]byte, 0, len(rooms))
	for _, room := range rooms {
		b, err := json.Marshal(Event{
			Room:         room.Path,
			Action:       action,
			ResourceType: resourceType,
			Resource:     raw,
			Time:         now.UTC(),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
