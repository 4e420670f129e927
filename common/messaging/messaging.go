// Package messaging provides abstractions for message broker communication.
// Services publish and subscribe through these interfaces so the broker
// (NATS or RabbitMQ) is chosen by configuration.
package messaging

import (
	"context"
	"time"
)

// Message represents a message received from or sent to a message broker.
type Message struct {
	// Subject is the topic/routing key the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs for message headers.
	Metadata map[string]string

	// Timestamp is when the message was received.
	Timestamp time.Time
}

// MessageHandler processes a received message.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription represents an active subscription to a subject.
type Subscription interface {
	// Unsubscribe stops receiving messages on this subscription.
	Unsubscribe() error

	// Subject returns the subject this subscription is listening to.
	Subject() string
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends data to subject, fire-and-forget.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close releases any resources held by the publisher.
	Close() error
}

// Subscriber subscribes to messages on subjects.
type Subscriber interface {
	// Subscribe delivers every message on subject to handler (fan-out).
	Subscribe(subject string, handler MessageHandler) (Subscription, error)
}

// Client combines Publisher and Subscriber.
type Client interface {
	Publisher
	Subscriber

	// IsConnected returns true if the client is connected to the broker.
	IsConnected() bool
}
