// Package eventbus provides event-driven communication between stage workers and the state machine.
package eventbus

import (
	"context"

	"github.com/dukex/contentflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a decoded event (a pointer to the concrete event
// type). Returning an error nacks the message for redelivery.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Drain()
	Close() error
	GenerateID() string
}
