// Package events is the in-process event bus. Domain packages define the
// concrete events; this package only knows names and timestamps.
package events

import (
	"context"
	"time"
)

// Event is anything published on the bus. EventName is the subscription key.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp every event needs. Embed it.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps an event with the current UTC time.
func NewBaseEvent() BaseEvent {
	return NewBaseEventAt(time.Now())
}

// NewBaseEventAt stamps an event with the transition time the caller
// already holds, so the event and the stored record agree.
func NewBaseEventAt(at time.Time) BaseEvent {
	return BaseEvent{Timestamp: at.UTC()}
}

// Subscriber is the subscribe-only half of Bus.
type Subscriber interface {
	Subscribe(eventName string, handler Handler)
}

// Publisher is the publish-only half of Bus. Services and the client store
// depend on this, never on the full Bus.
type Publisher interface {
	// Publish returns immediately; handler failures are logged by the bus.
	Publish(ctx context.Context, event Event)
	// PublishSync runs every handler before returning and joins their errors.
	PublishSync(ctx context.Context, event Event) error
}

// Bus is what the composition root wires.
type Bus interface {
	Publisher
	Subscriber
}

type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}
