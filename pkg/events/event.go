package events

import (
	"context"
	"time"
)

const TypeReportSubmitted = "REPORT_SUBMITTED"

// Event defines the contract for all system events.
type Event interface {
	// EventID is unique per occurrence and doubles as the dedupe key on the bus.
	EventID() string

	// EventType returns the unique code for this event (e.g., "REPORT_SUBMITTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher sends events to an external bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type BaseEvent struct {
	ID         string
	Type       string
	Data       interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventID() string {
	return e.ID
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
