// Package publisher emits job lifecycle events. The dispatcher publishes a
// notification on every transition so external consumers can follow crawl
// jobs without polling the API. Publish failures are surfaced to the caller
// for logging but must never fail the job itself.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrClosed signals a publish against a closed publisher.
var ErrClosed = errors.New("publisher is closed")

// EventType names a job lifecycle transition.
type EventType string

// Lifecycle event types.
const (
	EventJobSubmitted EventType = "job_submitted"
	EventJobStarted   EventType = "job_started"
	EventJobDone      EventType = "job_done"
	EventJobFailed    EventType = "job_failed"
)

// Event is one job lifecycle notification.
type Event struct {
	JobID   string    `json:"job_id"`
	Type    EventType `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// Validate reports whether the event carries the required fields.
func (e Event) Validate() error {
	if e.JobID == "" {
		return fmt.Errorf("event job id is required")
	}
	switch e.Type {
	case EventJobSubmitted, EventJobStarted, EventJobDone, EventJobFailed:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// Publisher sends job lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NoOp drops every event. Used when no event backend is configured.
type NoOp struct{}

// Publish does nothing and returns nil.
func (NoOp) Publish(_ context.Context, _ Event) error { return nil }

// Close does nothing and returns nil.
func (NoOp) Close() error { return nil }
