// Package memory provides an in-process event bus for single binary
// deployments and tests.
package memory

import (
	"context"
	"sync"

	"github.com/campusdata/admissions-crawler/internal/publisher"
)

// Publisher fans events out to subscriber channels and keeps a copy of every
// event for inspection.
type Publisher struct {
	mu     sync.RWMutex
	subs   []chan publisher.Event
	events []publisher.Event
	closed bool
}

var _ publisher.Publisher = (*Publisher)(nil)

// New returns an empty memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and offers it to every subscriber. A subscriber
// whose buffer is full misses the event rather than blocking the publisher.
func (p *Publisher) Publish(_ context.Context, evt publisher.Event) error {
	if err := evt.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return publisher.ErrClosed
	}
	p.events = append(p.events, evt)
	for _, ch := range p.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber channel with the given buffer size.
func (p *Publisher) Subscribe(buffer int) <-chan publisher.Event {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan publisher.Event, buffer)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(ch)
		return ch
	}
	p.subs = append(p.subs, ch)
	return ch
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []publisher.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]publisher.Event, len(p.events))
	copy(out, p.events)
	return out
}

// Close closes all subscriber channels. Publishing after Close fails.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, ch := range p.subs {
		close(ch)
	}
	p.subs = nil
	return nil
}
