// Package memory provides an in-process publisher for tests and local
// runs without a message broker.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Publisher records run events in memory. It satisfies the same
// contract as the pubsub publisher.
type Publisher struct {
	mu     sync.RWMutex
	events []Event
	err    error
}

// Event captures one published run notification.
type Event struct {
	Topic   string
	Payload any
}

// New returns an empty in-memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// FailWith makes every subsequent Publish return err. Pass nil to
// restore normal operation.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Publish records the event and returns a synthetic message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, Event{Topic: topic, Payload: payload})
	return fmt.Sprintf("local-%06d", len(p.events)), nil
}

// Events returns a copy of the recorded publishes in order.
func (p *Publisher) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
