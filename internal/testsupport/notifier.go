package testsupport

import (
	"context"
	"sync"

	"drip/internal/notifications"
)

// Notifier records published notifications.
type Notifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
	Err      error
}

// Publish implements notifications.Service.
func (n *Notifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.payloads = append(n.payloads, payload)
	return n.Err
}

// Events returns the published events in order.
func (n *Notifier) Events() []notifications.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Event(nil), n.events...)
}

// Last returns the most recent payload, or nil.
func (n *Notifier) Last() notifications.Payload {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.payloads) == 0 {
		return nil
	}
	return n.payloads[len(n.payloads)-1]
}
