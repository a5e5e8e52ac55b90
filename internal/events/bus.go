// Package events carries in-process broadcast signals between the web
// handlers. Its single use is notifying guarded views when an
// administrator's "view as role" selection changes, so they re-evaluate
// access without a full reload.
package events

import (
	"sync"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
)

// ViewAsChanged is published when a session's impersonation tag changes.
// An empty Role means impersonation was cleared.
type ViewAsChanged struct {
	SessionID string
	Role      authz.Role
}

// Bus is a process-wide fan-out of ViewAsChanged signals. Publishing never
// blocks: a subscriber that is not draining its channel misses the signal.
type Bus struct {
	mu   sync.Mutex
	subs map[uint64]chan ViewAsChanged
	next uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]chan ViewAsChanged)}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the listener goes away; it closes the channel.
func (b *Bus) Subscribe() (<-chan ViewAsChanged, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++

	ch := make(chan ViewAsChanged, 4)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish broadcasts the change to all current subscribers.
func (b *Bus) Publish(change ViewAsChanged) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
