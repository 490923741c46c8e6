// Package bus routes notification events from directory writes to hub
// subscribers. Delivery is in-process, best-effort, at-most-once: nothing is
// queued for topics without subscribers.
package bus

import (
	"sync"

	"github.com/nextlevelbuilder/carelink/pkg/protocol"
)

// Handler receives events published to a topic. Handlers must be
// non-blocking; slow consumers buffer on their own side.
type Handler func(evt protocol.Event)

// Bus is a topic-keyed publish/subscribe fanout.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[uint64]Handler // topic → subscription id → handler
	next uint64
}

func New() *Bus {
	return &Bus{subs: make(map[string]map[uint64]Handler)}
}

// Subscribe registers a handler for a topic and returns a cancel func.
// Cancelling twice is harmless.
func (b *Bus) Subscribe(topic string, h Handler) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]Handler)
	}
	b.subs[topic][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if handlers, ok := b.subs[topic]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(b.subs, topic)
			}
		}
	}
}

// Publish delivers an event to every subscriber of the topic.
func (b *Bus) Publish(topic string, evt protocol.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.subs[topic] {
		h(evt)
	}
}

// SubscriberCount returns the number of active subscriptions on a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
