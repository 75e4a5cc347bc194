package realtime

import (
	"sync"

	"introchat/pkg/logger"
)

const subscriberBuffer = 16

// Hub is the in-process Broker: a map of topic -> subscriber channels.
// Slow subscribers are dropped rather than blocking publishers; a client
// that misses an event re-fetches on its next poll.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[chan Event]struct{}
}

// NewHub returns an empty in-process broker.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[chan Event]struct{})}
}

// Publish delivers e to every current subscriber of topic. Never blocks:
// full subscribers drop the event instead of stalling the publisher. The
// sends stay under the read lock so cancel cannot close a channel while a
// send to it is in flight.
func (h *Hub) Publish(topic string, e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.topics[topic] {
		select {
		case ch <- e:
		default:
			logger.Warn("subscriber_dropped_event", "topic", topic, "type", e.Type)
		}
	}
}

// Subscribe registers a new subscriber for topic.
func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[chan Event]struct{})
	}
	h.topics[topic][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			// close while holding the write lock; Publish sends under the
			// read lock, so no send can overlap the close
			h.mu.Lock()
			if m := h.topics[topic]; m != nil {
				delete(m, ch)
				if len(m) == 0 {
					delete(h.topics, topic)
				}
			}
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}
