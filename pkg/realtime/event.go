// Package realtime distributes thread and message mutation events to
// connected subscribers. Events are cache-invalidation hints, not
// consistent snapshots: subscribers re-fetch authoritative state on
// receipt. Delivery is best-effort to currently-connected subscribers;
// nothing here is persisted or replayed.
package realtime

import "fmt"

// Event types published on thread and user topics.
const (
	EventThreadCreated = "thread.created"
	EventThreadState   = "thread.state"
	EventThreadDeleted = "thread.deleted"
	EventMessageCreated = "message.created"
	EventMessageStatus  = "message.status"
	// EventTyping is broadcast-only and advisory; receivers clear it
	// themselves after a silence window.
	EventTyping = "typing"
)

// Event is the wire form published to subscribers. It carries ids and the
// new state tag, never full records.
type Event struct {
	Type    string `json:"type"`
	Thread  string `json:"thread,omitempty"`
	Message string `json:"message,omitempty"`
	Sender  string `json:"sender,omitempty"`
	State   string `json:"state,omitempty"`
	TS      int64  `json:"ts,omitempty"`
}

// ThreadTopic is the durable per-thread topic for message and thread
// mutations.
func ThreadTopic(threadID string) string {
	return fmt.Sprintf("thread.%s", threadID)
}

// TypingTopic is the ephemeral broadcast-only topic for typing signals.
func TypingTopic(threadID string) string {
	return fmt.Sprintf("typing.%s", threadID)
}

// UserTopic carries thread-list changes visible to one user.
func UserTopic(userID string) string {
	return fmt.Sprintf("user.%s", userID)
}

// Publisher is the narrow interface services depend on.
type Publisher interface {
	Publish(topic string, e Event)
}

// Broker is a topic-scoped publish-subscribe primitive. Subscribe returns
// a receive channel and a cancel func that releases the subscription.
type Broker interface {
	Publisher
	Subscribe(topic string) (<-chan Event, func())
}
