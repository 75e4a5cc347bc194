package models

import "encoding/json"

// MessageKind tags which payload schema a message carries.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindMedia    MessageKind = "media"
	KindLocation MessageKind = "location"
	KindVoice    MessageKind = "voice"
	KindOffer    MessageKind = "offer"
	KindTask     MessageKind = "task"
)

// DeliveryStatus is the per-message progress marker. The durable record
// starts at "sent"; "sending" exists only on a sender's local view before
// the server acknowledges the write and is never stored.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusSeen      DeliveryStatus = "seen"
)

// Rank orders delivery statuses for monotonic advancement. Unknown
// statuses rank below sent.
func (s DeliveryStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusSeen:
		return 3
	}
	return 0
}

// Message is an ordered, append-only unit of communication belonging to
// exactly one thread. Only Status mutates after creation; edits (accepting
// an offer, toggling a task) are new messages referencing the original.
type Message struct {
	ID     string      `json:"id"`
	Thread string      `json:"thread"`
	Sender string      `json:"sender"`
	Kind   MessageKind `json:"kind,omitempty"`
	// Payload holds the kind's field set in typed form, or a legacy
	// marker-string payload on records written by the old encoding.
	Payload json.RawMessage `json:"payload,omitempty"`
	// Summary is a human-readable preview for thread lists and for clients
	// that do not understand a given kind.
	Summary string         `json:"summary,omitempty"`
	Status  DeliveryStatus `json:"status,omitempty"`
	// Created timestamp (ns)
	TS int64 `json:"ts"`
}
