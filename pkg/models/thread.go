package models

// ThreadState is the lifecycle state of a thread. A thread is created
// PENDING when a requester first contacts a provider; only the provider
// moves it to ACCEPTED or REJECTED, and REJECTED is terminal.
type ThreadState string

const (
	ThreadPending  ThreadState = "PENDING"
	ThreadAccepted ThreadState = "ACCEPTED"
	ThreadRejected ThreadState = "REJECTED"
)

// Thread is the permission boundary between exactly one requester and one
// provider. At most one thread exists per (requester, provider) pair.
type Thread struct {
	ID        string      `json:"id"`
	Requester string      `json:"requester"`
	Provider  string      `json:"provider"`
	State     ThreadState `json:"state"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
	// Updated timestamp (ns) - last state change or message activity
	UpdatedTS int64 `json:"updated_ts,omitempty"`
}

// HasParticipant reports whether userID is one of the thread's two parties.
func (t *Thread) HasParticipant(userID string) bool {
	return userID == t.Requester || userID == t.Provider
}

// Peer returns the other participant for userID, or empty string when
// userID is not a participant.
func (t *Thread) Peer(userID string) string {
	switch userID {
	case t.Requester:
		return t.Provider
	case t.Provider:
		return t.Requester
	}
	return ""
}

// ContactPrefs records a provider's inbound-contact preference. Providers
// that disable inbound contact cannot receive new thread requests.
type ContactPrefs struct {
	User            string `json:"user"`
	InboundDisabled bool   `json:"inbound_disabled,omitempty"`
}
