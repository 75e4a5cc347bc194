package models

// SubscriptionStatus is the billing collaborator's view of a plan.
type SubscriptionStatus string

const (
	SubActive    SubscriptionStatus = "active"
	SubExpired   SubscriptionStatus = "expired"
	SubCancelled SubscriptionStatus = "cancelled"
)

// Subscription is the snapshot the billing collaborator pushes for a user.
// Balance is meaningless when Unlimited is set. The credit gate re-reads
// this snapshot on every send; it is never cached per session.
type Subscription struct {
	User      string             `json:"user"`
	Plan      string             `json:"plan,omitempty"`
	Status    SubscriptionStatus `json:"status"`
	Unlimited bool               `json:"unlimited,omitempty"`
	Balance   int                `json:"balance,omitempty"`
	// Expiry timestamp (ns); zero means no expiry
	ExpiresTS int64 `json:"expires_ts,omitempty"`
}
