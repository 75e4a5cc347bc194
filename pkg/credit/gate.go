// Package credit decides whether a sender may post a new message given
// subscription state. Authorization re-reads the billing snapshot on every
// send; client-held balance is a hint only and never gates a send.
package credit

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"introchat/pkg/errs"
	"introchat/pkg/logger"
	"introchat/pkg/models"
	"introchat/pkg/store"
)

// Billing is the subscription collaborator: a snapshot read plus a single
// consume-one-credit operation. Plan purchase and renewal live elsewhere.
type Billing interface {
	Snapshot(ctx context.Context, userID string) (models.Subscription, error)
	Consume(ctx context.Context, userID string) error
}

// StoreBilling serves snapshots pushed into the local store by the
// external billing system.
type StoreBilling struct{}

// Snapshot returns the stored subscription for userID.
func (StoreBilling) Snapshot(ctx context.Context, userID string) (models.Subscription, error) {
	return store.GetSubscription(userID)
}

// Consume decrements one credit. Unlimited plans are untouched. The
// decrement re-checks the balance under the store lock so concurrent
// sends cannot take it below zero.
func (StoreBilling) Consume(ctx context.Context, userID string) error {
	_, err := store.UpdateSubscription(userID, func(s *models.Subscription) error {
		if s.Unlimited {
			return nil
		}
		if s.Balance <= 0 {
			return errs.ErrNoCredits
		}
		s.Balance--
		return nil
	})
	return err
}

// Gate authorizes sends against the billing collaborator.
type Gate struct {
	billing Billing
}

// NewGate returns a Gate backed by billing.
func NewGate(billing Billing) *Gate {
	return &Gate{billing: billing}
}

// Authorize returns nil when senderID may post a message, or one of the
// denial reasons (ErrNoSubscription, ErrSubscriptionInactive,
// ErrNoCredits). It always re-evaluates current state.
func (g *Gate) Authorize(ctx context.Context, senderID string) error {
	s, err := g.billing.Snapshot(ctx, senderID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrNoSubscription
		}
		return err
	}
	if s.Status != models.SubActive {
		return errs.ErrSubscriptionInactive
	}
	// a lapsed expiry denies even when the pushed status has not been
	// swept to expired yet
	if s.ExpiresTS > 0 && s.ExpiresTS < time.Now().UTC().UnixNano() {
		return errs.ErrSubscriptionInactive
	}
	if !s.Unlimited && s.Balance <= 0 {
		return errs.ErrNoCredits
	}
	return nil
}

// Consume spends at most one credit for an accepted send. Callers must
// only invoke this after the message is validated and persisted.
func (g *Gate) Consume(ctx context.Context, senderID string) error {
	if err := g.billing.Consume(ctx, senderID); err != nil {
		logger.Warn("credit_consume_failed", "user", senderID, "error", err)
		return err
	}
	return nil
}
