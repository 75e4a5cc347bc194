package credit

import (
	"context"
	"errors"
	"testing"
	"time"

	"introchat/pkg/errs"
	"introchat/pkg/models"
	"introchat/pkg/store"
)

func setup(t *testing.T) *Gate {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewGate(StoreBilling{})
}

func TestAuthorizeDenials(t *testing.T) {
	g := setup(t)
	ctx := context.Background()

	if err := g.Authorize(ctx, "nobody"); !errors.Is(err, errs.ErrNoSubscription) {
		t.Fatalf("expected ErrNoSubscription, got %v", err)
	}

	cases := []struct {
		name string
		sub  models.Subscription
		want error
	}{
		{"zero balance", models.Subscription{User: "u", Status: models.SubActive, Balance: 0}, errs.ErrNoCredits},
		{"expired status", models.Subscription{User: "u", Status: models.SubExpired, Unlimited: true}, errs.ErrSubscriptionInactive},
		{"cancelled", models.Subscription{User: "u", Status: models.SubCancelled, Balance: 10}, errs.ErrSubscriptionInactive},
		{"lapsed expiry", models.Subscription{User: "u", Status: models.SubActive, Unlimited: true, ExpiresTS: time.Now().Add(-time.Hour).UnixNano()}, errs.ErrSubscriptionInactive},
	}
	for _, c := range cases {
		if err := store.SaveSubscription(c.sub); err != nil {
			t.Fatal(err)
		}
		if err := g.Authorize(ctx, "u"); !errors.Is(err, c.want) {
			t.Fatalf("%s: got %v, want %v", c.name, err, c.want)
		}
	}
}

func TestAuthorizeAllows(t *testing.T) {
	g := setup(t)
	ctx := context.Background()

	if err := store.SaveSubscription(models.Subscription{User: "u", Status: models.SubActive, Balance: 1}); err != nil {
		t.Fatal(err)
	}
	if err := g.Authorize(ctx, "u"); err != nil {
		t.Fatalf("active with balance denied: %v", err)
	}
	// unlimited ignores balance entirely
	if err := store.SaveSubscription(models.Subscription{User: "u", Status: models.SubActive, Unlimited: true, Balance: 0}); err != nil {
		t.Fatal(err)
	}
	if err := g.Authorize(ctx, "u"); err != nil {
		t.Fatalf("unlimited denied: %v", err)
	}
}

func TestAuthorizeRechecksEverySend(t *testing.T) {
	g := setup(t)
	ctx := context.Background()
	if err := store.SaveSubscription(models.Subscription{User: "u", Status: models.SubActive, Balance: 1}); err != nil {
		t.Fatal(err)
	}
	if err := g.Authorize(ctx, "u"); err != nil {
		t.Fatal(err)
	}
	// server-side balance exhausted between the client's view and its send
	if _, err := store.UpdateSubscription("u", func(s *models.Subscription) error {
		s.Balance = 0
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := g.Authorize(ctx, "u"); !errors.Is(err, errs.ErrNoCredits) {
		t.Fatalf("stale authorization honored: %v", err)
	}
}

func TestConsume(t *testing.T) {
	g := setup(t)
	ctx := context.Background()
	if err := store.SaveSubscription(models.Subscription{User: "u", Status: models.SubActive, Balance: 2}); err != nil {
		t.Fatal(err)
	}
	if err := g.Consume(ctx, "u"); err != nil {
		t.Fatal(err)
	}
	s, _ := store.GetSubscription("u")
	if s.Balance != 1 {
		t.Fatalf("balance = %d", s.Balance)
	}
	// unlimited plans never decrement
	if err := store.SaveSubscription(models.Subscription{User: "v", Status: models.SubActive, Unlimited: true, Balance: 7}); err != nil {
		t.Fatal(err)
	}
	if err := g.Consume(ctx, "v"); err != nil {
		t.Fatal(err)
	}
	v, _ := store.GetSubscription("v")
	if v.Balance != 7 {
		t.Fatalf("unlimited balance changed: %d", v.Balance)
	}
}
