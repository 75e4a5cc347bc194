package expiry

import (
	"context"
	"testing"
	"time"

	"introchat/pkg/models"
	"introchat/pkg/store"
)

func TestRunOnceFlipsLapsedSubscriptions(t *testing.T) {
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	past := time.Now().Add(-time.Hour).UnixNano()
	future := time.Now().Add(time.Hour).UnixNano()
	subs := []models.Subscription{
		{User: "lapsed", Status: models.SubActive, ExpiresTS: past, Balance: 3},
		{User: "current", Status: models.SubActive, ExpiresTS: future, Balance: 3},
		{User: "open-ended", Status: models.SubActive, Unlimited: true},
		{User: "done", Status: models.SubCancelled, ExpiresTS: past},
	}
	for _, s := range subs {
		if err := store.SaveSubscription(s); err != nil {
			t.Fatal(err)
		}
	}

	flipped, err := RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if flipped != 1 {
		t.Fatalf("flipped = %d, want 1", flipped)
	}
	got, _ := store.GetSubscription("lapsed")
	if got.Status != models.SubExpired {
		t.Fatalf("lapsed status = %s", got.Status)
	}
	// the balance survives the flip untouched
	if got.Balance != 3 {
		t.Fatalf("lapsed balance = %d", got.Balance)
	}
	for _, u := range []string{"current", "open-ended"} {
		s, _ := store.GetSubscription(u)
		if s.Status != models.SubActive {
			t.Fatalf("%s flipped unexpectedly: %s", u, s.Status)
		}
	}

	// repeat run is a no-op
	flipped, err = RunOnce(context.Background())
	if err != nil || flipped != 0 {
		t.Fatalf("repeat RunOnce flipped=%d err=%v", flipped, err)
	}
}
