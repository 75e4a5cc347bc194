package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"introchat/pkg/errs"
	"introchat/pkg/models"
	"introchat/pkg/realtime"
	"introchat/pkg/store"
)

func setup(t *testing.T) *Tracker {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.SaveThread(models.Thread{ID: "th", Requester: "alice", Provider: "bob", State: models.ThreadAccepted}); err != nil {
		t.Fatal(err)
	}
	return NewTracker(realtime.NewHub())
}

func saveMsg(t *testing.T, id, sender string) {
	t.Helper()
	if _, err := store.SaveMessage(models.Message{ID: id, Thread: "th", Sender: sender, Kind: models.KindText, Status: models.StatusSent}); err != nil {
		t.Fatal(err)
	}
}

func TestAdvanceMonotonic(t *testing.T) {
	tr := setup(t)
	ctx := context.Background()
	saveMsg(t, "m1", "alice")

	m, err := tr.Advance(ctx, "m1", "bob", models.StatusDelivered)
	if err != nil {
		t.Fatalf("Advance delivered: %v", err)
	}
	if m.Status != models.StatusDelivered {
		t.Fatalf("status = %s", m.Status)
	}
	if _, err := tr.Advance(ctx, "m1", "bob", models.StatusSeen); err != nil {
		t.Fatalf("Advance seen: %v", err)
	}
	// going backwards fails and leaves status unchanged
	if _, err := tr.Advance(ctx, "m1", "bob", models.StatusDelivered); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	got, err := store.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusSeen {
		t.Fatalf("status regressed to %s", got.Status)
	}
}

func TestAdvanceRepeatIsNoop(t *testing.T) {
	tr := setup(t)
	ctx := context.Background()
	saveMsg(t, "m1", "alice")
	if _, err := tr.Advance(ctx, "m1", "bob", models.StatusSeen); err != nil {
		t.Fatal(err)
	}
	// a retry of the same target succeeds without error
	m, err := tr.Advance(ctx, "m1", "bob", models.StatusSeen)
	if err != nil {
		t.Fatalf("repeat Advance errored: %v", err)
	}
	if m.Status != models.StatusSeen {
		t.Fatalf("status = %s", m.Status)
	}
}

func TestAdvanceSenderForbidden(t *testing.T) {
	tr := setup(t)
	ctx := context.Background()
	saveMsg(t, "m1", "alice")
	if _, err := tr.Advance(ctx, "m1", "alice", models.StatusSeen); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("sender advanced own message: %v", err)
	}
	if _, err := tr.Advance(ctx, "m1", "mallory", models.StatusSeen); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("outsider advanced message: %v", err)
	}
}

func TestConcurrentSeenIsClean(t *testing.T) {
	tr := setup(t)
	ctx := context.Background()
	saveMsg(t, "m1", "alice")

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tr.Advance(ctx, "m1", "bob", models.StatusSeen); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent seen surfaced error: %v", err)
	}
	got, _ := store.GetMessage("m1")
	if got.Status != models.StatusSeen {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestMarkThreadSeenSweep(t *testing.T) {
	tr := setup(t)
	ctx := context.Background()
	saveMsg(t, "a1", "alice")
	saveMsg(t, "a2", "alice")
	saveMsg(t, "b1", "bob")

	marked, err := tr.MarkThreadSeen(ctx, "th", "bob")
	if err != nil {
		t.Fatalf("MarkThreadSeen: %v", err)
	}
	if marked != 2 {
		t.Fatalf("marked = %d, want 2", marked)
	}
	// bob's own message stays sent
	own, _ := store.GetMessage("b1")
	if own.Status != models.StatusSent {
		t.Fatalf("own message advanced: %s", own.Status)
	}
	// the sweep is idempotent
	marked, err = tr.MarkThreadSeen(ctx, "th", "bob")
	if err != nil || marked != 0 {
		t.Fatalf("repeat sweep marked=%d err=%v", marked, err)
	}
}
