package send

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"introchat/pkg/codec"
	"introchat/pkg/credit"
	"introchat/pkg/errs"
	"introchat/pkg/models"
	"introchat/pkg/realtime"
	"introchat/pkg/store"
)

func setup(t *testing.T, state models.ThreadState) (*Pipeline, *realtime.Hub) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.SaveThread(models.Thread{ID: "th", Requester: "alice", Provider: "bob", State: state}); err != nil {
		t.Fatal(err)
	}
	hub := realtime.NewHub()
	return NewPipeline(credit.NewGate(credit.StoreBilling{}), hub), hub
}

func activeSub(t *testing.T, user string, balance int) {
	t.Helper()
	if err := store.SaveSubscription(models.Subscription{User: user, Status: models.SubActive, Balance: balance}); err != nil {
		t.Fatal(err)
	}
}

func textFields(t *testing.T, body string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(codec.TextFields{Body: body})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSendOnAcceptedThread(t *testing.T) {
	p, hub := setup(t, models.ThreadAccepted)
	activeSub(t, "alice", 3)
	ch, cancel := hub.Subscribe(realtime.ThreadTopic("th"))
	defer cancel()

	m, err := p.Send(context.Background(), Input{Thread: "th", Sender: "alice", Kind: models.KindText, Fields: textFields(t, "hello")})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if m.Status != models.StatusSent {
		t.Fatalf("status = %s", m.Status)
	}
	if m.Summary != "hello" {
		t.Fatalf("summary = %q", m.Summary)
	}
	got, err := store.GetMessage(m.ID)
	if err != nil {
		t.Fatalf("message not persisted: %v", err)
	}
	if got.Thread != "th" || got.Sender != "alice" {
		t.Fatalf("persisted message: %+v", got)
	}
	e := <-ch
	if e.Type != realtime.EventMessageCreated || e.Message != m.ID {
		t.Fatalf("unexpected event: %+v", e)
	}
	s, _ := store.GetSubscription("alice")
	if s.Balance != 2 {
		t.Fatalf("credit not consumed, balance = %d", s.Balance)
	}
}

func TestSendRejectedWhenThreadNotOpen(t *testing.T) {
	for _, state := range []models.ThreadState{models.ThreadPending, models.ThreadRejected} {
		p, _ := setup(t, state)
		activeSub(t, "alice", 3)
		_, err := p.Send(context.Background(), Input{Thread: "th", Sender: "alice", Kind: models.KindText, Fields: textFields(t, "hi")})
		if !errors.Is(err, errs.ErrThreadNotOpen) {
			t.Fatalf("state %s: got %v", state, err)
		}
	}
}

func TestSendDeniedWithoutCredits(t *testing.T) {
	p, _ := setup(t, models.ThreadAccepted)
	activeSub(t, "alice", 0)
	_, err := p.Send(context.Background(), Input{Thread: "th", Sender: "alice", Kind: models.KindText, Fields: textFields(t, "hi")})
	if !errors.Is(err, errs.ErrNoCredits) {
		t.Fatalf("got %v", err)
	}
	msgs, _ := store.ListMessages("th", 0)
	if len(msgs) != 0 {
		t.Fatalf("denied send persisted %d messages", len(msgs))
	}
}

func TestSendDeniedWithoutSubscription(t *testing.T) {
	p, _ := setup(t, models.ThreadAccepted)
	_, err := p.Send(context.Background(), Input{Thread: "th", Sender: "alice", Kind: models.KindText, Fields: textFields(t, "hi")})
	if !errors.Is(err, errs.ErrNoSubscription) {
		t.Fatalf("got %v", err)
	}
}

func TestSendForbiddenForOutsider(t *testing.T) {
	p, _ := setup(t, models.ThreadAccepted)
	activeSub(t, "mallory", 5)
	_, err := p.Send(context.Background(), Input{Thread: "th", Sender: "mallory", Kind: models.KindText, Fields: textFields(t, "hi")})
	if !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("got %v", err)
	}
}

func TestSendInvalidFieldsWriteNothing(t *testing.T) {
	p, _ := setup(t, models.ThreadAccepted)
	activeSub(t, "alice", 3)
	_, err := p.Send(context.Background(), Input{Thread: "th", Sender: "alice", Kind: models.KindText, Fields: textFields(t, "   ")})
	if !errs.IsValidation(err) {
		t.Fatalf("got %v", err)
	}
	msgs, _ := store.ListMessages("th", 0)
	if len(msgs) != 0 {
		t.Fatalf("invalid send persisted %d messages", len(msgs))
	}
	// validation failures never burn a credit
	s, _ := store.GetSubscription("alice")
	if s.Balance != 3 {
		t.Fatalf("balance = %d", s.Balance)
	}
}

func TestSendUnknownThread(t *testing.T) {
	p, _ := setup(t, models.ThreadAccepted)
	_, err := p.Send(context.Background(), Input{Thread: "nope", Sender: "alice", Kind: models.KindText, Fields: textFields(t, "hi")})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestOfferAcceptanceIsANewMessage(t *testing.T) {
	p, _ := setup(t, models.ThreadAccepted)
	activeSub(t, "alice", 5)
	activeSub(t, "bob", 5)
	ctx := context.Background()

	offer, err := json.Marshal(codec.OfferFields{Title: "Fence repair", Amount: 120})
	if err != nil {
		t.Fatal(err)
	}
	orig, err := p.Send(ctx, Input{Thread: "th", Sender: "bob", Kind: models.KindOffer, Fields: offer})
	if err != nil {
		t.Fatal(err)
	}
	accepted, err := json.Marshal(codec.OfferFields{Title: "Fence repair", Amount: 120, Response: codec.ResponseAccepted})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := p.Send(ctx, Input{Thread: "th", Sender: "alice", Kind: models.KindOffer, Fields: accepted})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Summary != "Offer accepted: Fence repair" {
		t.Fatalf("summary = %q", reply.Summary)
	}
	// the original offer is untouched
	got, _ := store.GetMessage(orig.ID)
	var f codec.OfferFields
	if err := json.Unmarshal(got.Payload, &f); err != nil {
		t.Fatal(err)
	}
	if f.Response != "" {
		t.Fatalf("original offer mutated: %+v", f)
	}
}
