// Package send orchestrates a message send end to end: thread gate,
// credit gate, payload encoding, persistence and fan-out, in that order.
package send

import (
	"context"
	"encoding/json"
	"time"

	"introchat/pkg/codec"
	"introchat/pkg/credit"
	"introchat/pkg/errs"
	"introchat/pkg/logger"
	"introchat/pkg/models"
	"introchat/pkg/realtime"
	"introchat/pkg/store"
	"introchat/pkg/thread"
	"introchat/pkg/utils"
)

// Input carries everything a send needs. Fields is the kind-specific
// payload object and is validated by the codec before anything persists.
type Input struct {
	Thread string
	Sender string
	Kind   models.MessageKind
	Fields json.RawMessage
}

// Pipeline runs sends through the full gate chain.
type Pipeline struct {
	gate *credit.Gate
	pub  realtime.Publisher
}

// NewPipeline returns a Pipeline using gate for credit checks and pub for
// fan-out.
func NewPipeline(gate *credit.Gate, pub realtime.Publisher) *Pipeline {
	return &Pipeline{gate: gate, pub: pub}
}

// Send validates, persists and fans out one message. Order matters: the
// thread and credit gates run before encoding, nothing is written until
// the payload validates, and the credit is consumed only after the
// message exists. Fan-out failure never fails a persisted send.
func (p *Pipeline) Send(ctx context.Context, in Input) (models.Message, error) {
	t, err := store.GetThread(in.Thread)
	if err != nil {
		return models.Message{}, err
	}
	if !t.HasParticipant(in.Sender) {
		return models.Message{}, errs.ErrForbidden
	}
	if !thread.CanMessage(t) {
		return models.Message{}, errs.ErrThreadNotOpen
	}
	if err := p.gate.Authorize(ctx, in.Sender); err != nil {
		return models.Message{}, err
	}
	payload, summary, err := codec.Encode(in.Kind, in.Fields)
	if err != nil {
		return models.Message{}, err
	}

	m := models.Message{
		ID:      utils.GenMessageID(),
		Thread:  in.Thread,
		Sender:  in.Sender,
		Kind:    in.Kind,
		Payload: payload,
		Summary: summary,
		Status:  models.StatusSent,
	}
	saved, err := store.SaveMessage(m)
	if err != nil {
		return models.Message{}, err
	}
	// the message is committed at this point; a failed consume is a billing
	// discrepancy to reconcile, not a reason to unsend
	if err := p.gate.Consume(ctx, in.Sender); err != nil {
		logger.Error("credit_consume_after_send_failed", "message", saved.ID, "sender", in.Sender, "error", err)
	}

	p.publish(t, saved)
	logger.Info("message_sent", "message", saved.ID, "thread", t.ID, "kind", string(in.Kind))
	return saved, nil
}

func (p *Pipeline) publish(t models.Thread, m models.Message) {
	if p.pub == nil {
		return
	}
	e := realtime.Event{
		Type:    realtime.EventMessageCreated,
		Thread:  t.ID,
		Message: m.ID,
		Sender:  m.Sender,
		State:   string(m.Status),
		TS:      time.Now().UTC().UnixNano(),
	}
	p.pub.Publish(realtime.ThreadTopic(t.ID), e)
	p.pub.Publish(realtime.UserTopic(t.Requester), e)
	p.pub.Publish(realtime.UserTopic(t.Provider), e)
}
