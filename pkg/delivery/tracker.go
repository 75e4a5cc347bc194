// Package delivery tracks the per-message status lifecycle
// (sent -> delivered -> seen) and the rules for who may advance it.
package delivery

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"introchat/pkg/errs"
	"introchat/pkg/logger"
	"introchat/pkg/models"
	"introchat/pkg/realtime"
	"introchat/pkg/store"
)

// errNoop signals that the requested status equals the current one; the
// write is skipped and the caller sees success.
var errNoop = errs.Validation("status", "already at target")

// Tracker advances delivery status and publishes the resulting events.
type Tracker struct {
	pub realtime.Publisher
}

// NewTracker returns a Tracker publishing through pub.
func NewTracker(pub realtime.Publisher) *Tracker {
	return &Tracker{pub: pub}
}

// Advance moves a message's status to target. Only the non-sender
// participant may advance; moving backwards is an invalid transition and
// repeating the current status is a harmless no-op so retries stay cheap.
func (tr *Tracker) Advance(ctx context.Context, msgID, actorID string, target models.DeliveryStatus) (models.Message, error) {
	if target != models.StatusDelivered && target != models.StatusSeen {
		return models.Message{}, errs.Validation("target", "must be delivered or seen")
	}
	m, err := store.GetMessage(msgID)
	if err != nil {
		return models.Message{}, err
	}
	t, err := store.GetThread(m.Thread)
	if err != nil {
		return models.Message{}, err
	}
	if !t.HasParticipant(actorID) || actorID == m.Sender {
		return models.Message{}, errs.ErrForbidden
	}

	updated, err := store.UpdateMessageStatus(msgID, func(m *models.Message) error {
		switch {
		case target.Rank() == m.Status.Rank():
			return errNoop
		case target.Rank() < m.Status.Rank():
			return errs.ErrInvalidTransition
		}
		m.Status = target
		return nil
	})
	if err == errNoop {
		return m, nil
	}
	if err != nil {
		return models.Message{}, err
	}

	if tr.pub != nil {
		tr.pub.Publish(realtime.ThreadTopic(t.ID), realtime.Event{
			Type:    realtime.EventMessageStatus,
			Thread:  t.ID,
			Message: msgID,
			Sender:  actorID,
			State:   string(target),
			TS:      time.Now().UTC().UnixNano(),
		})
	}
	return updated, nil
}

// MarkThreadSeen advances every unseen message not sent by the viewer to
// seen. The sweep is best-effort UX, not a transaction: per-message
// failures are collected and reported in aggregate without rolling back
// the messages already marked.
func (tr *Tracker) MarkThreadSeen(ctx context.Context, threadID, viewerID string) (int, error) {
	t, err := store.GetThread(threadID)
	if err != nil {
		return 0, err
	}
	if !t.HasParticipant(viewerID) {
		return 0, errs.ErrForbidden
	}
	msgs, err := store.ListMessages(threadID, 0)
	if err != nil {
		return 0, err
	}

	var marked int
	var sweepErr error
	for _, m := range msgs {
		if m.Sender == viewerID || m.Status == models.StatusSeen {
			continue
		}
		if _, err := tr.Advance(ctx, m.ID, viewerID, models.StatusSeen); err != nil {
			sweepErr = multierr.Append(sweepErr, err)
			continue
		}
		marked++
	}
	if sweepErr != nil {
		logger.Warn("mark_seen_partial_failure", "thread", threadID, "marked", marked, "error", sweepErr)
	}
	return marked, sweepErr
}
