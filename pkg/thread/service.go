// Package thread owns the request/accept/reject handshake that gates
// whether messages may flow between a requester and a provider.
package thread

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"introchat/pkg/errs"
	"introchat/pkg/logger"
	"introchat/pkg/models"
	"introchat/pkg/realtime"
	"introchat/pkg/store"
	"introchat/pkg/utils"
)

// Service coordinates thread lifecycle transitions and publishes the
// resulting events. Persistence goes through the global store.
type Service struct {
	pub realtime.Publisher
}

// NewService returns a Service publishing through pub.
func NewService(pub realtime.Publisher) *Service {
	return &Service{pub: pub}
}

// CanMessage reports whether messages may flow on the thread. Pure; the
// only state that allows message exchange is ACCEPTED.
func CanMessage(t models.Thread) bool {
	return t.State == models.ThreadAccepted
}

// Create opens a PENDING thread from requester to provider. The operation
// is idempotent per pair: if a thread already exists it is returned
// unchanged. Providers that disabled inbound contact are not eligible.
func (s *Service) Create(ctx context.Context, requesterID, providerID string) (models.Thread, error) {
	if requesterID == "" || providerID == "" {
		return models.Thread{}, errs.Validation("provider", "requester and provider required")
	}
	if requesterID == providerID {
		return models.Thread{}, errs.Validation("provider", "cannot open a thread with yourself")
	}
	existing, err := store.GetThreadByPair(requesterID, providerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return models.Thread{}, err
	}
	prefs, err := store.GetPrefs(providerID)
	if err != nil {
		return models.Thread{}, err
	}
	if prefs.InboundDisabled {
		return models.Thread{}, errs.ErrNotEligible
	}

	now := time.Now().UTC().UnixNano()
	t := models.Thread{
		ID:        utils.GenThreadID(),
		Requester: requesterID,
		Provider:  providerID,
		State:     models.ThreadPending,
		CreatedTS: now,
		UpdatedTS: now,
	}
	t, created, err := store.CreateThreadForPair(t)
	if err != nil {
		return models.Thread{}, err
	}
	if !created {
		// lost a race with a concurrent first contact for the same pair
		return t, nil
	}
	logger.Info("thread_created", "thread", t.ID, "requester", requesterID, "provider", providerID)
	s.publishBoth(t, realtime.Event{
		Type:   realtime.EventThreadCreated,
		Thread: t.ID,
		Sender: requesterID,
		State:  string(t.State),
		TS:     now,
	})
	return t, nil
}

// Decide moves a PENDING thread to ACCEPTED or REJECTED. Only the provider
// may decide; deciding a non-PENDING thread is an invalid transition.
func (s *Service) Decide(ctx context.Context, threadID, actorID string, decision models.ThreadState) (models.Thread, error) {
	if decision != models.ThreadAccepted && decision != models.ThreadRejected {
		return models.Thread{}, errs.Validation("decision", "must be ACCEPTED or REJECTED")
	}
	t, err := store.UpdateThread(threadID, func(t *models.Thread) error {
		if actorID != t.Provider {
			return errs.ErrForbidden
		}
		if t.State != models.ThreadPending {
			return errs.ErrInvalidTransition
		}
		t.State = decision
		return nil
	})
	if err != nil {
		return models.Thread{}, err
	}
	logger.Info("thread_decided", "thread", threadID, "decision", string(decision))
	// publish after the store write completes, never inside it
	s.publishBoth(t, realtime.Event{
		Type:   realtime.EventThreadState,
		Thread: t.ID,
		Sender: actorID,
		State:  string(t.State),
		TS:     t.UpdatedTS,
	})
	return t, nil
}

// Delete hard-deletes a thread and all of its messages. Either participant
// may delete; there is no tombstone.
func (s *Service) Delete(ctx context.Context, threadID, actorID string) error {
	t, err := store.GetThread(threadID)
	if err != nil {
		return err
	}
	if !t.HasParticipant(actorID) {
		return errs.ErrForbidden
	}
	if err := store.DeleteThread(threadID); err != nil {
		return err
	}
	s.publishBoth(t, realtime.Event{
		Type:   realtime.EventThreadDeleted,
		Thread: t.ID,
		Sender: actorID,
		TS:     time.Now().UTC().UnixNano(),
	})
	return nil
}

// Get returns the thread if actorID participates in it.
func (s *Service) Get(ctx context.Context, threadID, actorID string) (models.Thread, error) {
	t, err := store.GetThread(threadID)
	if err != nil {
		return models.Thread{}, err
	}
	if !t.HasParticipant(actorID) {
		return models.Thread{}, errs.ErrForbidden
	}
	return t, nil
}

// ListByUser returns the user's threads, newest activity first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]models.Thread, error) {
	return store.ListThreadsByUser(userID)
}

// publishBoth sends e to the thread topic and to both participants' user
// topics so thread-list views refresh.
func (s *Service) publishBoth(t models.Thread, e realtime.Event) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(realtime.ThreadTopic(t.ID), e)
	s.pub.Publish(realtime.UserTopic(t.Requester), e)
	s.pub.Publish(realtime.UserTopic(t.Provider), e)
}
