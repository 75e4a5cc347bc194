package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHubPublishSubscribe(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(ThreadTopic("t1"))
	defer cancel()

	h.Publish(ThreadTopic("t1"), Event{Type: EventMessageCreated, Thread: "t1", Message: "m1"})
	select {
	case e := <-ch:
		if e.Type != EventMessageCreated || e.Message != "m1" {
			t.Fatalf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	// other topics must not leak in
	h.Publish(ThreadTopic("t2"), Event{Type: EventMessageCreated, Thread: "t2"})
	select {
	case e := <-ch:
		t.Fatalf("leaked event: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe(TypingTopic("t1"))
	defer cancel()

	done := make(chan struct{})
	go func() {
		// more events than the subscriber buffer holds; publisher must not block
		for i := 0; i < subscriberBuffer*4; i++ {
			h.Publish(TypingTopic("t1"), Event{Type: EventTyping, Thread: "t1"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestHubCancelUnsubscribes(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(ThreadTopic("t1"))
	cancel()
	cancel() // double cancel is safe
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
	// publishing to a canceled subscription must not panic
	h.Publish(ThreadTopic("t1"), Event{Type: EventThreadState})
}

func TestHubPublishWhileUnsubscribing(t *testing.T) {
	h := NewHub()
	topic := ThreadTopic("t1")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					h.Publish(topic, Event{Type: EventTyping, Thread: "t1"})
				}
			}
		}()
	}

	// subscribers come and go while publishers hammer the topic; a send
	// overlapping a close panics the process and fails the run
	for i := 0; i < 500; i++ {
		_, cancel := h.Subscribe(topic)
		cancel()
	}
	close(stop)
	wg.Wait()
}

func TestRedisBrokerRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedisBroker(context.Background(), rdb)

	ch, cancel := b.Subscribe(ThreadTopic("t9"))
	defer cancel()
	// miniredis delivers synchronously once the subscription is live; give
	// the subscriber goroutine a beat to attach
	time.Sleep(50 * time.Millisecond)

	b.Publish(ThreadTopic("t9"), Event{Type: EventThreadState, Thread: "t9", State: "ACCEPTED"})
	select {
	case e := <-ch:
		if e.Type != EventThreadState || e.State != "ACCEPTED" {
			t.Fatalf("unexpected event: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received via redis")
	}
}
