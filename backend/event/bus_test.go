package event_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/furisto/seyal/backend/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func waitFor(t *testing.T, done <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}

func TestBus_DeliversToEverySubscriber(t *testing.T) {
	t.Parallel()

	bus := event.NewBus()
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(3)
	for range 3 {
		sub := event.Subscribe(bus, func(ctx context.Context, e event.ProgressLoggedEvent) {
			if e.Mood == "Good" {
				wg.Done()
			}
		}, nil)
		defer sub.Unsubscribe()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	event.Publish(bus, event.ProgressLoggedEvent{SessionID: "s1", Mood: "Good"})
	waitFor(t, done, "all subscribers")
}

func TestBus_RoutesByType(t *testing.T) {
	t.Parallel()

	bus := event.NewBus()
	defer bus.Close()

	var toggles atomic.Int32
	event.Subscribe(bus, func(ctx context.Context, e event.TaskToggledEvent) {
		toggles.Add(1)
	}, nil)

	compacted := make(chan struct{})
	event.Subscribe(bus, func(ctx context.Context, e event.MemoryCompactedEvent) {
		close(compacted)
	}, nil)

	event.Publish(bus, event.ReportGeneratedEvent{SessionID: "s1"})
	event.Publish(bus, event.MemoryCompactedEvent{SessionID: "s1", Compacted: 3})
	waitFor(t, compacted, "compaction event")

	if n := toggles.Load(); n != 0 {
		t.Errorf("task toggle handler ran %d times", n)
	}
}

func TestBus_ForSession(t *testing.T) {
	t.Parallel()

	bus := event.NewBus()
	defer bus.Close()

	ch, sub := event.SubscribeChannel(bus, 4, event.ForSession[event.SessionResetEvent]("alice"))
	defer sub.Unsubscribe()

	event.Publish(bus, event.SessionResetEvent{SessionID: "bob"})
	event.Publish(bus, event.SessionResetEvent{SessionID: "alice"})

	select {
	case e := <-ch:
		if e.Session() != "alice" {
			t.Errorf("got reset of %q", e.Session())
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for reset event")
	}

	select {
	case e := <-ch:
		t.Errorf("unexpected event %+v", e)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_ChannelClosedOnUnsubscribe(t *testing.T) {
	t.Parallel()

	bus := event.NewBus()
	defer bus.Close()

	ch, sub := event.SubscribeChannel[event.TasksGeneratedEvent](bus, 4, nil)
	if n := event.SubscriberCount[event.TasksGeneratedEvent](bus); n != 1 {
		t.Fatalf("subscribers = %d, want 1", n)
	}

	sub.Unsubscribe()
	sub.Unsubscribe()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
	if n := event.SubscriberCount[event.TasksGeneratedEvent](bus); n != 0 {
		t.Errorf("subscribers = %d after unsubscribe", n)
	}

	event.Publish(bus, event.TasksGeneratedEvent{SessionID: "s1", Count: 3})
}

func TestBus_Close(t *testing.T) {
	t.Parallel()

	bus := event.NewBus(event.WithWorkers(1))

	var processed atomic.Int32
	event.Subscribe(bus, func(ctx context.Context, e event.ProgressLoggedEvent) {
		time.Sleep(50 * time.Millisecond)
		processed.Add(1)
	}, nil)
	ch, _ := event.SubscribeChannel[event.RoadmapUpdatedEvent](bus, 1, nil)

	for range 100 {
		event.Publish(bus, event.ProgressLoggedEvent{SessionID: "s1"})
	}
	bus.Close()
	bus.Close()

	if n := processed.Load(); n == 100 {
		t.Error("queued deliveries should be discarded on close")
	}
	if _, ok := <-ch; ok {
		t.Error("channel subscriptions should be closed")
	}

	event.Publish(bus, event.ProgressLoggedEvent{SessionID: "s1"})
	late, _ := event.SubscribeChannel[event.ProgressLoggedEvent](bus, 1, nil)
	if _, ok := <-late; ok {
		t.Error("subscribing to a closed bus yields a closed channel")
	}
}

func TestBus_HandlerPanicDoesNotStopWorkers(t *testing.T) {
	t.Parallel()

	bus := event.NewBus(event.WithWorkers(1))
	defer bus.Close()

	event.Subscribe(bus, func(ctx context.Context, e event.TaskToggledEvent) {
		panic("boom")
	}, nil)

	done := make(chan struct{})
	event.Subscribe(bus, func(ctx context.Context, e event.ReportGeneratedEvent) {
		close(done)
	}, nil)

	event.Publish(bus, event.TaskToggledEvent{SessionID: "s1"})
	event.Publish(bus, event.ReportGeneratedEvent{SessionID: "s1"})
	waitFor(t, done, "delivery after a panic")
}

func TestBus_Metrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	bus := event.NewBus(event.WithMetrics(registry))
	defer bus.Close()

	done := make(chan struct{})
	event.Subscribe(bus, func(ctx context.Context, e event.MemoryCompactedEvent) {
		close(done)
	}, nil)

	event.Publish(bus, event.MemoryCompactedEvent{SessionID: "s1"})
	waitFor(t, done, "compaction event")

	n, err := testutil.GatherAndCount(registry, "seyal_events_total")
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Error("expected published events to be counted")
	}
}

func TestForward(t *testing.T) {
	t.Parallel()

	bus := event.NewBus()
	defer bus.Close()
	router := event.NewEventRouter(10)
	defer router.Close()

	stop := event.Forward(bus, router)
	defer stop()

	ch, cancel := router.Subscribe(context.Background(), event.SubscribeOptions{
		EventTypes: []string{event.TypeMemoryCompacted},
		SessionID:  "alice",
	})
	defer cancel()

	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	event.Publish(bus, event.MemoryCompactedEvent{SessionID: "bob", Compacted: 3})
	event.Publish(bus, event.ProgressLoggedEvent{SessionID: "alice"})
	event.Publish(bus, event.MemoryCompactedEvent{SessionID: "alice", Compacted: 3, Retained: 3, Timestamp: at})

	select {
	case e := <-ch:
		if e.Type != event.TypeMemoryCompacted || e.SessionID != "alice" || !e.Timestamp.Equal(at) {
			t.Errorf("unexpected stream event %+v", e)
		}
		payload, ok := e.Payload.(event.MemoryCompactedEvent)
		if !ok || payload.Compacted != 3 {
			t.Errorf("unexpected payload %#v", e.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for forwarded event")
	}
}
