package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern   string
		eventType string
		want      bool
	}{
		{"*", TypeRoadmapUpdated, true},
		{"*", TypeSessionReset, true},
		{"task.*", TypeTaskToggled, true},
		{"tasks.*", TypeTasksGenerated, true},
		{"task.*", TypeTasksGenerated, false},
		{"memory.*", TypeMemoryCompacted, true},
		{"*.generated", TypeReportGenerated, true},
		{"*.generated", TypeTasksGenerated, true},
		{"*.generated", TypeRoadmapUpdated, false},
		{TypeProgressLogged, TypeProgressLogged, true},
		{TypeProgressLogged, TypeTaskToggled, false},
		{"memory", TypeMemoryCompacted, false},
		{"", TypeMemoryCompacted, false},
		{"memory.*", "memory", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.eventType, func(t *testing.T) {
			assert.Equal(t, tt.want, matchPattern(tt.pattern, tt.eventType))
		})
	}
}

func receive(t *testing.T, ch <-chan *StreamEvent) *StreamEvent {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "stream closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for stream event")
		return nil
	}
}

func assertQuiet(t *testing.T, ch <-chan *StreamEvent) {
	t.Helper()
	select {
	case e := <-ch:
		t.Fatalf("unexpected stream event %+v", e)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestEventRouter_SessionScope(t *testing.T) {
	t.Parallel()

	router := NewEventRouter(10)
	defer router.Close()

	alice, cancelAlice := router.Subscribe(context.Background(), SubscribeOptions{SessionID: "alice"})
	defer cancelAlice()
	all, cancelAll := router.Subscribe(context.Background(), SubscribeOptions{})
	defer cancelAll()

	router.Publish(&StreamEvent{Type: TypeProgressLogged, SessionID: "bob"})
	router.Publish(&StreamEvent{Type: TypeProgressLogged, SessionID: "alice"})

	assert.Equal(t, "alice", receive(t, alice).SessionID)
	assertQuiet(t, alice)

	assert.Equal(t, "bob", receive(t, all).SessionID)
	assert.Equal(t, "alice", receive(t, all).SessionID)
}

func TestEventRouter_Patterns(t *testing.T) {
	t.Parallel()

	router := NewEventRouter(10)
	defer router.Close()

	ch, cancel := router.Subscribe(context.Background(), SubscribeOptions{
		SessionID:  "s1",
		EventTypes: []string{"memory.*", "*.generated"},
	})
	defer cancel()

	router.Publish(&StreamEvent{Type: TypeTaskToggled, SessionID: "s1"})
	router.Publish(&StreamEvent{Type: TypeMemoryCompacted, SessionID: "s1"})
	router.Publish(&StreamEvent{Type: TypeReportGenerated, SessionID: "s1"})

	assert.Equal(t, TypeMemoryCompacted, receive(t, ch).Type)
	assert.Equal(t, TypeReportGenerated, receive(t, ch).Type)
	assertQuiet(t, ch)
}

func TestEventRouter_CancelClosesStream(t *testing.T) {
	t.Parallel()

	router := NewEventRouter(10)
	defer router.Close()

	ctx, cancelCtx := context.WithCancel(context.Background())
	byContext, _ := router.Subscribe(ctx, SubscribeOptions{SessionID: "s1"})
	byCancel, cancel := router.Subscribe(context.Background(), SubscribeOptions{SessionID: "s1"})
	require.Equal(t, 2, router.Streams())

	cancelCtx()
	cancel()

	for _, ch := range []<-chan *StreamEvent{byContext, byCancel} {
		select {
		case _, ok := <-ch:
			assert.False(t, ok, "stream should be closed")
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for stream to close")
		}
	}

	require.Eventually(t, func() bool { return router.Streams() == 0 }, time.Second, 5*time.Millisecond)
}

func TestEventRouter_Close(t *testing.T) {
	t.Parallel()

	router := NewEventRouter(10)
	ch, _ := router.Subscribe(context.Background(), SubscribeOptions{SessionID: "s1"})

	router.Close()
	router.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := router.Subscribe(context.Background(), SubscribeOptions{})
	_, ok = <-late
	assert.False(t, ok, "subscribing after close yields a closed stream")

	router.Publish(&StreamEvent{Type: TypeSessionReset, SessionID: "s1"})
}

func TestEventRouter_DropsForSlowStreams(t *testing.T) {
	t.Parallel()

	router := NewEventRouter(2)
	defer router.Close()

	ch, cancel := router.Subscribe(context.Background(), SubscribeOptions{SessionID: "s1"})
	defer cancel()

	for range 5 {
		router.Publish(&StreamEvent{Type: TypeTaskToggled, SessionID: "s1"})
	}

	assert.Len(t, ch, 2)
	assert.EqualValues(t, 3, router.Dropped())
}
