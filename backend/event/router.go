package event

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const defaultStreamBuffer = 64

// StreamEvent is a domain event on its way to a browser.
type StreamEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// SubscribeOptions selects the stream events a subscriber receives.
type SubscribeOptions struct {
	// EventTypes holds patterns: "*", "memory.*", "*.generated" or an exact
	// kind. Empty means everything.
	EventTypes []string

	// SessionID limits the stream to one session. Empty receives every
	// session's events.
	SessionID string
}

type streamSubscriber struct {
	id       uuid.UUID
	patterns []string
	ch       chan *StreamEvent
	cancel   context.CancelFunc
}

// EventRouter fans stream events out to the open event streams. Subscribers
// are indexed by session so a publish only walks the streams that can want
// the event.
type EventRouter struct {
	mu         sync.RWMutex
	bySession  map[string]map[uuid.UUID]*streamSubscriber
	bufferSize int
	closed     bool

	dropped atomic.Int64
}

func NewEventRouter(bufferSize int) *EventRouter {
	if bufferSize <= 0 {
		bufferSize = defaultStreamBuffer
	}
	return &EventRouter{
		bySession:  make(map[string]map[uuid.UUID]*streamSubscriber),
		bufferSize: bufferSize,
	}
}

// Subscribe opens a stream. The channel is closed when ctx ends, when the
// returned cancel function is called or when the router closes.
func (r *EventRouter) Subscribe(ctx context.Context, opts SubscribeOptions) (<-chan *StreamEvent, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan *StreamEvent, r.bufferSize)
	if r.closed {
		close(ch)
		return ch, func() {}
	}

	patterns := opts.EventTypes
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &streamSubscriber{id: uuid.New(), patterns: patterns, ch: ch, cancel: cancel}
	if r.bySession[opts.SessionID] == nil {
		r.bySession[opts.SessionID] = make(map[uuid.UUID]*streamSubscriber)
	}
	r.bySession[opts.SessionID][sub.id] = sub

	go func() {
		<-subCtx.Done()
		r.remove(opts.SessionID, sub.id)
	}()

	return ch, cancel
}

func (r *EventRouter) remove(sessionID string, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.bySession[sessionID]
	sub, ok := subs[id]
	if !ok {
		return
	}
	close(sub.ch)
	delete(subs, id)
	if len(subs) == 0 {
		delete(r.bySession, sessionID)
	}
}

// Publish never blocks; a stream that is not keeping up misses the event.
func (r *EventRouter) Publish(e *StreamEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	r.send(r.bySession[e.SessionID], e)
	if e.SessionID != "" {
		r.send(r.bySession[""], e)
	}
}

func (r *EventRouter) send(subs map[uuid.UUID]*streamSubscriber, e *StreamEvent) {
	for _, sub := range subs {
		if !sub.wants(e.Type) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			r.dropped.Add(1)
			slog.Debug("event stream full", "type", e.Type, "session_id", e.SessionID, "stream", sub.id)
		}
	}
}

func (s *streamSubscriber) wants(eventType string) bool {
	for _, pattern := range s.patterns {
		if matchPattern(pattern, eventType) {
			return true
		}
	}
	return false
}

// matchPattern matches kinds of the form "entity.action" against "*",
// "entity.*", "*.action" or the exact kind.
func matchPattern(pattern, eventType string) bool {
	if pattern == "*" || pattern == eventType {
		return true
	}

	entity, action, ok := strings.Cut(pattern, ".")
	if !ok {
		return false
	}
	eventEntity, eventAction, ok := strings.Cut(eventType, ".")
	if !ok {
		return false
	}

	return (action == "*" && entity == eventEntity) || (entity == "*" && action == eventAction)
}

// Dropped counts events lost to full streams.
func (r *EventRouter) Dropped() int64 {
	return r.dropped.Load()
}

func (r *EventRouter) Streams() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, subs := range r.bySession {
		n += len(subs)
	}
	return n
}

// Close ends every open stream.
func (r *EventRouter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	for sessionID, subs := range r.bySession {
		for _, sub := range subs {
			sub.cancel()
			close(sub.ch)
		}
		delete(r.bySession, sessionID)
	}
}
