package event

import (
	"context"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Handler runs on a bus worker, never on the publisher's goroutine.
type Handler[T Event] func(context.Context, T)

type EventFilter[T Event] func(T) bool

// ForSession keeps the events of one session.
func ForSession[T Event](sessionID string) EventFilter[T] {
	return func(e T) bool {
		return e.Session() == sessionID
	}
}

// Bus delivers domain events to in-process subscribers through a fixed pool
// of workers. Publishing never blocks: deliveries that do not fit into the
// queue are dropped and counted.
type Bus struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	mu          sync.RWMutex
	subscribers map[reflect.Type][]subscriber

	deliveries chan delivery
	metrics    *busMetrics
}

type delivery struct {
	event  Event
	invoke func(context.Context, Event)
}

type subscriber struct {
	id     uuid.UUID
	invoke func(context.Context, Event)
	// close is set for channel subscribers.
	close func()
}

type Subscription struct {
	bus       *Bus
	eventType reflect.Type
	id        uuid.UUID
	once      sync.Once
}

type BusOptions struct {
	Workers   int
	QueueSize int
	Metrics   prometheus.Registerer
}

type BusOption func(*BusOptions)

func WithWorkers(workers int) BusOption {
	return func(o *BusOptions) {
		o.Workers = workers
	}
}

func WithQueueSize(size int) BusOption {
	return func(o *BusOptions) {
		o.QueueSize = size
	}
}

func WithMetrics(registry prometheus.Registerer) BusOption {
	return func(o *BusOptions) {
		o.Metrics = registry
	}
}

func DefaultBusOptions() *BusOptions {
	return &BusOptions{
		Workers:   4,
		QueueSize: 256,
	}
}

func NewBus(opts ...BusOption) *Bus {
	options := DefaultBusOptions()
	for _, opt := range opts {
		opt(options)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &Bus{
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[reflect.Type][]subscriber),
		deliveries:  make(chan delivery, options.QueueSize),
		metrics:     newBusMetrics(options.Metrics),
	}

	for range max(options.Workers, 1) {
		bus.wg.Add(1)
		go bus.work()
	}

	return bus
}

func (bus *Bus) work() {
	defer bus.wg.Done()

	for {
		select {
		case <-bus.ctx.Done():
			return
		case d := <-bus.deliveries:
			bus.deliver(d)
		}
	}
}

func (bus *Bus) deliver(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(bus.ctx, "event handler panicked",
				"kind", d.event.Kind(),
				"session_id", d.event.Session(),
				"error", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	d.invoke(bus.ctx, d.event)
	bus.metrics.delivered(d.event.Kind())
}

func (bus *Bus) add(eventType reflect.Type, sub subscriber) *Subscription {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	bus.subscribers[eventType] = append(bus.subscribers[eventType], sub)
	return &Subscription{bus: bus, eventType: eventType, id: sub.id}
}

// Subscribe calls handler for every published T that passes filter. A nil
// filter accepts everything.
func Subscribe[T Event](bus *Bus, handler Handler[T], filter EventFilter[T]) *Subscription {
	if bus.closed.Load() {
		slog.Warn("subscribe on closed event bus")
		return &Subscription{bus: bus}
	}

	return bus.add(reflect.TypeFor[T](), subscriber{
		id: uuid.New(),
		invoke: func(ctx context.Context, e Event) {
			if typed, ok := e.(T); ok && (filter == nil || filter(typed)) {
				handler(ctx, typed)
			}
		},
	})
}

// SubscribeChannel delivers T on a buffered channel. Events that do not fit
// into the buffer are dropped. Unsubscribe or Close closes the channel.
func SubscribeChannel[T Event](bus *Bus, bufferSize int, filter EventFilter[T]) (<-chan T, *Subscription) {
	ch := make(chan T, bufferSize)
	if bus.closed.Load() {
		close(ch)
		return ch, &Subscription{bus: bus}
	}

	var (
		mu     sync.RWMutex
		closed bool
	)
	sub := bus.add(reflect.TypeFor[T](), subscriber{
		id: uuid.New(),
		invoke: func(ctx context.Context, e Event) {
			typed, ok := e.(T)
			if !ok || (filter != nil && !filter(typed)) {
				return
			}

			mu.RLock()
			defer mu.RUnlock()
			if closed {
				return
			}
			select {
			case ch <- typed:
			default:
				bus.metrics.dropped(e.Kind())
				slog.DebugContext(ctx, "event channel full", "kind", e.Kind(), "session_id", e.Session())
			}
		},
		close: func() {
			mu.Lock()
			defer mu.Unlock()
			if !closed {
				closed = true
				close(ch)
			}
		},
	})
	return ch, sub
}

// Unsubscribe is idempotent.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()

		subs := s.bus.subscribers[s.eventType]
		for i, sub := range subs {
			if sub.id != s.id {
				continue
			}
			s.bus.subscribers[s.eventType] = append(subs[:i:i], subs[i+1:]...)
			if sub.close != nil {
				sub.close()
			}
			return
		}
	})
}

// Publish queues e for every subscriber of its type.
func Publish[T Event](bus *Bus, e T) {
	if bus.closed.Load() {
		return
	}

	bus.mu.RLock()
	subs := append([]subscriber(nil), bus.subscribers[reflect.TypeFor[T]()]...)
	bus.mu.RUnlock()

	for _, sub := range subs {
		select {
		case bus.deliveries <- delivery{event: e, invoke: sub.invoke}:
		case <-bus.ctx.Done():
			return
		default:
			bus.metrics.dropped(e.Kind())
			slog.Debug("event queue full", "kind", e.Kind(), "session_id", e.Session())
		}
	}

	bus.metrics.published(e.Kind())
}

// Close stops the workers, discards queued deliveries and closes every
// channel subscription.
func (bus *Bus) Close() {
	if !bus.closed.CompareAndSwap(false, true) {
		return
	}

	bus.cancel()
	bus.wg.Wait()

	bus.mu.Lock()
	defer bus.mu.Unlock()
	for eventType, subs := range bus.subscribers {
		for _, sub := range subs {
			if sub.close != nil {
				sub.close()
			}
		}
		delete(bus.subscribers, eventType)
	}
}

func SubscriberCount[T Event](bus *Bus) int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return len(bus.subscribers[reflect.TypeFor[T]()])
}
