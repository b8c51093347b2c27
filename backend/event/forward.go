package event

import "context"

// Forward republishes the domain events on bus as StreamEvents on router.
// The returned function removes the subscriptions.
func Forward(bus *Bus, router *EventRouter) func() {
	subs := []*Subscription{
		forward[RoadmapUpdatedEvent](bus, router),
		forward[TasksGeneratedEvent](bus, router),
		forward[TaskToggledEvent](bus, router),
		forward[ProgressLoggedEvent](bus, router),
		forward[MemoryCompactedEvent](bus, router),
		forward[ReportGeneratedEvent](bus, router),
		forward[SessionResetEvent](bus, router),
	}

	return func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}
}

func forward[T Event](bus *Bus, router *EventRouter) *Subscription {
	return Subscribe(bus, func(ctx context.Context, e T) {
		router.Publish(&StreamEvent{
			Type:      e.Kind(),
			SessionID: e.Session(),
			Timestamp: e.OccurredAt(),
			Payload:   e,
		})
	}, nil)
}
