package analytics

import (
	"context"

	"github.com/furisto/seyal/backend/event"
)

// Subscribe forwards domain events from bus to client until the returned
// function is called.
func Subscribe(bus *event.Bus, client Client) func() {
	subs := []*event.Subscription{
		event.Subscribe(bus, func(ctx context.Context, e event.RoadmapUpdatedEvent) {
			EmitRoadmapCreated(client, e.SessionID, len(e.Milestones))
		}, nil),
		event.Subscribe(bus, func(ctx context.Context, e event.TasksGeneratedEvent) {
			EmitTasksGenerated(client, e.SessionID, e.Count)
		}, nil),
		event.Subscribe(bus, func(ctx context.Context, e event.TaskToggledEvent) {
			EmitTaskToggled(client, e.SessionID, e.Index, e.Done)
		}, nil),
		event.Subscribe(bus, func(ctx context.Context, e event.ProgressLoggedEvent) {
			EmitProgressLogged(client, e.SessionID, e.Mood, e.CompletedTasks)
		}, nil),
		event.Subscribe(bus, func(ctx context.Context, e event.MemoryCompactedEvent) {
			EmitMemoryCompacted(client, e.SessionID, e.Compacted, e.Failed)
		}, nil),
		event.Subscribe(bus, func(ctx context.Context, e event.ReportGeneratedEvent) {
			EmitReportGenerated(client, e.SessionID, e.Model, e.Length)
		}, nil),
		event.Subscribe(bus, func(ctx context.Context, e event.SessionResetEvent) {
			EmitSessionReset(client, e.SessionID)
		}, nil),
	}

	return func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}
}
