package analytics

import (
	"github.com/posthog/posthog-go"
)

func EmitRoadmapCreated(client Client, sessionID string, milestones int) {
	client.Enqueue(posthog.Capture{
		DistinctId: sessionID,
		Event:      "roadmap_created",
		Properties: map[string]interface{}{
			"milestones": milestones,
		},
	})
}

func EmitTasksGenerated(client Client, sessionID string, count int) {
	client.Enqueue(posthog.Capture{
		DistinctId: sessionID,
		Event:      "tasks_generated",
		Properties: map[string]interface{}{
			"task_count": count,
		},
	})
}

func EmitTaskToggled(client Client, sessionID string, index int, done bool) {
	client.Enqueue(posthog.Capture{
		DistinctId: sessionID,
		Event:      "task_toggled",
		Properties: map[string]interface{}{
			"task_index": index,
			"done":       done,
		},
	})
}

func EmitProgressLogged(client Client, sessionID string, mood string, completedTasks int) {
	client.Enqueue(posthog.Capture{
		DistinctId: sessionID,
		Event:      "progress_logged",
		Properties: map[string]interface{}{
			"mood":            mood,
			"completed_tasks": completedTasks,
		},
	})
}

func EmitMemoryCompacted(client Client, sessionID string, compacted int, failed bool) {
	client.Enqueue(posthog.Capture{
		DistinctId: sessionID,
		Event:      "memory_compacted",
		Properties: map[string]interface{}{
			"compacted": compacted,
			"failed":    failed,
		},
	})
}

func EmitReportGenerated(client Client, sessionID string, modelName string, length int) {
	client.Enqueue(posthog.Capture{
		DistinctId: sessionID,
		Event:      "report_generated",
		Properties: map[string]interface{}{
			"model_name":    modelName,
			"report_length": length,
		},
	})
}

func EmitSessionReset(client Client, sessionID string) {
	client.Enqueue(posthog.Capture{
		DistinctId: sessionID,
		Event:      "session_reset",
	})
}
