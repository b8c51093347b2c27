package event

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds as seen on the web event stream.
const (
	TypeRoadmapUpdated  = "roadmap.updated"
	TypeTasksGenerated  = "tasks.generated"
	TypeTaskToggled     = "task.toggled"
	TypeProgressLogged  = "progress.logged"
	TypeMemoryCompacted = "memory.compacted"
	TypeReportGenerated = "report.generated"
	TypeSessionReset    = "session.reset"
)

// Event is a change to one session's memory. Kind names it on the stream.
type Event interface {
	Kind() string
	Session() string
	OccurredAt() time.Time
}

type RoadmapUpdatedEvent struct {
	SessionID  string
	Goal       string
	Milestones []string
	Timestamp  time.Time
}

func (RoadmapUpdatedEvent) Kind() string            { return TypeRoadmapUpdated }
func (e RoadmapUpdatedEvent) Session() string       { return e.SessionID }
func (e RoadmapUpdatedEvent) OccurredAt() time.Time { return e.Timestamp }

type TasksGeneratedEvent struct {
	SessionID string
	Count     int
	Timestamp time.Time
}

func (TasksGeneratedEvent) Kind() string            { return TypeTasksGenerated }
func (e TasksGeneratedEvent) Session() string       { return e.SessionID }
func (e TasksGeneratedEvent) OccurredAt() time.Time { return e.Timestamp }

type TaskToggledEvent struct {
	SessionID string
	Index     int
	Text      string
	Done      bool
	Timestamp time.Time
}

func (TaskToggledEvent) Kind() string            { return TypeTaskToggled }
func (e TaskToggledEvent) Session() string       { return e.SessionID }
func (e TaskToggledEvent) OccurredAt() time.Time { return e.Timestamp }

type ProgressLoggedEvent struct {
	SessionID      string
	EntryID        uuid.UUID
	Mood           string
	CompletedTasks int
	Timestamp      time.Time
}

func (ProgressLoggedEvent) Kind() string            { return TypeProgressLogged }
func (e ProgressLoggedEvent) Session() string       { return e.SessionID }
func (e ProgressLoggedEvent) OccurredAt() time.Time { return e.Timestamp }

// MemoryCompactedEvent is published after old log entries were folded into
// the long-term summary.
type MemoryCompactedEvent struct {
	SessionID string
	Compacted int
	Retained  int
	// Failed is set when the summarizer failed and an error note was stored
	// in place of the summary.
	Failed    bool
	Timestamp time.Time
}

func (MemoryCompactedEvent) Kind() string            { return TypeMemoryCompacted }
func (e MemoryCompactedEvent) Session() string       { return e.SessionID }
func (e MemoryCompactedEvent) OccurredAt() time.Time { return e.Timestamp }

type ReportGeneratedEvent struct {
	SessionID string
	Model     string
	Length    int
	Timestamp time.Time
}

func (ReportGeneratedEvent) Kind() string            { return TypeReportGenerated }
func (e ReportGeneratedEvent) Session() string       { return e.SessionID }
func (e ReportGeneratedEvent) OccurredAt() time.Time { return e.Timestamp }

type SessionResetEvent struct {
	SessionID string
	Timestamp time.Time
}

func (SessionResetEvent) Kind() string            { return TypeSessionReset }
func (e SessionResetEvent) Session() string       { return e.SessionID }
func (e SessionResetEvent) OccurredAt() time.Time { return e.Timestamp }
