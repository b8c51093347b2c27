package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// InitialSummary seeds the long-term summary of every new session. Its
	// prefix doubles as the marker that no history has been compacted yet.
	InitialSummary = "User started SEYAL journey."

	// InitialTasks is shown until the task manager produced a list.
	InitialTasks = "No tasks generated yet. Please generate a plan first."

	journeyMarker = "User started"

	entryDateLayout   = "2006-01-02 15:04"
	summaryDateLayout = "2006-01-02"
)

type Mood string

const (
	MoodDrained   Mood = "Drained"
	MoodBored     Mood = "Bored"
	MoodNeutral   Mood = "Neutral"
	MoodGood      Mood = "Good"
	MoodEnergetic Mood = "Energetic"
)

// Moods lists the scale from lowest to highest energy.
var Moods = []Mood{MoodDrained, MoodBored, MoodNeutral, MoodGood, MoodEnergetic}

func ParseMood(value string) (Mood, error) {
	value = strings.TrimSpace(value)
	for _, mood := range Moods {
		if strings.EqualFold(string(mood), value) {
			return mood, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMood, value)
}

type Task struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// LogEntry is one daily progress note.
type LogEntry struct {
	ID uuid.UUID `json:"id"`

	// Timestamp is when the entry was logged.
	Timestamp time.Time `json:"timestamp"`

	// Update is the user's free-text description of the day.
	Update string `json:"update"`

	Mood Mood `json:"mood"`

	// CompletedTasks holds the text of every task that was checked off when
	// the entry was logged.
	CompletedTasks []string `json:"completed_tasks,omitempty"`
}

// logView is the shape entries take inside model prompts and tool results.
type logView struct {
	Date           string   `json:"date"`
	Update         string   `json:"update"`
	Mood           Mood     `json:"mood"`
	CompletedTasks []string `json:"completed_tasks,omitempty"`
}

func (e LogEntry) view() logView {
	return logView{
		Date:           e.Timestamp.Format(entryDateLayout),
		Update:         e.Update,
		Mood:           e.Mood,
		CompletedTasks: e.CompletedTasks,
	}
}

func (e LogEntry) FormattedDate() string {
	return e.Timestamp.Format(entryDateLayout)
}

func viewOf(entries []LogEntry) []logView {
	views := make([]logView, len(entries))
	for i, entry := range entries {
		views[i] = entry.view()
	}
	return views
}

// TokenUsage accumulates the tokens one model consumed for a session.
type TokenUsage struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	CacheWriteTokens int64 `json:"cache_write_tokens"`
	CacheReadTokens  int64 `json:"cache_read_tokens"`
	Calls            int64 `json:"calls"`
}

func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:      u.InputTokens + other.InputTokens,
		OutputTokens:     u.OutputTokens + other.OutputTokens,
		CacheWriteTokens: u.CacheWriteTokens + other.CacheWriteTokens,
		CacheReadTokens:  u.CacheReadTokens + other.CacheReadTokens,
		Calls:            u.Calls + other.Calls,
	}
}

// State is everything seyal remembers about one session.
type State struct {
	ID string `json:"id"`

	// Goal is the most recent objective handed to the planner.
	Goal string `json:"goal,omitempty"`

	// Roadmap holds the milestones saved by the planner, in order.
	Roadmap []string `json:"roadmap"`

	// TasksMarkdown is the raw task manager output.
	TasksMarkdown string `json:"tasks_markdown"`

	// Tasks is TasksMarkdown parsed into checkable items.
	Tasks []Task `json:"tasks"`

	// Logs holds the recent detailed entries. Older ones live on only in
	// LongTermSummary.
	Logs []LogEntry `json:"logs"`

	LongTermSummary string `json:"long_term_summary"`

	// Compactions counts how often logs were folded into the summary.
	Compactions int `json:"compactions"`

	// Usage is keyed by model name.
	Usage map[string]TokenUsage `json:"usage,omitempty"`

	// EncryptedAPIKey is a key entered for this session only, sealed by the
	// secret client.
	EncryptedAPIKey []byte `json:"encrypted_api_key,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewState(id string, now time.Time) *State {
	return &State{
		ID:              id,
		Roadmap:         []string{},
		TasksMarkdown:   InitialTasks,
		Tasks:           []Task{},
		Logs:            []LogEntry{},
		LongTermSummary: InitialSummary,
		Usage:           map[string]TokenUsage{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// HasHistory reports whether there is anything for the reflector to analyze.
func (s *State) HasHistory() bool {
	return len(s.Logs) > 0 || !strings.Contains(s.LongTermSummary, journeyMarker)
}

func (s *State) CompletedTasks() []string {
	var completed []string
	for _, task := range s.Tasks {
		if task.Done {
			completed = append(completed, task.Text)
		}
	}
	return completed
}

func (s *State) TotalUsage() TokenUsage {
	var total TokenUsage
	for _, usage := range s.Usage {
		total = total.Add(usage)
	}
	return total
}

func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	clone := *s
	clone.Roadmap = append([]string{}, s.Roadmap...)
	clone.Tasks = append([]Task{}, s.Tasks...)
	clone.Logs = make([]LogEntry, len(s.Logs))
	for i, entry := range s.Logs {
		entry.CompletedTasks = append([]string(nil), entry.CompletedTasks...)
		clone.Logs[i] = entry
	}
	clone.Usage = make(map[string]TokenUsage, len(s.Usage))
	for model, usage := range s.Usage {
		clone.Usage[model] = usage
	}
	clone.EncryptedAPIKey = append([]byte(nil), s.EncryptedAPIKey...)
	return &clone
}
