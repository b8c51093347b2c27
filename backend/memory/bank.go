package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/furisto/seyal/shared/conv"
	"github.com/furisto/seyal/shared/keylock"
	"github.com/google/uuid"
)

const (
	RoadmapSavedMessage = "Roadmap saved to memory."
	LoggedMessage       = "Daily update logged."
	CompactedMessage    = "Daily update logged & Memory Compacted (Old logs summarized)."
	CompactionToast     = "Old memories compressed into Long-Term Storage."

	maxSessionIDLength = 128
)

type BankOptions struct {
	Compaction *CompactionConfig
	Summarizer Summarizer
	Clock      func() time.Time
}

type BankOption func(*BankOptions)

func WithCompaction(config *CompactionConfig) BankOption {
	return func(o *BankOptions) {
		o.Compaction = config
	}
}

func WithSummarizer(summarizer Summarizer) BankOption {
	return func(o *BankOptions) {
		o.Summarizer = summarizer
	}
}

func WithClock(clock func() time.Time) BankOption {
	return func(o *BankOptions) {
		o.Clock = clock
	}
}

func DefaultBankOptions() *BankOptions {
	return &BankOptions{
		Compaction: DefaultCompactionConfig(),
		Clock:      time.Now,
	}
}

// MemoryBank is the only writer of session state. Every mutation of a
// session is serialized by a per-session lock and written back to the store
// before the lock is released.
type MemoryBank struct {
	store      Store
	compaction *CompactionService
	summarizer Summarizer
	now        func() time.Time

	locks *keylock.Locker
}

func NewMemoryBank(store Store, opts ...BankOption) *MemoryBank {
	options := DefaultBankOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &MemoryBank{
		store:      store,
		compaction: NewCompactionService(options.Compaction),
		summarizer: options.Summarizer,
		now:        options.Clock,
		locks:      keylock.New(),
	}
}

func (b *MemoryBank) Store() Store {
	return b.store
}

func (b *MemoryBank) lock(sessionID string) func() {
	return b.locks.Lock(sessionID)
}

func validateSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" || len(sessionID) > maxSessionIDLength {
		return fmt.Errorf("%w: %q", ErrInvalidSessID, sessionID)
	}
	return nil
}

func (b *MemoryBank) load(ctx context.Context, sessionID string) (*State, error) {
	state, err := b.store.Get(ctx, sessionID)
	if IsNotFound(err) {
		return NewState(sessionID, b.now()), nil
	}
	return state, err
}

// State returns a snapshot of the session. Unknown sessions yield fresh
// defaults without being persisted.
func (b *MemoryBank) State(ctx context.Context, sessionID string) (*State, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	return b.load(ctx, sessionID)
}

// Update loads the session, applies fn and persists the result. Nothing is
// written when fn fails.
func (b *MemoryBank) Update(ctx context.Context, sessionID string, fn func(state *State) error) (*State, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	unlock := b.lock(sessionID)
	defer unlock()

	state, err := b.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := fn(state); err != nil {
		return nil, err
	}

	state.UpdatedAt = b.now()
	if err := b.store.Put(ctx, state); err != nil {
		return nil, err
	}

	return state.Clone(), nil
}

func (b *MemoryBank) UpdateRoadmap(ctx context.Context, sessionID string, milestones []string) (string, error) {
	milestones = conv.NonEmpty(milestones)
	if len(milestones) == 0 {
		return "", ErrEmptyRoadmap
	}

	_, err := b.Update(ctx, sessionID, func(state *State) error {
		state.Roadmap = milestones
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.DebugContext(ctx, "roadmap updated", "session_id", sessionID, "milestones", len(milestones))
	return RoadmapSavedMessage, nil
}

func (b *MemoryBank) SetGoal(ctx context.Context, sessionID, goal string) error {
	_, err := b.Update(ctx, sessionID, func(state *State) error {
		state.Goal = strings.TrimSpace(goal)
		return nil
	})
	return err
}

// SetTasks replaces the task list with the items parsed from markdown.
func (b *MemoryBank) SetTasks(ctx context.Context, sessionID, markdown string) (*State, error) {
	return b.Update(ctx, sessionID, func(state *State) error {
		state.TasksMarkdown = markdown
		state.Tasks = ParseTasks(markdown)
		return nil
	})
}

func (b *MemoryBank) ToggleTask(ctx context.Context, sessionID string, index int, done bool) (*State, error) {
	return b.Update(ctx, sessionID, func(state *State) error {
		if index < 0 || index >= len(state.Tasks) {
			return fmt.Errorf("%w: index %d", ErrTaskNotFound, index)
		}
		state.Tasks[index].Done = done
		return nil
	})
}

type LogResult struct {
	Message string
	Entry   LogEntry
	// Compacted is the number of entries folded into the long-term summary.
	Compacted int
	// SummaryErr is set when compaction ran but the summarizer failed.
	SummaryErr error
}

// LogDailyUpdate appends a log entry and compacts the log when it grew past
// the threshold. summarizer overrides the bank's default when not nil.
func (b *MemoryBank) LogDailyUpdate(ctx context.Context, sessionID, update string, mood Mood, summarizer Summarizer) (*LogResult, error) {
	update = strings.TrimSpace(update)
	if update == "" {
		return nil, ErrEmptyUpdate
	}

	mood, err := ParseMood(string(mood))
	if err != nil {
		return nil, err
	}

	if summarizer == nil {
		summarizer = b.summarizer
	}

	result := &LogResult{Message: LoggedMessage}
	_, err = b.Update(ctx, sessionID, func(state *State) error {
		now := b.now()
		entry := LogEntry{
			ID:             uuid.New(),
			Timestamp:      now,
			Update:         update,
			Mood:           mood,
			CompletedTasks: state.CompletedTasks(),
		}
		state.Logs = append(state.Logs, entry)
		result.Entry = entry

		if !b.compaction.ShouldCompact(len(state.Logs)) {
			return nil
		}

		if summarizer == nil {
			summarizer = SummarizerFunc(func(ctx context.Context, entries []LogEntry) (string, error) {
				return "", fmt.Errorf("no summarizer configured")
			})
		}

		compacted, summaryErr := b.compaction.Compact(ctx, state, summarizer, now)
		if summaryErr != nil {
			slog.WarnContext(ctx, "log summarization failed", "session_id", sessionID, "error", summaryErr)
		}
		result.Compacted = compacted
		result.SummaryErr = summaryErr
		result.Message = CompactedMessage
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

type history struct {
	CurrentPlan     []string  `json:"current_plan"`
	LongTermHistory string    `json:"long_term_history"`
	RecentDailyLogs []logView `json:"recent_daily_logs"`
}

// RetrieveHistory renders the plan, the long-term summary and the recent
// logs as the JSON context the reflector works from.
func (b *MemoryBank) RetrieveHistory(ctx context.Context, sessionID string) (string, error) {
	state, err := b.State(ctx, sessionID)
	if err != nil {
		return "", err
	}

	content, err := json.Marshal(history{
		CurrentPlan:     state.Roadmap,
		LongTermHistory: state.LongTermSummary,
		RecentDailyLogs: viewOf(state.Logs),
	})
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func (b *MemoryBank) RecordUsage(ctx context.Context, sessionID, model string, usage TokenUsage) error {
	_, err := b.Update(ctx, sessionID, func(state *State) error {
		if state.Usage == nil {
			state.Usage = map[string]TokenUsage{}
		}
		state.Usage[model] = state.Usage[model].Add(usage)
		return nil
	})
	return err
}

func (b *MemoryBank) SetEncryptedAPIKey(ctx context.Context, sessionID string, sealed []byte) error {
	_, err := b.Update(ctx, sessionID, func(state *State) error {
		state.EncryptedAPIKey = sealed
		return nil
	})
	return err
}

func (b *MemoryBank) Reset(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	unlock := b.lock(sessionID)
	defer unlock()

	return b.store.Delete(ctx, sessionID)
}

// EncodeLogs renders entries as indented JSON for summarization prompts.
func EncodeLogs(entries []LogEntry) (string, error) {
	content, err := json.MarshalIndent(viewOf(entries), "", "  ")
	if err != nil {
		return "", err
	}
	return string(content), nil
}
