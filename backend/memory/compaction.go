package memory

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultCompactionThreshold = 5
	DefaultCompactionRetain    = 3
)

type CompactionConfig struct {
	// Threshold is the log count that must be exceeded before compaction runs.
	Threshold int
	// Retain is how many of the most recent entries stay in detail.
	Retain int
}

func DefaultCompactionConfig() *CompactionConfig {
	return &CompactionConfig{
		Threshold: DefaultCompactionThreshold,
		Retain:    DefaultCompactionRetain,
	}
}

// Summarizer condenses log entries that are about to leave the detailed
// window into a short narrative.
type Summarizer interface {
	Summarize(ctx context.Context, entries []LogEntry) (string, error)
}

type SummarizerFunc func(ctx context.Context, entries []LogEntry) (string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, entries []LogEntry) (string, error) {
	return f(ctx, entries)
}

type CompactionService struct {
	config *CompactionConfig
}

func NewCompactionService(config *CompactionConfig) *CompactionService {
	if config == nil {
		config = DefaultCompactionConfig()
	}
	return &CompactionService{config: config}
}

func (s *CompactionService) ShouldCompact(logCount int) bool {
	return logCount > s.config.Threshold
}

// Split divides logs into the entries to summarize and the ones to keep.
func (s *CompactionService) Split(logs []LogEntry) (toCompact, retained []LogEntry) {
	cut := len(logs) - s.config.Retain
	if cut <= 0 {
		return nil, logs
	}
	return logs[:cut], logs[cut:]
}

// Compact folds the older entries of state into its long-term summary. A
// failed summarization still trims the logs; the failure text is recorded in
// place of the summary.
func (s *CompactionService) Compact(ctx context.Context, state *State, summarizer Summarizer, now time.Time) (int, error) {
	toCompact, retained := s.Split(state.Logs)
	if len(toCompact) == 0 {
		return 0, nil
	}

	summary, err := summarizer.Summarize(ctx, toCompact)
	if err != nil {
		summary = fmt.Sprintf("Summary generation failed due to API error: %v", err)
	}

	state.LongTermSummary += fmt.Sprintf("\n\n[Period Summary (%s)]: %s", now.Format(summaryDateLayout), summary)
	state.Logs = append([]LogEntry{}, retained...)
	state.Compactions++

	return len(toCompact), err
}
