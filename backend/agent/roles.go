package agent

import (
	"context"
	"fmt"

	"github.com/furisto/seyal/backend/memory"
	"github.com/furisto/seyal/backend/model"
	"github.com/furisto/seyal/backend/tool"
)

const (
	PlannerName     = "planner"
	TaskManagerName = "task_manager"
	ReflectorName   = "reflector"
	SummarizerName  = "summarizer"
)

// Roles bundles the agents of one runtime.
type Roles struct {
	Planner     *Agent
	TaskManager *Agent
	Reflector   *Agent
	Summarizer  *Agent
}

// NewRoles wires each role to its model and gives the planner and the
// reflector their memory tools.
func NewRoles(models model.RoleModels, bank *memory.MemoryBank) *Roles {
	return &Roles{
		Planner: NewAgent(PlannerName,
			WithSystemPrompt(PlannerInstruction),
			WithModel(models.Planner),
			WithToolbox(tool.NewToolbox(tool.NewUpdateRoadmapTool(bank))),
		),
		TaskManager: NewAgent(TaskManagerName,
			WithSystemPrompt(TaskManagerInstruction),
			WithModel(models.Tasks),
		),
		Reflector: NewAgent(ReflectorName,
			WithSystemPrompt(ReflectorInstruction),
			WithModel(models.Reflector),
			WithToolbox(tool.NewToolbox(tool.NewRetrieveHistoryTool(bank))),
		),
		Summarizer: NewAgent(SummarizerName,
			WithSystemPrompt(SummarizerInstruction),
			WithModel(models.Summarizer),
			WithMaxToolRounds(0),
		),
	}
}

// Summarizer folds log entries into a narrative paragraph with a model.
type Summarizer struct {
	agent    *Agent
	provider func(ctx context.Context) (model.ModelProvider, error)
	onUsage  func(ctx context.Context, model string, usage model.Usage)
}

func NewSummarizer(agent *Agent, provider func(ctx context.Context) (model.ModelProvider, error), onUsage func(ctx context.Context, model string, usage model.Usage)) *Summarizer {
	return &Summarizer{agent: agent, provider: provider, onUsage: onUsage}
}

func (s *Summarizer) Summarize(ctx context.Context, entries []memory.LogEntry) (string, error) {
	encoded, err := memory.EncodeLogs(entries)
	if err != nil {
		return "", fmt.Errorf("failed to encode logs: %w", err)
	}

	provider, err := s.provider(ctx)
	if err != nil {
		return "", err
	}

	result, err := s.agent.Run(ctx, provider, SummarizerPrompt(encoded))
	if err != nil {
		return "", err
	}

	if s.onUsage != nil {
		s.onUsage(ctx, s.agent.Model, result.Usage)
	}
	return result.Text, nil
}
