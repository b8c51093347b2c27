package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/furisto/seyal/backend/model"
	"github.com/furisto/seyal/backend/tool"
)

const DefaultMaxToolRounds = 8

var (
	ErrTooManyToolRounds = errors.New("model kept calling tools without answering")
	ErrEmptyResponse     = errors.New("model returned an empty response")
)

type AgentOptions struct {
	SystemPrompt  string
	Model         string
	Toolbox       *tool.Toolbox
	MaxToolRounds int
	MaxTokens     int64
	Temperature   *float64
}

func DefaultAgentOptions() *AgentOptions {
	return &AgentOptions{
		Toolbox:       tool.NewToolbox(),
		MaxToolRounds: DefaultMaxToolRounds,
		MaxTokens:     8192,
	}
}

type AgentOption func(*AgentOptions)

func WithSystemPrompt(systemPrompt string) AgentOption {
	return func(o *AgentOptions) {
		o.SystemPrompt = systemPrompt
	}
}

func WithModel(model string) AgentOption {
	return func(o *AgentOptions) {
		o.Model = model
	}
}

func WithToolbox(toolbox *tool.Toolbox) AgentOption {
	return func(o *AgentOptions) {
		o.Toolbox = toolbox
	}
}

func WithMaxToolRounds(rounds int) AgentOption {
	return func(o *AgentOptions) {
		o.MaxToolRounds = rounds
	}
}

func WithMaxTokens(maxTokens int64) AgentOption {
	return func(o *AgentOptions) {
		o.MaxTokens = maxTokens
	}
}

func WithTemperature(temperature float64) AgentOption {
	return func(o *AgentOptions) {
		o.Temperature = &temperature
	}
}

// Agent is a single role: a system prompt, a model and the tools the model
// may call.
type Agent struct {
	Name          string
	SystemPrompt  string
	Model         string
	Toolbox       *tool.Toolbox
	maxToolRounds int
	maxTokens     int64
	temperature   *float64
}

func NewAgent(name string, opts ...AgentOption) *Agent {
	options := DefaultAgentOptions()
	for _, opt := range opts {
		opt(options)
	}

	toolbox := options.Toolbox
	if toolbox == nil {
		toolbox = tool.NewToolbox()
	}

	return &Agent{
		Name:          name,
		SystemPrompt:  options.SystemPrompt,
		Model:         options.Model,
		Toolbox:       toolbox,
		maxToolRounds: options.MaxToolRounds,
		maxTokens:     options.MaxTokens,
		temperature:   options.Temperature,
	}
}

type Result struct {
	Text  string
	Usage model.Usage
	// ToolCalls counts the tool invocations made while answering.
	ToolCalls int
}

// Run sends prompt to the model and executes tool calls until the model
// answers with text only.
func (a *Agent) Run(ctx context.Context, provider model.ModelProvider, prompt string) (*Result, error) {
	messages := []*model.Message{
		model.NewUserMessage(&model.TextBlock{Text: prompt}),
	}

	opts := []model.InvokeModelOption{
		model.WithMaxTokens(a.maxTokens),
		model.WithRetryCallback(func(ctx context.Context, err error, nextRetry time.Duration) {
			slog.WarnContext(ctx, "retrying model call", "agent", a.Name, "error", err, "next_retry", nextRetry)
		}),
	}
	if a.Toolbox.Len() > 0 {
		opts = append(opts, model.WithTools(a.Toolbox.ModelTools()...))
	}
	if a.temperature != nil {
		opts = append(opts, model.WithTemperature(*a.temperature))
	}

	result := &Result{}
	for round := 0; round <= a.maxToolRounds; round++ {
		resp, err := provider.InvokeModel(ctx, a.Model, a.SystemPrompt, messages, opts...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name, err)
		}
		result.Usage = result.Usage.Add(resp.Usage)

		calls := resp.ToolCalls()
		if len(calls) == 0 {
			result.Text = strings.TrimSpace(resp.Text())
			if result.Text == "" {
				return nil, fmt.Errorf("%s: %w", a.Name, ErrEmptyResponse)
			}
			slog.DebugContext(ctx, "agent finished", "agent", a.Name, "model", a.Model, "rounds", round+1, "tool_calls", result.ToolCalls)
			return result, nil
		}

		messages = append(messages, resp)

		results := make([]model.ContentBlock, 0, len(calls))
		for _, call := range calls {
			results = append(results, a.Toolbox.Execute(ctx, call))
			result.ToolCalls++
		}
		messages = append(messages, model.NewUserMessage(results...))
	}

	return nil, fmt.Errorf("%s: %w after %d rounds", a.Name, ErrTooManyToolRounds, a.maxToolRounds)
}
