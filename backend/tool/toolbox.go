package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/furisto/seyal/backend/model"
	"github.com/furisto/seyal/shared"
	"github.com/furisto/seyal/shared/conv"
)

var ErrUnknownTool = errors.New("unknown tool")

type Toolbox struct {
	tools map[string]*Tool
	order []string
}

func NewToolbox(tools ...*Tool) *Toolbox {
	toolbox := &Toolbox{
		tools: map[string]*Tool{},
	}
	for _, tool := range tools {
		toolbox.Add(tool)
	}
	return toolbox
}

func (t *Toolbox) Add(tool *Tool) {
	if _, ok := t.tools[tool.Name()]; !ok {
		t.order = append(t.order, tool.Name())
	}
	t.tools[tool.Name()] = tool
}

func (t *Toolbox) Get(name string) (*Tool, bool) {
	tool, ok := t.tools[name]
	return tool, ok
}

func (t *Toolbox) Len() int {
	return len(t.order)
}

// ModelTools lists the tools in registration order for a provider request.
func (t *Toolbox) ModelTools() []model.Tool {
	tools := make([]model.Tool, 0, len(t.order))
	for _, name := range t.order {
		tools = append(tools, t.tools[name])
	}
	return tools
}

// Execute runs the requested tool. Tool failures are reported back to the
// model as unsuccessful results instead of aborting the conversation.
func (t *Toolbox) Execute(ctx context.Context, call *model.ToolCallBlock) *model.ToolResultBlock {
	result := &model.ToolResultBlock{
		ID:   call.ID,
		Name: call.Tool,
	}

	tool, ok := t.tools[call.Tool]
	if !ok {
		result.Result = fmt.Sprintf("%s: %s", ErrUnknownTool, call.Tool)
		return result
	}

	output, err := tool.Run(ctx, json.RawMessage(call.Args))
	if err != nil {
		slog.WarnContext(ctx, "tool call failed", "tool", call.Tool, "source", shared.SourceOf(err), "error", err)
		result.Result = conv.ErrorToString(err)
		return result
	}

	slog.DebugContext(ctx, "tool call succeeded", "tool", call.Tool)
	result.Result = output
	result.Succeeded = true
	return result
}
