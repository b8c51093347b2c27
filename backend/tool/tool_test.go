package tool_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/furisto/seyal/backend/memory"
	"github.com/furisto/seyal/backend/model"
	"github.com/furisto/seyal/backend/tool"
	"github.com/furisto/seyal/shared"
	"github.com/google/go-cmp/cmp"
)

func TestNewTool_Schema(t *testing.T) {
	t.Parallel()

	roadmap := tool.NewUpdateRoadmapTool(nil)

	raw, err := json.Marshal(roadmap.Schema())
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}

	want := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"milestones": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "The ordered milestones that lead to the goal",
			},
		},
		"required": []any{"milestones"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("schema mismatch (-want +got):\n%s", diff)
	}

	history := tool.NewRetrieveHistoryTool(nil)
	if props := history.Schema()["properties"].(map[string]any); len(props) != 0 {
		t.Errorf("expected no properties, got %v", props)
	}
	if !history.Readonly() {
		t.Error("expected history tool to be readonly")
	}
}

func TestMemoryTools(t *testing.T) {
	t.Parallel()

	bank := memory.NewMemoryBank(memory.NewMemoryStore())
	toolbox := tool.NewToolbox(tool.NewUpdateRoadmapTool(bank), tool.NewRetrieveHistoryTool(bank))
	ctx := tool.ContextWithSession(context.Background(), "s1")

	result := toolbox.Execute(ctx, &model.ToolCallBlock{
		ID:   "call_1",
		Tool: tool.UpdateRoadmapToolName,
		Args: json.RawMessage(`{"milestones": ["Learn basics", "Build project"]}`),
	})
	want := &model.ToolResultBlock{ID: "call_1", Name: "update_roadmap", Result: memory.RoadmapSavedMessage, Succeeded: true}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	result = toolbox.Execute(ctx, &model.ToolCallBlock{ID: "call_2", Tool: tool.RetrieveHistoryToolName})
	if !result.Succeeded {
		t.Fatalf("history call failed: %s", result.Result)
	}

	var history struct {
		CurrentPlan []string `json:"current_plan"`
	}
	if err := json.Unmarshal([]byte(result.Result), &history); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Learn basics", "Build project"}, history.CurrentPlan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestToolbox_Failures(t *testing.T) {
	t.Parallel()

	bank := memory.NewMemoryBank(memory.NewMemoryStore())
	toolbox := tool.NewToolbox(tool.NewUpdateRoadmapTool(bank))

	tests := []struct {
		name string
		ctx  context.Context
		call *model.ToolCallBlock
	}{
		{
			name: "unknown tool",
			ctx:  tool.ContextWithSession(context.Background(), "s1"),
			call: &model.ToolCallBlock{ID: "1", Tool: "delete_everything"},
		},
		{
			name: "malformed arguments",
			ctx:  tool.ContextWithSession(context.Background(), "s1"),
			call: &model.ToolCallBlock{ID: "2", Tool: tool.UpdateRoadmapToolName, Args: json.RawMessage(`{"milestones": "oops"}`)},
		},
		{
			name: "empty roadmap",
			ctx:  tool.ContextWithSession(context.Background(), "s1"),
			call: &model.ToolCallBlock{ID: "3", Tool: tool.UpdateRoadmapToolName, Args: json.RawMessage(`{"milestones": []}`)},
		},
		{
			name: "missing session",
			ctx:  context.Background(),
			call: &model.ToolCallBlock{ID: "4", Tool: tool.UpdateRoadmapToolName, Args: json.RawMessage(`{"milestones": ["a"]}`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := toolbox.Execute(tt.ctx, tt.call)
			if result.Succeeded {
				t.Errorf("expected failure, got %+v", result)
			}
			if result.ID != tt.call.ID || result.Result == "" {
				t.Errorf("unexpected result %+v", result)
			}
		})
	}
}

func TestNewTool_HandlerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	failing := tool.NewTool("fail", "always fails", func(ctx context.Context, input struct{}) (string, error) {
		return "", boom
	})

	_, err := failing.Run(context.Background(), nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected handler error, got %v", err)
	}
	if source := shared.SourceOf(err); source != shared.ErrorSourceTool {
		t.Errorf("source = %s, want tool", source)
	}

	_, err = failing.Run(context.Background(), json.RawMessage(`[1, 2]`))
	if source := shared.SourceOf(err); source != shared.ErrorSourceAgent {
		t.Errorf("source of malformed arguments = %s, want agent", source)
	}

	var _ model.Tool = failing
}
