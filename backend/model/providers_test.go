package model_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/furisto/seyal/backend/model"
	"github.com/furisto/seyal/shared/resilience"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
)

type roadmapTool struct{}

func (roadmapTool) Name() string        { return "update_roadmap" }
func (roadmapTool) Description() string { return "Saves the roadmap" }
func (roadmapTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"milestones": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"milestones"},
	}
}

func fastRetry() model.ProviderOption {
	return model.WithRetryConfig(&resilience.RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2,
	})
}

// fakeAPI answers with the queued responses in order and records every request body.
type fakeAPI struct {
	responses []fakeResponse
	calls     atomic.Int32
	bodies    chan []byte
}

type fakeResponse struct {
	status int
	body   string
}

func newFakeAPI(t *testing.T, responses ...fakeResponse) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{responses: responses, bodies: make(chan []byte, len(responses)+1)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(api.calls.Add(1)) - 1
		body, _ := io.ReadAll(r.Body)
		select {
		case api.bodies <- body:
		default:
		}

		resp := api.responses[len(api.responses)-1]
		if n < len(api.responses) {
			resp = api.responses[n]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_, _ = io.WriteString(w, resp.body)
	}))
	t.Cleanup(server.Close)
	return api, server
}

func userPrompt(text string) []*model.Message {
	return []*model.Message{model.NewUserMessage(&model.TextBlock{Text: text})}
}

func TestOpenAIProvider_ToolCall(t *testing.T) {
	t.Parallel()

	api, server := newFakeAPI(t, fakeResponse{status: http.StatusOK, body: `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-4.1-mini",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{
					"id": "call_1",
					"type": "function",
					"function": {"name": "update_roadmap", "arguments": "{\"milestones\":[\"a\",\"b\"]}"}
				}]
			}
		}],
		"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150, "prompt_tokens_details": {"cached_tokens": 20}}
	}`})

	provider, err := model.NewOpenAIProvider("sk-test", model.WithURL(server.URL+"/"), fastRetry())
	if err != nil {
		t.Fatal(err)
	}

	msg, err := provider.InvokeModel(context.Background(), "gpt-4.1-mini", "You are a planner", userPrompt("Learn Go"), model.WithTools(roadmapTool{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := msg.ToolCalls()
	if len(calls) != 1 {
		t.Fatalf("expected one tool call, got %d", len(calls))
	}
	if calls[0].ID != "call_1" || calls[0].Tool != "update_roadmap" {
		t.Errorf("unexpected tool call %+v", calls[0])
	}
	if string(calls[0].Args) != `{"milestones":["a","b"]}` {
		t.Errorf("unexpected args %s", calls[0].Args)
	}

	wantUsage := model.Usage{InputTokens: 100, OutputTokens: 30, CacheReadTokens: 20}
	if diff := cmp.Diff(wantUsage, msg.Usage); diff != "" {
		t.Errorf("usage mismatch (-want +got):\n%s", diff)
	}

	var request map[string]any
	if err := json.Unmarshal(<-api.bodies, &request); err != nil {
		t.Fatal(err)
	}
	messages := request["messages"].([]any)
	if first := messages[0].(map[string]any); first["role"] != "system" {
		t.Errorf("expected system prompt first, got %v", first)
	}
	if tools := request["tools"].([]any); len(tools) != 1 {
		t.Errorf("expected one tool in request, got %d", len(tools))
	}
}

func TestOpenAIProvider_RetriesRateLimit(t *testing.T) {
	t.Parallel()

	api, server := newFakeAPI(t,
		fakeResponse{status: http.StatusTooManyRequests, body: `{"error": {"message": "slow down", "type": "rate_limit"}}`},
		fakeResponse{status: http.StatusOK, body: `{
			"id": "chatcmpl-2", "object": "chat.completion", "created": 1, "model": "gpt-4.1-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Done"}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 1, "total_tokens": 6}
		}`},
	)

	provider, err := model.NewOpenAIProvider("sk-test", model.WithURL(server.URL+"/"), fastRetry())
	if err != nil {
		t.Fatal(err)
	}

	msg, err := provider.InvokeModel(context.Background(), "gpt-4.1-mini", "system", userPrompt("hi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Text() != "Done" {
		t.Errorf("unexpected text %q", msg.Text())
	}
	if got := api.calls.Load(); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}
}

func TestOpenAIProvider_InvalidRequestIsNotRetried(t *testing.T) {
	t.Parallel()

	api, server := newFakeAPI(t, fakeResponse{status: http.StatusBadRequest, body: `{"error": {"message": "bad", "type": "invalid_request_error"}}`})

	provider, err := model.NewOpenAIProvider("sk-test", model.WithURL(server.URL+"/"), fastRetry())
	if err != nil {
		t.Fatal(err)
	}

	_, err = provider.InvokeModel(context.Background(), "gpt-4.1-mini", "system", userPrompt("hi"))

	var providerErr *model.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if providerErr.Kind != model.ProviderErrorKindInvalidRequest || providerErr.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected provider error %+v", providerErr)
	}
	if got := api.calls.Load(); got != 1 {
		t.Errorf("expected a single call, got %d", got)
	}
}

func TestAnthropicProvider_TextAndToolUse(t *testing.T) {
	t.Parallel()

	_, server := newFakeAPI(t, fakeResponse{status: http.StatusOK, body: `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-haiku-20241022",
		"content": [
			{"type": "text", "text": "Saving your plan."},
			{"type": "tool_use", "id": "toolu_1", "name": "update_roadmap", "input": {"milestones": ["a"]}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 50, "output_tokens": 10, "cache_creation_input_tokens": 5, "cache_read_input_tokens": 7}
	}`})

	provider, err := model.NewAnthropicProvider("sk-ant-test", model.WithURL(server.URL), fastRetry())
	if err != nil {
		t.Fatal(err)
	}

	msg, err := provider.InvokeModel(context.Background(), "claude-3-5-haiku-20241022", "system", userPrompt("Learn Go"), model.WithTools(roadmapTool{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.Text() != "Saving your plan." {
		t.Errorf("unexpected text %q", msg.Text())
	}
	calls := msg.ToolCalls()
	if len(calls) != 1 || calls[0].ID != "toolu_1" {
		t.Fatalf("unexpected tool calls %+v", calls)
	}

	var args map[string][]string
	if err := json.Unmarshal(calls[0].Args, &args); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a"}, args["milestones"]); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}

	wantUsage := model.Usage{InputTokens: 50, OutputTokens: 10, CacheWriteTokens: 5, CacheReadTokens: 7}
	if diff := cmp.Diff(wantUsage, msg.Usage); diff != "" {
		t.Errorf("usage mismatch (-want +got):\n%s", diff)
	}
}

func TestGeminiProvider_FunctionCall(t *testing.T) {
	t.Parallel()

	_, server := newFakeAPI(t, fakeResponse{status: http.StatusOK, body: `{
		"candidates": [{
			"content": {
				"role": "model",
				"parts": [{"functionCall": {"name": "update_roadmap", "args": {"milestones": ["a", "b"]}}}]
			},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"promptTokenCount": 40, "candidatesTokenCount": 8, "cachedContentTokenCount": 4}
	}`})

	provider, err := model.NewGeminiProvider(context.Background(), "test-key", model.WithURL(server.URL), fastRetry())
	if err != nil {
		t.Fatal(err)
	}

	msg, err := provider.InvokeModel(context.Background(), "gemini-2.5-flash", "system", userPrompt("Learn Go"), model.WithTools(roadmapTool{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := msg.ToolCalls()
	if len(calls) != 1 || calls[0].Tool != "update_roadmap" {
		t.Fatalf("unexpected tool calls %+v", calls)
	}
	if calls[0].ID == "" {
		t.Error("expected a generated call id")
	}

	wantUsage := model.Usage{InputTokens: 40, OutputTokens: 8, CacheReadTokens: 4}
	if diff := cmp.Diff(wantUsage, msg.Usage); diff != "" {
		t.Errorf("usage mismatch (-want +got):\n%s", diff)
	}
}

func TestGeminiProvider_FunctionResponseRoundTrip(t *testing.T) {
	t.Parallel()

	api, server := newFakeAPI(t,
		fakeResponse{status: http.StatusOK, body: `{
			"candidates": [{
				"content": {
					"role": "model",
					"parts": [{"functionCall": {"id": "call-1", "name": "update_roadmap", "args": {"milestones": ["a"]}}, "thoughtSignature": "c2lnLTE="}]
				},
				"finishReason": "STOP"
			}]
		}`},
		fakeResponse{status: http.StatusOK, body: `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Saved."}]}, "finishReason": "STOP"}]
		}`},
	)

	provider, err := model.NewGeminiProvider(context.Background(), "test-key", model.WithURL(server.URL), fastRetry())
	if err != nil {
		t.Fatal(err)
	}

	history := userPrompt("Learn Go")
	first, err := provider.InvokeModel(context.Background(), "gemini-2.5-flash", "You are a planner", history, model.WithTools(roadmapTool{}))
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	<-api.bodies

	calls := first.ToolCalls()
	if len(calls) != 1 {
		t.Fatalf("expected one tool call, got %d", len(calls))
	}
	if string(calls[0].Signature) != "sig-1" {
		t.Errorf("signature = %q, want %q", calls[0].Signature, "sig-1")
	}

	history = append(history, first, model.NewUserMessage(&model.ToolResultBlock{
		ID:        calls[0].ID,
		Name:      calls[0].Tool,
		Result:    "roadmap saved",
		Succeeded: true,
	}))
	second, err := provider.InvokeModel(context.Background(), "gemini-2.5-flash", "You are a planner", history, model.WithTools(roadmapTool{}))
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.Text() != "Saved." {
		t.Errorf("Text() = %q", second.Text())
	}

	var request struct {
		SystemInstruction struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"systemInstruction"`
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text         string `json:"text"`
				FunctionCall *struct {
					Name string `json:"name"`
				} `json:"functionCall"`
				FunctionResponse *struct {
					Name     string         `json:"name"`
					Response map[string]any `json:"response"`
				} `json:"functionResponse"`
				ThoughtSignature string `json:"thoughtSignature"`
			} `json:"parts"`
		} `json:"contents"`
	}
	if err := json.Unmarshal(<-api.bodies, &request); err != nil {
		t.Fatal(err)
	}

	if len(request.SystemInstruction.Parts) == 0 || request.SystemInstruction.Parts[0].Text != "You are a planner" {
		t.Errorf("system instruction = %+v", request.SystemInstruction)
	}
	if len(request.Contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(request.Contents))
	}

	call := request.Contents[1]
	if call.Role != "model" || len(call.Parts) != 1 || call.Parts[0].FunctionCall == nil {
		t.Fatalf("unexpected model turn %+v", call)
	}
	if call.Parts[0].ThoughtSignature != "c2lnLTE=" {
		t.Errorf("echoed signature = %q, want %q", call.Parts[0].ThoughtSignature, "c2lnLTE=")
	}

	response := request.Contents[2]
	if response.Role != "user" || len(response.Parts) != 1 || response.Parts[0].FunctionResponse == nil {
		t.Fatalf("unexpected tool result turn %+v", response)
	}
	if diff := cmp.Diff(map[string]any{"output": "roadmap saved"}, response.Parts[0].FunctionResponse.Response); diff != "" {
		t.Errorf("function response mismatch (-want +got):\n%s", diff)
	}
	if response.Parts[0].FunctionResponse.Name != "update_roadmap" {
		t.Errorf("function response name = %q", response.Parts[0].FunctionResponse.Name)
	}
}

func TestProvider_OpenCircuitRejectsCalls(t *testing.T) {
	t.Parallel()

	api, server := newFakeAPI(t, fakeResponse{status: http.StatusInternalServerError, body: `{"error": {"message": "down"}}`})

	breaker := resilience.NewCircuitBreaker("openai", 1, time.Hour)
	provider, err := model.NewOpenAIProvider("sk-test",
		model.WithURL(server.URL+"/"),
		model.WithCircuitBreaker(breaker),
		model.WithRetryConfig(&resilience.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}),
		model.WithMetrics(prometheus.NewRegistry()),
	)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := provider.InvokeModel(context.Background(), "gpt-4.1-mini", "system", userPrompt("hi")); err == nil {
		t.Fatal("expected first call to fail")
	}

	_, err = provider.InvokeModel(context.Background(), "gpt-4.1-mini", "system", userPrompt("hi"))
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if got := api.calls.Load(); got != 1 {
		t.Errorf("expected the open circuit to skip the API, got %d calls", got)
	}
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	for _, kind := range []model.ProviderKind{model.ProviderKindGemini, model.ProviderKindAnthropic, model.ProviderKindOpenAI} {
		if _, err := model.NewProvider(context.Background(), kind, "key"); err != nil {
			t.Errorf("NewProvider(%s): %v", kind, err)
		}
		if _, err := model.NewProvider(context.Background(), kind, ""); err == nil {
			t.Errorf("NewProvider(%s) accepted an empty key", kind)
		}
	}

	if _, err := model.NewProvider(context.Background(), "llama", "key"); err == nil {
		t.Error("expected error for unknown provider")
	}
}
