package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/furisto/seyal/shared/resilience"
	"github.com/prometheus/client_golang/prometheus"
)

// Tool is the part of a tool a provider needs to advertise it to a model.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
}

type InvokeModelOptions struct {
	Tools         []Tool
	MaxTokens     int64
	Temperature   *float64
	RetryCallback func(ctx context.Context, err error, nextRetry time.Duration)
}

type InvokeModelOption func(*InvokeModelOptions)

func WithTools(tools ...Tool) InvokeModelOption {
	return func(o *InvokeModelOptions) {
		o.Tools = tools
	}
}

func WithMaxTokens(maxTokens int64) InvokeModelOption {
	return func(o *InvokeModelOptions) {
		o.MaxTokens = maxTokens
	}
}

func WithTemperature(temperature float64) InvokeModelOption {
	return func(o *InvokeModelOptions) {
		o.Temperature = &temperature
	}
}

func WithRetryCallback(handler func(ctx context.Context, err error, nextRetry time.Duration)) InvokeModelOption {
	return func(o *InvokeModelOptions) {
		o.RetryCallback = handler
	}
}

func DefaultInvokeModelOptions() *InvokeModelOptions {
	return &InvokeModelOptions{
		MaxTokens: 8192,
	}
}

type ProviderOptions struct {
	URL            string
	RetryConfig    *resilience.RetryConfig
	RetryHooks     []resilience.RetryHook
	CircuitBreaker *resilience.CircuitBreaker
	Metrics        prometheus.Registerer
}

type ProviderOption func(*ProviderOptions)

func WithURL(url string) ProviderOption {
	return func(options *ProviderOptions) {
		options.URL = url
	}
}

func WithRetryConfig(retryConfig *resilience.RetryConfig) ProviderOption {
	return func(options *ProviderOptions) {
		options.RetryConfig = retryConfig
	}
}

func WithRetryHooks(hooks ...resilience.RetryHook) ProviderOption {
	return func(options *ProviderOptions) {
		options.RetryHooks = append(options.RetryHooks, hooks...)
	}
}

func WithCircuitBreaker(circuitBreaker *resilience.CircuitBreaker) ProviderOption {
	return func(options *ProviderOptions) {
		options.CircuitBreaker = circuitBreaker
	}
}

func WithMetrics(metrics prometheus.Registerer) ProviderOption {
	return func(o *ProviderOptions) {
		o.Metrics = metrics
	}
}

func DefaultProviderOptions(name string) *ProviderOptions {
	return &ProviderOptions{
		RetryConfig:    resilience.DefaultRetryConfig(),
		CircuitBreaker: resilience.NewCircuitBreaker(name, 5, 10*time.Second),
		Metrics:        prometheus.NewRegistry(),
	}
}

//go:generate mockgen -destination=mocks/model_provider_mock.go -package=mocks . ModelProvider
type ModelProvider interface {
	InvokeModel(ctx context.Context, model, systemPrompt string, messages []*Message, opts ...InvokeModelOption) (*Message, error)
}

type MessageSource string

const (
	MessageSourceUser  MessageSource = "user"
	MessageSourceModel MessageSource = "model"
)

type Message struct {
	Source  MessageSource  `json:"source"`
	Content []ContentBlock `json:"content"`
	Usage   Usage          `json:"usage"`
}

func NewUserMessage(content ...ContentBlock) *Message {
	return &Message{
		Source:  MessageSourceUser,
		Content: content,
	}
}

func NewModelMessage(content []ContentBlock, usage Usage) *Message {
	return &Message{
		Source:  MessageSourceModel,
		Content: content,
		Usage:   usage,
	}
}

// Text joins every text block of the message.
func (m *Message) Text() string {
	var parts []string
	for _, block := range m.Content {
		if text, ok := block.(*TextBlock); ok && text.Text != "" {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func (m *Message) ToolCalls() []*ToolCallBlock {
	var calls []*ToolCallBlock
	for _, block := range m.Content {
		if call, ok := block.(*ToolCallBlock); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

type ContentBlockType string

const (
	ContentBlockTypeText        ContentBlockType = "text"
	ContentBlockTypeToolRequest ContentBlockType = "tool_request"
	ContentBlockTypeToolResult  ContentBlockType = "tool_result"
)

type ContentBlock interface {
	Type() ContentBlockType
}

type TextBlock struct {
	Text string
}

func (t *TextBlock) Type() ContentBlockType {
	return ContentBlockTypeText
}

type ToolCallBlock struct {
	ID   string          `json:"id"`
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`

	// Signature is the opaque reasoning state Gemini attaches to a call. It
	// has to be echoed back with the call on the next turn.
	Signature []byte `json:"signature,omitempty"`
}

func (t *ToolCallBlock) Type() ContentBlockType {
	return ContentBlockTypeToolRequest
}

type ToolResultBlock struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Result    string `json:"result"`
	Succeeded bool   `json:"succeeded"`
}

func (t *ToolResultBlock) Type() ContentBlockType {
	return ContentBlockTypeToolResult
}

type Usage struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	CacheWriteTokens int64 `json:"cache_write_tokens"`
	CacheReadTokens  int64 `json:"cache_read_tokens"`
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:      u.InputTokens + other.InputTokens,
		OutputTokens:     u.OutputTokens + other.OutputTokens,
		CacheWriteTokens: u.CacheWriteTokens + other.CacheWriteTokens,
		CacheReadTokens:  u.CacheReadTokens + other.CacheReadTokens,
	}
}

type ProviderError struct {
	Provider   string
	StatusCode int
	RetryAfter time.Duration
	Err        error
	Kind       ProviderErrorKind
}

func NewProviderError(provider string, kind ProviderErrorKind, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     kind,
		Err:      err,
	}
}

var providerErrorMessages = map[ProviderErrorKind]string{
	ProviderErrorKindInvalidRequest:    "Invalid request format or content",
	ProviderErrorKindAuthentication:    "Invalid or missing API key",
	ProviderErrorKindRateLimitExceeded: "Rate limit exceeded",
	ProviderErrorKindOverloaded:        "API temporarily overloaded",
	ProviderErrorKindInternal:          "Internal server error",
	ProviderErrorKindTimeout:           "Request timeout",
	ProviderErrorKindCanceled:          "Request canceled",
}

// Message is a short description of the failure meant for users.
func (pe *ProviderError) Message() string {
	msg, ok := providerErrorMessages[pe.Kind]
	if !ok {
		return "Unknown error"
	}
	if pe.Kind == ProviderErrorKindRateLimitExceeded && pe.RetryAfter > 0 {
		return fmt.Sprintf("%s, retry after %s", msg, pe.RetryAfter)
	}
	return msg
}

// Retryable reports whether the call may succeed when repeated and how long
// the provider asked to wait.
func (pe *ProviderError) Retryable() (bool, time.Duration) {
	switch pe.Kind {
	case ProviderErrorKindRateLimitExceeded, ProviderErrorKindOverloaded, ProviderErrorKindInternal, ProviderErrorKindTimeout:
		return true, pe.RetryAfter
	default:
		return false, 0
	}
}

func (pe *ProviderError) Error() string {
	if pe.Err != nil {
		return fmt.Sprintf("%s: %s: %s", pe.Provider, pe.Message(), pe.Err.Error())
	}
	return fmt.Sprintf("%s: %s", pe.Provider, pe.Message())
}

func (pe *ProviderError) Unwrap() error {
	return pe.Err
}

type ProviderErrorKind string

const (
	ProviderErrorKindInvalidRequest    ProviderErrorKind = "invalid_request"
	ProviderErrorKindAuthentication    ProviderErrorKind = "authentication"
	ProviderErrorKindRateLimitExceeded ProviderErrorKind = "rate_limit_exceeded"
	ProviderErrorKindOverloaded        ProviderErrorKind = "overloaded"
	ProviderErrorKindInternal          ProviderErrorKind = "internal"
	ProviderErrorKindTimeout           ProviderErrorKind = "timeout"
	ProviderErrorKindCanceled          ProviderErrorKind = "canceled"
	ProviderErrorKindUnknown           ProviderErrorKind = "unknown"
)

// kindForStatus maps an HTTP status returned by a provider API.
func kindForStatus(status int) ProviderErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return ProviderErrorKindInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return ProviderErrorKindAuthentication
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ProviderErrorKindTimeout
	case http.StatusTooManyRequests:
		return ProviderErrorKindRateLimitExceeded
	case http.StatusServiceUnavailable, 529:
		return ProviderErrorKindOverloaded
	}
	if status >= http.StatusInternalServerError {
		return ProviderErrorKindInternal
	}
	return ProviderErrorKindUnknown
}

func validateInput(model, systemPrompt string, messages []*Message) error {
	switch {
	case model == "":
		return errors.New("model is required")
	case systemPrompt == "":
		return errors.New("system prompt is required")
	case len(messages) == 0:
		return errors.New("at least one message is required")
	}
	return nil
}

// schemaParts splits a JSON schema object into its properties and the list of
// required property names.
func schemaParts(schema map[string]any) (map[string]any, []string) {
	properties, _ := schema["properties"].(map[string]any)
	if properties == nil {
		properties = map[string]any{}
	}

	var required []string
	switch r := schema["required"].(type) {
	case []string:
		required = r
	case []any:
		for _, name := range r {
			if s, ok := name.(string); ok {
				required = append(required, s)
			}
		}
	}
	return properties, required
}
