package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

const geminiProvider = "gemini"

type GeminiProvider struct {
	invoker
	client *genai.Client
}

var _ ModelProvider = (*GeminiProvider)(nil)

func NewGeminiProvider(ctx context.Context, apiKey string, opts ...ProviderOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	providerOptions := DefaultProviderOptions(geminiProvider)
	for _, opt := range opts {
		opt(providerOptions)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if providerOptions.URL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: providerOptions.URL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiProvider{
		invoker: newInvoker(geminiProvider, providerOptions),
		client:  client,
	}, nil
}

func (p *GeminiProvider) InvokeModel(ctx context.Context, model, systemPrompt string, messages []*Message, opts ...InvokeModelOption) (*Message, error) {
	if err := validateInput(model, systemPrompt, messages); err != nil {
		return nil, err
	}

	options := DefaultInvokeModelOptions()
	for _, opt := range opts {
		opt(options)
	}

	contents, err := geminiContents(messages)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		MaxOutputTokens:   int32(options.MaxTokens),
		Tools:             geminiTools(options.Tools),
	}
	if options.Temperature != nil {
		temperature := float32(*options.Temperature)
		config.Temperature = &temperature
	}

	return p.invoke(ctx, model, options, func(ctx context.Context) (*Message, error) {
		resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
		if err != nil {
			return nil, p.parseError(ctx, err)
		}
		return geminiMessage(resp)
	})
}

func geminiContents(messages []*Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, message := range messages {
		role := genai.RoleUser
		if message.Source == MessageSourceModel {
			role = genai.RoleModel
		}

		parts := make([]*genai.Part, 0, len(message.Content))
		for _, b := range message.Content {
			switch block := b.(type) {
			case *TextBlock:
				parts = append(parts, genai.NewPartFromText(block.Text))
			case *ToolCallBlock:
				args := map[string]any{}
				if len(block.Args) > 0 {
					if err := json.Unmarshal(block.Args, &args); err != nil {
						return nil, fmt.Errorf("failed to decode arguments of tool call %s: %w", block.ID, err)
					}
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   block.ID,
						Name: block.Tool,
						Args: args,
					},
					ThoughtSignature: block.Signature,
				})
			case *ToolResultBlock:
				response := map[string]any{"output": block.Result}
				if !block.Succeeded {
					response = map[string]any{"error": block.Result}
				}
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       block.ID,
					Name:     block.Name,
					Response: response,
				}})
			}
		}

		contents = append(contents, &genai.Content{Role: string(role), Parts: parts})
	}
	return contents, nil
}

func geminiTools(tools []Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:                 tool.Name(),
			Description:          tool.Description(),
			ParametersJsonSchema: tool.Schema(),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

func geminiMessage(resp *genai.GenerateContentResponse) (*Message, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, NewProviderError(geminiProvider, ProviderErrorKindInvalidRequest, errors.New("response contains no candidates"))
	}

	var content []ContentBlock
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("failed to encode function call arguments: %w", err)
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = uuid.NewString()
			}
			content = append(content, &ToolCallBlock{
				ID:        id,
				Tool:      part.FunctionCall.Name,
				Args:      args,
				Signature: part.ThoughtSignature,
			})
		case part.Text != "" && !part.Thought:
			content = append(content, &TextBlock{Text: part.Text})
		}
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage = Usage{
			InputTokens:     int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens:    int64(resp.UsageMetadata.CandidatesTokenCount),
			CacheReadTokens: int64(resp.UsageMetadata.CachedContentTokenCount),
		}
	}

	return NewModelMessage(content, usage), nil
}

func (p *GeminiProvider) parseError(ctx context.Context, err error) error {
	if ctxErr := contextError(geminiProvider, ctx, err); ctxErr != nil {
		return ctxErr
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return geminiAPIError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return geminiAPIError(*apiErrPtr)
	}

	return NewProviderError(geminiProvider, ProviderErrorKindUnknown, err)
}

func geminiAPIError(apiErr genai.APIError) *ProviderError {
	providerErr := NewProviderError(geminiProvider, kindForStatus(apiErr.Code), apiErr)
	providerErr.StatusCode = apiErr.Code
	if apiErr.Code == http.StatusTooManyRequests {
		providerErr.RetryAfter = geminiRetryDelay(apiErr.Details)
	}
	return providerErr
}

// geminiRetryDelay reads the RetryInfo detail Google APIs attach to quota
// errors, e.g. {"@type": "...RetryInfo", "retryDelay": "17s"}.
func geminiRetryDelay(details []map[string]any) time.Duration {
	for _, detail := range details {
		raw, ok := detail["retryDelay"].(string)
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
		if seconds, err := strconv.Atoi(raw); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}
