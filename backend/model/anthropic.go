package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicProvider = "anthropic"

type AnthropicProvider struct {
	invoker
	client anthropic.Client
}

var _ ModelProvider = (*AnthropicProvider)(nil)

func NewAnthropicProvider(apiKey string, opts ...ProviderOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	providerOptions := DefaultProviderOptions(anthropicProvider)
	for _, opt := range opts {
		opt(providerOptions)
	}

	clientOptions := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if providerOptions.URL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(providerOptions.URL))
	}

	return &AnthropicProvider{
		invoker: newInvoker(anthropicProvider, providerOptions),
		client:  anthropic.NewClient(clientOptions...),
	}, nil
}

func (p *AnthropicProvider) InvokeModel(ctx context.Context, model, systemPrompt string, messages []*Message, opts ...InvokeModelOption) (*Message, error) {
	if err := validateInput(model, systemPrompt, messages); err != nil {
		return nil, err
	}

	options := DefaultInvokeModelOptions()
	for _, opt := range opts {
		opt(options)
	}

	request := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: options.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: anthropicMessages(messages),
		Tools:    anthropicTools(options.Tools),
	}
	if options.Temperature != nil {
		request.Temperature = anthropic.Float(*options.Temperature)
	}

	return p.invoke(ctx, model, options, func(ctx context.Context) (*Message, error) {
		resp, err := p.client.Messages.New(ctx, request)
		if err != nil {
			return nil, p.parseError(ctx, err)
		}
		return anthropicMessage(resp), nil
	})
}

func anthropicMessages(messages []*Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, message := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(message.Content))
		for _, b := range message.Content {
			switch block := b.(type) {
			case *TextBlock:
				blocks = append(blocks, anthropic.NewTextBlock(block.Text))
			case *ToolCallBlock:
				args := block.Args
				if len(args) == 0 {
					args = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(block.ID, args, block.Tool))
			case *ToolResultBlock:
				blocks = append(blocks, anthropic.NewToolResultBlock(block.ID, block.Result, !block.Succeeded))
			}
		}

		if message.Source == MessageSourceModel {
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		} else {
			result = append(result, anthropic.NewUserMessage(blocks...))
		}
	}
	return result
}

func anthropicTools(tools []Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		properties, required := schemaParts(tool.Schema())
		result = append(result, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name(),
				Description: anthropic.String(tool.Description()),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: properties,
					Required:   required,
				},
			},
		})
	}
	return result
}

func anthropicMessage(resp *anthropic.Message) *Message {
	content := make([]ContentBlock, 0, len(resp.Content))
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content = append(content, &TextBlock{Text: block.Text})
		case "tool_use":
			content = append(content, &ToolCallBlock{
				ID:   block.ID,
				Tool: block.Name,
				Args: block.Input,
			})
		}
	}

	return NewModelMessage(content, Usage{
		InputTokens:      resp.Usage.InputTokens,
		OutputTokens:     resp.Usage.OutputTokens,
		CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
		CacheReadTokens:  resp.Usage.CacheReadInputTokens,
	})
}

func (p *AnthropicProvider) parseError(ctx context.Context, err error) error {
	if ctxErr := contextError(anthropicProvider, ctx, err); ctxErr != nil {
		return ctxErr
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return NewProviderError(anthropicProvider, ProviderErrorKindUnknown, err)
	}

	providerErr := NewProviderError(anthropicProvider, kindForStatus(apiErr.StatusCode), err)
	providerErr.StatusCode = apiErr.StatusCode
	if apiErr.Response != nil {
		if retryAfter := apiErr.Response.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				providerErr.RetryAfter = time.Duration(seconds) * time.Second
			}
		}
	}
	if apiErr.StatusCode == 529 && providerErr.RetryAfter == 0 {
		providerErr.RetryAfter = 10 * time.Second
	}

	return providerErr
}
