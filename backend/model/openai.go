package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const openAIProvider = "openai"

type OpenAIProvider struct {
	invoker
	client openai.Client
}

var _ ModelProvider = (*OpenAIProvider)(nil)

func NewOpenAIProvider(apiKey string, opts ...ProviderOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	providerOptions := DefaultProviderOptions(openAIProvider)
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

	return &OpenAIProvider{
		invoker: newInvoker(openAIProvider, providerOptions),
		client:  openai.NewClient(clientOptions...),
	}, nil
}

func (p *OpenAIProvider) InvokeModel(ctx context.Context, model, systemPrompt string, messages []*Message, opts ...InvokeModelOption) (*Message, error) {
	if err := validateInput(model, systemPrompt, messages); err != nil {
		return nil, err
	}

	options := DefaultInvokeModelOptions()
	for _, opt := range opts {
		opt(options)
	}

	request := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(model),
		Messages:            openAIMessages(systemPrompt, messages),
		Tools:               openAITools(options.Tools),
		MaxCompletionTokens: openai.Int(options.MaxTokens),
	}
	if options.Temperature != nil {
		request.Temperature = openai.Float(*options.Temperature)
	}

	return p.invoke(ctx, model, options, func(ctx context.Context) (*Message, error) {
		resp, err := p.client.Chat.Completions.New(ctx, request)
		if err != nil {
			return nil, p.parseError(ctx, err)
		}
		return openAIMessage(resp)
	})
}

func openAIMessages(systemPrompt string, messages []*Message) []openai.ChatCompletionMessageParamUnion {
	result := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(systemPrompt)}

	for _, message := range messages {
		if message.Source == MessageSourceModel {
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if text := message.Text(); text != "" {
				assistant.Content.OfString = openai.String(text)
			}
			for _, call := range message.ToolCalls() {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Tool,
						Arguments: string(call.Args),
					},
				})
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
			continue
		}

		for _, b := range message.Content {
			switch block := b.(type) {
			case *TextBlock:
				result = append(result, openai.UserMessage(block.Text))
			case *ToolResultBlock:
				result = append(result, openai.ToolMessage(block.Result, block.ID))
			}
		}
	}

	return result
}

func openAITools(tools []Tool) []openai.ChatCompletionToolParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, tool := range tools {
		result = append(result, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        tool.Name(),
				Description: openai.String(tool.Description()),
				Parameters:  shared.FunctionParameters(tool.Schema()),
			},
		})
	}
	return result
}

func openAIMessage(resp *openai.ChatCompletion) (*Message, error) {
	if len(resp.Choices) == 0 {
		return nil, NewProviderError(openAIProvider, ProviderErrorKindInvalidRequest, errors.New("response contains no choices"))
	}

	choice := resp.Choices[0].Message
	var content []ContentBlock
	if choice.Content != "" {
		content = append(content, &TextBlock{Text: choice.Content})
	}
	for _, call := range choice.ToolCalls {
		args := json.RawMessage(call.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		content = append(content, &ToolCallBlock{
			ID:   call.ID,
			Tool: call.Function.Name,
			Args: args,
		})
	}

	cached := resp.Usage.PromptTokensDetails.CachedTokens
	return NewModelMessage(content, Usage{
		InputTokens:     resp.Usage.PromptTokens - cached,
		OutputTokens:    resp.Usage.CompletionTokens,
		CacheReadTokens: cached,
	}), nil
}

func (p *OpenAIProvider) parseError(ctx context.Context, err error) error {
	if ctxErr := contextError(openAIProvider, ctx, err); ctxErr != nil {
		return ctxErr
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return NewProviderError(openAIProvider, ProviderErrorKindUnknown, err)
	}

	providerErr := NewProviderError(openAIProvider, kindForStatus(apiErr.StatusCode), err)
	providerErr.StatusCode = apiErr.StatusCode
	if apiErr.Response != nil {
		if retryAfter := apiErr.Response.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				providerErr.RetryAfter = time.Duration(seconds) * time.Second
			}
		}
	}

	return providerErr
}
