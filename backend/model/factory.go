package model

import (
	"context"
	"fmt"
)

// NewProvider builds the provider of the given kind.
func NewProvider(ctx context.Context, kind ProviderKind, apiKey string, opts ...ProviderOption) (ModelProvider, error) {
	switch kind {
	case ProviderKindGemini, "":
		return NewGeminiProvider(ctx, apiKey, opts...)
	case ProviderKindAnthropic:
		return NewAnthropicProvider(apiKey, opts...)
	case ProviderKindOpenAI:
		return NewOpenAIProvider(apiKey, opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q", kind)
	}
}
