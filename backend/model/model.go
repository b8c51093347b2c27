package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type ProviderKind string

const (
	ProviderKindGemini    ProviderKind = "gemini"
	ProviderKindAnthropic ProviderKind = "anthropic"
	ProviderKindOpenAI    ProviderKind = "openai"
)

type Model struct {
	Name          string
	Provider      ProviderKind
	ContextWindow int64
	Pricing       ModelPricing
}

// ModelPricing is in USD per million tokens.
type ModelPricing struct {
	Input      float64
	Output     float64
	CacheWrite float64
	CacheRead  float64
}

var perMillion = decimal.NewFromInt(1_000_000)

// Cost estimates what usage costs at these prices.
func (p ModelPricing) Cost(usage Usage) decimal.Decimal {
	price := func(rate float64, tokens int64) decimal.Decimal {
		return decimal.NewFromFloat(rate).Mul(decimal.NewFromInt(tokens))
	}

	total := price(p.Input, usage.InputTokens).
		Add(price(p.Output, usage.OutputTokens)).
		Add(price(p.CacheWrite, usage.CacheWriteTokens)).
		Add(price(p.CacheRead, usage.CacheReadTokens))

	return total.Div(perMillion)
}

// RoleModels names the model each agent role talks to.
type RoleModels struct {
	Planner    string
	Tasks      string
	Reflector  string
	Summarizer string
}

// Merge returns r with empty entries filled from defaults.
func (r RoleModels) Merge(defaults RoleModels) RoleModels {
	pick := func(value, fallback string) string {
		if value != "" {
			return value
		}
		return fallback
	}
	return RoleModels{
		Planner:    pick(r.Planner, defaults.Planner),
		Tasks:      pick(r.Tasks, defaults.Tasks),
		Reflector:  pick(r.Reflector, defaults.Reflector),
		Summarizer: pick(r.Summarizer, defaults.Summarizer),
	}
}

func DefaultRoleModels(provider ProviderKind) RoleModels {
	switch provider {
	case ProviderKindAnthropic:
		return RoleModels{
			Planner:    "claude-3-5-haiku-20241022",
			Tasks:      "claude-3-5-haiku-20241022",
			Reflector:  "claude-sonnet-4-20250514",
			Summarizer: "claude-3-5-haiku-20241022",
		}
	case ProviderKindOpenAI:
		return RoleModels{
			Planner:    "gpt-4.1-mini",
			Tasks:      "gpt-4.1-mini",
			Reflector:  "gpt-4.1",
			Summarizer: "gpt-4.1-mini",
		}
	default:
		return RoleModels{
			Planner:    "gemini-2.5-flash",
			Tasks:      "gemini-2.5-flash",
			Reflector:  "gemini-2.5-pro",
			Summarizer: "gemini-2.5-flash",
		}
	}
}

func SupportedModels(provider ProviderKind) []Model {
	switch provider {
	case ProviderKindGemini:
		return SupportedGeminiModels()
	case ProviderKindAnthropic:
		return SupportedAnthropicModels()
	case ProviderKindOpenAI:
		return SupportedOpenAIModels()
	}

	return nil
}

func LookupModel(name string) (Model, error) {
	for _, provider := range []ProviderKind{ProviderKindGemini, ProviderKindAnthropic, ProviderKindOpenAI} {
		for _, m := range SupportedModels(provider) {
			if m.Name == name {
				return m, nil
			}
		}
	}
	return Model{}, fmt.Errorf("unknown model %q", name)
}

func SupportedGeminiModels() []Model {
	return []Model{
		{
			Name:          "gemini-2.5-pro",
			Provider:      ProviderKindGemini,
			ContextWindow: 1048576,
			Pricing: ModelPricing{
				Input:     1.25,
				Output:    10.0,
				CacheRead: 0.31,
			},
		},
		{
			Name:          "gemini-2.5-flash",
			Provider:      ProviderKindGemini,
			ContextWindow: 1048576,
			Pricing: ModelPricing{
				Input:     0.3,
				Output:    2.5,
				CacheRead: 0.075,
			},
		},
		{
			Name:          "gemini-2.0-flash",
			Provider:      ProviderKindGemini,
			ContextWindow: 1048576,
			Pricing: ModelPricing{
				Input:     0.1,
				Output:    0.4,
				CacheRead: 0.025,
			},
		},
	}
}

func SupportedAnthropicModels() []Model {
	return []Model{
		{
			Name:          "claude-sonnet-4-20250514",
			Provider:      ProviderKindAnthropic,
			ContextWindow: 200000,
			Pricing: ModelPricing{
				Input:      3.0,
				Output:     15.0,
				CacheWrite: 3.75,
				CacheRead:  0.3,
			},
		},
		{
			Name:          "claude-opus-4-1-20250805",
			Provider:      ProviderKindAnthropic,
			ContextWindow: 200000,
			Pricing: ModelPricing{
				Input:      15.0,
				Output:     75.0,
				CacheWrite: 18.75,
				CacheRead:  1.5,
			},
		},
		{
			Name:          "claude-3-5-haiku-20241022",
			Provider:      ProviderKindAnthropic,
			ContextWindow: 200000,
			Pricing: ModelPricing{
				Input:      0.8,
				Output:     4.0,
				CacheWrite: 1.0,
				CacheRead:  0.08,
			},
		},
	}
}

func SupportedOpenAIModels() []Model {
	return []Model{
		{
			Name:          "gpt-4.1",
			Provider:      ProviderKindOpenAI,
			ContextWindow: 1047576,
			Pricing: ModelPricing{
				Input:     2.0,
				Output:    8.0,
				CacheRead: 0.5,
			},
		},
		{
			Name:          "gpt-4.1-mini",
			Provider:      ProviderKindOpenAI,
			ContextWindow: 1047576,
			Pricing: ModelPricing{
				Input:     0.4,
				Output:    1.6,
				CacheRead: 0.1,
			},
		},
		{
			Name:          "gpt-4o",
			Provider:      ProviderKindOpenAI,
			ContextWindow: 128000,
			Pricing: ModelPricing{
				Input:     2.5,
				Output:    10.0,
				CacheRead: 1.25,
			},
		},
		{
			Name:          "o4-mini",
			Provider:      ProviderKindOpenAI,
			ContextWindow: 200000,
			Pricing: ModelPricing{
				Input:     1.1,
				Output:    4.4,
				CacheRead: 0.275,
			},
		},
	}
}

// EstimateCost prices usage for a model. Unknown models cost zero.
func EstimateCost(modelName string, usage Usage) decimal.Decimal {
	m, err := LookupModel(modelName)
	if err != nil {
		return decimal.Zero
	}
	return m.Pricing.Cost(usage)
}
