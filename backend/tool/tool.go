package tool

import (
	"context"
	"encoding/json"

	"github.com/furisto/seyal/shared"
	"github.com/invopop/jsonschema"
)

type ToolHandler[T any] func(ctx context.Context, input T) (string, error)

type ToolOptions struct {
	Readonly bool
}

func DefaultToolOptions() *ToolOptions {
	return &ToolOptions{
		Readonly: false,
	}
}

type ToolOption func(*ToolOptions)

func WithReadonly(readonly bool) ToolOption {
	return func(o *ToolOptions) {
		o.Readonly = readonly
	}
}

// Tool is a function a model may call. It satisfies model.Tool.
type Tool struct {
	name        string
	description string
	schema      map[string]any
	readonly    bool
	handler     func(ctx context.Context, input json.RawMessage) (string, error)
}

func (t *Tool) Name() string {
	return t.name
}

func (t *Tool) Description() string {
	return t.description
}

func (t *Tool) Schema() map[string]any {
	return t.schema
}

func (t *Tool) Readonly() bool {
	return t.readonly
}

// Run decodes the model supplied arguments and calls the handler.
func (t *Tool) Run(ctx context.Context, input json.RawMessage) (string, error) {
	return t.handler(ctx, input)
}

func NewTool[T any](name, description string, handler ToolHandler[T], opts ...ToolOption) *Tool {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	options := DefaultToolOptions()
	for _, opt := range opts {
		opt(options)
	}

	var toolInput T
	inputSchema := reflector.Reflect(toolInput)

	genericToolHandler := func(ctx context.Context, input json.RawMessage) (string, error) {
		var toolInput T
		if len(input) > 0 && string(input) != "null" {
			if err := json.Unmarshal(input, &toolInput); err != nil {
				return "", shared.Wrap(shared.ErrorSourceAgent, err, "invalid arguments for %s", name)
			}
		}

		output, err := handler(ctx, toolInput)
		if err != nil {
			return "", shared.Wrap(shared.ErrorSourceTool, err, "")
		}
		return output, nil
	}

	return &Tool{
		name:        name,
		description: description,
		schema:      parameterSchema(inputSchema),
		readonly:    options.Readonly,
		handler:     genericToolHandler,
	}
}

// parameterSchema reduces a reflected schema to the plain object schema the
// provider APIs accept.
func parameterSchema(inputSchema *jsonschema.Schema) map[string]any {
	properties := map[string]any{}
	if inputSchema.Properties != nil {
		if raw, err := json.Marshal(inputSchema.Properties); err == nil {
			_ = json.Unmarshal(raw, &properties)
		}
	}

	paramSchema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(inputSchema.Required) > 0 {
		paramSchema["required"] = inputSchema.Required
	}

	return paramSchema
}
