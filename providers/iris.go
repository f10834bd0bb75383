package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/petal-labs/iris/tools"

	"github.com/petal-labs/petaladapt/adapter"
)

// Iris converts tools to iris tools.Tool values so they can be handed to an
// iris provider.
type Iris struct{}

// ConvertTool returns a tools.Tool backed by the tool's handler.
func (i *Iris) ConvertTool(tool adapter.Tool) (any, error) {
	if tool.Name == "" {
		return nil, errToolName
	}
	schema, err := json.Marshal(objectSchema(tool.Parameters))
	if err != nil {
		return nil, fmt.Errorf("encoding schema for %q: %w", tool.Name, err)
	}
	return &irisTool{tool: tool, schema: schema}, nil
}

func (i *Iris) ConvertTools(tools []adapter.Tool) ([]any, error) {
	return adapter.ConvertAll(i, tools)
}

func (i *Iris) ExecuteTool(ctx context.Context, name string, input map[string]any, tools []adapter.Tool) (any, error) {
	return adapter.Execute(ctx, name, input, tools)
}

// irisTool exposes an adapter.Tool through the iris tools.Tool interface.
type irisTool struct {
	tool   adapter.Tool
	schema json.RawMessage
}

func (t *irisTool) Name() string        { return t.tool.Name }
func (t *irisTool) Description() string { return t.tool.Description }

func (t *irisTool) Schema() tools.ToolSchema {
	return tools.ToolSchema{JSONSchema: t.schema}
}

// Call decodes the model's JSON arguments and runs the handler.
func (t *irisTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	input := map[string]any{}
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &input); err != nil {
			return nil, fmt.Errorf("decoding arguments for %q: %w", t.tool.Name, err)
		}
	}
	if t.tool.Handler == nil {
		return nil, fmt.Errorf("tool %q has no handler", t.tool.Name)
	}
	return t.tool.Handler(ctx, input)
}

// MarshalJSON renders the tool the way iris registers it.
func (t *irisTool) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Schema      json.RawMessage `json:"schema"`
	}{t.tool.Name, t.tool.Description, t.schema})
}

var _ tools.Tool = (*irisTool)(nil)

// FromIris wraps an iris tool as an adapter.Tool. Arguments are passed to
// the iris tool as JSON.
func FromIris(tool tools.Tool) (adapter.Tool, error) {
	var params map[string]any
	if raw := tool.Schema().JSONSchema; len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return adapter.Tool{}, fmt.Errorf("decoding schema for %q: %w", tool.Name(), err)
		}
	}
	return adapter.Tool{
		Name:        tool.Name(),
		Description: tool.Description(),
		Parameters:  params,
		Handler: func(ctx context.Context, input map[string]any) (any, error) {
			args, err := json.Marshal(input)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal args: %w", err)
			}
			result, err := tool.Call(ctx, args)
			if err != nil {
				return nil, fmt.Errorf("tool call failed: %w", err)
			}
			return result, nil
		},
	}, nil
}
