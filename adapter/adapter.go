package adapter

import (
	"context"
	"fmt"
	"strings"
)

// Handler invokes a tool with structured input.
type Handler func(ctx context.Context, input map[string]any) (any, error)

// Tool is the provider-neutral description of one invocable tool. It is owned
// by the tool system; adapters only read it.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Handler     Handler        `json:"-"`
}

// Adapter converts tools into one provider's tool-calling format and executes
// tool calls coming back from that provider.
type Adapter interface {
	// ConvertTool produces one provider-specific tool declaration.
	ConvertTool(tool Tool) (any, error)
	// ConvertTools maps ConvertTool over tools, preserving order.
	ConvertTools(tools []Tool) ([]any, error)
	// ExecuteTool runs the tool named name from tools with input.
	ExecuteTool(ctx context.Context, name string, input map[string]any, tools []Tool) (any, error)
}

// Converter is the single-tool half of the Adapter contract.
type Converter interface {
	ConvertTool(tool Tool) (any, error)
}

// Configurable is implemented by adapters that accept per-instance config
// when built through default construction.
type Configurable interface {
	Configure(config map[string]any) error
}

// ConvertAll maps conv.ConvertTool over tools in order. Empty input yields an
// empty, non-nil slice.
func ConvertAll(conv Converter, tools []Tool) ([]any, error) {
	out := make([]any, 0, len(tools))
	for i, t := range tools {
		converted, err := conv.ConvertTool(t)
		if err != nil {
			return nil, fmt.Errorf("converting tool %d (%q): %w", i, t.Name, err)
		}
		out = append(out, converted)
	}
	return out, nil
}

// Execute looks name up among tools by exact match and invokes its handler.
// The handler's result is returned unchanged.
func Execute(ctx context.Context, name string, input map[string]any, tools []Tool) (any, error) {
	for _, t := range tools {
		if t.Name != name {
			continue
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tool %q has no handler", name)
		}
		return t.Handler(ctx, input)
	}
	return nil, newError(CodeToolNotFound, name, fmt.Sprintf("tool %q not found", name), nil)
}

// RequiredParameters returns the "required" list of a JSON-schema object.
func RequiredParameters(schema map[string]any) []string {
	switch v := schema["required"].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Properties returns the "properties" map of a JSON-schema object, or nil.
func Properties(schema map[string]any) map[string]any {
	props, _ := schema["properties"].(map[string]any)
	return props
}
