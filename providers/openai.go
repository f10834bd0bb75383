package providers

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/petal-labs/petaladapt/adapter"
)

// OpenAI converts tools to go-openai function tools.
type OpenAI struct {
	// Strict enables structured-output schema adherence.
	Strict bool `mapstructure:"strict"`
}

// Configure implements adapter.Configurable.
func (o *OpenAI) Configure(config map[string]any) error {
	return decodeConfig(config, o)
}

// ConvertTool returns an openai.Tool.
func (o *OpenAI) ConvertTool(tool adapter.Tool) (any, error) {
	if tool.Name == "" {
		return nil, errToolName
	}
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Strict:      o.Strict,
			Parameters:  objectSchema(tool.Parameters),
		},
	}, nil
}

func (o *OpenAI) ConvertTools(tools []adapter.Tool) ([]any, error) {
	return adapter.ConvertAll(o, tools)
}

// Tools converts tools into the slice a ChatCompletionRequest takes.
func (o *OpenAI) Tools(tools []adapter.Tool) ([]openai.Tool, error) {
	converted, err := o.ConvertTools(tools)
	if err != nil {
		return nil, err
	}
	out := make([]openai.Tool, 0, len(converted))
	for _, c := range converted {
		out = append(out, c.(openai.Tool))
	}
	return out, nil
}

func (o *OpenAI) ExecuteTool(ctx context.Context, name string, input map[string]any, tools []adapter.Tool) (any, error) {
	return adapter.Execute(ctx, name, input, tools)
}
