package providers

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petal-labs/petaladapt/adapter"
)

// Anthropic converts tools to Messages API tool params.
type Anthropic struct{}

// ConvertTool returns an anthropic.ToolUnionParam holding a custom tool.
// Schema keys other than type, properties and required are carried as extra
// fields.
func (a *Anthropic) ConvertTool(tool adapter.Tool) (any, error) {
	if tool.Name == "" {
		return nil, errToolName
	}
	schema := objectSchema(tool.Parameters)
	input := anthropic.ToolInputSchemaParam{
		Required: adapter.RequiredParameters(schema),
	}
	if props := adapter.Properties(schema); props != nil {
		input.Properties = props
	}
	for k, v := range schema {
		switch k {
		case "type", "properties", "required":
			continue
		}
		if input.ExtraFields == nil {
			input.ExtraFields = make(map[string]any)
		}
		input.ExtraFields[k] = v
	}

	param := anthropic.ToolParam{
		Name:        tool.Name,
		InputSchema: input,
	}
	if tool.Description != "" {
		param.Description = anthropic.String(tool.Description)
	}
	return anthropic.ToolUnionParam{OfTool: &param}, nil
}

func (a *Anthropic) ConvertTools(tools []adapter.Tool) ([]any, error) {
	return adapter.ConvertAll(a, tools)
}

func (a *Anthropic) ExecuteTool(ctx context.Context, name string, input map[string]any, tools []adapter.Tool) (any, error) {
	return adapter.Execute(ctx, name, input, tools)
}
