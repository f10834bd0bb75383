package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/petal-labs/petaladapt/adapter"
)

var geminiTypes = map[string]genai.Type{
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
	"object":  genai.TypeObject,
}

// Gemini converts tools to genai function declarations. JSON-schema
// parameters are translated into genai.Schema trees.
type Gemini struct{}

// ConvertTool returns a *genai.FunctionDeclaration.
func (g *Gemini) ConvertTool(tool adapter.Tool) (any, error) {
	if tool.Name == "" {
		return nil, errToolName
	}
	decl := &genai.FunctionDeclaration{
		Name:        tool.Name,
		Description: tool.Description,
	}
	if len(tool.Parameters) > 0 {
		schema, err := geminiSchema(tool.Parameters, "parameters")
		if err != nil {
			return nil, err
		}
		decl.Parameters = schema
	}
	return decl, nil
}

func (g *Gemini) ConvertTools(tools []adapter.Tool) ([]any, error) {
	return adapter.ConvertAll(g, tools)
}

// Tool bundles the converted declarations into one genai.Tool.
func (g *Gemini) Tool(tools []adapter.Tool) (*genai.Tool, error) {
	converted, err := g.ConvertTools(tools)
	if err != nil {
		return nil, err
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(converted))
	for _, c := range converted {
		decls = append(decls, c.(*genai.FunctionDeclaration))
	}
	return &genai.Tool{FunctionDeclarations: decls}, nil
}

func (g *Gemini) ExecuteTool(ctx context.Context, name string, input map[string]any, tools []adapter.Tool) (any, error) {
	return adapter.Execute(ctx, name, input, tools)
}

func geminiSchema(schema map[string]any, path string) (*genai.Schema, error) {
	out := &genai.Schema{}

	switch t := schema["type"].(type) {
	case string:
		typ, err := geminiType(t, path)
		if err != nil {
			return nil, err
		}
		out.Type = typ
	case []any:
		// ["string", "null"] style unions
		for _, item := range t {
			name, _ := item.(string)
			if name == "null" {
				out.Nullable = true
				continue
			}
			typ, err := geminiType(name, path)
			if err != nil {
				return nil, err
			}
			out.Type = typ
		}
	case nil:
		if _, ok := schema["properties"]; ok {
			out.Type = genai.TypeObject
		}
	default:
		return nil, fmt.Errorf("%s: unsupported type %T", path, t)
	}

	out.Description, _ = schema["description"].(string)
	out.Format, _ = schema["format"].(string)
	if nullable, ok := schema["nullable"].(bool); ok {
		out.Nullable = nullable
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, v := range enum {
			out.Enum = append(out.Enum, fmt.Sprint(v))
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		itemSchema, err := geminiSchema(items, path+".items")
		if err != nil {
			return nil, err
		}
		out.Items = itemSchema
	}
	if props := adapter.Properties(schema); len(props) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			prop, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s.%s: expected an object schema, got %T", path, name, raw)
			}
			propSchema, err := geminiSchema(prop, path+"."+name)
			if err != nil {
				return nil, err
			}
			out.Properties[name] = propSchema
		}
	}
	out.Required = adapter.RequiredParameters(schema)
	return out, nil
}

func geminiType(name, path string) (genai.Type, error) {
	typ, ok := geminiTypes[strings.ToLower(name)]
	if !ok {
		return genai.TypeUnspecified, fmt.Errorf("%s: unsupported type %q", path, name)
	}
	return typ, nil
}
