package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/petal-labs/petaladapt/adapter"
	"github.com/petal-labs/petaladapt/registry"
)

func weatherTool() adapter.Tool {
	return adapter.Tool{
		Name:        "get_weather",
		Description: "Look up current weather",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city":  map[string]any{"type": "string", "description": "City name"},
				"units": map[string]any{"type": "string", "enum": []any{"c", "f"}},
				"days":  map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
			},
			"required":             []any{"city"},
			"additionalProperties": false,
		},
		Handler: func(_ context.Context, input map[string]any) (any, error) {
			return map[string]any{"city": input["city"], "temp": 21}, nil
		},
	}
}

func allAdapters() map[string]adapter.Adapter {
	return map[string]adapter.Adapter{
		"openai":    &OpenAI{},
		"anthropic": &Anthropic{},
		"gemini":    &Gemini{},
		"iris":      &Iris{},
	}
}

func TestAdaptersConformStrictly(t *testing.T) {
	for name, a := range allAdapters() {
		if err := adapter.Validate(a, true); err != nil {
			t.Errorf("%s: Validate(strict) error = %v", name, err)
		}
	}
}

func TestConvertToolsPreservesOrder(t *testing.T) {
	tools := []adapter.Tool{weatherTool(), {Name: "ping"}}
	for name, a := range allAdapters() {
		out, err := a.ConvertTools(tools)
		if err != nil {
			t.Fatalf("%s: ConvertTools() error = %v", name, err)
		}
		if len(out) != 2 {
			t.Fatalf("%s: ConvertTools() returned %d items, want 2", name, len(out))
		}
		empty, err := a.ConvertTools(nil)
		if err != nil || empty == nil || len(empty) != 0 {
			t.Fatalf("%s: ConvertTools(nil) = %v, %v; want empty slice", name, empty, err)
		}
	}
}

func TestConvertToolRequiresName(t *testing.T) {
	for name, a := range allAdapters() {
		if _, err := a.ConvertTool(adapter.Tool{}); err == nil {
			t.Errorf("%s: ConvertTool() expected error for unnamed tool", name)
		}
	}
}

func TestExecuteToolReturnsHandlerResult(t *testing.T) {
	tools := []adapter.Tool{weatherTool()}
	for name, a := range allAdapters() {
		got, err := a.ExecuteTool(context.Background(), "get_weather", map[string]any{"city": "Oslo"}, tools)
		if err != nil {
			t.Fatalf("%s: ExecuteTool() error = %v", name, err)
		}
		if got.(map[string]any)["city"] != "Oslo" {
			t.Fatalf("%s: ExecuteTool() = %v", name, got)
		}
		_, err = a.ExecuteTool(context.Background(), "nope", nil, tools)
		if !errors.Is(err, adapter.ErrToolNotFound) {
			t.Fatalf("%s: ExecuteTool(nope) error = %v, want ErrToolNotFound", name, err)
		}
	}
}

func TestRegisterBindsReferences(t *testing.T) {
	table := registry.NewTableResolver()
	if err := Register(table); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	reg := registry.New(registry.Config{Resolver: table, Strict: true})
	for _, ref := range []string{RefOpenAI, RefAnthropic, RefGemini, RefIris} {
		if err := reg.RegisterLazy(ref, ref, nil); err != nil {
			t.Fatalf("RegisterLazy(%s) error = %v", ref, err)
		}
		class, err := reg.Get(ref)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", ref, err)
		}
		if _, err := class.Instantiate(nil); err != nil {
			t.Fatalf("Instantiate(%s) error = %v", ref, err)
		}
	}
	if got := reg.AutoDiscover(table.Namespace("providers")); got != 4 {
		t.Fatalf("AutoDiscover() = %d, want 4", got)
	}
}
