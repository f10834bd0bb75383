package adapter

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type upperAdapter struct{}

func (upperAdapter) ConvertTool(tool Tool) (any, error) {
	if tool.Name == "" {
		return nil, errors.New("empty name")
	}
	return map[string]any{"name": tool.Name}, nil
}

func (a upperAdapter) ConvertTools(tools []Tool) ([]any, error) {
	return ConvertAll(a, tools)
}

func (upperAdapter) ExecuteTool(ctx context.Context, name string, input map[string]any, tools []Tool) (any, error) {
	return Execute(ctx, name, input, tools)
}

func TestConvertAllPreservesOrder(t *testing.T) {
	tools := []Tool{{Name: "b"}, {Name: "a"}, {Name: "c"}}
	got, err := upperAdapter{}.ConvertTools(tools)
	if err != nil {
		t.Fatalf("ConvertTools() error = %v", err)
	}
	want := []any{
		map[string]any{"name": "b"},
		map[string]any{"name": "a"},
		map[string]any{"name": "c"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ConvertTools() = %v, want %v", got, want)
	}
}

func TestConvertAllEmpty(t *testing.T) {
	got, err := upperAdapter{}.ConvertTools(nil)
	if err != nil {
		t.Fatalf("ConvertTools(nil) error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("ConvertTools(nil) = %#v, want empty non-nil slice", got)
	}
}

func TestConvertAllStopsOnError(t *testing.T) {
	_, err := upperAdapter{}.ConvertTools([]Tool{{Name: "ok"}, {}})
	if err == nil {
		t.Fatal("ConvertTools() error = nil, want non-nil")
	}
}

func TestConvertToolDoesNotMutate(t *testing.T) {
	tool := Tool{Name: "search", Description: "d", Parameters: map[string]any{"type": "object"}}
	before := Tool{Name: tool.Name, Description: tool.Description, Parameters: map[string]any{"type": "object"}}
	if _, err := (upperAdapter{}).ConvertTool(tool); err != nil {
		t.Fatalf("ConvertTool() error = %v", err)
	}
	if !reflect.DeepEqual(tool.Parameters, before.Parameters) || tool.Name != before.Name {
		t.Fatalf("tool mutated: %+v", tool)
	}
}

func TestExecuteReturnsHandlerResultUnchanged(t *testing.T) {
	result := map[string]any{"answer": 42, "nested": []any{"x"}}
	tools := []Tool{
		{Name: "other", Handler: func(context.Context, map[string]any) (any, error) { return "wrong", nil }},
		{Name: "answer", Handler: func(_ context.Context, input map[string]any) (any, error) {
			if len(input) != 0 {
				t.Errorf("input = %v, want empty", input)
			}
			return result, nil
		}},
	}

	got, err := upperAdapter{}.ExecuteTool(context.Background(), "answer", map[string]any{}, tools)
	if err != nil {
		t.Fatalf("ExecuteTool() error = %v", err)
	}
	if !reflect.DeepEqual(got, result) {
		t.Fatalf("ExecuteTool() = %v, want %v", got, result)
	}
}

func TestExecuteToolNotFound(t *testing.T) {
	tools := []Tool{{Name: "Answer"}}
	_, err := Execute(context.Background(), "answer", nil, tools)
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("Execute() error = %v, want ErrToolNotFound", err)
	}
	if Code(err) != CodeToolNotFound {
		t.Fatalf("Code() = %q, want %q", Code(err), CodeToolNotFound)
	}
}

func TestExecuteHandlerError(t *testing.T) {
	boom := errors.New("boom")
	tools := []Tool{{Name: "x", Handler: func(context.Context, map[string]any) (any, error) { return nil, boom }}}
	_, err := Execute(context.Background(), "x", nil, tools)
	if !errors.Is(err, boom) {
		t.Fatalf("Execute() error = %v, want %v", err, boom)
	}
}

func TestRequiredParameters(t *testing.T) {
	schema := map[string]any{"required": []any{"a", "", 3, "b"}}
	got := RequiredParameters(schema)
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("RequiredParameters() = %v", got)
	}
	if got := RequiredParameters(map[string]any{}); got != nil {
		t.Fatalf("RequiredParameters(empty) = %v, want nil", got)
	}
}
