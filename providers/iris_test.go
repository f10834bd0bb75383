package providers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/petal-labs/iris/tools"
)

type mockIrisTool struct {
	name       string
	callResult any
	callError  error
	gotArgs    json.RawMessage
}

func (m *mockIrisTool) Name() string        { return m.name }
func (m *mockIrisTool) Description() string { return "mock" }

func (m *mockIrisTool) Schema() tools.ToolSchema {
	return tools.ToolSchema{
		JSONSchema: json.RawMessage(`{"type": "object", "required": ["q"]}`),
	}
}

func (m *mockIrisTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	m.gotArgs = args
	if m.callError != nil {
		return nil, m.callError
	}
	return m.callResult, nil
}

func TestIrisConvertToolCallsHandler(t *testing.T) {
	out, err := (&Iris{}).ConvertTool(weatherTool())
	if err != nil {
		t.Fatalf("ConvertTool() error = %v", err)
	}
	tool, ok := out.(tools.Tool)
	if !ok {
		t.Fatalf("ConvertTool() type = %T, want tools.Tool", out)
	}
	if tool.Name() != "get_weather" {
		t.Fatalf("Name() = %q", tool.Name())
	}

	var schema map[string]any
	if err := json.Unmarshal(tool.Schema().JSONSchema, &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if schema["type"] != "object" {
		t.Fatalf("schema = %v", schema)
	}

	result, err := tool.Call(context.Background(), json.RawMessage(`{"city":"Lima"}`))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if result.(map[string]any)["city"] != "Lima" {
		t.Fatalf("Call() = %v", result)
	}
	if _, err := tool.Call(context.Background(), json.RawMessage(`{bad`)); err == nil {
		t.Fatal("Call() expected error for invalid JSON")
	}
}

func TestIrisToolMarshalJSON(t *testing.T) {
	out, err := (&Iris{}).ConvertTool(weatherTool())
	if err != nil {
		t.Fatalf("ConvertTool() error = %v", err)
	}
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got struct {
		Name   string         `json:"name"`
		Schema map[string]any `json:"schema"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Name != "get_weather" || got.Schema["type"] != "object" {
		t.Fatalf("marshaled tool = %s", data)
	}
}

func TestFromIris(t *testing.T) {
	mock := &mockIrisTool{name: "search", callResult: map[string]any{"hits": 3}}
	tool, err := FromIris(mock)
	if err != nil {
		t.Fatalf("FromIris() error = %v", err)
	}
	if tool.Name != "search" || tool.Parameters["type"] != "object" {
		t.Fatalf("FromIris() = %+v", tool)
	}

	result, err := tool.Handler(context.Background(), map[string]any{"q": "go"})
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	if result.(map[string]any)["hits"] != 3 {
		t.Fatalf("Handler() = %v", result)
	}
	if string(mock.gotArgs) != `{"q":"go"}` {
		t.Fatalf("args = %s", mock.gotArgs)
	}

	mock.callError = errors.New("backend down")
	if _, err := tool.Handler(context.Background(), nil); !errors.Is(err, mock.callError) {
		t.Fatalf("Handler() error = %v, want wrapped call error", err)
	}
}
