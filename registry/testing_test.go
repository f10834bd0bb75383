package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/petal-labs/petaladapt/adapter"
)

type fakeAdapter struct {
	label string
}

func (f *fakeAdapter) ConvertTool(tool adapter.Tool) (any, error) {
	return f.label + ":" + tool.Name, nil
}

func (f *fakeAdapter) ConvertTools(tools []adapter.Tool) ([]any, error) {
	return adapter.ConvertAll(f, tools)
}

func (f *fakeAdapter) ExecuteTool(ctx context.Context, name string, input map[string]any, tools []adapter.Tool) (any, error) {
	return adapter.Execute(ctx, name, input, tools)
}

type noExecute struct{}

func (noExecute) ConvertTool(adapter.Tool) (any, error)      { return nil, nil }
func (noExecute) ConvertTools([]adapter.Tool) ([]any, error) { return nil, nil }

func labelClass(label string) *adapter.Class {
	return adapter.ClassWith(&fakeAdapter{}, func(map[string]any) (adapter.Adapter, error) {
		return &fakeAdapter{label: label}, nil
	})
}

// countingResolver wraps a table and counts resolutions per reference.
type countingResolver struct {
	table *TableResolver
	gate  chan struct{}
	fail  atomic.Bool

	mu    sync.Mutex
	calls map[string]int
}

func newCountingResolver() *countingResolver {
	return &countingResolver{table: NewTableResolver(), calls: make(map[string]int)}
}

func (c *countingResolver) Resolve(ref string) (*adapter.Class, error) {
	c.mu.Lock()
	c.calls[ref]++
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if c.fail.Load() {
		return nil, errors.New("import failed")
	}
	return c.table.Resolve(ref)
}

func (c *countingResolver) count(ref string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[ref]
}
