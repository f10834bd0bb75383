package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/petal-labs/petaladapt/adapter"
	"github.com/petal-labs/petaladapt/registry"
)

func newTestRegistry() *registry.Registry {
	return registry.New(registry.Config{Resolver: registry.NewTableResolver()})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
	return path
}

func TestLoadRejectsBadRecordsAndContinues(t *testing.T) {
	reg := newTestRegistry()
	src := &RecordsSource{Raw: []map[string]any{
		{"name": "good", "module": "pkg.good", "metadata": map[string]any{"provider": "x"}},
		{"name": "nomodule"},
		{"module": "pkg.noname"},
		{"name": "off", "module": "pkg.off", "enabled": false},
	}}

	report, err := New(Config{Registry: reg}).Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff([]string{"good"}, report.Registered); diff != "" {
		t.Fatalf("Registered mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"off"}, report.Disabled); diff != "" {
		t.Fatalf("Disabled mismatch (-want +got):\n%s", diff)
	}
	if report.Rejected == nil || len(report.Rejected.Errors) != 2 {
		t.Fatalf("Rejected = %v, want 2 errors", report.Rejected)
	}
	for _, rejected := range report.Rejected.Errors {
		if !errors.Is(rejected, adapter.ErrConfig) {
			t.Fatalf("rejected error = %v, want ErrConfig", rejected)
		}
	}
	if reg.IsRegistered("off") || reg.IsRegistered("nomodule") {
		t.Fatal("disabled or invalid record was registered")
	}
	state, _ := reg.State("good")
	if state != registry.StateLazy {
		t.Fatalf("State(good) = %q, want lazy", state)
	}
	meta, err := reg.GetMetadata("good")
	if err != nil || meta["provider"] != "x" {
		t.Fatalf("GetMetadata(good) = %v, %v", meta, err)
	}
}

func TestLoadLaterSourcesOverride(t *testing.T) {
	reg := newTestRegistry()
	first := &RecordsSource{Descriptors: []Descriptor{{
		Name:   "x",
		Module: "pkg.a",
		Config: map[string]any{"k": 1, "keep": true},
	}}}
	second := &RecordsSource{
		Raw:      []map[string]any{{"name": "x", "module": "pkg.b", "config": map[string]any{"k": 2}}},
		Strategy: map[string][]string{"default": {"x"}},
	}

	report, err := New(Config{Registry: reg}).Load(context.Background(), first, second)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defaults := reg.Defaults("x")
	if diff := cmp.Diff(map[string]any{"k": 2, "keep": true}, defaults); diff != "" {
		t.Fatalf("Defaults mismatch (-want +got):\n%s", diff)
	}
	infos := reg.Describe()
	if len(infos) != 1 || infos[0].Reference != "pkg.b" {
		t.Fatalf("Describe() = %+v", infos)
	}
	if diff := cmp.Diff(map[string][]string{"default": {"x"}}, report.Strategies); diff != "" {
		t.Fatalf("Strategies mismatch (-want +got):\n%s", diff)
	}
}

type failingSource struct{}

func (failingSource) Name() string { return "broken" }
func (failingSource) Records(context.Context) ([]map[string]any, error) {
	return nil, errors.New("unreachable")
}

func TestLoadSourceFailure(t *testing.T) {
	_, err := New(Config{Registry: newTestRegistry()}).Load(context.Background(), failingSource{})
	if err == nil {
		t.Fatal("Load() expected error")
	}
}

func TestDecodeWeakTypes(t *testing.T) {
	d, unused, err := Decode(map[string]any{
		"name":    " openai ",
		"module":  "providers.openai",
		"enabled": "false",
		"extra":   1,
	})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if d.Name != "openai" || d.IsEnabled() {
		t.Fatalf("Decode() = %+v", d)
	}
	if diff := cmp.Diff([]string{"extra"}, unused); diff != "" {
		t.Fatalf("unused mismatch (-want +got):\n%s", diff)
	}
	if d.Metadata == nil || d.Config == nil {
		t.Fatal("Decode() should default metadata and config to empty maps")
	}
}

func TestMergeRecord(t *testing.T) {
	base := map[string]any{
		"name":     "x",
		"module":   "pkg.a",
		"metadata": map[string]any{"provider": "a", "version": "1"},
		"config":   map[string]any{"k": 1},
	}
	over := map[string]any{
		"name":     "x",
		"metadata": map[string]any{"version": "2"},
		"config":   map[string]any{"k": 2, "extra": "y"},
	}

	got := MergeRecord(base, over)
	want := map[string]any{
		"name":     "x",
		"module":   "pkg.a",
		"metadata": map[string]any{"provider": "a", "version": "2"},
		"config":   map[string]any{"k": 2, "extra": "y"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("MergeRecord mismatch (-want +got):\n%s", diff)
	}
	if base["config"].(map[string]any)["k"] != 1 {
		t.Fatal("MergeRecord modified base")
	}
}

func TestLoadFileRejectsEachUnnamedRecord(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "adapters.yaml", `
adapters:
  - module: pkg.first
  - module: pkg.second
  - name: 42
    module: pkg.numbered
  - name: ok
    module: pkg.ok
`)
	reg := newTestRegistry()
	report, err := New(Config{Registry: reg}).Load(context.Background(), &FileSource{Path: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff([]string{"42", "ok"}, report.Registered); diff != "" {
		t.Fatalf("Registered mismatch (-want +got):\n%s", diff)
	}
	if report.Rejected == nil || len(report.Rejected.Errors) != 2 {
		t.Fatalf("Rejected = %v, want 2 errors", report.Rejected)
	}
	if !reg.IsRegistered("42") {
		t.Fatal("record named 42 was not registered")
	}
}

func TestRecordName(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]any
		want   string
	}{
		{name: "string", record: map[string]any{"name": " x "}, want: "x"},
		{name: "int", record: map[string]any{"name": 42}, want: "42"},
		{name: "float", record: map[string]any{"name": 1.5}, want: "1.5"},
		{name: "bool", record: map[string]any{"name": true}, want: "1"},
		{name: "missing", record: map[string]any{}, want: ""},
		{name: "map", record: map[string]any{"name": map[string]any{"a": 1}}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := recordName(tt.record); got != tt.want {
				t.Fatalf("recordName() = %q, want %q", got, tt.want)
			}
		})
	}
}
