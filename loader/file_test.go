package loader

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const baseConfig = `
adapters:
  - name: x
    module: pkg.x
    metadata:
      provider: test
    config:
      k: 1
      key: ${TEST_API_KEY}
  - name: y
    module: pkg.y
strategies:
  default: [x, y]
  cheap: [y]
`

const prodOverlay = `
adapters:
  - name: x
    config:
      k: 2
strategies:
  default: [y, x]
`

func TestFileSourceOverlay(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "adapters.yaml", baseConfig)
	writeFile(t, dir, "adapters.prod.yaml", prodOverlay)

	src := &FileSource{Path: path, Env: "prod", Getenv: func(key string) string {
		if key == "TEST_API_KEY" {
			return "secret"
		}
		return ""
	}}
	records, err := src.Records(context.Background())
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Records() returned %d records, want 2", len(records))
	}
	wantConfig := map[string]any{"k": 2, "key": "secret"}
	if diff := cmp.Diff(wantConfig, records[0]["config"]); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if records[0]["module"] != "pkg.x" {
		t.Fatalf("module = %v, want pkg.x", records[0]["module"])
	}

	strategies, err := src.Strategies(context.Background())
	if err != nil {
		t.Fatalf("Strategies() error = %v", err)
	}
	want := map[string][]string{"default": {"y", "x"}, "cheap": {"y"}}
	if diff := cmp.Diff(want, strategies); diff != "" {
		t.Fatalf("Strategies mismatch (-want +got):\n%s", diff)
	}
}

func TestFileSourceMissingOverlay(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "adapters.yaml", baseConfig)

	records, err := (&FileSource{Path: path, Env: "staging"}).Records(context.Background())
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if records[0]["config"].(map[string]any)["k"] != 1 {
		t.Fatalf("config = %v", records[0]["config"])
	}
}

func TestFileSourceMissingBase(t *testing.T) {
	src := &FileSource{Path: "/nonexistent/adapters.yaml"}
	if _, err := src.Records(context.Background()); err == nil {
		t.Fatal("Records() expected error for missing base file")
	}
}

func TestFileSourceMapForm(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "adapters.yaml", `
adapters:
  beta:
    module: pkg.beta
  alpha:
    module: pkg.alpha
    enabled: false
`)
	records, err := (&FileSource{Path: path}).Records(context.Background())
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 2 || records[0]["name"] != "alpha" || records[1]["name"] != "beta" {
		t.Fatalf("Records() = %v", records)
	}
}

func TestFileSourceJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "adapters.json", `{"adapters":[{"name":"j","module":"pkg.j"}]}`)
	records, err := (&FileSource{Path: path}).Records(context.Background())
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 1 || records[0]["module"] != "pkg.j" {
		t.Fatalf("Records() = %v", records)
	}
}

func TestOverlayPath(t *testing.T) {
	tests := []struct {
		base, env, want string
	}{
		{"adapters.yaml", "prod", "adapters.prod.yaml"},
		{"/etc/app/adapters.yml", "dev", "/etc/app/adapters.dev.yml"},
		{"adapters", "prod", "adapters.prod"},
		{"adapters.yaml", "", ""},
	}
	for _, tt := range tests {
		if got := OverlayPath(tt.base, tt.env); got != tt.want {
			t.Errorf("OverlayPath(%q, %q) = %q, want %q", tt.base, tt.env, got, tt.want)
		}
	}
}
