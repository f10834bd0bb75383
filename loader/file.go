package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// FileSource reads adapter declarations from a YAML (or JSON) file plus an
// optional environment overlay next to it.
type FileSource struct {
	Path string
	// Env selects the overlay file <base>.<env><ext>. Empty disables it.
	Env string
	// Getenv expands ${VAR} references. Defaults to os.Getenv.
	Getenv func(string) string
}

type fileDocument struct {
	records    []map[string]any
	strategies map[string][]string
}

// Name implements Source.
func (s *FileSource) Name() string {
	if s.Env != "" {
		return fmt.Sprintf("file:%s[%s]", s.Path, s.Env)
	}
	return "file:" + s.Path
}

// Paths returns the base file and, when an environment is set, its overlay.
func (s *FileSource) Paths() []string {
	paths := []string{s.Path}
	if overlay := OverlayPath(s.Path, s.Env); overlay != "" {
		paths = append(paths, overlay)
	}
	return paths
}

// Records implements Source. A missing base file is an error; a missing
// overlay is not.
func (s *FileSource) Records(ctx context.Context) ([]map[string]any, error) {
	base, overlay, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	set := newRecordSet()
	for _, doc := range []*fileDocument{base, overlay} {
		if doc == nil {
			continue
		}
		for _, record := range doc.records {
			set.add(recordName(record), record)
		}
	}
	return set.list(), nil
}

// Strategies implements StrategySource. Overlay strategies replace base
// strategies of the same name.
func (s *FileSource) Strategies(ctx context.Context) (map[string][]string, error) {
	base, overlay, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, doc := range []*fileDocument{base, overlay} {
		if doc == nil {
			continue
		}
		for name, names := range doc.strategies {
			out[name] = names
		}
	}
	return out, nil
}

func (s *FileSource) read(ctx context.Context) (*fileDocument, *fileDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(s.Path) == "" {
		return nil, nil, errors.New("loader: file source path is required")
	}
	base, err := s.parseFile(s.Path)
	if err != nil {
		return nil, nil, err
	}

	overlayPath := OverlayPath(s.Path, s.Env)
	if overlayPath == "" {
		return base, nil, nil
	}
	if _, err := os.Stat(overlayPath); errors.Is(err, os.ErrNotExist) {
		return base, nil, nil
	}
	overlay, err := s.parseFile(overlayPath)
	if err != nil {
		return nil, nil, err
	}
	return base, overlay, nil
}

// OverlayPath returns the overlay file for base in env, e.g. adapters.yaml
// and "prod" give adapters.prod.yaml.
func OverlayPath(base, env string) string {
	env = strings.TrimSpace(env)
	if env == "" || base == "" {
		return ""
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "." + env + ext
}

func (s *FileSource) parseFile(path string) (*fileDocument, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}

	var raw map[string]any
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
		}
	} else {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing JSON %s: %w", path, err)
		}
	}

	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	raw, _ = expandValue(raw, getenv).(map[string]any)

	records, err := adapterRecords(raw["adapters"])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc := &fileDocument{records: records}
	if rawStrategies, ok := raw["strategies"]; ok && rawStrategies != nil {
		if err := mapstructure.WeakDecode(rawStrategies, &doc.strategies); err != nil {
			return nil, fmt.Errorf("%s: invalid strategies: %w", path, err)
		}
	}
	return doc, nil
}

// adapterRecords accepts either a list of records or a map of name to
// record.
func adapterRecords(v any) ([]map[string]any, error) {
	switch typed := v.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]map[string]any, 0, len(typed))
		for i, item := range typed {
			record, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("adapters[%d]: expected a mapping, got %T", i, item)
			}
			out = append(out, record)
		}
		return out, nil
	case map[string]any:
		names := make([]string, 0, len(typed))
		for name := range typed {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]map[string]any, 0, len(typed))
		for _, name := range names {
			record, ok := typed[name].(map[string]any)
			if !ok {
				if typed[name] != nil {
					return nil, fmt.Errorf("adapters.%s: expected a mapping, got %T", name, typed[name])
				}
				record = map[string]any{}
			}
			record = cloneMap(record)
			if _, ok := record["name"]; !ok {
				record["name"] = name
			}
			out = append(out, record)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("adapters: expected a list or mapping, got %T", v)
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandValue(v any, getenv func(string) string) any {
	switch typed := v.(type) {
	case string:
		return envRef.ReplaceAllStringFunc(typed, func(ref string) string {
			return getenv(ref[2 : len(ref)-1])
		})
	case map[string]any:
		for k, item := range typed {
			typed[k] = expandValue(item, getenv)
		}
		return typed
	case []any:
		for i, item := range typed {
			typed[i] = expandValue(item, getenv)
		}
		return typed
	default:
		return v
	}
}
