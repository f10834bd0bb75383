package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultEnvPrefix is the variable prefix EnvSource uses when none is set.
const DefaultEnvPrefix = "PETALADAPT_ADAPTER_"

// envFields maps variable suffixes to record keys.
var envFields = map[string]string{
	"MODULE":  "module",
	"ENABLED": "enabled",
}

// EnvSource reads declarations from variables named
// <PREFIX><NAME>__<FIELD>, e.g. PETALADAPT_ADAPTER_OPENAI__MODULE.
type EnvSource struct {
	Prefix string
	// Files are dotenv files read before the process environment, which
	// wins on conflicts. Missing files are skipped.
	Files []string
	// Environ lists the process environment. Defaults to os.Environ.
	Environ func() []string
	Logger  *slog.Logger
}

// Name implements Source.
func (s *EnvSource) Name() string {
	return "env:" + s.prefix()
}

func (s *EnvSource) prefix() string {
	if s.Prefix == "" {
		return DefaultEnvPrefix
	}
	return s.Prefix
}

func (s *EnvSource) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Records implements Source.
func (s *EnvSource) Records(ctx context.Context) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vars := make(map[string]string)
	for _, file := range s.Files {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			s.logger().Debug("dotenv file not found", slog.String("path", file))
			continue
		}
		values, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("reading dotenv %s: %w", file, err)
		}
		for k, v := range values {
			vars[k] = v
		}
	}
	environ := s.Environ
	if environ == nil {
		environ = os.Environ
	}
	for _, kv := range environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			vars[k] = v
		}
	}

	prefix := s.prefix()
	records := make(map[string]map[string]any)
	for key, value := range vars {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		rawName, field, ok := strings.Cut(rest, "__")
		if !ok || rawName == "" {
			s.logger().Warn("ignoring adapter variable without field", slog.String("variable", key))
			continue
		}
		recordKey, known := envFields[strings.ToUpper(field)]
		if !known {
			s.logger().Warn("ignoring unknown adapter variable field",
				slog.String("variable", key),
				slog.String("field", field),
			)
			continue
		}
		name := strings.ToLower(rawName)
		record, ok := records[name]
		if !ok {
			record = map[string]any{"name": name}
			records[name] = record
		}
		record[recordKey] = value
	}

	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		out = append(out, records[name])
	}
	return out, nil
}
