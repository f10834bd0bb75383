// Package loader reads adapter declarations from configuration sources and
// registers them lazily. Sources are merged in order by adapter name; bad
// records are rejected one by one without stopping the rest.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/petal-labs/petaladapt/adapter"
	"github.com/petal-labs/petaladapt/registry"
)

// Source produces raw declaration records.
type Source interface {
	Name() string
	Records(ctx context.Context) ([]map[string]any, error)
}

// StrategySource is a Source that also declares named fallback orders.
type StrategySource interface {
	Source
	Strategies(ctx context.Context) (map[string][]string, error)
}

// Report summarizes one Load.
type Report struct {
	Registered []string
	Disabled   []string
	// Rejected aggregates per-record configuration errors. Nil when every
	// record was accepted.
	Rejected   *multierror.Error
	Strategies map[string][]string
}

// RejectedErr returns the rejected records as an error, or nil.
func (r Report) RejectedErr() error {
	return r.Rejected.ErrorOrNil()
}

// Config configures a Loader.
type Config struct {
	Registry *registry.Registry
	Logger   *slog.Logger
}

// Loader registers declarations into a registry.
type Loader struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates a loader.
func New(cfg Config) *Loader {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loader{registry: cfg.Registry, logger: cfg.Logger}
}

// Load reads every source, merges records by name (later sources win) and
// registers each enabled record lazily. The returned error covers only
// source failures; bad records are listed in Report.Rejected.
func (l *Loader) Load(ctx context.Context, sources ...Source) (Report, error) {
	report := Report{Strategies: make(map[string][]string)}
	if l.registry == nil {
		return report, fmt.Errorf("loader: registry is nil")
	}

	set := newRecordSet()
	for _, src := range sources {
		if src == nil {
			continue
		}
		records, err := src.Records(ctx)
		if err != nil {
			return report, fmt.Errorf("loading source %s: %w", src.Name(), err)
		}
		for i, record := range records {
			name := recordName(record)
			if name == "" {
				l.reject(&report, adapter.ConfigError("", fmt.Sprintf("%s: record %d is missing required field name", src.Name(), i)))
				continue
			}
			set.add(name, record)
		}

		if ss, ok := src.(StrategySource); ok {
			strategies, err := ss.Strategies(ctx)
			if err != nil {
				return report, fmt.Errorf("loading strategies from %s: %w", src.Name(), err)
			}
			for name, names := range strategies {
				report.Strategies[name] = append([]string(nil), names...)
			}
		}
	}

	for _, record := range set.list() {
		d, unused, err := Decode(record)
		if err != nil {
			l.reject(&report, err)
			continue
		}
		if len(unused) > 0 {
			sort.Strings(unused)
			l.logger.Warn("ignoring unknown adapter fields",
				slog.String("adapter", d.Name),
				slog.Any("fields", unused),
			)
		}
		if !d.IsEnabled() {
			report.Disabled = append(report.Disabled, d.Name)
			l.logger.Debug("adapter disabled", slog.String("adapter", d.Name))
			continue
		}
		if err := l.registry.RegisterLazy(d.Name, d.Module, d.Metadata, registry.WithDefaults(d.Config)); err != nil {
			l.reject(&report, err)
			continue
		}
		report.Registered = append(report.Registered, d.Name)
	}

	l.logger.Info("adapter declarations loaded",
		slog.Int("registered", len(report.Registered)),
		slog.Int("disabled", len(report.Disabled)),
		slog.Int("rejected", rejectedCount(report.Rejected)),
	)
	return report, nil
}

func (l *Loader) reject(report *Report, err error) {
	l.logger.Warn("rejected adapter declaration", slog.Any("error", err))
	report.Rejected = multierror.Append(report.Rejected, err)
}

func rejectedCount(err *multierror.Error) int {
	if err == nil {
		return 0
	}
	return len(err.Errors)
}
