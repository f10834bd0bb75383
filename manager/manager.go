// Package manager is the facade over the adapter registry, loader and
// factory. It owns strategies and reload.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/petal-labs/petaladapt/adapter"
	"github.com/petal-labs/petaladapt/factory"
	"github.com/petal-labs/petaladapt/loader"
	"github.com/petal-labs/petaladapt/registry"
)

// Manager resolves, builds and reloads adapters. It is safe for concurrent
// use.
type Manager struct {
	registry       *registry.Registry
	factory        *factory.Factory
	loader         *loader.Loader
	logger         *slog.Logger
	sources        []loader.Source
	requireAdapter bool

	mu         sync.RWMutex
	strategies map[string][]string
	loaded     map[string]struct{} // names registered by the last load
	// loadedStrategies are strategy names adopted from sources by the last load.
	loadedStrategies map[string]struct{}
	lastReport       loader.Report

	// loadMu serializes Load so concurrent config reloads do not interleave.
	loadMu sync.Mutex
}

// New creates a manager with an empty registry.
func New(opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	reg := registry.New(registry.Config{
		Resolver: o.resolver,
		Strict:   o.strict,
		Observer: o.observer,
		Logger:   o.logger,
	})
	factoryOpts := []factory.Option{
		factory.WithObserver(o.observer),
		factory.WithLogger(o.logger),
		factory.WithCacheDefault(o.cacheDefault),
	}
	for name, builder := range o.builders {
		factoryOpts = append(factoryOpts, factory.WithBuilder(name, builder))
	}

	return &Manager{
		registry:       reg,
		factory:        factory.New(reg, factoryOpts...),
		loader:         loader.New(loader.Config{Registry: reg, Logger: o.logger}),
		logger:         o.logger,
		sources:        o.sources,
		requireAdapter: o.requireAdapter,
		strategies:     make(map[string][]string),
		loaded:         make(map[string]struct{}),

		loadedStrategies: make(map[string]struct{}),
	}
}

// FromConfig creates a manager from a config file and its env overlay,
// followed by any sources given with WithSources.
func FromConfig(ctx context.Context, path, env string, opts ...Option) (*Manager, error) {
	m := New(opts...)
	m.sources = append([]loader.Source{&loader.FileSource{Path: path, Env: env}}, m.sources...)
	if _, err := m.Load(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *registry.Registry { return m.registry }

// Factory returns the underlying factory.
func (m *Manager) Factory() *factory.Factory { return m.factory }

// Sources returns the manager's declaration sources.
func (m *Manager) Sources() []loader.Source {
	return append([]loader.Source(nil), m.sources...)
}

// LastReport returns the report of the most recent Load.
func (m *Manager) LastReport() loader.Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastReport
}

// Load reads the manager's sources into the registry and adopts their
// strategies. Adapters and source strategies from a previous Load that no
// longer appear are removed; strategies set with RegisterStrategy are kept.
func (m *Manager) Load(ctx context.Context) (loader.Report, error) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	report, err := m.loader.Load(ctx, m.sources...)
	if err != nil {
		return report, err
	}

	current := make(map[string]struct{}, len(report.Registered))
	for _, name := range report.Registered {
		current[name] = struct{}{}
	}

	m.mu.Lock()
	previous := m.loaded
	m.loaded = current
	for name := range m.loadedStrategies {
		if _, ok := report.Strategies[name]; !ok {
			delete(m.strategies, name)
			m.logger.Info("strategy removed from configuration", slog.String("strategy", name))
		}
	}
	m.loadedStrategies = make(map[string]struct{}, len(report.Strategies))
	for name, names := range report.Strategies {
		m.strategies[name] = append([]string(nil), names...)
		m.loadedStrategies[name] = struct{}{}
	}
	m.lastReport = report
	m.mu.Unlock()

	for name := range previous {
		if _, ok := current[name]; ok {
			continue
		}
		m.registry.Unregister(name)
		m.factory.ClearCache(name)
		m.logger.Info("adapter removed from configuration", slog.String("adapter", name))
	}

	if m.requireAdapter && m.registry.Len() == 0 {
		return report, adapter.ConfigError("", "no adapters registered from configuration")
	}
	return report, nil
}

// Get returns an adapter instance for name.
func (m *Manager) Get(name string, config map[string]any) (adapter.Adapter, error) {
	return m.factory.Create(name, config)
}

// GetWithFallback returns the first adapter in names that can be built.
func (m *Manager) GetWithFallback(names []string, config map[string]any) (string, adapter.Adapter, error) {
	return m.factory.CreateWithFallback(names, config)
}

// RegisterStrategy stores a named fallback order, replacing any previous one.
func (m *Manager) RegisterStrategy(name string, names []string) error {
	clean := strings.TrimSpace(name)
	if clean == "" {
		return adapter.ConfigError("", "strategy name is required")
	}
	if len(names) == 0 {
		return adapter.ConfigError(clean, "strategy needs at least one adapter")
	}
	m.mu.Lock()
	m.strategies[clean] = append([]string(nil), names...)
	delete(m.loadedStrategies, clean)
	m.mu.Unlock()
	return nil
}

// Strategy returns the adapter order for a strategy.
func (m *Manager) Strategy(name string) ([]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names, ok := m.strategies[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), names...), true
}

// Strategies returns the sorted strategy names.
func (m *Manager) Strategies() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.strategies))
	for name := range m.strategies {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// UseStrategy builds the first available adapter of a named strategy.
func (m *Manager) UseStrategy(name string, config map[string]any) (string, adapter.Adapter, error) {
	names, ok := m.Strategy(name)
	if !ok {
		return "", nil, adapter.NotFoundError("strategy", name)
	}
	return m.GetWithFallback(names, config)
}

// Reload rebinds name under a new generation and rebuilds its cached
// instances. Callers holding an old instance keep it.
func (m *Manager) Reload(name string) error {
	if err := m.registry.Reload(name); err != nil {
		return err
	}
	if err := m.factory.Refresh(name); err != nil {
		return fmt.Errorf("refreshing adapter %q: %w", name, err)
	}
	m.logger.Info("adapter reloaded", slog.String("adapter", name))
	return nil
}

// ReloadAll reloads every registered adapter and returns the combined
// errors.
func (m *Manager) ReloadAll() error {
	var result *multierror.Error
	for _, name := range m.registry.ListAdapters() {
		if err := m.Reload(name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// ReloadConfig re-reads every source and reloads all adapters.
func (m *Manager) ReloadConfig(ctx context.Context) (loader.Report, error) {
	report, err := m.Load(ctx)
	if err != nil {
		return report, err
	}
	if err := m.ReloadAll(); err != nil {
		m.logger.Warn("adapter reload incomplete", slog.Any("error", err))
		return report, err
	}
	return report, nil
}

// ListAdapters returns registered names in registration order.
func (m *Manager) ListAdapters() []string {
	return m.registry.ListAdapters()
}

// IsAvailable reports whether name is registered and not failed.
func (m *Manager) IsAvailable(name string) bool {
	state, ok := m.registry.State(name)
	return ok && state != registry.StateLoadError
}

// GetMetadata returns a copy of name's metadata.
func (m *Manager) GetMetadata(name string) (map[string]any, error) {
	return m.registry.GetMetadata(name)
}

// RegisterBuilder installs a custom builder for name.
func (m *Manager) RegisterBuilder(name string, builder factory.Builder) {
	m.factory.RegisterBuilder(name, builder)
}
