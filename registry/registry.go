// Package registry maps adapter names to implementations. Entries are either
// registered eagerly with a class or lazily with a reference that is resolved
// on first lookup. It is the single source of truth used by the factory and
// manager.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/copystructure"

	"github.com/petal-labs/petaladapt/adapter"
)

// State is the binding state of a registry entry.
type State string

const (
	StateLazy      State = "lazy"
	StateResolved  State = "resolved"
	StateLoadError State = "load_error"
)

// Config configures a Registry.
type Config struct {
	// Resolver binds lazy references. Lazy entries fail with a load error
	// when it is nil.
	Resolver Resolver
	// Strict enables strict contract validation for registrations and
	// resolutions.
	Strict   bool
	Observer adapter.Observer
	Logger   *slog.Logger
}

// Registry holds named adapter entries. It is safe for concurrent use.
type Registry struct {
	resolver Resolver
	strict   bool
	observer adapter.Observer
	logger   *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // preserves first registration order
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		resolver: cfg.Resolver,
		strict:   cfg.Strict,
		observer: adapter.ObserverOrNop(cfg.Observer),
		logger:   cfg.Logger,
		entries:  make(map[string]*entry),
	}
}

// Option customizes an entry at registration time.
type Option func(*entry)

// WithDefaults attaches per-adapter config that the factory merges under
// call-site config.
func WithDefaults(config map[string]any) Option {
	return func(e *entry) {
		e.defaults = cloneMap(config)
	}
}

// Register inserts or replaces an eagerly bound entry. impl is a
// *adapter.Class, a reflect.Type, or an adapter instance; it must pass
// contract validation.
func (r *Registry) Register(name string, impl any, metadata map[string]any, opts ...Option) error {
	clean := strings.TrimSpace(name)
	if clean == "" {
		return adapter.ConfigError("", "adapter name is required")
	}
	class, err := adapter.AsClass(impl)
	if err != nil {
		return adapter.InvalidAdapterError(clean, err)
	}
	if err := adapter.Validate(class, r.strict); err != nil {
		return adapter.InvalidAdapterError(clean, err)
	}

	e := newEntry(clean, "", metadata, opts)
	e.class = class
	e.state = StateResolved
	r.put(e)
	r.logger.Debug("registered adapter", slog.String("adapter", clean), slog.String("class", class.String()))
	return nil
}

// RegisterLazy inserts or replaces an entry bound to an unresolved
// reference. No validation happens until the first Get.
func (r *Registry) RegisterLazy(name, ref string, metadata map[string]any, opts ...Option) error {
	clean := strings.TrimSpace(name)
	if clean == "" {
		return adapter.ConfigError("", "adapter name is required")
	}
	cleanRef := strings.TrimSpace(ref)
	if cleanRef == "" {
		return adapter.ConfigError(clean, "module reference is required")
	}

	r.put(newEntry(clean, cleanRef, metadata, opts))
	r.logger.Debug("registered lazy adapter", slog.String("adapter", clean), slog.String("module", cleanRef))
	return nil
}

// Unregister removes name. It reports whether an entry existed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	return true
}

// put swaps in a fresh entry. Callers holding the previous entry finish
// against it; new lookups see the replacement.
func (r *Registry) put(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, exists := r.entries[e.name]; exists {
		e.generation = prev.currentGeneration() + 1
	} else {
		r.order = append(r.order, e.name)
	}
	r.entries[e.name] = e
}

func (r *Registry) lookup(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Get returns the class bound to name, resolving a lazy entry on first use.
// Concurrent callers during a resolution wait for it and share its result.
// A failed resolution is cached and returned until Reload or re-registration.
func (r *Registry) Get(name string) (*adapter.Class, error) {
	b, err := r.Bind(name)
	return b.Class, err
}

// Binding is a class read together with the generation and defaults of the
// entry that produced it.
type Binding struct {
	Class      *adapter.Class
	Generation uint64
	Defaults   map[string]any
}

// Bind resolves name like Get. The generation is the one the class was
// resolved under, so a class from before a reload or re-registration never
// carries the newer generation.
func (r *Registry) Bind(name string) (Binding, error) {
	e, ok := r.lookup(name)
	if !ok {
		return Binding{}, adapter.NotFoundError("adapter", name)
	}
	class, generation, err := e.resolve(r)
	if err != nil {
		return Binding{Generation: generation}, err
	}
	return Binding{Class: class, Generation: generation, Defaults: cloneMap(e.defaults)}, nil
}

// IsRegistered reports whether name has an entry in any state.
func (r *Registry) IsRegistered(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// State returns the binding state of name.
func (r *Registry) State(name string) (State, bool) {
	e, ok := r.lookup(name)
	if !ok {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, true
}

// Generation returns the current generation of name. It increases on every
// re-registration and reload.
func (r *Registry) Generation(name string) (uint64, bool) {
	e, ok := r.lookup(name)
	if !ok {
		return 0, false
	}
	return e.currentGeneration(), true
}

// ListAdapters returns registered names in first-registration order.
func (r *Registry) ListAdapters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// GetMetadata returns a copy of name's metadata.
func (r *Registry) GetMetadata(name string) (map[string]any, error) {
	e, ok := r.lookup(name)
	if !ok {
		return nil, adapter.NotFoundError("adapter", name)
	}
	return cloneMap(e.metadata), nil
}

// Defaults returns a deep copy of the per-adapter config of name.
func (r *Registry) Defaults(name string) map[string]any {
	e, ok := r.lookup(name)
	if !ok {
		return nil
	}
	return cloneMap(e.defaults)
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// EntryInfo is a read-only snapshot of one entry.
type EntryInfo struct {
	Name       string         `json:"name"`
	Reference  string         `json:"module,omitempty"`
	State      State          `json:"state"`
	Class      string         `json:"class,omitempty"`
	Error      string         `json:"error,omitempty"`
	Generation uint64         `json:"generation"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Describe returns snapshots of every entry in registration order.
func (r *Registry) Describe() []EntryInfo {
	names := r.ListAdapters()
	out := make([]EntryInfo, 0, len(names))
	for _, name := range names {
		e, ok := r.lookup(name)
		if !ok {
			continue
		}
		out = append(out, e.info())
	}
	return out
}

// Reload forces name back to the lazy state under a new generation so the
// next Get resolves the reference again. Entries registered eagerly have no
// reference and keep their class; only their generation moves.
func (r *Registry) Reload(name string) error {
	e, ok := r.lookup(name)
	if !ok {
		return adapter.NotFoundError("adapter", name)
	}
	e.reset()
	r.logger.Debug("reloaded adapter entry", slog.String("adapter", name))
	return nil
}

// ReloadAll applies Reload to every entry.
func (r *Registry) ReloadAll() {
	for _, name := range r.ListAdapters() {
		_ = r.Reload(name)
	}
}

// AutoDiscover registers every member of ns that passes validation and
// returns how many were registered. Failing members are skipped.
func (r *Registry) AutoDiscover(ns Namespace) int {
	if ns == nil {
		return 0
	}
	members := ns.Members()
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	slices.Sort(names)

	count := 0
	for _, name := range names {
		if err := r.Register(name, members[name], map[string]any{"discovered": true}); err != nil {
			r.logger.Debug("skipping discovered member", slog.String("member", name), slog.Any("error", err))
			continue
		}
		count++
	}
	return count
}

func (r *Registry) resolveRef(name, ref string) (*adapter.Class, error) {
	if r.resolver == nil {
		return nil, adapter.LoadError(name, errors.New("no resolver configured"))
	}
	class, err := r.resolver.Resolve(ref)
	if err != nil {
		return nil, adapter.LoadError(name, err)
	}
	if class == nil {
		return nil, adapter.LoadError(name, fmt.Errorf("reference %q resolved to nil", ref))
	}
	if err := adapter.Validate(class, r.strict); err != nil {
		return nil, adapter.InvalidAdapterError(name, err)
	}
	return class, nil
}

func (r *Registry) observeResolve(name, ref string, generation uint64, start time.Time, err error) {
	r.observer.ObserveResolve(adapter.ResolveObservation{
		Name:       name,
		Reference:  ref,
		Generation: generation,
		DurationMS: adapter.ElapsedMS(start),
		Success:    err == nil,
		ErrorCode:  adapter.Code(err),
	})
	if err != nil {
		r.logger.Warn("adapter resolution failed",
			slog.String("adapter", name),
			slog.String("module", ref),
			slog.Any("error", err),
		)
	}
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	copied, err := copystructure.Copy(in)
	if err != nil {
		out := make(map[string]any, len(in))
		for k, v := range in {
			out[k] = v
		}
		return out
	}
	return copied.(map[string]any)
}
