// Package factory materializes adapter instances from registry entries. It
// applies custom builders (dependency injection), caches instances per name
// and config, and walks fallback orders.
package factory

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"

	"github.com/petal-labs/petaladapt/adapter"
	"github.com/petal-labs/petaladapt/registry"
)

// statelessKey is the cache hash used for stateless classes, which share one
// instance per name regardless of config.
const statelessKey = "stateless"

// Builder constructs an adapter for a resolved class. A builder registered
// for a name takes precedence over the class's own construction.
type Builder func(class *adapter.Class, config map[string]any) (adapter.Adapter, error)

// Option configures a Factory.
type Option func(*Factory)

// WithBuilder registers builder for name.
func WithBuilder(name string, builder Builder) Option {
	return func(f *Factory) {
		if builder != nil {
			f.builders[name] = builder
		}
	}
}

// WithObserver sets the build/fallback observer.
func WithObserver(observer adapter.Observer) Option {
	return func(f *Factory) {
		f.observer = adapter.ObserverOrNop(observer)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithCacheDefault sets whether Create uses the cache when the call does not
// say. The default is true.
func WithCacheDefault(enabled bool) Option {
	return func(f *Factory) {
		f.cacheDefault = enabled
	}
}

// CreateOption customizes one Create call.
type CreateOption func(*createOptions)

type createOptions struct {
	useCache bool
}

// WithCache overrides the factory cache default for one call.
func WithCache(enabled bool) CreateOption {
	return func(o *createOptions) {
		o.useCache = enabled
	}
}

type cacheKey struct {
	name string
	hash string
}

type cachedInstance struct {
	instance   adapter.Adapter
	id         string
	generation uint64
	overrides  map[string]any // call config, re-merged with defaults on Refresh
	createdAt  time.Time
}

// Factory builds adapter instances for registered names. It is safe for
// concurrent use.
type Factory struct {
	registry     *registry.Registry
	observer     adapter.Observer
	logger       *slog.Logger
	cacheDefault bool
	group        singleflight.Group

	mu        sync.RWMutex
	builders  map[string]Builder
	instances map[cacheKey]*cachedInstance
}

// New creates a factory bound to reg.
func New(reg *registry.Registry, opts ...Option) *Factory {
	f := &Factory{
		registry:     reg,
		observer:     adapter.NopObserver{},
		logger:       slog.Default(),
		cacheDefault: true,
		builders:     make(map[string]Builder),
		instances:    make(map[cacheKey]*cachedInstance),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// RegisterBuilder installs builder for name; later Create calls use it.
// Instances cached for name are evicted.
func (f *Factory) RegisterBuilder(name string, builder Builder) {
	f.mu.Lock()
	if builder == nil {
		delete(f.builders, name)
	} else {
		f.builders[name] = builder
	}
	f.mu.Unlock()
	f.ClearCache(name)
}

func (f *Factory) builder(name string) (Builder, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.builders[name]
	return b, ok
}

// Create returns an instance for name built with the registry defaults for
// name overlaid by config. With caching, instances are shared per (name,
// config hash); stateless classes share one instance per name.
func (f *Factory) Create(name string, config map[string]any, opts ...CreateOption) (adapter.Adapter, error) {
	o := createOptions{useCache: f.cacheDefault}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	start := time.Now()
	instance, observation, err := f.create(name, config, o)
	observation.Name = name
	observation.DurationMS = adapter.ElapsedMS(start)
	observation.Success = err == nil
	observation.ErrorCode = adapter.Code(err)
	f.observer.ObserveBuild(observation)
	return instance, err
}

func (f *Factory) create(name string, config map[string]any, o createOptions) (adapter.Adapter, adapter.BuildObservation, error) {
	var observation adapter.BuildObservation

	b, err := f.registry.Bind(name)
	if err != nil {
		return nil, observation, err
	}
	merged := mergeConfig(b.Defaults, config)

	builder, hasBuilder := f.builder(name)
	observation.Builder = hasBuilder
	stateless := b.Class.IsStateless() && !hasBuilder
	observation.Stateless = stateless

	key := keyFor(name, stateless, merged)

	if !o.useCache && !stateless {
		c, err := f.build(name, b.Class, builder, config, merged, b.Generation)
		if err != nil {
			return nil, observation, err
		}
		observation.InstanceID = c.id
		return c.instance, observation, nil
	}

	if c, ok := f.lookup(key, b.Generation); ok {
		observation.CacheHit = true
		observation.InstanceID = c.id
		return c.instance, observation, nil
	}

	c, err := f.buildShared(name, key, b, builder, config, merged)
	if err != nil {
		return nil, observation, err
	}
	observation.InstanceID = c.id
	return c.instance, observation, nil
}

// buildShared builds and caches the instance for key at b's generation.
// Concurrent callers for the same key and generation, from Create or
// Refresh, share one build.
func (f *Factory) buildShared(name string, key cacheKey, b registry.Binding, builder Builder, overrides, merged map[string]any) (*cachedInstance, error) {
	flightKey := key.name + "\x00" + key.hash + "\x00" + strconv.FormatUint(b.Generation, 10)
	v, err, _ := f.group.Do(flightKey, func() (any, error) {
		if c, ok := f.lookup(key, b.Generation); ok {
			return c, nil
		}
		c, err := f.build(name, b.Class, builder, overrides, merged, b.Generation)
		if err != nil {
			return nil, err
		}
		f.store(key, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cachedInstance), nil
}

func keyFor(name string, stateless bool, merged map[string]any) cacheKey {
	if stateless {
		return cacheKey{name: name, hash: statelessKey}
	}
	return cacheKey{name: name, hash: ConfigHash(merged)}
}

func (f *Factory) build(name string, class *adapter.Class, builder Builder, overrides, config map[string]any, generation uint64) (*cachedInstance, error) {
	var (
		instance adapter.Adapter
		err      error
	)
	if builder != nil {
		instance, err = builder(class, mergeConfig(nil, config))
	} else {
		instance, err = class.Instantiate(mergeConfig(nil, config))
	}
	if err != nil {
		return nil, fmt.Errorf("building adapter %q: %w", name, err)
	}
	if instance == nil {
		return nil, adapter.InvalidAdapterError(name, errors.New("builder returned nil"))
	}
	if err := adapter.Validate(instance, false); err != nil {
		return nil, adapter.InvalidAdapterError(name, err)
	}

	c := &cachedInstance{
		instance:   instance,
		id:         uuid.NewString(),
		generation: generation,
		overrides:  mergeConfig(nil, overrides),
		createdAt:  time.Now().UTC(),
	}
	f.logger.Debug("built adapter instance",
		slog.String("adapter", name),
		slog.String("instance_id", c.id),
		slog.Uint64("generation", generation),
	)
	return c, nil
}

func (f *Factory) lookup(key cacheKey, generation uint64) (*cachedInstance, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.instances[key]
	if !ok || c.generation != generation {
		return nil, false
	}
	return c, true
}

// store keeps the newest generation for key.
func (f *Factory) store(key cacheKey, c *cachedInstance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.instances[key]; ok && existing.generation > c.generation {
		return
	}
	f.instances[key] = c
}

// evict removes key if it still holds old.
func (f *Factory) evict(key cacheKey, old *cachedInstance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.instances[key] == old {
		delete(f.instances, key)
	}
}

// CreateWithFallback tries names in order and returns the first success.
// When every name fails it returns a *FallbackError listing each attempt.
func (f *Factory) CreateWithFallback(names []string, config map[string]any, opts ...CreateOption) (string, adapter.Adapter, error) {
	attempts := make([]Attempt, 0, len(names))
	for _, name := range names {
		instance, err := f.Create(name, config, opts...)
		if err == nil {
			f.observer.ObserveFallback(adapter.FallbackObservation{
				Candidates: append([]string(nil), names...),
				Selected:   name,
				Attempts:   len(attempts) + 1,
				Success:    true,
			})
			if len(attempts) > 0 {
				f.logger.Info("adapter fallback selected",
					slog.String("adapter", name),
					slog.Int("skipped", len(attempts)),
				)
			}
			return name, instance, nil
		}
		f.logger.Debug("fallback candidate failed", slog.String("adapter", name), slog.Any("error", err))
		attempts = append(attempts, Attempt{Name: name, Err: err})
	}

	f.observer.ObserveFallback(adapter.FallbackObservation{
		Candidates: append([]string(nil), names...),
		Attempts:   len(attempts),
	})
	return "", nil, &FallbackError{Attempts: attempts}
}

// ClearCache evicts cached instances for names, or every instance when no
// name is given.
func (f *Factory) ClearCache(names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(names) == 0 {
		f.instances = make(map[cacheKey]*cachedInstance)
		return
	}
	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		drop[name] = struct{}{}
	}
	for key := range f.instances {
		if _, ok := drop[key.name]; ok {
			delete(f.instances, key)
		}
	}
}

// Refresh rebuilds every instance of name cached under an older registry
// generation against the current binding and defaults, and swaps each one
// in only after it is built. A Create for the same config during the
// rebuild joins it. Keys that fail to rebuild are evicted and their errors
// returned.
func (f *Factory) Refresh(name string) error {
	f.mu.RLock()
	stale := make(map[cacheKey]*cachedInstance)
	for key, c := range f.instances {
		if key.name == name {
			stale[key] = c
		}
	}
	f.mu.RUnlock()
	if len(stale) == 0 {
		return nil
	}

	b, err := f.registry.Bind(name)
	if err != nil {
		f.ClearCache(name)
		return err
	}
	builder, hasBuilder := f.builder(name)
	stateless := b.Class.IsStateless() && !hasBuilder

	var result *multierror.Error
	for key, old := range stale {
		if old.generation >= b.Generation {
			// Already rebuilt by a Create racing this refresh.
			continue
		}
		merged := mergeConfig(b.Defaults, old.overrides)
		freshKey := keyFor(name, stateless, merged)
		if _, err := f.buildShared(name, freshKey, b, builder, old.overrides, merged); err != nil {
			f.evict(key, old)
			result = multierror.Append(result, err)
			continue
		}
		if freshKey != key {
			f.evict(key, old)
		}
	}
	return result.ErrorOrNil()
}

// Len returns the number of cached instances.
func (f *Factory) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.instances)
}

// InstanceInfo describes one cached instance.
type InstanceInfo struct {
	Name       string    `json:"name"`
	ID         string    `json:"id"`
	ConfigHash string    `json:"config_hash"`
	Generation uint64    `json:"generation"`
	CreatedAt  time.Time `json:"created_at"`
}

// Instances returns descriptions of the cached instances of name.
func (f *Factory) Instances(name string) []InstanceInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []InstanceInfo
	for key, c := range f.instances {
		if key.name != name {
			continue
		}
		out = append(out, InstanceInfo{
			Name:       name,
			ID:         c.id,
			ConfigHash: key.hash,
			Generation: c.generation,
			CreatedAt:  c.createdAt,
		})
	}
	return out
}
