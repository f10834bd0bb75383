package manager

import (
	"log/slog"

	"github.com/petal-labs/petaladapt/adapter"
	"github.com/petal-labs/petaladapt/factory"
	"github.com/petal-labs/petaladapt/loader"
	"github.com/petal-labs/petaladapt/registry"
)

type options struct {
	resolver       registry.Resolver
	logger         *slog.Logger
	observer       adapter.Observer
	sources        []loader.Source
	requireAdapter bool
	strict         bool
	cacheDefault   bool
	builders       map[string]factory.Builder
}

func defaultOptions() options {
	return options{
		logger:       slog.Default(),
		observer:     adapter.NopObserver{},
		cacheDefault: true,
		builders:     make(map[string]factory.Builder),
	}
}

// Option configures a Manager.
type Option func(*options)

// WithResolver sets the resolver used for lazy references.
func WithResolver(resolver registry.Resolver) Option {
	return func(o *options) {
		o.resolver = resolver
	}
}

// WithLogger sets the logger shared by the registry, factory and loader.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver sets the observer shared by the registry and factory.
func WithObserver(observer adapter.Observer) Option {
	return func(o *options) {
		o.observer = adapter.ObserverOrNop(observer)
	}
}

// WithSources adds declaration sources. With FromConfig they are read after
// the config file.
func WithSources(sources ...loader.Source) Option {
	return func(o *options) {
		o.sources = append(o.sources, sources...)
	}
}

// WithRequireAdapter makes loading fail when no adapter gets registered.
func WithRequireAdapter(required bool) Option {
	return func(o *options) {
		o.requireAdapter = required
	}
}

// WithStrictValidation enables strict contract validation.
func WithStrictValidation(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithCache sets the factory cache default.
func WithCache(enabled bool) Option {
	return func(o *options) {
		o.cacheDefault = enabled
	}
}

// WithBuilder registers a custom builder for name.
func WithBuilder(name string, builder factory.Builder) Option {
	return func(o *options) {
		if builder != nil {
			o.builders[name] = builder
		}
	}
}
