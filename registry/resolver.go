package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/petal-labs/petaladapt/adapter"
)

// Resolver turns a declarative reference (for example "providers.openai")
// into an adapter class. It is the only late-binding point of the registry.
type Resolver interface {
	Resolve(ref string) (*adapter.Class, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ref string) (*adapter.Class, error)

// Resolve calls f(ref).
func (f ResolverFunc) Resolve(ref string) (*adapter.Class, error) {
	return f(ref)
}

// TableResolver is a registration table populated at process start. A
// reference may be re-pointed at a new class; entries resolved afterwards (for
// example after a reload) see the new class.
type TableResolver struct {
	mu      sync.RWMutex
	classes map[string]*adapter.Class
}

// NewTableResolver returns an empty table.
func NewTableResolver() *TableResolver {
	return &TableResolver{classes: make(map[string]*adapter.Class)}
}

// Register binds ref to impl (a *adapter.Class, reflect.Type, or instance),
// replacing any previous binding.
func (t *TableResolver) Register(ref string, impl any) error {
	clean := strings.TrimSpace(ref)
	if clean == "" {
		return fmt.Errorf("registry: reference is required")
	}
	class, err := adapter.AsClass(impl)
	if err != nil {
		return fmt.Errorf("registry: reference %q: %w", clean, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.classes[clean] = class
	return nil
}

// MustRegister is Register for init-time tables; it panics on error.
func (t *TableResolver) MustRegister(ref string, impl any) {
	if err := t.Register(ref, impl); err != nil {
		panic(err)
	}
}

// Resolve returns the class bound to ref.
func (t *TableResolver) Resolve(ref string) (*adapter.Class, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	class, ok := t.classes[strings.TrimSpace(ref)]
	if !ok {
		return nil, fmt.Errorf("unknown reference %q", ref)
	}
	return class, nil
}

// References returns every bound reference in sorted order.
func (t *TableResolver) References() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	refs := make([]string, 0, len(t.classes))
	for ref := range t.classes {
		refs = append(refs, ref)
	}
	slices.Sort(refs)
	return refs
}

// Namespace returns the members whose reference starts with prefix + ".".
// Member names are the reference remainder, e.g. "providers.openai" under
// prefix "providers" is named "openai".
func (t *TableResolver) Namespace(prefix string) Namespace {
	clean := strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	t.mu.RLock()
	defer t.mu.RUnlock()
	members := make(MapNamespace)
	for ref, class := range t.classes {
		name, ok := strings.CutPrefix(ref, clean+".")
		if !ok || name == "" {
			continue
		}
		members[name] = class
	}
	return members
}

// Namespace is a collection of discoverable members for AutoDiscover.
type Namespace interface {
	Members() map[string]any
}

// MapNamespace is a Namespace backed by a map of name to candidate.
type MapNamespace map[string]any

// Members returns the map itself.
func (m MapNamespace) Members() map[string]any {
	return m
}
