package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/petal-labs/petaladapt/adapter"
)

type entry struct {
	name     string
	ref      string
	metadata map[string]any
	defaults map[string]any

	mu         sync.Mutex
	state      State
	class      *adapter.Class
	err        error
	generation uint64
	// resolving is non-nil while a resolution is in flight and is closed
	// when it finishes.
	resolving chan struct{}
}

func newEntry(name, ref string, metadata map[string]any, opts []Option) *entry {
	e := &entry{
		name:     name,
		ref:      ref,
		metadata: cloneMap(metadata),
		defaults: map[string]any{},
		state:    StateLazy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *entry) currentGeneration() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// resolve returns the entry's class and the generation it belongs to. A
// result produced across a reload carries the generation it started under.
func (e *entry) resolve(r *Registry) (*adapter.Class, uint64, error) {
	e.mu.Lock()
	for e.resolving != nil {
		wait := e.resolving
		e.mu.Unlock()
		<-wait
		e.mu.Lock()
	}

	switch e.state {
	case StateResolved:
		class, generation := e.class, e.generation
		e.mu.Unlock()
		return class, generation, nil
	case StateLoadError:
		err, generation := e.err, e.generation
		e.mu.Unlock()
		return nil, generation, err
	}

	done := make(chan struct{})
	e.resolving = done
	generation := e.generation
	ref := e.ref
	e.mu.Unlock()

	var (
		class *adapter.Class
		err   error
	)
	defer func() {
		if class == nil && err == nil {
			err = adapter.LoadError(e.name, errors.New("resolution did not complete"))
		}
		e.mu.Lock()
		// A reload during resolution moved the generation; the result
		// belongs to the old generation and is not stored.
		if e.generation == generation {
			if err != nil {
				e.state = StateLoadError
				e.err = err
			} else {
				e.state = StateResolved
				e.class = class
			}
		}
		e.resolving = nil
		close(done)
		e.mu.Unlock()
	}()

	start := time.Now()
	class, err = r.resolveRef(e.name, ref)
	r.observeResolve(e.name, ref, generation, start, err)
	return class, generation, err
}

func (e *entry) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	if e.ref == "" {
		return
	}
	e.state = StateLazy
	e.class = nil
	e.err = nil
}

func (e *entry) info() EntryInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	info := EntryInfo{
		Name:       e.name,
		Reference:  e.ref,
		State:      e.state,
		Generation: e.generation,
		Metadata:   cloneMap(e.metadata),
	}
	if e.class != nil {
		info.Class = e.class.String()
	}
	if e.err != nil {
		info.Error = e.err.Error()
	}
	return info
}
