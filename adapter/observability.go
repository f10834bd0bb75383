package adapter

import "time"

// ResolveObservation captures one registry resolution of a lazy entry.
type ResolveObservation struct {
	Name       string
	Reference  string
	Generation uint64
	DurationMS int64
	Success    bool
	ErrorCode  string
}

// BuildObservation captures one factory create call.
type BuildObservation struct {
	Name       string
	InstanceID string
	CacheHit   bool
	Stateless  bool
	Builder    bool
	DurationMS int64
	Success    bool
	ErrorCode  string
}

// FallbackObservation captures one fallback walk over candidate names.
type FallbackObservation struct {
	Candidates []string
	Selected   string
	Attempts   int
	Success    bool
}

// Observer receives adapter-subsystem observability events.
type Observer interface {
	ObserveResolve(observation ResolveObservation)
	ObserveBuild(observation BuildObservation)
	ObserveFallback(observation FallbackObservation)
}

// NopObserver discards every observation.
type NopObserver struct{}

func (NopObserver) ObserveResolve(ResolveObservation)   {}
func (NopObserver) ObserveBuild(BuildObservation)       {}
func (NopObserver) ObserveFallback(FallbackObservation) {}

// ObserverOrNop returns o, or NopObserver when o is nil.
func ObserverOrNop(o Observer) Observer {
	if o == nil {
		return NopObserver{}
	}
	return o
}

// ElapsedMS returns milliseconds since start.
func ElapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
