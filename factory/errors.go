package factory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/petal-labs/petaladapt/adapter"
)

// Attempt records one failed candidate in a fallback walk.
type Attempt struct {
	Name string `json:"name"`
	Err  error  `json:"-"`
}

// FallbackError is returned when every candidate of a fallback walk failed.
// Attempts are in the order they were tried.
type FallbackError struct {
	Attempts []Attempt
}

func (e *FallbackError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Attempts) == 0 {
		return adapter.CodeFallbackExhausted + ": no candidates"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Name, a.Err))
	}
	return fmt.Sprintf("%s: all %d candidates failed (%s)", adapter.CodeFallbackExhausted, len(e.Attempts), strings.Join(parts, "; "))
}

// Is matches adapter.ErrFallbackExhausted.
func (e *FallbackError) Is(target error) bool {
	return target == adapter.ErrFallbackExhausted
}

// Unwrap exposes every attempt's error.
func (e *FallbackError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// Names returns the attempted names in order.
func (e *FallbackError) Names() []string {
	names := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		names = append(names, a.Name)
	}
	return names
}

// AsFallbackError extracts a *FallbackError from err.
func AsFallbackError(err error) (*FallbackError, bool) {
	var fe *FallbackError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
