package adapter

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// CodeConfig marks a declarative record that could not be accepted.
	CodeConfig = "CONFIG_ERROR"
	// CodeLoad marks a reference that could not be resolved to an implementation.
	CodeLoad = "LOAD_ERROR"
	// CodeInvalidAdapter marks an implementation that fails contract validation.
	CodeInvalidAdapter = "INVALID_ADAPTER"
	// CodeNotFound marks a lookup of an unregistered adapter or strategy.
	CodeNotFound = "NOT_FOUND"
	// CodeToolNotFound marks an ExecuteTool call naming an unknown tool.
	CodeToolNotFound = "TOOL_NOT_FOUND"
	// CodeFallbackExhausted marks a fallback attempt where every candidate failed.
	CodeFallbackExhausted = "FALLBACK_EXHAUSTED"
)

var (
	ErrConfig            = errors.New("adapter: config error")
	ErrLoad              = errors.New("adapter: load error")
	ErrInvalidAdapter    = errors.New("adapter: invalid adapter")
	ErrNotFound          = errors.New("adapter: not found")
	ErrToolNotFound      = errors.New("adapter: tool not found")
	ErrFallbackExhausted = errors.New("adapter: fallback exhausted")
)

var sentinelByCode = map[string]error{
	CodeConfig:            ErrConfig,
	CodeLoad:              ErrLoad,
	CodeInvalidAdapter:    ErrInvalidAdapter,
	CodeNotFound:          ErrNotFound,
	CodeToolNotFound:      ErrToolNotFound,
	CodeFallbackExhausted: ErrFallbackExhausted,
}

// Error is a structured adapter-subsystem error. It matches the sentinel for
// its Code under errors.Is and unwraps to Cause.
type Error struct {
	Code    string `json:"code"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	code := strings.TrimSpace(e.Code)
	msg := strings.TrimSpace(e.Message)
	if e.Cause != nil {
		if msg == "" {
			msg = e.Cause.Error()
		} else {
			msg = msg + ": " + e.Cause.Error()
		}
	}
	switch {
	case code == "" && msg == "":
		return "adapter error"
	case code == "":
		return msg
	case msg == "":
		return code
	default:
		return fmt.Sprintf("%s: %s", code, msg)
	}
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is the sentinel for e.Code.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	sentinel, ok := sentinelByCode[e.Code]
	return ok && sentinel == target
}

func newError(code, name, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Name:    name,
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// ConfigError reports a rejected declarative record.
func ConfigError(name, message string) *Error {
	return newError(CodeConfig, name, message, nil)
}

// LoadError reports a reference that failed to resolve.
func LoadError(name string, cause error) *Error {
	return newError(CodeLoad, name, fmt.Sprintf("loading adapter %q", name), cause)
}

// InvalidAdapterError reports an implementation that fails validation.
func InvalidAdapterError(name string, cause error) *Error {
	return newError(CodeInvalidAdapter, name, fmt.Sprintf("adapter %q does not satisfy the contract", name), cause)
}

// NotFoundError reports an unregistered name.
func NotFoundError(kind, name string) *Error {
	return newError(CodeNotFound, name, fmt.Sprintf("%s %q is not registered", kind, name), nil)
}

// Code returns the error code carried by err, or "".
func Code(err error) string {
	var adapterErr *Error
	if errors.As(err, &adapterErr) && adapterErr != nil {
		return adapterErr.Code
	}
	if errors.Is(err, ErrFallbackExhausted) {
		return CodeFallbackExhausted
	}
	return ""
}
