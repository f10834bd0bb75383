package adapter

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

const (
	// DiagnosticMissingMethod flags a contract method the candidate lacks.
	DiagnosticMissingMethod = "MISSING_METHOD"
	// DiagnosticSignatureMismatch flags a method whose parameters or results
	// differ from the contract (strict mode only).
	DiagnosticSignatureMismatch = "SIGNATURE_MISMATCH"
)

var contractType = reflect.TypeOf((*Adapter)(nil)).Elem()

// ContractMethods returns the contract method names in sorted order.
func ContractMethods() []string {
	names := make([]string, 0, contractType.NumMethod())
	for i := 0; i < contractType.NumMethod(); i++ {
		names = append(names, contractType.Method(i).Name)
	}
	return names
}

// Diagnostic is one contract violation.
type Diagnostic struct {
	Method  string `json:"method"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError lists every violation found for one candidate type.
type ValidationError struct {
	Type        string       `json:"type"`
	Strict      bool         `json:"strict"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		parts = append(parts, d.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, strings.Join(parts, "; "))
}

// Validate checks candidate against the Adapter contract. candidate may be a
// *Class, a reflect.Type, or an instance. Basic mode requires the three
// contract methods to exist and be exported; strict mode also requires their
// parameter and result types to match exactly.
func Validate(candidate any, strict bool) error {
	t, err := candidateType(candidate)
	if err != nil {
		return err
	}

	verr := &ValidationError{Type: t.String(), Strict: strict}
	for i := 0; i < contractType.NumMethod(); i++ {
		want := contractType.Method(i)
		got, ok := t.MethodByName(want.Name)
		if !ok {
			verr.Diagnostics = append(verr.Diagnostics, Diagnostic{
				Method:  want.Name,
				Code:    DiagnosticMissingMethod,
				Message: fmt.Sprintf("missing method %s", want.Name),
			})
			continue
		}
		if !strict {
			continue
		}
		if msg := compareSignature(t, got.Type, want.Type); msg != "" {
			verr.Diagnostics = append(verr.Diagnostics, Diagnostic{
				Method:  want.Name,
				Code:    DiagnosticSignatureMismatch,
				Message: fmt.Sprintf("%s: %s", want.Name, msg),
			})
		}
	}
	if len(verr.Diagnostics) > 0 {
		return verr
	}
	return nil
}

// Conforms is the boolean form of Validate.
func Conforms(candidate any, strict bool) bool {
	return Validate(candidate, strict) == nil
}

func candidateType(candidate any) (reflect.Type, error) {
	switch v := candidate.(type) {
	case nil:
		return nil, errors.New("candidate is nil")
	case *Class:
		if v == nil || v.Type == nil {
			return nil, errors.New("class has no type")
		}
		return v.Type, nil
	case reflect.Type:
		if v == nil {
			return nil, errors.New("candidate type is nil")
		}
		return v, nil
	default:
		return reflect.TypeOf(candidate), nil
	}
}

// compareSignature compares a method type obtained from owner against the
// contract's method type. Methods of concrete types carry the receiver as
// their first parameter; methods of interface types do not.
func compareSignature(owner, got, want reflect.Type) string {
	offset := 1
	if owner.Kind() == reflect.Interface {
		offset = 0
	}
	if got.NumIn()-offset != want.NumIn() {
		return fmt.Sprintf("takes %d parameters, want %d", got.NumIn()-offset, want.NumIn())
	}
	for i := 0; i < want.NumIn(); i++ {
		if g, w := got.In(i+offset), want.In(i); g != w {
			return fmt.Sprintf("parameter %d is %s, want %s", i+1, g, w)
		}
	}
	if got.IsVariadic() != want.IsVariadic() {
		return "variadic mismatch"
	}
	if got.NumOut() != want.NumOut() {
		return fmt.Sprintf("returns %d results, want %d", got.NumOut(), want.NumOut())
	}
	for i := 0; i < want.NumOut(); i++ {
		if g, w := got.Out(i), want.Out(i); g != w {
			return fmt.Sprintf("result %d is %s, want %s", i+1, g, w)
		}
	}
	return ""
}
