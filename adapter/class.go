package adapter

import (
	"errors"
	"fmt"
	"reflect"
)

// Constructor builds an adapter instance from merged config.
type Constructor func(config map[string]any) (Adapter, error)

// Class is the constructible form of an adapter implementation: the concrete
// type plus how to build it. Registry entries bind names to classes.
type Class struct {
	// Type is the concrete adapter type, usually a pointer to a struct.
	Type reflect.Type
	// New builds an instance. When nil, a zero value of Type is allocated and
	// configured through Configurable if Type implements it.
	New Constructor
	// Stateless declares that every instance is interchangeable, so one
	// instance per name may be shared regardless of config.
	Stateless bool
}

// ClassOf returns a class for the dynamic type of prototype using default
// construction.
func ClassOf(prototype any) *Class {
	return &Class{Type: reflect.TypeOf(prototype)}
}

// ClassWith returns a class for prototype's type built by newFn.
func ClassWith(prototype any, newFn Constructor) *Class {
	return &Class{Type: reflect.TypeOf(prototype), New: newFn}
}

// InstanceClass wraps an existing instance. The class always yields that
// instance and is stateless.
func InstanceClass(instance Adapter) *Class {
	return &Class{
		Type:      reflect.TypeOf(instance),
		New:       func(map[string]any) (Adapter, error) { return instance, nil },
		Stateless: true,
	}
}

// AsClass normalizes a registration candidate: a *Class, a reflect.Type, or an
// Adapter instance.
func AsClass(impl any) (*Class, error) {
	switch v := impl.(type) {
	case nil:
		return nil, errors.New("implementation is nil")
	case *Class:
		if v == nil || v.Type == nil {
			return nil, errors.New("class has no type")
		}
		return v, nil
	case reflect.Type:
		return &Class{Type: v}, nil
	case Adapter:
		return InstanceClass(v), nil
	default:
		return nil, fmt.Errorf("unsupported implementation %T", impl)
	}
}

// String returns the type name for logs.
func (c *Class) String() string {
	if c == nil || c.Type == nil {
		return "<nil>"
	}
	return c.Type.String()
}

// IsStateless reports whether instances of c hold no per-instance state:
// either declared, or the underlying struct has zero size.
func (c *Class) IsStateless() bool {
	if c == nil || c.Type == nil {
		return false
	}
	if c.Stateless {
		return true
	}
	t := c.Type
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t.Size() == 0
}

// Instantiate builds one instance with config.
func (c *Class) Instantiate(config map[string]any) (Adapter, error) {
	if c == nil || c.Type == nil {
		return nil, errors.New("class has no type")
	}
	if c.New != nil {
		return c.New(config)
	}

	var value reflect.Value
	switch {
	case c.Type.Kind() == reflect.Pointer && c.Type.Elem().Kind() == reflect.Struct:
		value = reflect.New(c.Type.Elem())
	case c.Type.Kind() == reflect.Struct:
		value = reflect.New(c.Type).Elem()
	default:
		return nil, fmt.Errorf("cannot construct %s without a constructor", c.Type)
	}

	instance, ok := value.Interface().(Adapter)
	if !ok {
		return nil, fmt.Errorf("%s does not implement the adapter interface", c.Type)
	}
	if configurable, ok := instance.(Configurable); ok {
		if err := configurable.Configure(config); err != nil {
			return nil, fmt.Errorf("configuring %s: %w", c.Type, err)
		}
	}
	return instance, nil
}
