package loader

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/petal-labs/petaladapt/adapter"
)

// Descriptor is one declared adapter.
type Descriptor struct {
	Name     string         `mapstructure:"name" json:"name" yaml:"name"`
	Module   string         `mapstructure:"module" json:"module" yaml:"module"`
	Enabled  *bool          `mapstructure:"enabled" json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Metadata map[string]any `mapstructure:"metadata" json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Config   map[string]any `mapstructure:"config" json:"config,omitempty" yaml:"config,omitempty"`
}

// IsEnabled reports whether the descriptor is enabled. Unset means enabled.
func (d Descriptor) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// Record returns d as a raw record.
func (d Descriptor) Record() map[string]any {
	record := map[string]any{
		"name":   d.Name,
		"module": d.Module,
	}
	if d.Enabled != nil {
		record["enabled"] = *d.Enabled
	}
	if d.Metadata != nil {
		record["metadata"] = cloneMap(d.Metadata)
	}
	if d.Config != nil {
		record["config"] = cloneMap(d.Config)
	}
	return record
}

// Decode converts a raw record into a Descriptor. Values are weakly typed so
// "false" from an environment variable decodes to a bool. Keys the descriptor
// does not know are returned as unused.
func Decode(record map[string]any) (Descriptor, []string, error) {
	var (
		d    Descriptor
		meta mapstructure.Metadata
	)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Metadata:         &meta,
		Result:           &d,
	})
	if err != nil {
		return Descriptor{}, nil, err
	}
	name := recordName(record)
	if err := decoder.Decode(record); err != nil {
		return Descriptor{}, nil, adapter.ConfigError(name, fmt.Sprintf("invalid record: %v", err))
	}

	d.Name = strings.TrimSpace(d.Name)
	d.Module = strings.TrimSpace(d.Module)
	switch {
	case d.Name == "":
		return Descriptor{}, nil, adapter.ConfigError("", "record is missing required field name")
	case d.Module == "":
		return Descriptor{}, nil, adapter.ConfigError(d.Name, "record is missing required field module")
	}
	if d.Metadata == nil {
		d.Metadata = map[string]any{}
	}
	if d.Config == nil {
		d.Config = map[string]any{}
	}
	return d, meta.Unused, nil
}

// recordName reads the record's name with the same weak typing Decode uses,
// so name: 42 is "42". Names that are not scalars read as empty.
func recordName(record map[string]any) string {
	var name string
	if err := mapstructure.WeakDecode(record["name"], &name); err != nil {
		return ""
	}
	return strings.TrimSpace(name)
}
