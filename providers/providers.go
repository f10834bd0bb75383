// Package providers holds the built-in adapters that convert tools to the
// request formats of LLM provider SDKs.
package providers

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/petal-labs/petaladapt/adapter"
	"github.com/petal-labs/petaladapt/registry"
)

// Resolver references for the built-in adapters.
const (
	RefOpenAI    = "providers.openai"
	RefAnthropic = "providers.anthropic"
	RefGemini    = "providers.gemini"
	RefIris      = "providers.iris"
)

// Register binds the built-in adapters into table.
func Register(table *registry.TableResolver) error {
	bindings := []struct {
		ref       string
		prototype adapter.Adapter
	}{
		{RefOpenAI, &OpenAI{}},
		{RefAnthropic, &Anthropic{}},
		{RefGemini, &Gemini{}},
		{RefIris, &Iris{}},
	}
	for _, b := range bindings {
		if err := table.Register(b.ref, adapter.ClassOf(b.prototype)); err != nil {
			return err
		}
	}
	return nil
}

var errToolName = errors.New("tool name is required")

// decodeConfig applies an adapter config map onto target.
func decodeConfig(config map[string]any, target any) error {
	if len(config) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(config); err != nil {
		return fmt.Errorf("decoding adapter config: %w", err)
	}
	return nil
}

// objectSchema returns parameters, or an empty object schema when unset.
func objectSchema(parameters map[string]any) map[string]any {
	if parameters == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return parameters
}
