package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/petal-labs/petaladapt/adapter"
)

// toolDefinition is one entry of a --tools file.
type toolDefinition struct {
	Name        string         `mapstructure:"name"`
	Description string         `mapstructure:"description"`
	Parameters  map[string]any `mapstructure:"parameters"`
}

type convertOutput struct {
	Adapter string `json:"adapter"`
	Tools   []any  `json:"tools"`
	Result  any    `json:"result,omitempty"`
}

// NewConvertCmd creates the "convert" subcommand.
func NewConvertCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert tool definitions into an adapter's provider format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, rt)
		},
	}
	cmd.Flags().String("adapter", "", "Adapter name")
	cmd.Flags().String("strategy", "", "Strategy name; the first adapter that builds is used")
	cmd.Flags().String("tools", "", "Path to a YAML or JSON file of tool definitions")
	cmd.Flags().StringArray("set", nil, "Adapter config override KEY=VALUE (repeatable)")
	cmd.Flags().String("call", "", "Also execute this tool through the adapter with an echo handler")
	cmd.Flags().StringArray("input", nil, "Input for --call as KEY=VALUE (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("adapter", "strategy")
	cmd.MarkFlagsOneRequired("adapter", "strategy")
	_ = cmd.MarkFlagRequired("tools")
	return cmd
}

func runConvert(cmd *cobra.Command, rt *Runtime) error {
	toolsPath, _ := cmd.Flags().GetString("tools")
	tools, err := loadToolFile(toolsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return exitError(exitFileNotFound, "tools file not found: %s", toolsPath)
		}
		return exitError(exitInputParse, "%v", err)
	}

	config, err := parseAssignments(cmd, "set")
	if err != nil {
		return exitError(exitInputParse, "invalid --set: %v", err)
	}

	s, err := openSession(cmd, rt)
	if err != nil {
		return err
	}
	defer s.Close()

	name, _ := cmd.Flags().GetString("adapter")
	strategy, _ := cmd.Flags().GetString("strategy")
	var inst adapter.Adapter
	if strategy != "" {
		name, inst, err = s.manager.UseStrategy(strategy, config)
	} else {
		inst, err = s.manager.Get(name, config)
	}
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}

	converted, err := inst.ConvertTools(tools)
	if err != nil {
		return exitError(exitValidation, "converting tools with %s: %v", name, err)
	}
	result := convertOutput{Adapter: name, Tools: converted}

	if call, _ := cmd.Flags().GetString("call"); call != "" {
		input, err := parseAssignments(cmd, "input")
		if err != nil {
			return exitError(exitInputParse, "invalid --input: %v", err)
		}
		result.Result, err = inst.ExecuteTool(cmd.Context(), call, input, tools)
		if err != nil {
			return exitError(exitRuntime, "executing %s: %v", call, err)
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return exitError(exitRuntime, "encoding converted tools: %v", err)
	}
	_, _ = cmd.OutOrStdout().Write(append(data, '\n'))
	return nil
}

// loadToolFile reads tool definitions from a list document or a document
// with a top-level "tools" list. Every tool echoes its input when called.
func loadToolFile(path string) ([]adapter.Tool, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from CLI flag
	if err != nil {
		return nil, err
	}

	// yaml.v3 also reads JSON documents.
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing tools file %s: %w", path, err)
	}
	if doc, ok := raw.(map[string]any); ok {
		raw = doc["tools"]
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("tools file %s: expected a list of tools", path)
	}

	var defs []toolDefinition
	if err := mapstructure.Decode(list, &defs); err != nil {
		return nil, fmt.Errorf("tools file %s: %w", path, err)
	}
	tools := make([]adapter.Tool, 0, len(defs))
	for i, def := range defs {
		if strings.TrimSpace(def.Name) == "" {
			return nil, fmt.Errorf("tools file %s: tool %d has no name", path, i)
		}
		name := def.Name
		tools = append(tools, adapter.Tool{
			Name:        name,
			Description: def.Description,
			Parameters:  def.Parameters,
			Handler: func(_ context.Context, input map[string]any) (any, error) {
				return map[string]any{"tool": name, "input": input}, nil
			},
		})
	}
	return tools, nil
}

func parseAssignments(cmd *cobra.Command, flag string) (map[string]any, error) {
	pairs, _ := cmd.Flags().GetStringArray(flag)
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, err := parseKeyValue(pair)
		if err != nil {
			return nil, err
		}
		out[key] = parsePrimitiveValue(value)
	}
	return out, nil
}

func parseKeyValue(value string) (string, string, error) {
	parts := strings.SplitN(value, "=", 2)
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return "", "", errors.New("key is required")
	}
	if len(parts) == 1 {
		return "", "", fmt.Errorf("%s: value is required", key)
	}
	return key, parts[1], nil
}

func parsePrimitiveValue(value string) any {
	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}

	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "\"") {
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return parsed
		}
	}
	return value
}
