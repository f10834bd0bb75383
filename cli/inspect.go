package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petaladapt/factory"
	"github.com/petal-labs/petaladapt/registry"
)

type inspectView struct {
	registry.EntryInfo
	Defaults  map[string]any         `json:"defaults,omitempty"`
	Available bool                   `json:"available"`
	Instances []factory.InstanceInfo `json:"instances,omitempty"`
}

// NewInspectCmd creates the "inspect" subcommand.
func NewInspectCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <name>",
		Short: "Resolve an adapter and show its registry entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, rt, args[0])
		},
	}
	cmd.Flags().Bool("build", false, "Also build an instance with the default config")
	return cmd
}

func runInspect(cmd *cobra.Command, rt *Runtime, name string) error {
	s, err := openSession(cmd, rt)
	if err != nil {
		return err
	}
	defer s.Close()

	mgr := s.manager
	if !mgr.Registry().IsRegistered(name) {
		return exitError(exitValidation, "adapter %q is not registered", name)
	}

	// A failed resolution is reported through the entry state.
	_, _ = mgr.Registry().Get(name)
	if build, _ := cmd.Flags().GetBool("build"); build && mgr.IsAvailable(name) {
		if _, err := mgr.Get(name, nil); err != nil {
			newLogger(cmd).Warn("adapter build failed", "adapter", name, "error", err)
		}
	}

	var view inspectView
	for _, info := range mgr.Registry().Describe() {
		if info.Name == name {
			view.EntryInfo = info
			break
		}
	}
	view.Defaults = mgr.Registry().Defaults(name)
	view.Available = mgr.IsAvailable(name)
	view.Instances = mgr.Factory().Instances(name)

	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return exitError(exitRuntime, "encoding adapter: %v", err)
	}
	_, _ = cmd.OutOrStdout().Write(append(data, '\n'))
	return nil
}
