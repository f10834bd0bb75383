package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewListCmd creates the "list" subcommand.
func NewListCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured adapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, rt)
		},
	}
	cmd.Flags().String("format", "table", "Output format: table | json")
	return cmd
}

func runList(cmd *cobra.Command, rt *Runtime) error {
	s, err := openSession(cmd, rt)
	if err != nil {
		return err
	}
	defer s.Close()

	entries := s.manager.Registry().Describe()
	out := cmd.OutOrStdout()

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return exitError(exitRuntime, "encoding adapters: %v", err)
		}
		_, _ = out.Write(append(data, '\n'))
		return nil
	case "table", "":
	default:
		return exitError(exitInputParse, "unknown format %q (expected table or json)", format)
	}

	writer := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tMODULE\tPROVIDER\tSTATE\tGENERATION")
	for _, info := range entries {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%d\n",
			info.Name,
			dash(info.Reference),
			dash(metadataString(info.Metadata, "provider")),
			info.State,
			info.Generation,
		)
	}
	if err := writer.Flush(); err != nil {
		return exitError(exitRuntime, "writing output: %v", err)
	}

	if strategies := s.manager.Strategies(); len(strategies) > 0 {
		fmt.Fprintln(out)
		writer = tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
		fmt.Fprintln(writer, "STRATEGY\tADAPTERS")
		for _, name := range strategies {
			names, _ := s.manager.Strategy(name)
			fmt.Fprintf(writer, "%s\t%s\n", name, strings.Join(names, ", "))
		}
		if err := writer.Flush(); err != nil {
			return exitError(exitRuntime, "writing output: %v", err)
		}
	}
	return nil
}

func metadataString(metadata map[string]any, key string) string {
	if v, ok := metadata[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
