package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petaladapt/manager"
)

// NewCheckCmd creates the "check" subcommand.
func NewCheckCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Resolve and build every adapter, failing if any cannot be used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, rt)
		},
	}
	cmd.Flags().Bool("strict", false, "Also compare method signatures against the adapter contract")
	return cmd
}

func runCheck(cmd *cobra.Command, rt *Runtime) error {
	strict, _ := cmd.Flags().GetBool("strict")
	s, err := openSession(cmd, rt, manager.WithStrictValidation(strict))
	if err != nil {
		return err
	}
	defer s.Close()

	mgr := s.manager
	out := cmd.OutOrStdout()
	writer := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tSTATUS\tDETAIL")

	failures := 0
	for _, name := range mgr.ListAdapters() {
		status, detail := "ok", "-"
		if _, err := mgr.Get(name, nil); err != nil {
			failures++
			status, detail = "error", err.Error()
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", name, status, detail)
	}
	if err := writer.Flush(); err != nil {
		return exitError(exitRuntime, "writing output: %v", err)
	}

	report := mgr.LastReport()
	if report.Rejected != nil {
		for _, rejected := range report.Rejected.Errors {
			fmt.Fprintf(out, "rejected: %v\n", rejected)
		}
		failures += len(report.Rejected.Errors)
	}
	for _, name := range report.Disabled {
		fmt.Fprintf(out, "disabled: %s\n", name)
	}

	if failures > 0 {
		return exitError(exitValidation, "%d adapter declaration(s) failed", failures)
	}
	fmt.Fprintf(out, "%d adapter(s) ok\n", len(mgr.ListAdapters()))
	return nil
}
