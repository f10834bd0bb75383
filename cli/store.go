package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petaladapt/loader"
)

// NewStoreCmd creates the "store" command group.
func NewStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage adapter declarations in the SQLite store",
	}
	cmd.AddCommand(newStorePutCmd())
	cmd.AddCommand(newStoreRemoveCmd())
	cmd.AddCommand(newStoreListCmd())
	return cmd
}

func newStorePutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <name>",
		Short: "Add or replace a declaration",
		Args:  cobra.ExactArgs(1),
		RunE:  runStorePut,
	}
	cmd.Flags().String("module", "", "Adapter reference, e.g. providers.openai")
	cmd.Flags().Bool("disabled", false, "Store the declaration as disabled")
	cmd.Flags().StringArray("meta", nil, "Metadata KEY=VALUE (repeatable)")
	cmd.Flags().StringArray("set", nil, "Default config KEY=VALUE (repeatable)")
	_ = cmd.MarkFlagRequired("module")
	return cmd
}

func runStorePut(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	module, _ := cmd.Flags().GetString("module")
	if strings.TrimSpace(module) == "" {
		return exitError(exitValidation, "--module is required")
	}
	metadata, err := parseAssignments(cmd, "meta")
	if err != nil {
		return exitError(exitInputParse, "invalid --meta: %v", err)
	}
	config, err := parseAssignments(cmd, "set")
	if err != nil {
		return exitError(exitInputParse, "invalid --set: %v", err)
	}

	d := loader.Descriptor{
		Name:     name,
		Module:   strings.TrimSpace(module),
		Metadata: metadata,
		Config:   config,
	}
	if disabled, _ := cmd.Flags().GetBool("disabled"); disabled {
		enabled := false
		d.Enabled = &enabled
	}

	store, err := openStore(cmd, true)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Upsert(cmd.Context(), d); err != nil {
		return exitError(exitRuntime, "storing declaration: %v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored adapter %q\n", name)
	return nil
}

func newStoreRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove a declaration",
		Args:  cobra.ExactArgs(1),
		RunE:  runStoreRemove,
	}
}

func runStoreRemove(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd, true)
	if err != nil {
		return err
	}
	defer store.Close()

	name := args[0]
	_, found, err := store.Get(cmd.Context(), name)
	if err != nil {
		return exitError(exitRuntime, "loading declaration: %v", err)
	}
	if !found {
		return exitError(exitValidation, "adapter %q is not in the store", name)
	}
	if err := store.Delete(cmd.Context(), name); err != nil {
		return exitError(exitRuntime, "removing declaration: %v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed adapter %q\n", name)
	return nil
}

func newStoreListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List stored declarations",
		Args:  cobra.NoArgs,
		RunE:  runStoreList,
	}
}

func runStoreList(cmd *cobra.Command, _ []string) error {
	store, err := openStore(cmd, true)
	if err != nil {
		return err
	}
	defer store.Close()

	declarations, err := store.List(cmd.Context())
	if err != nil {
		return exitError(exitRuntime, "listing declarations: %v", err)
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tMODULE\tENABLED\tCONFIG KEYS")
	for _, d := range declarations {
		fmt.Fprintf(writer, "%s\t%s\t%t\t%d\n", d.Name, d.Module, d.IsEnabled(), len(d.Config))
	}
	if err := writer.Flush(); err != nil {
		return exitError(exitRuntime, "writing output: %v", err)
	}
	return nil
}
