package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petaladapt/manager"
)

// NewWatchCmd creates the "watch" subcommand.
func NewWatchCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep adapters loaded and reload them when configuration changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, rt)
		},
	}
	cmd.Flags().String("cron", "", "Also reload on a 5-field UTC cron schedule")
	cmd.Flags().Duration("debounce", 250*time.Millisecond, "Delay before reloading after a file change")
	cmd.Flags().Bool("no-files", false, "Do not watch the config files")
	return cmd
}

func runWatch(cmd *cobra.Command, rt *Runtime) error {
	s, err := openSession(cmd, rt)
	if err != nil {
		return err
	}
	defer s.Close()

	logger := newLogger(cmd)
	expr, _ := cmd.Flags().GetString("cron")
	noFiles, _ := cmd.Flags().GetBool("no-files")
	watchFiles := s.file != nil && !noFiles
	if !watchFiles && expr == "" {
		return exitError(exitValidation, "nothing to watch: no config file found and --cron not set")
	}

	var scheduler *manager.ReloadScheduler
	if expr != "" {
		scheduler, err = manager.NewReloadScheduler(manager.ReloadSchedulerConfig{
			Reloader: s.manager,
			Cron:     expr,
			Logger:   logger,
		})
		if err != nil {
			return exitError(exitValidation, "%v", err)
		}
	}

	var watcher *manager.Watcher
	if watchFiles {
		debounce, _ := cmd.Flags().GetDuration("debounce")
		watcher, err = manager.NewWatcher(manager.WatcherConfig{
			Reloader: s.manager,
			Paths:    s.file.Paths(),
			Debounce: debounce,
			Logger:   logger,
		})
		if err != nil {
			return exitError(exitRuntime, "%v", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if scheduler != nil {
		if err := scheduler.Start(ctx); err != nil {
			return exitError(exitRuntime, "starting reload schedule: %v", err)
		}
		defer func() { _ = scheduler.Stop(context.Background()) }()
		logger.Info("reload schedule started", slog.String("cron", expr), slog.Time("next", scheduler.Next(time.Now())))
	}
	if watcher != nil {
		if err := watcher.Start(ctx); err != nil {
			return exitError(exitRuntime, "starting config watcher: %v", err)
		}
		defer func() { _ = watcher.Stop(context.Background()) }()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %d adapter(s); press Ctrl+C to stop\n", len(s.manager.ListAdapters()))
	<-ctx.Done()
	return nil
}
