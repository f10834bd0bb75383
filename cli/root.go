// Package cli implements the petaladapt command surface.
package cli

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petaladapt/adapter"
	"github.com/petal-labs/petaladapt/loader"
	"github.com/petal-labs/petaladapt/manager"
	"github.com/petal-labs/petaladapt/registry"
)

// Runtime holds the collaborators main wires into every command.
type Runtime struct {
	Resolver registry.Resolver
	Observer adapter.Observer
}

// AddGlobalFlags registers the persistent flags the subcommands read.
func AddGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "Path to adapter config (default: ./petaladapt.yaml, then ~/.petaladapt/adapters.yaml)")
	flags.String("env", "", "Environment overlay name, e.g. prod reads adapters.prod.yaml")
	flags.String("env-prefix", loader.DefaultEnvPrefix, "Prefix of adapter environment variables")
	flags.StringArray("dotenv", nil, "Dotenv file to read adapter variables from (repeatable)")
	flags.String("sqlite-path", "", "Path to SQLite declaration store (default: ~/.petaladapt/adapters.db when present)")
	flags.Bool("verbose", false, "Enable verbose/debug logging")
}

// AddCommands attaches every subcommand to root.
func AddCommands(root *cobra.Command, rt *Runtime) {
	root.AddCommand(NewListCmd(rt))
	root.AddCommand(NewInspectCmd(rt))
	root.AddCommand(NewConvertCmd(rt))
	root.AddCommand(NewCheckCmd(rt))
	root.AddCommand(NewWatchCmd(rt))
	root.AddCommand(NewStoreCmd())
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// session is an opened manager plus the resources it borrowed.
type session struct {
	manager *manager.Manager
	file    *loader.FileSource
	store   *loader.SQLiteStore
}

func (s *session) Close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// openSession builds the declaration sources from the global flags, creates
// a manager over them and runs the first load. Sources are applied in the
// order file, SQLite store, environment.
func openSession(cmd *cobra.Command, rt *Runtime, opts ...manager.Option) (*session, error) {
	logger := newLogger(cmd)
	s := &session{}

	configFlag, _ := cmd.Flags().GetString("config")
	path, found, err := loader.DiscoverConfigPath(configFlag)
	if err != nil {
		return nil, exitError(exitFileNotFound, "%v", err)
	}

	var sources []loader.Source
	if found {
		env, _ := cmd.Flags().GetString("env")
		s.file = &loader.FileSource{Path: path, Env: strings.TrimSpace(env)}
		sources = append(sources, s.file)
		logger.Debug("using adapter config", slog.String("path", path))
	}

	store, err := openStore(cmd, false)
	if err != nil {
		return nil, err
	}
	if store != nil {
		s.store = store
		sources = append(sources, store)
	}

	prefix, _ := cmd.Flags().GetString("env-prefix")
	dotenv, _ := cmd.Flags().GetStringArray("dotenv")
	sources = append(sources, &loader.EnvSource{Prefix: prefix, Files: dotenv, Logger: logger})

	base := []manager.Option{
		manager.WithResolver(rt.Resolver),
		manager.WithLogger(logger),
		manager.WithObserver(rt.Observer),
		manager.WithSources(sources...),
	}
	s.manager = manager.New(append(base, opts...)...)

	if _, err := s.manager.Load(cmd.Context()); err != nil {
		s.Close()
		if errors.Is(err, fs.ErrNotExist) {
			return nil, exitError(exitFileNotFound, "loading adapters: %v", err)
		}
		if errors.Is(err, adapter.ErrConfig) {
			return nil, exitError(exitValidation, "loading adapters: %v", err)
		}
		return nil, exitError(exitInputParse, "loading adapters: %v", err)
	}
	return s, nil
}

// openStore opens the declaration store named by --sqlite-path or
// PETALADAPT_SQLITE_PATH. Without either, the default store is used when it
// exists or when create is set; otherwise openStore returns nil.
func openStore(cmd *cobra.Command, create bool) (*loader.SQLiteStore, error) {
	storePath, _ := cmd.Flags().GetString("sqlite-path")
	if strings.TrimSpace(storePath) == "" {
		storePath = os.Getenv("PETALADAPT_SQLITE_PATH")
	}
	if strings.TrimSpace(storePath) == "" {
		defaultPath, err := loader.DefaultSQLitePath()
		if err != nil {
			return nil, exitError(exitRuntime, "%v", err)
		}
		if _, err := os.Stat(defaultPath); err != nil && !create {
			return nil, nil
		}
		storePath = defaultPath
	}

	dsn := strings.TrimSpace(storePath)
	if !strings.HasPrefix(strings.ToLower(dsn), "file:") {
		dsn = filepath.Clean(dsn)
	}
	store, err := loader.NewSQLiteStore(loader.SQLiteStoreConfig{DSN: dsn})
	if err != nil {
		return nil, exitError(exitRuntime, "opening declaration store: %v", err)
	}
	return store, nil
}
