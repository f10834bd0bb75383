package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/petal-labs/petaladapt/cli"
	petalotel "github.com/petal-labs/petaladapt/otel"
	"github.com/petal-labs/petaladapt/providers"
	"github.com/petal-labs/petaladapt/registry"
)

// Set via ldflags at build time.
var version = "dev"

var app = &cli.Runtime{}

func main() {
	ctx := context.Background()

	table := registry.NewTableResolver()
	if err := providers.Register(table); err != nil {
		fmt.Fprintf(os.Stderr, "registering built-in adapters: %v\n", err)
		os.Exit(1)
	}
	app.Resolver = table

	shutdown, err := setupTelemetry(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry disabled: %v\n", err)
	}

	err = rootCmd.ExecuteContext(ctx)
	if shutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = shutdown(shutdownCtx)
		cancel()
	}
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// setupTelemetry exports spans over OTLP/HTTP when an OTLP endpoint is
// configured and installs the adapter observer either way.
func setupTelemetry(ctx context.Context) (func(context.Context) error, error) {
	var shutdown func(context.Context) error
	if strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")) != "" ||
		strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")) != "" {
		exporter, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otelapi.SetTracerProvider(tp)
		shutdown = tp.Shutdown
	}

	observer, err := petalotel.NewObserver(otelapi.Meter("petaladapt"), otelapi.Tracer("petaladapt"))
	if err != nil {
		return shutdown, fmt.Errorf("creating observer: %w", err)
	}
	app.Observer = observer
	return shutdown, nil
}

var rootCmd = &cobra.Command{
	Use:   "petaladapt",
	Short: "Adapter plugin manager for AI tool calling",
	Long:  "petaladapt loads adapter declarations and converts tools into provider request formats.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	cli.AddGlobalFlags(rootCmd)

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("petaladapt version %s\n", version))

	cli.AddCommands(rootCmd, app)
}
