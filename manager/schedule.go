package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/petal-labs/petaladapt/loader"
)

var standardCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// ConfigReloader re-reads adapter configuration. *Manager implements it.
type ConfigReloader interface {
	ReloadConfig(ctx context.Context) (loader.Report, error)
}

// ParseSchedule parses a 5-field UTC cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("cron expression is required")
	}

	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, fmt.Errorf("cron expression must be UTC-only (timezone prefixes are not allowed)")
	}

	schedule, err := standardCronParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// ReloadSchedulerConfig configures a ReloadScheduler.
type ReloadSchedulerConfig struct {
	Reloader ConfigReloader
	// Cron is a 5-field UTC expression, e.g. "*/15 * * * *".
	Cron    string
	Timeout time.Duration
	Logger  *slog.Logger
}

// ReloadScheduler reloads configuration on a cron schedule. Runs that would
// overlap a still-running reload are skipped.
type ReloadScheduler struct {
	reloader ConfigReloader
	schedule cron.Schedule
	timeout  time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewReloadScheduler validates cfg and creates a stopped scheduler.
func NewReloadScheduler(cfg ReloadSchedulerConfig) (*ReloadScheduler, error) {
	if cfg.Reloader == nil {
		return nil, errors.New("reload scheduler reloader is nil")
	}
	schedule, err := ParseSchedule(cfg.Cron)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ReloadScheduler{
		reloader: cfg.Reloader,
		schedule: schedule,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}, nil
}

// Next returns the next run after now.
func (s *ReloadScheduler) Next(now time.Time) time.Time {
	return s.schedule.Next(now.UTC())
}

// Start starts the schedule. Starting a running scheduler is a no-op.
func (s *ReloadScheduler) Start(ctx context.Context) error {
	if s == nil {
		return errors.New("reload scheduler is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	logger := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithParser(standardCronParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() {
		_ = s.RunOnce(context.Background())
	}))
	c.Start()
	s.cron = c

	_ = ctx
	return nil
}

// Stop stops the schedule and waits for a running reload to finish or ctx
// to end.
func (s *ReloadScheduler) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single reload.
func (s *ReloadScheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	report, err := s.reloader.ReloadConfig(ctx)
	if err != nil {
		s.logger.Error("scheduled adapter reload failed", "error", err)
		return err
	}
	s.logger.Info("scheduled adapter reload",
		"registered", len(report.Registered),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// cronLogger routes cron's logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
