package manager

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petal-labs/petaladapt/loader"
)

type countingReloader struct {
	calls atomic.Int32
	err   error
}

func (c *countingReloader) ReloadConfig(context.Context) (loader.Report, error) {
	c.calls.Add(1)
	return loader.Report{Registered: []string{"x"}}, c.err
}

func TestParseScheduleValid(t *testing.T) {
	schedule, err := ParseSchedule("*/5 * * * *")
	if err != nil {
		t.Fatalf("ParseSchedule() error = %v", err)
	}
	next := schedule.Next(time.Date(2026, 2, 20, 10, 2, 0, 0, time.UTC))
	want := time.Date(2026, 2, 20, 10, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %s, want %s", next.Format(time.RFC3339), want.Format(time.RFC3339))
	}
}

func TestParseScheduleRejects(t *testing.T) {
	for _, expr := range []string{
		"",
		"CRON_TZ=America/Los_Angeles * * * * *",
		"TZ=UTC * * * * *",
		"* * * * * *",
		"not a cron",
	} {
		if _, err := ParseSchedule(expr); err == nil {
			t.Fatalf("ParseSchedule(%q) expected error", expr)
		}
	}
}

func TestNewReloadSchedulerValidates(t *testing.T) {
	if _, err := NewReloadScheduler(ReloadSchedulerConfig{Cron: "* * * * *"}); err == nil {
		t.Fatal("NewReloadScheduler() expected error without reloader")
	}
	if _, err := NewReloadScheduler(ReloadSchedulerConfig{Reloader: &countingReloader{}, Cron: "bad"}); err == nil {
		t.Fatal("NewReloadScheduler() expected error for bad cron")
	}
}

func TestReloadSchedulerRunOnce(t *testing.T) {
	reloader := &countingReloader{}
	s, err := NewReloadScheduler(ReloadSchedulerConfig{Reloader: reloader, Cron: "0 * * * *"})
	if err != nil {
		t.Fatalf("NewReloadScheduler() error = %v", err)
	}
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	reloader.err = errors.New("config unreadable")
	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("RunOnce() expected error")
	}
	if reloader.calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", reloader.calls.Load())
	}

	next := s.Next(time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC))
	if want := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("Next() = %s, want %s", next, want)
	}
}

func TestReloadSchedulerStartStop(t *testing.T) {
	s, err := NewReloadScheduler(ReloadSchedulerConfig{Reloader: &countingReloader{}, Cron: "0 0 1 1 *"})
	if err != nil {
		t.Fatalf("NewReloadScheduler() error = %v", err)
	}
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}
