package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 250 * time.Millisecond

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Reloader ConfigReloader
	// Paths are the files to watch, typically FileSource.Paths(). Their
	// directories are watched so files created later are picked up.
	Paths    []string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher reloads configuration when a watched file changes.
type Watcher struct {
	reloader ConfigReloader
	files    map[string]struct{}
	dirs     []string
	debounce time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a stopped watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Reloader == nil {
		return nil, errors.New("watcher reloader is nil")
	}
	if len(cfg.Paths) == 0 {
		return nil, errors.New("watcher needs at least one path")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultWatchDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	w := &Watcher{
		reloader: cfg.Reloader,
		files:    make(map[string]struct{}, len(cfg.Paths)),
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
	}
	seen := make(map[string]struct{})
	for _, path := range cfg.Paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", path, err)
		}
		w.files[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := seen[dir]; !ok {
			seen[dir] = struct{}{}
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// Start begins watching. Starting a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("watcher is nil")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done

	go func() {
		defer close(done)
		defer fsw.Close()
		w.loop(loopCtx, fsw)
	}()

	_ = ctx
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("config file changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", slog.Any("error", err))
		case <-pending:
			pending = nil
			if _, err := w.reloader.ReloadConfig(ctx); err != nil {
				w.logger.Error("adapter config reload failed", slog.Any("error", err))
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}

// Stop stops watching and waits for the loop to exit or ctx to end.
func (w *Watcher) Stop(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.cancel = nil
	w.done = nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
