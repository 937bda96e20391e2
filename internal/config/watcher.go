package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] looks at the file.
const DefaultWatchInterval = 5 * time.Second

// Watcher polls a config file and reports edits that still validate. An
// invalid edit is logged and skipped; [Watcher.Current] keeps returning the
// last good config.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)
	log      *slog.Logger

	mu   sync.Mutex
	snap snapshot

	quit     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

// snapshot is one successfully loaded version of the file.
type snapshot struct {
	cfg *Config
	sum [sha256.Size]byte
	mod time.Time
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Default: [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger sets the logger. Default: slog.Default().
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = l }
}

// NewWatcher loads path and starts polling it. onChange runs on the polling
// goroutine, outside the watcher's lock, with the previous and new config.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		log:      slog.Default(),
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := readSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.snap = snap

	go w.loop()
	return w, nil
}

// Current returns the last config that loaded and validated.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snap.cfg
}

// Stop ends polling and waits for the polling goroutine to exit. It is safe
// to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	<-w.exited
}

func (w *Watcher) loop() {
	defer close(w.exited)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-w.quit:
			return
		case <-t.C:
			w.reload()
		}
	}
}

// reload re-reads the file when its modification time moved and notifies
// onChange when the content differs.
func (w *Watcher) reload() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.log.Warn("config watcher: stat failed", "path", w.path, "err", err)
		return
	}
	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.snap.mod)
	w.mu.Unlock()
	if unchanged {
		return
	}

	next, err := readSnapshot(w.path)
	if err != nil {
		w.log.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	prev := w.snap
	if prev.sum == next.sum {
		// Touched, not edited.
		w.snap.mod = next.mod
		w.mu.Unlock()
		return
	}
	w.snap = next
	w.mu.Unlock()

	w.log.Info("config watcher: reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(prev.cfg, next.cfg)
	}
}

func readSnapshot(path string) (snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return snapshot{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{cfg: cfg, sum: sha256.Sum256(data), mod: info.ModTime()}, nil
}
