// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

const (
	defaultDebounce = 2 * time.Second
	defaultResync   = 5 * time.Minute
)

// RunFunc is invoked for each triggered ingestion pass.
type RunFunc func(ctx context.Context) error

// Watcher triggers ingestion runs when the event store changes, with a
// periodic resync as a safety net for missed filesystem events. Runs
// are serialized; the ledger does not tolerate concurrent writers.
type Watcher struct {
	root     string
	run      RunFunc
	debounce time.Duration
	resync   time.Duration
	logger   *slog.Logger

	notifier *fsnotify.Watcher
	cron     *cron.Cron
	trigger  chan struct{}
	done     chan struct{}
	cancel   context.CancelFunc
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long to wait after the last filesystem event
// before triggering a run. Default is 2s.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithResyncInterval sets the periodic resync interval. Default is 5m.
func WithResyncInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.resync = d
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
	}
}

// NewWatcher creates a watcher over the event store root. run is
// called for every triggered pass.
func NewWatcher(root string, run RunFunc, opts ...Option) (*Watcher, error) {
	if run == nil {
		return nil, ErrRunFuncRequired
	}

	w := &Watcher{
		root:     root,
		run:      run,
		debounce: defaultDebounce,
		resync:   defaultResync,
		logger:   slog.Default(),
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. It returns immediately; runs happen on a
// background goroutine until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	w.notifier = notifier

	if err := w.watchTree(w.root); err != nil {
		notifier.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.cron = cron.New()
	if _, err := w.cron.AddFunc(fmt.Sprintf("@every %s", w.resync), func() {
		w.logger.Debug("periodic resync")
		w.fire()
	}); err != nil {
		notifier.Close()
		cancel()
		return fmt.Errorf("scheduling resync: %w", err)
	}
	w.cron.Start()

	go w.loop(runCtx)

	w.logger.Info("watching event store",
		"root", w.root,
		"debounce", w.debounce,
		"resync", w.resync)
	return nil
}

// Stop halts watching and waits for any in-flight run to finish.
func (w *Watcher) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
	if w.cancel != nil {
		w.cancel()
	}
	if w.notifier != nil {
		w.notifier.Close()
	}

	// Runs happen on the loop goroutine, so this also waits out any
	// in-flight run.
	<-w.done
}

// watchTree registers the root and every directory beneath it. A
// missing root is watched lazily once the resync run creates interest
// in it; only genuinely broken walks are errors.
func (w *Watcher) watchTree(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		w.logger.Warn("event store root does not exist yet", "root", root)
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.notifier.Add(path)
	})
}

// fire requests a run, coalescing with any already-pending request.
func (w *Watcher) fire() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.notifier.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) {
				// New calendar or events directory: extend the watch.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.notifier.Add(event.Name); err != nil {
						w.logger.Warn("watching new directory failed",
							"path", event.Name,
							"error", err)
					}
				}
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				if debounce == nil {
					debounce = time.NewTimer(w.debounce)
					debounceC = debounce.C
				} else {
					if !debounce.Stop() {
						select {
						case <-debounce.C:
						default:
						}
					}
					debounce.Reset(w.debounce)
				}
			}

		case err, ok := <-w.notifier.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", "error", err)

		case <-debounceC:
			debounce = nil
			debounceC = nil
			w.runOnce(ctx)

		case <-w.trigger:
			w.runOnce(ctx)
		}
	}
}

// runOnce executes one ingestion pass. All runs happen on the loop
// goroutine, which is what serializes them.
func (w *Watcher) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	if err := w.run(ctx); err != nil {
		w.logger.Error("ingestion run failed", "error", err)
		return
	}
	w.logger.Debug("ingestion run complete", "elapsed", time.Since(start))
}
