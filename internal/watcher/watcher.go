// Package watcher re-runs an operation whenever the project tree changes.
// Using polling instead of fsnotify for simplicity and cross-platform
// compatibility: project trees routinely live on network mounts where
// inotify events never arrive.
package watcher

import (
	"context"
	"time"

	"blendlink/internal/logging"
)

// Snapshot produces a fingerprint of the watched tree. Equal fingerprints
// mean nothing relevant changed; the scan state ID serves directly.
type Snapshot func() (string, error)

// Handler runs after the debounce window closes on a detected change.
type Handler func()

// Watcher polls a tree fingerprint and fires a debounced handler when it
// changes. One watcher drives one operation (e.g. check-links --watch).
type Watcher struct {
	interval  time.Duration
	snapshot  Snapshot
	handler   Handler
	debouncer *Debouncer
	logger    *logging.Logger
}

// New creates a watcher. interval is the polling period; debounce is the
// quiet window after the last observed change before the handler fires,
// so a burst of saves triggers one re-run.
func New(interval, debounce time.Duration, snapshot Snapshot, handler Handler, logger *logging.Logger) *Watcher {
	return &Watcher{
		interval:  interval,
		snapshot:  snapshot,
		handler:   handler,
		debouncer: NewDebouncer(debounce),
		logger:    logger,
	}
}

// Run polls until the context is cancelled. The first snapshot is the
// baseline; every fingerprint change afterwards schedules the handler
// through the debouncer. Snapshot failures are logged and retried on the
// next tick, they never stop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	last, err := w.snapshot()
	if err != nil {
		w.logger.Warn("initial snapshot failed, starting from empty baseline", map[string]interface{}{
			"error": err.Error(),
		})
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer w.debouncer.Cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		current, err := w.snapshot()
		if err != nil {
			w.logger.Warn("snapshot failed, will retry", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		if current == last {
			continue
		}

		w.logger.Debug("tree changed", map[string]interface{}{
			"previous": last,
			"current":  current,
		})
		last = current
		w.debouncer.Trigger(w.handler)
	}
}
