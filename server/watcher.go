package server

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// GeometryWatcher calls onChange after the geometry file was written,
// created or renamed into place. Bursts of events inside the debounce window
// trigger one call.
type GeometryWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func()
	debounce time.Duration
	logger   *slog.Logger

	started  bool
	stopOnce sync.Once
	done     chan struct{}
	stopped  chan struct{}
}

// NewGeometryWatcher creates a watcher for path. Start begins watching.
func NewGeometryWatcher(path string, onChange func(), logger *slog.Logger) (*GeometryWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &GeometryWatcher{
		path:     abs,
		watcher:  watcher,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   logger,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// SetDebounce changes the debounce window. Call before Start.
func (w *GeometryWatcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start watches the file's directory, since editors often replace the file
// instead of writing it in place.
func (w *GeometryWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.started = true
	go w.run(ctx)
	return nil
}

// Stop stops watching and waits for a pending callback to finish.
func (w *GeometryWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
		if w.started {
			<-w.stopped
		}
	})
}

func (w *GeometryWatcher) run(ctx context.Context) {
	defer close(w.stopped)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("geometry watcher error", slog.String("error", err.Error()))
		case <-fire:
			fire = nil
			w.logger.Info("geometry file changed", slog.String("file", w.path))
			w.onChange()
		}
	}
}
