// Package filewatcher reports changes to knowledge base directories.
package filewatcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// DefaultDebounce is how long a path must stay quiet before its change is
// reported.
const DefaultDebounce = 150 * time.Millisecond

// FSNotifyWatcher implements ports.FileWatcher over a directory tree.
// Subdirectories created while watching are picked up. Bursts of events on
// one path collapse into a single FileEvent.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
	debounce   time.Duration
	logger     *zap.Logger
}

// Option configures an FSNotifyWatcher.
type Option func(*FSNotifyWatcher)

// WithDebounce sets the quiet period. Zero reports every event as it arrives.
func WithDebounce(d time.Duration) Option {
	return func(w *FSNotifyWatcher) { w.debounce = d }
}

// NewFSNotifyWatcher creates a watcher for files with the given extensions
// (default .pdf, .txt and .md).
func NewFSNotifyWatcher(extensions []string, logger *zap.Logger, opts ...Option) (*FSNotifyWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = []string{".pdf", ".txt", ".md"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &FSNotifyWatcher{
		watcher:    fw,
		extensions: extensions,
		debounce:   DefaultDebounce,
		logger:     logger.With(zap.String("component", "filewatcher")),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// settled is sent by a debounce timer once its path has been quiet.
type settled struct {
	path string
	gen  int
}

type pendingEvent struct {
	op    ports.FileOperation
	gen   int
	timer *time.Timer
}

// Watch registers dir and all of its subdirectories, then emits events until
// ctx is done or the watcher is stopped. A rename is reported as a delete of
// the old name.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.addTree(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)
	ready := make(chan settled)

	go func() {
		done := make(chan struct{})
		defer close(events)
		defer close(done)
		pending := make(map[string]*pendingEvent)
		defer func() {
			for _, p := range pending {
				p.timer.Stop()
			}
		}()

		emit := func(ev ports.FileEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return

			case s := <-ready:
				p, ok := pending[s.path]
				if !ok || p.gen != s.gen {
					continue
				}
				delete(pending, s.path)
				if !emit(ports.FileEvent{Path: s.path, Operation: p.op}) {
					return
				}

			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				op, ok := w.classify(event)
				if !ok {
					continue
				}
				if w.debounce <= 0 {
					if !emit(ports.FileEvent{Path: event.Name, Operation: op}) {
						return
					}
					continue
				}

				p, seen := pending[event.Name]
				if seen {
					p.timer.Stop()
					p.op = merge(p.op, op)
					p.gen++
				} else {
					p = &pendingEvent{op: op}
					pending[event.Name] = p
				}
				s := settled{path: event.Name, gen: p.gen}
				p.timer = time.AfterFunc(w.debounce, func() {
					select {
					case ready <- s:
					case <-done:
					}
				})

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", zap.String("dir", dir), zap.Error(err))
			}
		}
	}()

	return events, nil
}

// classify maps an fsnotify event to a file operation. New directories are
// added to the watch list and produce no event.
func (w *FSNotifyWatcher) classify(event fsnotify.Event) (ports.FileOperation, bool) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watching new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return 0, false
		}
	}
	if !w.isWatchedExtension(event.Name) {
		return 0, false
	}

	switch {
	case event.Has(fsnotify.Create):
		return ports.FileCreated, true
	case event.Has(fsnotify.Write):
		return ports.FileModified, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return ports.FileDeleted, true
	}
	return 0, false
}

// merge folds a newer operation on a path into the one still pending.
func merge(prev, next ports.FileOperation) ports.FileOperation {
	switch {
	case next == ports.FileDeleted:
		return ports.FileDeleted
	case prev == ports.FileCreated:
		return ports.FileCreated
	case prev == ports.FileDeleted:
		// Replaced in place.
		return ports.FileModified
	}
	return next
}

func (w *FSNotifyWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(path)))
}
