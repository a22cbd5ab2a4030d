// Package watch reports document changes in a library directory.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Norgate-AV/docrender/internal/document"
)

// DefaultDelay is how long a document must stay quiet before it is reported
const DefaultDelay = 250 * time.Millisecond

// Handler is called once per burst of changes to a document
type Handler func(ctx context.Context, id document.ID)

// Watcher monitors a library root and its document folders
type Watcher struct {
	fsw    *fsnotify.Watcher
	root   string
	delay  time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	timers map[document.ID]*time.Timer
	ready  chan document.ID
}

// New creates a watcher for the library at root
func New(root string, delay time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if delay <= 0 {
		delay = DefaultDelay
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:    fsw,
		root:   filepath.Clean(root),
		delay:  delay,
		logger: logger,
		timers: make(map[document.ID]*time.Timer),
		ready:  make(chan document.ID, 64),
	}

	if err := w.addRecursive(w.root); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// addRecursive watches dir and every directory below it
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}

		if !d.IsDir() {
			return nil
		}

		return w.fsw.Add(path)
	})
}

// documentFor maps a path below the root to the document it belongs to
func (w *Watcher) documentFor(path string) (document.ID, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return document.ID{}, false
	}

	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	first = strings.TrimSuffix(first, ".yaml")

	id, err := document.ParseID(first)
	if err != nil {
		return document.ID{}, false
	}

	return id, true
}

// schedule (re)starts the quiet period of a document
func (w *Watcher) schedule(ctx context.Context, id document.ID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.scheduleLocked(ctx, id)
}

// scheduleLocked is schedule with w.mu held
func (w *Watcher) scheduleLocked(ctx context.Context, id document.ID) {
	// A timer that already fired may still be waiting for the lock; it
	// is replaced rather than reset so it cannot report twice
	if t, ok := w.timers[id]; ok && t.Stop() {
		t.Reset(w.delay)
		return
	}

	var t *time.Timer
	t = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		if w.timers[id] != t {
			w.mu.Unlock()
			return
		}

		delete(w.timers, id)
		w.mu.Unlock()

		select {
		case w.ready <- id:
		case <-ctx.Done():
		}
	})

	w.timers[id] = t
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}

// Run delivers changes to handle until ctx is done. Handlers run
// concurrently; Run waits for them before returning.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	defer w.fsw.Close()

	var wg sync.WaitGroup
	defer wg.Wait()
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil

		case id := <-w.ready:
			wg.Go(func() { handle(ctx, id) })

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			id, ok := w.documentFor(event.Name)
			if !ok {
				continue
			}

			w.logger.Debug("document changed", "id", id, "path", event.Name, "op", event.Op.String())

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("failed to watch folder", "path", event.Name, "error", err)
					}
				}
			}

			w.schedule(ctx, id)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}

			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("watch events dropped, some changes may be missed")
				continue
			}

			w.logger.Warn("watch error", "error", err)
		}
	}
}
