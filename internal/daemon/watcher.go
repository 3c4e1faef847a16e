package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/riftsync/rift/internal/checkpoint"
)

// watcher coalesces filesystem events under root into per-path onChange
// calls, debounced so a rapid-fire editor save doesn't emit once per write
// syscall (spec.md §4.2 "batcher"). The fsnotify event-loop-plus-debounce-
// timer shape is grounded in the teacher's cmd/bd/show_display.go
// watchIssue, generalized from one file to a recursively watched tree and
// from one shared timer to checkpoint.KeyedDebouncer keyed per path.
type watcher struct {
	root     string
	debounce *checkpoint.KeyedDebouncer[string]
	ignore   []string
	suppress *suppressionMap
	onChange func(path string)
	log      *slog.Logger

	fsw *fsnotify.Watcher
}

func newWatcher(root string, debounceWindow time.Duration, ignore []string, suppress *suppressionMap, onChange func(path string), log *slog.Logger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("daemon: new fsnotify watcher: %w", err)
	}

	w := &watcher{
		root:     root,
		ignore:   ignore,
		suppress: suppress,
		onChange: onChange,
		log:      log,
		fsw:      fsw,
	}
	w.debounce = checkpoint.NewKeyedDebouncer(debounceWindow, w.fire)

	if err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	}); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("daemon: walk %s: %w", root, err)
	}

	return w, nil
}

// ignored reports whether path's base name matches one of the configured
// ignore patterns (spec.md §4.2 ignore_patterns: ".git", "*.swp", etc).
func (w *watcher) ignored(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.ignore {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// start launches the event loop; it returns once the initial directory
// walk's watches are confirmed active, continuing to process events in the
// background until ctx is cancelled or stop is called.
func (w *watcher) start(ctx context.Context) error {
	go w.loop(ctx)
	return nil
}

func (w *watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}

func (w *watcher) handleEvent(event fsnotify.Event) {
	if w.ignored(event.Name) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.ignored(event.Name) {
			_ = w.fsw.Add(event.Name)
			return
		}
	}

	// Remove/Rename fall through to the same debounced path as Write/Create
	// (spec.md §4.2 event normalization: {Create, Write, Remove, Rename}).
	// By the time the debounced fire runs, onChange re-stats the path: gone
	// means a delete (or the old half of a rename), present means a
	// create/modify (or the new half), so no event-kind needs to be
	// threaded through the debouncer itself.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	w.debounce.Trigger(rel)
}

func (w *watcher) fire(relPath string) {
	if w.suppress.Check(relPath) {
		return
	}
	w.onChange(relPath)
}

func (w *watcher) stop() {
	w.debounce.CancelAndWaitAll()
	_ = w.fsw.Close()
}
