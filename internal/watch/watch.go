// Package watch triggers rebuilds when sources under the input directory
// change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dgallion1/podsite/internal/parser"
)

// Watcher reports batches of changed source paths. Events arriving within
// the debounce interval of each other are coalesced into one batch.
type Watcher struct {
	root     string
	exts     map[string]bool
	debounce time.Duration
	log      *slog.Logger
	fsw      *fsnotify.Watcher
}

// New watches root and every non-hidden directory below it. exts limits
// which files count as sources; when empty the parser's supported set is
// used.
func New(root string, exts []string, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	set := make(map[string]bool)
	for _, e := range exts {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			set[e] = true
		}
	}
	if len(set) == 0 {
		for e := range parser.SupportedExtensions {
			set[e] = true
		}
	}
	w := &Watcher{root: root, exts: set, debounce: debounce, log: log, fsw: fsw}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
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
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run delivers change batches to onChange until ctx is done. Paths are
// slash-separated, relative to the root and sorted. onChange runs on the
// watcher's goroutine, so events that arrive during a rebuild are batched
// for the next call.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string)) error {
	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			rel, ok := w.handleEvent(ev)
			if !ok {
				continue
			}
			// Each event restarts the quiet period.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending[rel] = true

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			w.log.Info("sources changed", "count", len(changed))
			onChange(ctx, changed)
		}
	}
}

// handleEvent returns the relative path of a source affected by ev. New
// directories are added to the watch set and not reported themselves.
func (w *Watcher) handleEvent(ev fsnotify.Event) (string, bool) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || isHidden(rel) {
		return "", false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.log.Warn("watch new directory failed", "path", ev.Name, "error", err)
			}
			return "", false
		}
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return "", false
	}
	if !w.exts[strings.ToLower(filepath.Ext(ev.Name))] {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// isHidden reports whether any element of a relative path starts with a
// dot. "." and ".." are not hidden.
func isHidden(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
