// Package watch runs quick sync passes when task notes change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultQuiet is how long the tree must be still before a pass starts.
const DefaultQuiet = 2 * time.Second

// Watcher watches a set of search folders and calls Trigger once changes
// settle.
type Watcher struct {
	// Trigger runs one pass. Errors are logged and watching continues.
	Trigger func(ctx context.Context) error
	// Quiet overrides DefaultQuiet.
	Quiet time.Duration
	// DoneName is the done folder name; events beneath one are ignored.
	DoneName string

	fsw   *fsnotify.Watcher
	roots []string
}

func New(trigger func(ctx context.Context) error, doneName string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{Trigger: trigger, DoneName: doneName, Quiet: DefaultQuiet, fsw: fsw}, nil
}

// Add watches dir and every non-hidden folder below it. Event paths are
// judged relative to dir.
func (w *Watcher) Add(dir string) error {
	dir = filepath.Clean(dir)
	if err := w.addTree(dir); err != nil {
		return err
	}
	w.roots = append(w.roots, dir)
	return nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

// Run blocks until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	// Reset and Stop never leave a stale tick in timer.C on go1.23 and later.
	timer := time.NewTimer(w.Quiet)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				w.follow(ev.Name)
			}
			log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("change queued")
			timer.Reset(w.Quiet)

		case <-timer.C:
			if err := w.Trigger(ctx); err != nil {
				log.Warn().Err(err).Msg("watch pass did not run")
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				log.Warn().Msg("watch event queue overflowed, running a pass")
				timer.Reset(0)
				continue
			}
			log.Error().Err(err).Msg("watcher error")
		}
	}
}

// follow starts watching a newly created folder.
func (w *Watcher) follow(path string) {
	if err := w.addTree(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Debug().Err(err).Str("path", path).Msg("could not follow new folder")
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	rel, ok := w.rel(ev.Name)
	if !ok {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.DoneName != "" && part == w.DoneName {
			return false
		}
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return false
		}
	}
	if ev.Has(fsnotify.Create) {
		return true
	}
	return strings.HasSuffix(strings.ToLower(ev.Name), ".md")
}

// rel returns path relative to the deepest watched root containing it.
func (w *Watcher) rel(path string) (string, bool) {
	path = filepath.Clean(path)
	best := ""
	for _, root := range w.roots {
		if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
			continue
		}
		if len(root) > len(best) {
			best = root
		}
	}
	if best == "" {
		return "", false
	}
	rel, err := filepath.Rel(best, path)
	if err != nil {
		return "", false
	}
	return rel, true
}
