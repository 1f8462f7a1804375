// SPDX-License-Identifier: MPL-2.0

// Package watch watches the mods directory and reports changed scripts after
// a debounce window. Events inside the window are coalesced so the callback
// fires once with every path that changed, created and removed files alike.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Config.Debounce is zero or negative.
const DefaultDebounce = 300 * time.Millisecond

var (
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watch: Run called more than once")

	errEventsClosed = errors.New("watch: event channel closed")
	errErrorsClosed = errors.New("watch: error channel closed")
)

// defaultIgnores are editor and VCS files that never count as a change.
var defaultIgnores = []string{
	"**/.git/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.#*",
	"**/.DS_Store",
}

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Dir is the directory to watch, recursively. Empty means the working
		// directory.
		Dir string

		// Patterns are doublestar globs relative to Dir (e.g. "**/*.lua").
		// An empty slice matches every non-ignored file.
		Patterns []string

		// Ignore adds patterns to the built-in ignores.
		Ignore []string

		// Debounce is the quiet period after the last event before OnChange
		// fires.
		Debounce time.Duration

		// OnChange receives the sorted, deduplicated changed paths, relative
		// to Dir. A returned error is logged.
		OnChange func(ctx context.Context, changed []string) error

		Logger *log.Logger
	}

	// Watcher reports matching file changes under Dir. Run must be called
	// exactly once.
	Watcher struct {
		dir      string
		patterns []string
		ignores  []string
		debounce time.Duration
		onChange func(ctx context.Context, changed []string) error
		logger   *log.Logger

		fsw     *fsnotify.Watcher
		started atomic.Bool
	}

	// batch accumulates changed paths until the debounce timer fires. At most
	// one flush runs at a time; a flush that finds another in progress pushes
	// the timer back instead of dropping the paths.
	batch struct {
		w    *Watcher
		ctx  context.Context
		busy atomic.Bool

		mu    sync.Mutex
		paths map[string]struct{}
		timer *time.Timer
	}
)

// New creates a Watcher and registers every non-ignored directory under Dir.
func New(cfg Config) (*Watcher, error) {
	dir, err := resolveDir(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if err := validatePatterns("watch", cfg.Patterns); err != nil {
		return nil, err
	}
	if err := validatePatterns("ignore", cfg.Ignore); err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:      dir,
		patterns: slices.Clone(cfg.Patterns),
		ignores:  append(DefaultIgnores(), cfg.Ignore...),
		debounce: cfg.Debounce,
		onChange: cfg.OnChange,
		logger:   cfg.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard)
	}
	w.logger = w.logger.WithPrefix("watch")

	if w.fsw, err = fsnotify.NewWatcher(); err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	if err := w.addTree(); err != nil {
		_ = w.fsw.Close()
		return nil, err
	}
	return w, nil
}

// Dir returns the absolute watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Run processes events until ctx is cancelled. It returns nil on
// cancellation and an error when the underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	b := &batch{w: w, ctx: ctx, paths: make(map[string]struct{})}
	defer func() {
		b.stop()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify", "err", err)
		}
	}()

	w.logger.Info("watching", "dir", w.dir, "debounce", w.debounce)
	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errEventsClosed
			}
			if rel, ok := w.relevant(evt); ok {
				b.add(rel)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errErrorsClosed
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// relevant filters one event down to the slash-separated path relative to
// Dir. New directories are added to the watch on the way.
func (w *Watcher) relevant(evt fsnotify.Event) (string, bool) {
	// Attribute-only changes never alter script contents.
	if evt.Op == fsnotify.Chmod {
		return "", false
	}
	rel := w.rel(evt.Name)
	if evt.Has(fsnotify.Create) {
		w.watchIfDir(evt.Name, rel)
	}
	if w.ignored(rel) {
		return "", false
	}
	if len(w.patterns) > 0 && !matchAny(w.patterns, rel) {
		return "", false
	}
	return rel, true
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) ignored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) ignoredDir(rel string) bool {
	return w.ignored(rel) || w.ignored(rel+"/")
}

func (w *Watcher) addTree() error {
	return filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			// Unreadable subtrees are skipped.
			w.logger.Warn("skipping inaccessible path", "path", path, "err", err)
			return nil
		case !d.IsDir():
			return nil
		}
		if rel := w.rel(path); rel != "." && w.ignoredDir(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) watchIfDir(path, rel string) {
	if info, err := os.Stat(path); err != nil || !info.IsDir() || w.ignoredDir(rel) {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("add new directory", "path", path, "err", err)
	}
}

func (b *batch) add(rel string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths[rel] = struct{}{}
	b.rearmLocked()
}

func (b *batch) rearmLocked() {
	if b.timer == nil {
		b.timer = time.AfterFunc(b.w.debounce, b.flush)
		return
	}
	b.timer.Reset(b.w.debounce)
}

func (b *batch) take() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.paths) == 0 {
		return nil
	}
	changed := slices.Sorted(maps.Keys(b.paths))
	clear(b.paths)
	return changed
}

// flush runs on the timer goroutine and may fire after Run returned.
func (b *batch) flush() {
	if b.ctx.Err() != nil {
		return
	}
	if !b.busy.CompareAndSwap(false, true) {
		b.w.logger.Debug("callback still running, deferring changes")
		b.mu.Lock()
		b.rearmLocked()
		b.mu.Unlock()
		return
	}
	defer b.busy.Store(false)

	changed := b.take()
	if len(changed) == 0 || b.w.onChange == nil {
		return
	}
	b.w.logger.Debug("files changed", "paths", changed)
	if err := b.w.onChange(b.ctx, changed); err != nil {
		b.w.logger.Error("change callback failed", "err", err)
	}
}

func (b *batch) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
}

func resolveDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("watch: determine working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("watch: resolve directory: %w", err)
	}
	return abs, nil
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func matchAny(patterns []string, rel string) bool {
	return slices.ContainsFunc(patterns, func(pat string) bool {
		ok, err := doublestar.Match(pat, rel)
		return err == nil && ok
	})
}

func validatePatterns(label string, patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q: %w", label, pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}
