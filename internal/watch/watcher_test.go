// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/addonbridge/addonbridge/internal/testutil"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
	fired chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) onChange(_ context.Context, changed []string) error {
	r.mu.Lock()
	r.calls = append(r.calls, changed)
	r.mu.Unlock()
	r.fired <- struct{}{}
	return nil
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func start(t *testing.T, cfg Config) *Watcher {
	t.Helper()
	cfg.Logger, _ = testutil.CaptureLogger()
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	// Let the event loop start before the test writes files.
	time.Sleep(20 * time.Millisecond)
	return w
}

func write(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDebounceCoalesces(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := newRecorder()
	start(t, Config{Dir: dir, Debounce: 100 * time.Millisecond, OnChange: rec.onChange})

	for _, name := range []string{"c.lua", "a.lua", "b.lua"} {
		write(t, dir, name)
		time.Sleep(10 * time.Millisecond)
	}
	rec.wait(t)
	time.Sleep(200 * time.Millisecond)

	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("calls = %v, want one coalesced call", calls)
	}
	if want := []string{"a.lua", "b.lua", "c.lua"}; !slices.Equal(calls[0], want) {
		t.Fatalf("changed = %v, want %v", calls[0], want)
	}
}

func TestPatternsAndIgnores(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := newRecorder()
	start(t, Config{
		Dir:      dir,
		Patterns: []string{"scripts_*.lua", "scripts_*.toml"},
		Ignore:   []string{"scripts_skip*"},
		Debounce: 50 * time.Millisecond,
		OnChange: rec.onChange,
	})

	write(t, dir, "notes.txt")
	write(t, dir, "scripts_skip.lua")
	write(t, dir, "scripts_bank.lua.swp")
	write(t, dir, "scripts_bank.lua")
	rec.wait(t)

	calls := rec.snapshot()
	if len(calls) != 1 || !slices.Equal(calls[0], []string{"scripts_bank.lua"}) {
		t.Fatalf("calls = %v", calls)
	}
}

func TestRemovalIsReported(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, "gone.lua")
	rec := newRecorder()
	start(t, Config{Dir: dir, Debounce: 50 * time.Millisecond, OnChange: rec.onChange})

	if err := os.Remove(filepath.Join(dir, "gone.lua")); err != nil {
		t.Fatal(err)
	}
	rec.wait(t)

	if calls := rec.snapshot(); !slices.Contains(calls[0], "gone.lua") {
		t.Fatalf("calls = %v", calls)
	}
}

func TestNewSubdirectoryIsWatched(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := newRecorder()
	start(t, Config{Dir: dir, Patterns: []string{"**/*.lua"}, Debounce: 50 * time.Millisecond, OnChange: rec.onChange})

	sub := filepath.Join(dir, "extra")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	write(t, sub, "late.lua")

	deadline := time.After(5 * time.Second)
	for {
		for _, call := range rec.snapshot() {
			if slices.Contains(call, "extra/late.lua") {
				return
			}
		}
		select {
		case <-rec.fired:
		case <-deadline:
			t.Fatalf("extra/late.lua never reported: %v", rec.snapshot())
		}
	}
}

func TestInvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Dir: t.TempDir(), Patterns: []string{"[unclosed"}}); err == nil {
		t.Fatal("New accepted an invalid pattern")
	}
	if _, err := New(Config{Dir: t.TempDir(), Ignore: []string{"{a,"}}); err == nil {
		t.Fatal("New accepted an invalid ignore pattern")
	}
}

func TestRunTwice(t *testing.T) {
	t.Parallel()

	w := start(t, Config{Dir: t.TempDir()})
	if err := w.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run = %v", err)
	}
}

func TestDefaultIgnoresIsACopy(t *testing.T) {
	t.Parallel()

	got := DefaultIgnores()
	got[0] = "mutated"
	if DefaultIgnores()[0] == "mutated" {
		t.Fatal("DefaultIgnores exposed the package slice")
	}
}
