// SPDX-License-Identifier: MPL-2.0

package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/addonbridge/addonbridge/internal/events"
	"github.com/addonbridge/addonbridge/internal/modid"
)

func startHost(t *testing.T, opts Options) *Host {
	t.Helper()
	h := New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func TestStepFiresWorldUpdateAndTicks(t *testing.T) {
	t.Parallel()

	h := New(Options{})
	var diffs []uint32
	events.On(h.Bus().NewHandlerSet(modid.Host), func(e events.WorldUpdate) { diffs = append(diffs, e.Diff) })
	ran := false
	h.Tasks().Add(0, "", 40*time.Millisecond, func() { ran = true })
	p := h.World().AddPlayer("alice", false, nil)
	timer := false
	p.Timers.Add(0, "t", 40*time.Millisecond, 0, func() { timer = true })

	h.Step(50 * time.Millisecond)

	if len(diffs) != 1 || diffs[0] != 50 || !ran || !timer {
		t.Fatalf("diffs=%v task=%v timer=%v", diffs, ran, timer)
	}
}

func TestDoRunsOnTickGoroutine(t *testing.T) {
	t.Parallel()

	h := startHost(t, Options{Interval: time.Millisecond})
	ctx := context.Background()

	counter := 0
	for range 10 {
		if err := h.Do(ctx, func() { counter++ }); err != nil {
			t.Fatalf("Do: %v", err)
		}
	}
	if counter != 10 {
		t.Fatalf("counter = %d", counter)
	}
}

func TestDoRecoversPanics(t *testing.T) {
	t.Parallel()

	h := startHost(t, Options{})
	if err := h.Do(context.Background(), func() { panic("bad command") }); err == nil {
		t.Fatal("Do swallowed the panic silently")
	}
	if err := h.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("host unusable after panic: %v", err)
	}
}

func TestDoAfterStop(t *testing.T) {
	t.Parallel()

	h := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := h.Do(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Do after stop = %v", err)
	}
}

func TestConnectFiresLoginAndLogout(t *testing.T) {
	t.Parallel()

	h := New(Options{})
	var got []events.Kind
	set := h.Bus().NewHandlerSet(modid.Host)
	events.On(set, func(e events.PlayerLogin) { got = append(got, e.Kind()) })
	events.On(set, func(e events.PlayerLogout) { got = append(got, e.Kind()) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Run(ctx)
	}()

	p, err := h.Connect(context.Background(), "alice", true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Disconnect(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	cancel()
	<-done

	if len(got) != 2 || got[0] != events.KindPlayerLogin || got[1] != events.KindPlayerLogout {
		t.Fatalf("events = %v", got)
	}
}
