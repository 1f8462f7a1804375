// SPDX-License-Identifier: MPL-2.0

// Package host is the development stand-in for the game server. It owns the
// world and runs the tick loop on a single goroutine; every other goroutine
// reaches the world, the registry and the mod manager through Do.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/addonbridge/addonbridge/internal/events"
	"github.com/addonbridge/addonbridge/internal/tasks"
	"github.com/addonbridge/addonbridge/internal/world"
)

// DefaultInterval is the tick period used when Options.Interval is zero.
const DefaultInterval = 50 * time.Millisecond

// ErrStopped is returned by Do once the tick loop has exited.
var ErrStopped = errors.New("host stopped")

type (
	// Options configures a Host.
	Options struct {
		World    *world.World
		Bus      *events.Bus
		Tasks    *tasks.Queue
		Interval time.Duration
		Logger   *log.Logger
	}

	// Host serializes all simulation work on its tick goroutine.
	Host struct {
		world    *world.World
		bus      *events.Bus
		tasks    *tasks.Queue
		interval time.Duration
		logger   *log.Logger

		cmds    chan command
		stopped chan struct{}
	}

	command struct {
		fn   func()
		done chan error
	}
)

// New returns a Host. Missing collaborators are created empty.
func New(opts Options) *Host {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.World == nil {
		opts.World = world.New()
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus(opts.Logger)
	}
	if opts.Tasks == nil {
		opts.Tasks = tasks.New(opts.Logger)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Host{
		world:    opts.World,
		bus:      opts.Bus,
		tasks:    opts.Tasks,
		interval: opts.Interval,
		logger:   opts.Logger.WithPrefix("host"),
		cmds:     make(chan command),
		stopped:  make(chan struct{}),
	}
}

// World returns the host world. Only touch it from inside Do or before Run.
func (h *Host) World() *world.World { return h.world }

// Bus returns the event bus.
func (h *Host) Bus() *events.Bus { return h.bus }

// Tasks returns the world task queue.
func (h *Host) Tasks() *tasks.Queue { return h.tasks }

// Run ticks the world until ctx is done. Queued Do calls run between ticks.
// Run must be called at most once.
func (h *Host) Run(ctx context.Context) error {
	defer close(h.stopped)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info("tick loop started", "interval", h.interval)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("tick loop stopped")
			return nil
		case cmd := <-h.cmds:
			cmd.done <- h.exec(cmd.fn)
		case now := <-ticker.C:
			diff := now.Sub(last)
			if diff <= 0 {
				diff = h.interval
			}
			last = now
			h.Step(diff)
		}
	}
}

// Step runs one world update: the WorldUpdate event, the task queue and the
// entity timers. Run calls it on every tick; tests call it directly.
func (h *Host) Step(diff time.Duration) {
	h.bus.Fire(events.WorldUpdate{Diff: uint32(diff / time.Millisecond)})
	h.tasks.Tick(diff)
	h.world.Tick(diff)
}

// Do runs fn on the tick goroutine and waits for it. A panic in fn is
// returned as an error.
func (h *Host) Do(ctx context.Context, fn func()) error {
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case h.cmds <- cmd:
	case <-h.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect adds a player and fires PlayerLogin.
func (h *Host) Connect(ctx context.Context, name string, gm bool, out world.Outbox) (*world.Player, error) {
	var p *world.Player
	err := h.Do(ctx, func() {
		p = h.world.AddPlayer(name, gm, out)
		h.bus.Fire(events.PlayerLogin{Player: p})
	})
	if err != nil {
		return nil, err
	}
	h.logger.Info("player connected", "player", name, "gm", gm)
	return p, nil
}

// Disconnect removes p and fires PlayerLogout.
func (h *Host) Disconnect(ctx context.Context, p *world.Player) error {
	err := h.Do(ctx, func() {
		if h.world.RemovePlayer(p) {
			h.bus.Fire(events.PlayerLogout{Player: p})
		}
	})
	if err == nil {
		h.logger.Info("player disconnected", "player", p.Name())
	}
	return err
}

func (h *Host) exec(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("host command panicked", "panic", r)
			err = fmt.Errorf("host command panicked: %v", r)
		}
	}()
	fn()
	return nil
}
