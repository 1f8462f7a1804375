// SPDX-License-Identifier: MPL-2.0

// Package events is the global event bus that host simulation events are
// fired into, and the per-mod handler sets that hook into it.
//
// Each loaded mod owns exactly one HandlerSet. Unloading the set revokes every
// hook the mod registered in one step, so a reloaded mod never sees a stale
// handler of its previous incarnation fire.
package events

import (
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/addonbridge/addonbridge/internal/modid"
)

type (
	// Kind names an event type on the bus.
	Kind string

	// Event is anything that can be fired on the bus.
	Event interface {
		Kind() Kind
	}

	// Fielder is implemented by events that can be flattened for script
	// runtimes.
	Fielder interface {
		Fields() map[string]any
	}

	// Handler receives a fired event.
	Handler func(Event)

	hook struct {
		set  *HandlerSet
		kind Kind
		fn   Handler
	}

	// Bus routes fired events to subscribed handlers in subscription order.
	Bus struct {
		hooks  map[Kind][]*hook
		logger *log.Logger
	}

	// HandlerSet is one mod's collection of hooks on a Bus.
	HandlerSet struct {
		bus      *Bus
		owner    modid.ID
		hooks    []*hook
		unloaded bool
	}
)

// NewBus returns an empty bus. A nil logger discards panic reports.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Bus{
		hooks:  make(map[Kind][]*hook),
		logger: logger,
	}
}

// NewHandlerSet creates an empty handler set owned by owner.
func (b *Bus) NewHandlerSet(owner modid.ID) *HandlerSet {
	return &HandlerSet{bus: b, owner: owner}
}

// Fire delivers ev to every handler subscribed to its kind and returns how
// many handlers ran. Handlers run over a snapshot, so a handler may unload
// handler sets (its own included) without disturbing the iteration; hooks
// revoked mid-fire are skipped.
func (b *Bus) Fire(ev Event) int {
	if ev == nil {
		return 0
	}
	snapshot := slices.Clone(b.hooks[ev.Kind()])
	ran := 0
	for _, h := range snapshot {
		if h.set.unloaded {
			continue
		}
		b.invoke(h, ev)
		ran++
	}
	return ran
}

// Count returns the number of live hooks for kind.
func (b *Bus) Count(kind Kind) int {
	return len(b.hooks[kind])
}

func (b *Bus) invoke(h *hook, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "kind", ev.Kind(), "mod", h.set.owner, "panic", fmt.Sprint(r))
		}
	}()
	h.fn(ev)
}

func (b *Bus) remove(h *hook) {
	kind := h.kind
	list := b.hooks[kind]
	if i := slices.Index(list, h); i >= 0 {
		list = slices.Delete(list, i, i+1)
	}
	if len(list) == 0 {
		delete(b.hooks, kind)
		return
	}
	b.hooks[kind] = list
}

// Owner returns the mod that owns the set.
func (s *HandlerSet) Owner() modid.ID {
	return s.owner
}

// Len returns the number of live hooks in the set.
func (s *HandlerSet) Len() int {
	return len(s.hooks)
}

// Unloaded reports whether Unload has been called.
func (s *HandlerSet) Unloaded() bool {
	return s.unloaded
}

// Subscribe hooks fn to kind. Subscribing on an unloaded set is ignored and
// reports false.
func (s *HandlerSet) Subscribe(kind Kind, fn Handler) bool {
	if s.unloaded || fn == nil {
		return false
	}
	h := &hook{set: s, kind: kind, fn: fn}
	s.hooks = append(s.hooks, h)
	s.bus.hooks[kind] = append(s.bus.hooks[kind], h)
	return true
}

// Unload revokes every hook in the set. The set stays inert afterwards.
// It returns the number of hooks revoked.
func (s *HandlerSet) Unload() int {
	if s.unloaded {
		return 0
	}
	s.unloaded = true
	n := len(s.hooks)
	for _, h := range s.hooks {
		s.bus.remove(h)
	}
	s.hooks = nil
	return n
}

// On subscribes a handler for events of concrete type T. T must be a value
// type whose zero value reports its Kind.
func On[T Event](s *HandlerSet, fn func(T)) bool {
	if fn == nil {
		return false
	}
	var zero T
	return s.Subscribe(zero.Kind(), func(ev Event) {
		if v, ok := ev.(T); ok {
			fn(v)
		}
	})
}
