// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/addonbridge/addonbridge/internal/events"
	"github.com/addonbridge/addonbridge/internal/modid"
	"github.com/addonbridge/addonbridge/internal/registry"
	"github.com/addonbridge/addonbridge/internal/tasks"
)

// ModContext is what an entry point sees of the host. Everything registered
// through it is tagged with the mod id and revoked when the mod unloads.
type ModContext struct {
	id       modid.ID
	name     string
	reloads  uint32
	set      *events.HandlerSet
	registry *registry.Registry
	tasks    *tasks.Queue
	logger   *log.Logger
}

// ID returns the mod id.
func (mc *ModContext) ID() modid.ID { return mc.id }

// Name returns the mod name.
func (mc *ModContext) Name() string { return mc.name }

// Reloads returns how many times the mod was unloaded before this load.
func (mc *ModContext) Reloads() uint32 { return mc.reloads }

// Events returns the mod's handler set.
func (mc *ModContext) Events() *events.HandlerSet { return mc.set }

// Logger returns a logger prefixed with the mod name.
func (mc *ModContext) Logger() *log.Logger { return mc.logger }

// Active reports whether the mod is still loaded.
func (mc *ModContext) Active() bool { return !mc.set.Unloaded() }

// RegisterMessage registers opcode as owned by this mod.
func (mc *ModContext) RegisterMessage(opcode uint16, size int, ctor registry.Constructor, opts ...registry.RegisterOption) error {
	return mc.registry.Register(mc.id, opcode, size, ctor, opts...)
}

// Listen attaches fn to opcode. The listener goes quiet once this mod
// unloads, even when the opcode belongs to another mod.
func (mc *ModContext) Listen(opcode uint16, fn registry.Listener) bool {
	if fn == nil {
		return false
	}
	return mc.registry.AddListener(opcode, func(s registry.Sender, payload any) {
		if mc.Active() {
			fn(s, payload)
		}
	})
}

// After schedules fn on the world task queue.
func (mc *ModContext) After(name string, delay time.Duration, fn func()) string {
	return mc.tasks.Add(mc.id, name, delay, mc.guard(fn))
}

// Every schedules fn on the world task queue each period.
func (mc *ModContext) Every(name string, period time.Duration, fn func()) string {
	return mc.tasks.Every(mc.id, name, period, mc.guard(fn))
}

func (mc *ModContext) guard(fn func()) func() {
	if fn == nil {
		return nil
	}
	return func() {
		if mc.Active() {
			fn()
		}
	}
}
