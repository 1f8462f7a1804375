// SPDX-License-Identifier: MPL-2.0

// Package sweep walks every live world entity and removes mod state after a
// mod unload.
package sweep

import (
	"fmt"

	"github.com/addonbridge/addonbridge/internal/entity"
	"github.com/addonbridge/addonbridge/internal/modid"
)

// Sweep modes.
const (
	// ModeTagged removes only the entries owned by the unloaded mod.
	ModeTagged Mode = iota
	// ModeLegacy removes every entry from every entity, whoever owns it.
	ModeLegacy
)

type (
	// Mode selects how much mod state an unload sweep removes.
	Mode int

	// Map is a world map: it carries its own mod state and contains objects.
	Map interface {
		entity.Moddable
		// ForEachObject visits every creature and game object on the map.
		ForEachObject(fn func(entity.Moddable))
	}

	// World enumerates the live entities the sweep visits.
	World interface {
		ForEachMap(fn func(Map))
		ForEachPlayer(fn func(entity.Moddable))
	}

	// Stats summarizes one sweep.
	Stats struct {
		Maps       int
		Objects    int
		Players    int
		Storage    int
		Timers     int
		Collisions int
	}
)

// String returns the mode name used in config and logs.
func (m Mode) String() string {
	switch m {
	case ModeTagged:
		return "tagged"
	case ModeLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ModeFor maps the sweep.legacy config flag to a Mode.
func ModeFor(legacy bool) Mode {
	if legacy {
		return ModeLegacy
	}
	return ModeTagged
}

// ScopeFor returns the clear scope used when unloading owner under mode.
func ScopeFor(mode Mode, owner modid.ID) entity.Scope {
	if mode == ModeLegacy {
		return entity.AllOwners()
	}
	return entity.OwnedBy(owner)
}

// Removed returns the total number of entries removed.
func (s Stats) Removed() int {
	return s.Storage + s.Timers + s.Collisions
}

// Sweep clears the storage, timers and collisions in scope on every map,
// map object and player of world.
func Sweep(world World, scope entity.Scope) Stats {
	var st Stats
	if world == nil {
		return st
	}
	world.ForEachMap(func(m Map) {
		st.Maps++
		st.clear(m, scope)
		m.ForEachObject(func(obj entity.Moddable) {
			st.Objects++
			st.clear(obj, scope)
		})
	})
	world.ForEachPlayer(func(p entity.Moddable) {
		st.Players++
		st.clear(p, scope)
	})
	return st
}

func (s *Stats) clear(m entity.Moddable, scope entity.Scope) {
	s.Storage += m.ClearStorage(scope)
	s.Timers += m.ClearTimers(scope)
	s.Collisions += m.ClearCollisions(scope)
}
