// SPDX-License-Identifier: MPL-2.0

// Package entity provides the mod-attributable state every world entity
// carries: a key/value storage bag, scheduled timers and collision callbacks.
//
// Each entry records the mod that inserted it, so an unload can remove exactly
// the state that mod owns. Scope AllOwners selects the legacy total reset.
package entity

import "github.com/addonbridge/addonbridge/internal/modid"

type (
	// Scope selects which entries a clear operation removes.
	Scope struct {
		all   bool
		owner modid.ID
	}

	// Moddable is the capability the world cleanup sweep depends on. Any
	// entity kind that carries mod state implements it.
	Moddable interface {
		ClearStorage(scope Scope) int
		ClearTimers(scope Scope) int
		ClearCollisions(scope Scope) int
	}

	// State bundles the three mod-state sub-structures. Host entity types
	// embed it to become Moddable.
	State struct {
		Storage    Storage
		Timers     Timers
		Collisions Collisions
	}
)

// AllOwners matches every entry regardless of owner.
func AllOwners() Scope {
	return Scope{all: true}
}

// OwnedBy matches entries inserted by owner.
func OwnedBy(owner modid.ID) Scope {
	return Scope{owner: owner}
}

// Matches reports whether an entry owned by owner falls in the scope.
func (s Scope) Matches(owner modid.ID) bool {
	return s.all || s.owner == owner
}

// All reports whether the scope is the legacy total clear.
func (s Scope) All() bool {
	return s.all
}

// Owner returns the filtered owner; meaningless when All is true.
func (s Scope) Owner() modid.ID {
	return s.owner
}

// ClearStorage implements Moddable.
func (s *State) ClearStorage(scope Scope) int {
	return s.Storage.Clear(scope)
}

// ClearTimers implements Moddable.
func (s *State) ClearTimers(scope Scope) int {
	return s.Timers.Clear(scope)
}

// ClearCollisions implements Moddable.
func (s *State) ClearCollisions(scope Scope) int {
	return s.Collisions.Clear(scope)
}

// ClearAll clears all three sub-structures in scope and returns the total
// number of entries removed.
func ClearAll(m Moddable, scope Scope) int {
	return m.ClearStorage(scope) + m.ClearTimers(scope) + m.ClearCollisions(scope)
}
