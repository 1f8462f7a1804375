// SPDX-License-Identifier: MPL-2.0

package entity

import "github.com/addonbridge/addonbridge/internal/modid"

type (
	collision struct {
		owner  modid.ID
		id     string
		radius float64
		fn     func(other any)
	}

	// Collisions is the list of proximity callbacks attached to an entity.
	// The host decides when two entities collide and calls Check.
	Collisions struct {
		callbacks []collision
	}
)

// Add attaches a callback fired when another entity comes within radius.
// A callback added with an existing id replaces it.
func (c *Collisions) Add(owner modid.ID, id string, radius float64, fn func(other any)) {
	if fn == nil {
		return
	}
	c.Remove(id)
	c.callbacks = append(c.callbacks, collision{owner: owner, id: id, radius: radius, fn: fn})
}

// Remove detaches the callback with id.
func (c *Collisions) Remove(id string) bool {
	for i, cb := range c.callbacks {
		if cb.id == id {
			c.callbacks = append(c.callbacks[:i:i], c.callbacks[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of attached callbacks.
func (c *Collisions) Len() int {
	return len(c.callbacks)
}

// Check runs every callback whose radius covers distance.
func (c *Collisions) Check(other any, distance float64) int {
	ran := 0
	for _, cb := range c.callbacks {
		if distance <= cb.radius {
			cb.fn(other)
			ran++
		}
	}
	return ran
}

// Clear removes every callback in scope and returns how many were removed.
func (c *Collisions) Clear(scope Scope) int {
	kept := c.callbacks[:0:0]
	n := 0
	for _, cb := range c.callbacks {
		if scope.Matches(cb.owner) {
			n++
			continue
		}
		kept = append(kept, cb)
	}
	c.callbacks = kept
	return n
}
