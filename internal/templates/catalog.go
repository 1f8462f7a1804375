// SPDX-License-Identifier: MPL-2.0

// Package templates holds the item and creature templates the GM debug
// channel answers lookups from.
package templates

import (
	"maps"
	"slices"
	"sync"
)

type (
	// Item is an item template.
	Item struct {
		ID        uint32 `toml:"id"`
		DisplayID uint32 `toml:"display_id"`
		Name      string `toml:"name"`
	}

	// Creature is a creature template. Models holds the four display ids.
	Creature struct {
		ID      uint32    `toml:"id"`
		Faction uint32    `toml:"faction"`
		Models  [4]uint32 `toml:"models"`
		Name    string    `toml:"name"`
	}

	// Catalog is an in-memory template set. It is safe for concurrent use.
	Catalog struct {
		mu        sync.RWMutex
		items     map[uint32]Item
		creatures map[uint32]Creature
	}
)

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		items:     make(map[uint32]Item),
		creatures: make(map[uint32]Creature),
	}
}

// PutItem adds or replaces an item template.
func (c *Catalog) PutItem(it Item) {
	c.mu.Lock()
	c.items[it.ID] = it
	c.mu.Unlock()
}

// PutCreature adds or replaces a creature template.
func (c *Catalog) PutCreature(cr Creature) {
	c.mu.Lock()
	c.creatures[cr.ID] = cr
	c.mu.Unlock()
}

// Item returns the item template with id.
func (c *Catalog) Item(id uint32) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[id]
	return it, ok
}

// Creature returns the creature template with id.
func (c *Catalog) Creature(id uint32) (Creature, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cr, ok := c.creatures[id]
	return cr, ok
}

// Len returns the number of item and creature templates.
func (c *Catalog) Len() (items, creatures int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items), len(c.creatures)
}

// ItemIDs returns every item id, ascending.
func (c *Catalog) ItemIDs() []uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.items))
}

// CreatureIDs returns every creature id, ascending.
func (c *Catalog) CreatureIDs() []uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.creatures))
}
