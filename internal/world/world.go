// SPDX-License-Identifier: MPL-2.0

// Package world is the dev host's entity model: maps holding creatures and
// game objects, and connected players. Every entity carries mod state.
//
// World is not synchronized. The host owns it on its tick goroutine.
package world

import (
	"maps"
	"slices"
	"time"

	"github.com/addonbridge/addonbridge/internal/entity"
	"github.com/addonbridge/addonbridge/internal/registry"
	"github.com/addonbridge/addonbridge/internal/sweep"
)

type (
	// Creature is a map-resident NPC.
	Creature struct {
		entity.State
		GUID  uint64
		Entry uint32
	}

	// GameObject is a map-resident interactive object.
	GameObject struct {
		entity.State
		GUID  uint64
		Entry uint32
	}

	// Map is one world map.
	Map struct {
		entity.State
		ID          uint32
		creatures   map[uint64]*Creature
		gameObjects map[uint64]*GameObject
	}

	// Outbox receives a player's outbound addon messages.
	Outbox func(prefix, msg string, channel int)

	// Player is a connected player. It implements registry.Sender.
	Player struct {
		entity.State
		name   string
		gm     bool
		outbox Outbox
	}

	// World holds every map and connected player.
	World struct {
		maps     map[uint32]*Map
		players  map[string]*Player
		nextGUID uint64
	}
)

var (
	_ registry.Sender = (*Player)(nil)
	_ sweep.World     = (*World)(nil)
	_ sweep.Map       = (*Map)(nil)
)

// New returns an empty world.
func New() *World {
	return &World{
		maps:    make(map[uint32]*Map),
		players: make(map[string]*Player),
	}
}

// Map returns map id, creating it on first use.
func (w *World) Map(id uint32) *Map {
	if m, ok := w.maps[id]; ok {
		return m
	}
	m := &Map{
		ID:          id,
		creatures:   make(map[uint64]*Creature),
		gameObjects: make(map[uint64]*GameObject),
	}
	w.maps[id] = m
	return m
}

// SpawnCreature places a creature of entry on map id.
func (w *World) SpawnCreature(mapID, entry uint32) *Creature {
	w.nextGUID++
	c := &Creature{GUID: w.nextGUID, Entry: entry}
	w.Map(mapID).creatures[c.GUID] = c
	return c
}

// SpawnGameObject places a game object of entry on map id.
func (w *World) SpawnGameObject(mapID, entry uint32) *GameObject {
	w.nextGUID++
	g := &GameObject{GUID: w.nextGUID, Entry: entry}
	w.Map(mapID).gameObjects[g.GUID] = g
	return g
}

// AddPlayer connects a player. A player already connected under name is
// replaced.
func (w *World) AddPlayer(name string, gm bool, out Outbox) *Player {
	p := &Player{name: name, gm: gm, outbox: out}
	w.players[name] = p
	return p
}

// RemovePlayer disconnects p. Only the exact player instance is removed,
// so a stale disconnect cannot drop a newer session.
func (w *World) RemovePlayer(p *Player) bool {
	if cur, ok := w.players[p.name]; ok && cur == p {
		delete(w.players, p.name)
		return true
	}
	return false
}

// Player returns the connected player called name.
func (w *World) Player(name string) (*Player, bool) {
	p, ok := w.players[name]
	return p, ok
}

// Players returns the connected players sorted by name.
func (w *World) Players() []*Player {
	out := make([]*Player, 0, len(w.players))
	for _, name := range slices.Sorted(maps.Keys(w.players)) {
		out = append(out, w.players[name])
	}
	return out
}

// ForEachMap implements sweep.World.
func (w *World) ForEachMap(fn func(sweep.Map)) {
	for _, id := range slices.Sorted(maps.Keys(w.maps)) {
		fn(w.maps[id])
	}
}

// ForEachPlayer implements sweep.World.
func (w *World) ForEachPlayer(fn func(entity.Moddable)) {
	for _, p := range w.Players() {
		fn(p)
	}
}

// Tick advances the timers of every map, map object and player.
func (w *World) Tick(diff time.Duration) int {
	ran := 0
	for _, id := range slices.Sorted(maps.Keys(w.maps)) {
		m := w.maps[id]
		ran += m.Timers.Tick(diff)
		for _, c := range m.Creatures() {
			ran += c.Timers.Tick(diff)
		}
		for _, g := range m.GameObjects() {
			ran += g.Timers.Tick(diff)
		}
	}
	for _, p := range w.Players() {
		ran += p.Timers.Tick(diff)
	}
	return ran
}

// Creatures returns the creatures on the map ordered by GUID.
func (m *Map) Creatures() []*Creature {
	out := make([]*Creature, 0, len(m.creatures))
	for _, guid := range slices.Sorted(maps.Keys(m.creatures)) {
		out = append(out, m.creatures[guid])
	}
	return out
}

// GameObjects returns the game objects on the map ordered by GUID.
func (m *Map) GameObjects() []*GameObject {
	out := make([]*GameObject, 0, len(m.gameObjects))
	for _, guid := range slices.Sorted(maps.Keys(m.gameObjects)) {
		out = append(out, m.gameObjects[guid])
	}
	return out
}

// Despawn removes the creature or game object with guid.
func (m *Map) Despawn(guid uint64) bool {
	if _, ok := m.creatures[guid]; ok {
		delete(m.creatures, guid)
		return true
	}
	if _, ok := m.gameObjects[guid]; ok {
		delete(m.gameObjects, guid)
		return true
	}
	return false
}

// ForEachObject implements sweep.Map.
func (m *Map) ForEachObject(fn func(entity.Moddable)) {
	for _, c := range m.Creatures() {
		fn(c)
	}
	for _, g := range m.GameObjects() {
		fn(g)
	}
}

// Name implements registry.Sender.
func (p *Player) Name() string { return p.name }

// IsGameMaster implements registry.Sender.
func (p *Player) IsGameMaster() bool { return p.gm }

// SendAddonMessage implements registry.Sender. Only messages addressed to the
// player itself are delivered; the dev host has no cross-player channel.
func (p *Player) SendAddonMessage(prefix, msg string, channel int, to registry.Sender) {
	if p.outbox == nil || (to != nil && to.Name() != p.name) {
		return
	}
	p.outbox(prefix, msg, channel)
}
