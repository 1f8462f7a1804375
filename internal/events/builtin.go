// SPDX-License-Identifier: MPL-2.0

package events

import (
	"github.com/addonbridge/addonbridge/internal/modid"
	"github.com/addonbridge/addonbridge/internal/registry"
)

// Builtin event kinds fired by the host and the bridge.
const (
	KindWorldUpdate  Kind = "world_update"
	KindPlayerLogin  Kind = "player_login"
	KindPlayerLogout Kind = "player_logout"
	KindAddonMessage Kind = "addon_message"
	KindModLoaded    Kind = "mod_loaded"
	KindModUnloaded  Kind = "mod_unloaded"
)

type (
	// WorldUpdate fires once per host tick.
	WorldUpdate struct {
		// Diff is the elapsed time since the previous tick, in milliseconds.
		Diff uint32
	}

	// PlayerLogin fires when a player enters the world.
	PlayerLogin struct {
		Player registry.Sender
	}

	// PlayerLogout fires when a player leaves the world.
	PlayerLogout struct {
		Player registry.Sender
	}

	// AddonMessage fires for every self-addressed addon message that carried
	// the protocol pre-header and decoded as base64, before the inner header
	// and opcode are validated.
	AddonMessage struct {
		Sender registry.Sender
		Data   []byte
	}

	// ModLoaded fires after a mod's entry point completed.
	ModLoaded struct {
		Name string
		ID   modid.ID
	}

	// ModUnloaded fires after a mod's resources were revoked.
	ModUnloaded struct {
		Name    string
		ID      modid.ID
		Reloads uint32
	}
)

// Kind implements Event.
func (WorldUpdate) Kind() Kind { return KindWorldUpdate }

// Kind implements Event.
func (PlayerLogin) Kind() Kind { return KindPlayerLogin }

// Kind implements Event.
func (PlayerLogout) Kind() Kind { return KindPlayerLogout }

// Kind implements Event.
func (AddonMessage) Kind() Kind { return KindAddonMessage }

// Kind implements Event.
func (ModLoaded) Kind() Kind { return KindModLoaded }

// Kind implements Event.
func (ModUnloaded) Kind() Kind { return KindModUnloaded }

// Fields implements Fielder.
func (e WorldUpdate) Fields() map[string]any {
	return map[string]any{"diff": int(e.Diff)}
}

// Fields implements Fielder.
func (e PlayerLogin) Fields() map[string]any {
	return map[string]any{"player": senderName(e.Player)}
}

// Fields implements Fielder.
func (e PlayerLogout) Fields() map[string]any {
	return map[string]any{"player": senderName(e.Player)}
}

// Fields implements Fielder.
func (e AddonMessage) Fields() map[string]any {
	return map[string]any{"sender": senderName(e.Sender), "data": string(e.Data)}
}

// Fields implements Fielder.
func (e ModLoaded) Fields() map[string]any {
	return map[string]any{"name": e.Name, "id": int(e.ID)}
}

// Fields implements Fielder.
func (e ModUnloaded) Fields() map[string]any {
	return map[string]any{"name": e.Name, "id": int(e.ID), "reloads": int(e.Reloads)}
}

func senderName(s registry.Sender) string {
	if s == nil {
		return ""
	}
	return s.Name()
}
