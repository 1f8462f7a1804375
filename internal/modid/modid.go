// SPDX-License-Identifier: MPL-2.0

// Package modid defines the numeric identity shared by every component that
// tracks mod-owned state (opcodes, event hooks, entity storage, timers).
package modid

import "strconv"

// Host identifies state that belongs to the host itself rather than to any
// loaded mod. Host-owned entries survive every tagged sweep.
const Host ID = ^ID(0)

// ID is the stable numeric id assigned to a mod by name. Ids are handed out
// monotonically starting at zero and are never reused for a different name.
type ID uint32

// String renders the id for logs; the host sentinel renders as "host".
func (id ID) String() string {
	if id == Host {
		return "host"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// IsHost reports whether id is the host sentinel.
func (id ID) IsHost() bool {
	return id == Host
}
