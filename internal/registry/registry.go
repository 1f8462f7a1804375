// SPDX-License-Identifier: MPL-2.0

// Package registry holds the opcode table that addon frames dispatch through,
// together with the ownership index that lets a mod's opcodes be revoked in
// bulk when it unloads.
//
// The registry is not synchronized. The host serializes registration,
// dispatch and unload through its tick loop.
package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/addonbridge/addonbridge/internal/modid"
	"github.com/addonbridge/addonbridge/pkg/frame"
)

var (
	// ErrOpcodeOwned is the sentinel wrapped by OwnershipConflictError.
	ErrOpcodeOwned = errors.New("opcode owned by another loaded mod")
	// ErrInvalidSize is returned when a registration size cannot fit in a frame.
	ErrInvalidSize = errors.New("invalid message size")
	// ErrOpcodeOutOfRange is returned by Get for opcodes beyond the table.
	ErrOpcodeOutOfRange = errors.New("opcode out of range")
)

type (
	// Sender is the player identity a frame arrived from. Listeners use it to
	// answer over the same self-addressed channel.
	Sender interface {
		Name() string
		IsGameMaster() bool
		SendAddonMessage(prefix, msg string, channel int, to Sender)
	}

	// Constructor builds the typed payload for one message. It receives a
	// private copy of the payload bytes and may retain it.
	Constructor func(payload []byte) any

	// Listener receives a constructed payload.
	Listener func(sender Sender, payload any)

	// Descriptor is the per-opcode handler record.
	Descriptor struct {
		// Size is the exact payload length accepted for this opcode.
		Size int
		// Construct builds the typed payload; never nil on an enabled descriptor.
		Construct Constructor
		// Enabled is false for never-registered and revoked slots.
		Enabled bool
		// Listeners are invoked in registration order.
		Listeners []Listener
		// Owner is the mod that registered the descriptor.
		Owner modid.ID
	}

	// OwnershipConflictError is returned when a mod registers an opcode owned
	// by a different, still-loaded mod without forcing.
	OwnershipConflictError struct {
		Opcode    uint16
		Owner     modid.ID
		Requester modid.ID
	}

	// RegisterOption adjusts a single Register call.
	RegisterOption func(*registerOptions)

	registerOptions struct {
		force bool
	}

	// Registry is the dense opcode table plus its ownership index.
	Registry struct {
		slots  []Descriptor
		owners map[modid.ID]map[uint16]struct{}
		byOp   map[uint16]modid.ID
	}
)

// Error implements the error interface.
func (e *OwnershipConflictError) Error() string {
	return fmt.Sprintf("opcode %d is owned by mod %s (requested by mod %s)", e.Opcode, e.Owner, e.Requester)
}

// Unwrap returns ErrOpcodeOwned for errors.Is compatibility.
func (e *OwnershipConflictError) Unwrap() error {
	return ErrOpcodeOwned
}

// WithForce transfers ownership of an opcode held by another loaded mod
// instead of failing.
func WithForce() RegisterOption {
	return func(o *registerOptions) { o.force = true }
}

// Identity is the default constructor: the payload bytes themselves.
func Identity(payload []byte) any {
	return payload
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		owners: make(map[modid.ID]map[uint16]struct{}),
		byOp:   make(map[uint16]modid.ID),
	}
}

// Size is one past the highest opcode ever registered.
func (r *Registry) Size() int {
	return len(r.slots)
}

// Register installs a descriptor for opcode on behalf of owner. Any previous
// descriptor at that index is replaced, listeners included.
func (r *Registry) Register(owner modid.ID, opcode uint16, size int, ctor Constructor, opts ...RegisterOption) error {
	if size < 0 || size > frame.MaxPayload {
		return fmt.Errorf("%w: %d (must be 0..%d)", ErrInvalidSize, size, frame.MaxPayload)
	}

	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}

	if prev, ok := r.byOp[opcode]; ok && prev != owner {
		if !o.force {
			return &OwnershipConflictError{Opcode: opcode, Owner: prev, Requester: owner}
		}
		r.forget(prev, opcode)
	}

	if ctor == nil {
		ctor = Identity
	}

	if int(opcode) >= len(r.slots) {
		r.slots = append(r.slots, make([]Descriptor, int(opcode)+1-len(r.slots))...)
	}
	r.slots[opcode] = Descriptor{
		Size:      size,
		Construct: ctor,
		Enabled:   true,
		Owner:     owner,
	}

	set, ok := r.owners[owner]
	if !ok {
		set = make(map[uint16]struct{})
		r.owners[owner] = set
	}
	set[opcode] = struct{}{}
	r.byOp[opcode] = owner
	return nil
}

// Lookup returns the descriptor for opcode. It never returns nil: unknown and
// out-of-range opcodes yield a disabled, empty descriptor that is not stored
// in the table.
func (r *Registry) Lookup(opcode uint16) *Descriptor {
	if int(opcode) >= len(r.slots) {
		return &Descriptor{}
	}
	return &r.slots[opcode]
}

// Get is the strict form of Lookup.
func (r *Registry) Get(opcode uint16) (*Descriptor, error) {
	if int(opcode) >= len(r.slots) {
		return nil, fmt.Errorf("%w: %d (size %d)", ErrOpcodeOutOfRange, opcode, len(r.slots))
	}
	return &r.slots[opcode], nil
}

// Disable resets the slot to a disabled, empty descriptor. The table never
// shrinks, so indices stay stable for the process lifetime.
func (r *Registry) Disable(opcode uint16) {
	if int(opcode) >= len(r.slots) {
		return
	}
	r.slots[opcode] = Descriptor{}
}

// AddListener appends fn to the descriptor at opcode. Opcodes beyond the
// table are a tolerated no-op and report false.
func (r *Registry) AddListener(opcode uint16, fn Listener) bool {
	if fn == nil || int(opcode) >= len(r.slots) {
		return false
	}
	d := &r.slots[opcode]
	d.Listeners = append(d.Listeners, fn)
	return true
}

// Owner reports which mod currently owns opcode.
func (r *Registry) Owner(opcode uint16) (modid.ID, bool) {
	id, ok := r.byOp[opcode]
	return id, ok
}

// Owned lists the opcodes in owner's ownership set, ascending.
func (r *Registry) Owned(owner modid.ID) []uint16 {
	set := r.owners[owner]
	out := make([]uint16, 0, len(set))
	for op := range set {
		out = append(out, op)
	}
	slices.Sort(out)
	return out
}

// Revoke disables every opcode in owner's ownership set and drops the set.
// It is driven by the set, not by the live table: whatever is registered at
// an owned index is disabled.
func (r *Registry) Revoke(owner modid.ID) []uint16 {
	revoked := r.Owned(owner)
	for _, op := range revoked {
		r.Disable(op)
		delete(r.byOp, op)
	}
	delete(r.owners, owner)
	return revoked
}

func (r *Registry) forget(owner modid.ID, opcode uint16) {
	if set, ok := r.owners[owner]; ok {
		delete(set, opcode)
		if len(set) == 0 {
			delete(r.owners, owner)
		}
	}
	delete(r.byOp, opcode)
}
