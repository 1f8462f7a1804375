// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"errors"
	"testing"

	"github.com/addonbridge/addonbridge/internal/modid"
)

func TestLookupUnregisteredIsDisabled(t *testing.T) {
	t.Parallel()

	r := New()
	for _, op := range []uint16{0, 1, 100, 65535} {
		d := r.Lookup(op)
		if d == nil {
			t.Fatalf("Lookup(%d) returned nil", op)
		}
		if d.Enabled || len(d.Listeners) != 0 {
			t.Fatalf("Lookup(%d) = %+v, want disabled empty descriptor", op, d)
		}
	}

	if err := r.Register(0, 10, 2, nil); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	// Index 4 lies inside the grown table but was never registered.
	if d := r.Lookup(4); d.Enabled {
		t.Fatalf("Lookup(4) enabled after growing the table")
	}
}

func TestRegisterGrowsAndReplaces(t *testing.T) {
	t.Parallel()

	r := New()
	if err := r.Register(1, 7, 3, nil); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if r.Size() != 8 {
		t.Fatalf("Size() = %d, want 8", r.Size())
	}
	if !r.AddListener(7, func(Sender, any) {}) {
		t.Fatal("AddListener() = false on a registered opcode")
	}

	if err := r.Register(1, 7, 5, nil); err != nil {
		t.Fatalf("re-Register() error: %v", err)
	}
	d := r.Lookup(7)
	if !d.Enabled || d.Size != 5 {
		t.Fatalf("descriptor after re-registration = %+v", d)
	}
	if len(d.Listeners) != 0 {
		t.Fatalf("re-registration merged %d listeners, want replacement", len(d.Listeners))
	}

	if err := r.Register(1, 2, 0, nil); err != nil {
		t.Fatalf("Register() lower opcode error: %v", err)
	}
	if r.Size() != 8 {
		t.Fatalf("Size() shrank or grew to %d after registering a lower opcode", r.Size())
	}
}

func TestRegisterRejectsInvalidSize(t *testing.T) {
	t.Parallel()

	r := New()
	for _, size := range []int{-1, 245, 1000} {
		if err := r.Register(0, 1, size, nil); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("Register(size=%d) error = %v, want ErrInvalidSize", size, err)
		}
	}
	if r.Size() != 0 {
		t.Fatalf("failed registration grew the table to %d", r.Size())
	}
}

func TestAddListenerOutOfRangeIsNoop(t *testing.T) {
	t.Parallel()

	r := New()
	if r.AddListener(3, func(Sender, any) {}) {
		t.Fatal("AddListener() on an empty registry = true")
	}
	if r.Size() != 0 {
		t.Fatalf("AddListener() grew the table to %d", r.Size())
	}
}

func TestDisableKeepsTableSize(t *testing.T) {
	t.Parallel()

	r := New()
	if err := r.Register(0, 9, 1, nil); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	r.Disable(9)
	r.Disable(500)
	if r.Size() != 10 {
		t.Fatalf("Size() = %d after Disable, want 10", r.Size())
	}
	if r.Lookup(9).Enabled {
		t.Fatal("opcode 9 still enabled after Disable")
	}
}

func TestGetStrict(t *testing.T) {
	t.Parallel()

	r := New()
	if _, err := r.Get(0); !errors.Is(err, ErrOpcodeOutOfRange) {
		t.Fatalf("Get(0) on empty registry error = %v", err)
	}
	if err := r.Register(0, 0, 1, nil); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	d, err := r.Get(0)
	if err != nil || !d.Enabled {
		t.Fatalf("Get(0) = %+v, %v", d, err)
	}
}

func TestOwnershipConflict(t *testing.T) {
	t.Parallel()

	const modA, modB modid.ID = 0, 1

	r := New()
	if err := r.Register(modA, 5, 3, nil); err != nil {
		t.Fatalf("Register(A) error: %v", err)
	}

	err := r.Register(modB, 5, 3, nil)
	var conflict *OwnershipConflictError
	if !errors.As(err, &conflict) || !errors.Is(err, ErrOpcodeOwned) {
		t.Fatalf("Register(B) error = %v, want OwnershipConflictError", err)
	}
	if conflict.Owner != modA || conflict.Requester != modB || conflict.Opcode != 5 {
		t.Fatalf("conflict = %+v", conflict)
	}

	if err := r.Register(modB, 5, 4, nil, WithForce()); err != nil {
		t.Fatalf("forced Register(B) error: %v", err)
	}
	if owner, _ := r.Owner(5); owner != modB {
		t.Fatalf("Owner(5) = %v after force, want %v", owner, modB)
	}
	if got := r.Owned(modA); len(got) != 0 {
		t.Fatalf("Owned(A) = %v after transfer, want empty", got)
	}

	// Revoking the previous owner must not touch the transferred opcode.
	r.Revoke(modA)
	if !r.Lookup(5).Enabled {
		t.Fatal("revoking the previous owner disabled a transferred opcode")
	}
}

func TestRevokeDisablesOwnedSet(t *testing.T) {
	t.Parallel()

	r := New()
	for _, op := range []uint16{3, 1, 2} {
		if err := r.Register(7, op, 1, nil); err != nil {
			t.Fatalf("Register(%d) error: %v", op, err)
		}
	}
	if err := r.Register(8, 4, 1, nil); err != nil {
		t.Fatalf("Register(other) error: %v", err)
	}

	revoked := r.Revoke(7)
	if len(revoked) != 3 || revoked[0] != 1 || revoked[2] != 3 {
		t.Fatalf("Revoke() = %v, want [1 2 3]", revoked)
	}
	for _, op := range revoked {
		if r.Lookup(op).Enabled {
			t.Errorf("opcode %d still enabled", op)
		}
		if _, owned := r.Owner(op); owned {
			t.Errorf("opcode %d still owned", op)
		}
	}
	if !r.Lookup(4).Enabled {
		t.Fatal("Revoke() disabled another mod's opcode")
	}

	// A revoked opcode is free for any mod.
	if err := r.Register(8, 1, 1, nil); err != nil {
		t.Fatalf("Register() after revoke error: %v", err)
	}
}

func TestTypedHelpers(t *testing.T) {
	t.Parallel()

	type point struct{ X, Y byte }

	r := New()
	err := RegisterTyped(r, 0, 2, 2, func(b []byte) point { return point{X: b[0], Y: b[1]} })
	if err != nil {
		t.Fatalf("RegisterTyped() error: %v", err)
	}

	var got []point
	if !Listen(r, 2, func(_ Sender, p point) { got = append(got, p) }) {
		t.Fatal("Listen() = false")
	}

	d := r.Lookup(2)
	payload := d.Construct([]byte{4, 9})
	for _, l := range d.Listeners {
		l(nil, payload)
		l(nil, "not a point")
	}
	if len(got) != 1 || got[0] != (point{X: 4, Y: 9}) {
		t.Fatalf("typed listener received %v", got)
	}
}
