// SPDX-License-Identifier: MPL-2.0

package registry

import "github.com/addonbridge/addonbridge/internal/modid"

// RegisterTyped registers opcode with a constructor producing T.
func RegisterTyped[T any](r *Registry, owner modid.ID, opcode uint16, size int, ctor func(payload []byte) T, opts ...RegisterOption) error {
	var c Constructor
	if ctor != nil {
		c = func(payload []byte) any { return ctor(payload) }
	}
	return r.Register(owner, opcode, size, c, opts...)
}

// Listen adds a listener that only fires for payloads of type T. A payload of
// any other type (for instance after another mod re-registered the opcode
// with a different constructor) is skipped.
func Listen[T any](r *Registry, opcode uint16, fn func(sender Sender, payload T)) bool {
	if fn == nil {
		return false
	}
	return r.AddListener(opcode, func(sender Sender, payload any) {
		if v, ok := payload.(T); ok {
			fn(sender, v)
		}
	})
}
