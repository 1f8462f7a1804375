// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"fmt"
)

type (
	// EntryPoint is a mod's registration entry. It subscribes handlers and
	// registers messages through mc. A returned error fails the load.
	EntryPoint func(ctx context.Context, mc *ModContext) error

	// Loader resolves a mod name to its entry point.
	Loader interface {
		Resolve(ctx context.Context, name string) (EntryPoint, error)
	}

	// FuncLoader adapts a function to Loader.
	FuncLoader func(ctx context.Context, name string) (EntryPoint, error)

	// StaticLoader serves entry points compiled into the binary.
	StaticLoader map[string]EntryPoint
)

// Resolve implements Loader.
func (f FuncLoader) Resolve(ctx context.Context, name string) (EntryPoint, error) {
	return f(ctx, name)
}

// Resolve implements Loader.
func (s StaticLoader) Resolve(_ context.Context, name string) (EntryPoint, error) {
	ep, ok := s[name]
	if !ok || ep == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoEntryPoint, name)
	}
	return ep, nil
}
