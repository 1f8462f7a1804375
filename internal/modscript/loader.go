// SPDX-License-Identifier: MPL-2.0

// Package modscript loads mods written in Lua. A mod named "bank" lives in
// <dir>/<prefix>bank.lua with an optional <prefix>bank.toml manifest beside
// it. Each load runs the script in a fresh interpreter that sees the host
// through the global "bridge" table.
package modscript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Shopify/go-lua"
	"github.com/charmbracelet/log"

	"github.com/addonbridge/addonbridge/internal/lifecycle"
	"github.com/addonbridge/addonbridge/internal/registry"
	"github.com/addonbridge/addonbridge/internal/world"
)

const (
	// ScriptExt is the extension of mod scripts.
	ScriptExt = ".lua"
	// ManifestExt is the extension of mod manifests.
	ManifestExt = ".toml"
)

type (
	// Players looks up connected players by name.
	Players interface {
		Player(name string) (*world.Player, bool)
	}

	// Loader resolves mod names to Lua scripts. It implements
	// lifecycle.Loader.
	Loader struct {
		Dir     string
		Prefix  string
		Players Players
		Logger  *log.Logger
	}
)

var _ lifecycle.Loader = (*Loader)(nil)

// ScriptPath returns the script path for mod name.
func (l *Loader) ScriptPath(name string) string {
	return filepath.Join(l.Dir, l.Prefix+name+ScriptExt)
}

// ManifestPath returns the manifest path for mod name.
func (l *Loader) ManifestPath(name string) string {
	return filepath.Join(l.Dir, l.Prefix+name+ManifestExt)
}

// Resolve implements lifecycle.Loader.
func (l *Loader) Resolve(_ context.Context, name string) (lifecycle.EntryPoint, error) {
	script := l.ScriptPath(name)
	info, err := os.Stat(script)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", lifecycle.ErrNoEntryPoint, script)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", lifecycle.ErrNoEntryPoint, script)
	}
	manifest := l.ManifestPath(name)

	return func(ctx context.Context, mc *lifecycle.ModContext) error {
		m, err := ReadManifest(manifest)
		if err != nil {
			return err
		}
		for _, msg := range m.Messages {
			var opts []registry.RegisterOption
			if msg.Force {
				opts = append(opts, registry.WithForce())
			}
			if err := mc.RegisterMessage(msg.Opcode, msg.Size, nil, opts...); err != nil {
				return fmt.Errorf("manifest message %q: %w", msg.Name, err)
			}
		}
		return l.run(ctx, mc, script)
	}, nil
}

func (l *Loader) run(ctx context.Context, mc *lifecycle.ModContext, script string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := l.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	rt := &runtime{
		state:   lua.NewState(),
		mc:      mc,
		players: l.Players,
		logger:  logger.WithPrefix("modscript").With("mod", mc.Name()),
	}
	lua.OpenLibraries(rt.state)
	rt.install()

	if err := lua.LoadFile(rt.state, script, ""); err != nil {
		return fmt.Errorf("load %s: %w", script, err)
	}
	if err := rt.state.ProtectedCall(0, 0, 0); err != nil {
		return fmt.Errorf("run %s: %w", script, err)
	}
	return nil
}
