// SPDX-License-Identifier: MPL-2.0

package modscript

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/addonbridge/addonbridge/pkg/frame"
)

type (
	// Manifest is the optional TOML file next to a mod script. It declares
	// the messages the mod owns so they are registered before the script runs.
	//
	//	[[message]]
	//	opcode = 5
	//	size = 3
	//	name = "deposit"
	Manifest struct {
		Messages []Message `toml:"message"`
	}

	// Message is one declared opcode.
	Message struct {
		Opcode uint16 `toml:"opcode"`
		Size   int    `toml:"size"`
		Name   string `toml:"name"`
		// Force takes the opcode over from another loaded mod.
		Force bool `toml:"force"`
	}
)

// ReadManifest parses the manifest at path. A missing file yields an empty
// manifest.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Manifest{}, nil
		}
		return Manifest{}, err
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, m.Validate()
}

// Validate checks sizes and duplicate opcodes.
func (m Manifest) Validate() error {
	seen := make(map[uint16]string, len(m.Messages))
	for _, msg := range m.Messages {
		if msg.Size < 0 || msg.Size > frame.MaxPayload {
			return fmt.Errorf("message %q: size %d out of range 0..%d", msg.Name, msg.Size, frame.MaxPayload)
		}
		if prev, dup := seen[msg.Opcode]; dup {
			return fmt.Errorf("opcode %d declared twice (%q and %q)", msg.Opcode, prev, msg.Name)
		}
		seen[msg.Opcode] = msg.Name
	}
	return nil
}
