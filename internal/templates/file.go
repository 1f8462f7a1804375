// SPDX-License-Identifier: MPL-2.0

package templates

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// File is the TOML interchange format accepted by "templates import".
//
//	[[item]]
//	id = 25
//	display_id = 1542
//	name = "Worn Shortsword"
//
//	[[creature]]
//	id = 299
//	faction = 32
//	models = [1236, 0, 0, 0]
type File struct {
	Items     []Item     `toml:"item"`
	Creatures []Creature `toml:"creature"`
}

// ReadFile parses a template file.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return ParseFile(data)
}

// ParseFile parses template file contents. Templates without an id are
// rejected.
func ParseFile(data []byte) (File, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse templates: %w", err)
	}
	for i, it := range f.Items {
		if it.ID == 0 {
			return File{}, fmt.Errorf("item #%d: id is required", i+1)
		}
	}
	for i, cr := range f.Creatures {
		if cr.ID == 0 {
			return File{}, fmt.Errorf("creature #%d: id is required", i+1)
		}
	}
	return f, nil
}

// Fill adds the file's templates to c.
func (f File) Fill(c *Catalog) {
	for _, it := range f.Items {
		c.PutItem(it)
	}
	for _, cr := range f.Creatures {
		c.PutCreature(cr)
	}
}
