// SPDX-License-Identifier: MPL-2.0

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/addonbridge/addonbridge/internal/templates"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t)
	ctx := context.Background()

	if err := s.PutItem(ctx, templates.Item{ID: 25, DisplayID: 1542, Name: "Worn Shortsword"}); err != nil {
		t.Fatalf("PutItem: %v", err)
	}
	if err := s.PutItem(ctx, templates.Item{ID: 25, DisplayID: 1543}); err != nil {
		t.Fatalf("PutItem update: %v", err)
	}
	if err := s.PutCreature(ctx, templates.Creature{ID: 299, Faction: 32, Models: [4]uint32{1, 2, 3, 4}}); err != nil {
		t.Fatalf("PutCreature: %v", err)
	}

	c, err := s.LoadCatalog(ctx)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if it, ok := c.Item(25); !ok || it.DisplayID != 1543 {
		t.Fatalf("Item(25) = %+v, %v", it, ok)
	}
	if cr, ok := c.Creature(299); !ok || cr.Models != [4]uint32{1, 2, 3, 4} || cr.Faction != 32 {
		t.Fatalf("Creature(299) = %+v, %v", cr, ok)
	}
}

func TestStoreImport(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t)
	ctx := context.Background()
	f := templates.File{
		Items:     []templates.Item{{ID: 1, DisplayID: 10}, {ID: 2, DisplayID: 20}},
		Creatures: []templates.Creature{{ID: 3, Faction: 7}},
	}
	if err := s.Import(ctx, f); err != nil {
		t.Fatalf("Import: %v", err)
	}
	c, err := s.LoadCatalog(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if items, creatures := c.Len(); items != 2 || creatures != 1 {
		t.Fatalf("Len() = %d, %d", items, creatures)
	}
}

func TestReopenSkipsAppliedMigrations(t *testing.T) {
	t.Parallel()

	s, path := openTestStore(t)
	if err := s.PutItem(context.Background(), templates.Item{ID: 9}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	again, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	c, err := again.LoadCatalog(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Item(9); !ok {
		t.Fatal("data lost across reopen")
	}
}

func TestNilStore(t *testing.T) {
	t.Parallel()

	var s *Store
	if err := s.PutItem(context.Background(), templates.Item{ID: 1}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("PutItem on nil store = %v", err)
	}
}

func TestUpSection(t *testing.T) {
	t.Parallel()

	got := upSection("-- +migrate Up\nCREATE TABLE t (x);\n-- +migrate Down\nDROP TABLE t;\n")
	if got != "\nCREATE TABLE t (x);\n" {
		t.Fatalf("upSection = %q", got)
	}
	if got := upSection("SELECT 1;"); got != "SELECT 1;" {
		t.Fatalf("upSection without markers = %q", got)
	}
}
