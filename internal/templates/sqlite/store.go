// SPDX-License-Identifier: MPL-2.0

// Package sqlite persists item and creature templates in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/addonbridge/addonbridge/internal/templates"
	"github.com/addonbridge/addonbridge/internal/templates/sqlite/migrations"
)

// ErrNotConfigured is returned when a nil or closed store is used.
var ErrNotConfigured = errors.New("template store is not configured")

// Store is the SQLite-backed template store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("template store path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PutItem inserts or replaces an item template.
func (s *Store) PutItem(ctx context.Context, it templates.Item) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO item_templates (id, display_id, name) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET display_id = excluded.display_id, name = excluded.name`,
		it.ID, it.DisplayID, it.Name)
	if err != nil {
		return fmt.Errorf("put item %d: %w", it.ID, err)
	}
	return nil
}

// PutCreature inserts or replaces a creature template.
func (s *Store) PutCreature(ctx context.Context, cr templates.Creature) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO creature_templates (id, faction, model1, model2, model3, model4, name)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    faction = excluded.faction,
    model1 = excluded.model1,
    model2 = excluded.model2,
    model3 = excluded.model3,
    model4 = excluded.model4,
    name = excluded.name`,
		cr.ID, cr.Faction, cr.Models[0], cr.Models[1], cr.Models[2], cr.Models[3], cr.Name)
	if err != nil {
		return fmt.Errorf("put creature %d: %w", cr.ID, err)
	}
	return nil
}

// Import stores every template in f inside one transaction.
func (s *Store) Import(ctx context.Context, f templates.File) (err error) {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, it := range f.Items {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO item_templates (id, display_id, name) VALUES (?, ?, ?)`,
			it.ID, it.DisplayID, it.Name); err != nil {
			return fmt.Errorf("import item %d: %w", it.ID, err)
		}
	}
	for _, cr := range f.Creatures {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO creature_templates (id, faction, model1, model2, model3, model4, name)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			cr.ID, cr.Faction, cr.Models[0], cr.Models[1], cr.Models[2], cr.Models[3], cr.Name); err != nil {
			return fmt.Errorf("import creature %d: %w", cr.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// LoadCatalog reads every template into a new in-memory catalog.
func (s *Store) LoadCatalog(ctx context.Context) (*templates.Catalog, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	c := templates.NewCatalog()

	rows, err := s.db.QueryContext(ctx, `SELECT id, display_id, name FROM item_templates`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	for rows.Next() {
		var it templates.Item
		if err := rows.Scan(&it.ID, &it.DisplayID, &it.Name); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan item: %w", err)
		}
		c.PutItem(it)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, faction, model1, model2, model3, model4, name FROM creature_templates`)
	if err != nil {
		return nil, fmt.Errorf("query creatures: %w", err)
	}
	for rows.Next() {
		var cr templates.Creature
		if err := rows.Scan(&cr.ID, &cr.Faction, &cr.Models[0], &cr.Models[1], &cr.Models[2], &cr.Models[3], &cr.Name); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan creature: %w", err)
		}
		c.PutCreature(cr)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("read creatures: %w", err)
	}
	return c, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}
