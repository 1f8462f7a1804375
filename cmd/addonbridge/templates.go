// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/addonbridge/addonbridge/internal/issue"
	"github.com/addonbridge/addonbridge/internal/templates"
	"github.com/addonbridge/addonbridge/internal/templates/sqlite"
)

// newTemplatesCommand creates the `addonbridge templates` command tree.
func newTemplatesCommand(app *App) *cobra.Command {
	tplCmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage the item and creature template store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	tplCmd.AddCommand(&cobra.Command{
		Use:   "import <file.toml>",
		Short: "Import item and creature templates from a TOML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return importTemplates(cmd.Context(), app, args[0])
		},
	})

	return tplCmd
}

func importTemplates(ctx context.Context, app *App, file string) (err error) {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	f, err := templates.ReadFile(file)
	if err != nil {
		app.renderIssue(issue.TemplatesImportFailedId)
		return fmt.Errorf("read %s: %w", file, err)
	}

	dbPath := cfg.TemplatesPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return err
	}
	store, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, store.Close()) }()

	if err := store.Import(ctx, f); err != nil {
		app.renderIssue(issue.TemplatesImportFailedId)
		return err
	}
	fmt.Fprintf(app.stdout, "%s Imported %d items and %d creatures into %s\n",
		SuccessStyle.Render("✓"), len(f.Items), len(f.Creatures), dbPath)
	return nil
}
