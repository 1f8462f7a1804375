// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/addonbridge/addonbridge/internal/issue"
	"github.com/addonbridge/addonbridge/internal/lifecycle"
	"github.com/addonbridge/addonbridge/internal/modscript"
)

// newModsCommand creates the `addonbridge mods` command tree.
func newModsCommand(app *App) *cobra.Command {
	modsCmd := &cobra.Command{
		Use:   "mods",
		Short: "Inspect mod scripts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	modsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List discovered mod scripts and their allow-list verdicts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			dir := cfg.ModsPath()
			paths, err := modscript.Discover(dir, cfg.ScriptPrefix)
			if err != nil {
				return err
			}

			fmt.Fprintln(app.stdout, TitleStyle.Render("Mods in "+dir))
			if len(paths) == 0 {
				app.renderIssue(issue.ModsDirNotFoundId)
				fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("(none found)"))
				return nil
			}

			policy := lifecycle.NewAllowList(cfg.DataDir, cfg.ScriptPrefix)
			for _, path := range paths {
				name, ok := lifecycle.ModuleName(path, cfg.ScriptPrefix)
				if !ok {
					continue
				}
				allowed, err := policy.ShouldLoad(path)
				switch {
				case err != nil:
					fmt.Fprintf(app.stdout, "  %s %s %s\n", ErrorStyle.Render("✗"), KeyStyle.Render(name), err)
				case allowed:
					fmt.Fprintf(app.stdout, "  %s %s %s\n", SuccessStyle.Render("✓"), KeyStyle.Render(name), SubtitleStyle.Render(path))
				default:
					fmt.Fprintf(app.stdout, "  %s %s %s\n", WarningStyle.Render("-"), KeyStyle.Render(name), SubtitleStyle.Render("(not in allow-list)"))
				}
			}
			return nil
		},
	})

	return modsCmd
}
