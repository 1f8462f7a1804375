// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/addonbridge/addonbridge/internal/config"
)

// newConfigCommand creates the `addonbridge config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage addonbridge configuration",
		Long: `Manage addonbridge configuration.

Configuration is read from the first of:
  - the --config flag
  - the user config directory (addonbridge/addonbridge.cue)
  - addonbridge.cue in the working directory

Every key can be overridden by an ` + config.EnvPrefix + `_* environment variable,
for example ` + config.EnvPrefix + `_GATEWAY_ADDR.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Create the default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return initConfig(app, path)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(app.stdout, path)
			return err
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, path, err := config.LoadWithPath(ctx, config.LoadOptions{ConfigFilePath: app.cfgFile})
	if err != nil {
		return errors.New(formatErrorForDisplay(err, app.verbose))
	}

	w := app.stdout
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path == "" {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), path)
	}
	fmt.Fprintln(w)

	rows := []struct{ key, value string }{
		{"data_dir", cfg.DataDir},
		{"mods_dir", cfg.ModsPath()},
		{"script_prefix", cfg.ScriptPrefix},
		{"sweep.legacy", fmt.Sprint(cfg.Sweep.Legacy)},
		{"log.level", cfg.Log.Level.String()},
		{"gateway.addr", cfg.Gateway.Addr},
		{"tick.interval", cfg.Tick.Interval.String()},
		{"templates.path", cfg.TemplatesPath()},
		{"watch.enabled", fmt.Sprint(cfg.Watch.Enabled)},
		{"watch.debounce", cfg.Watch.Debounce.String()},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render(r.key), SuccessStyle.Render(r.value))
	}
	return nil
}

func initConfig(app *App, path string) error {
	if path == "" {
		var err error
		if path, err = config.ConfigPath(); err != nil {
			return err
		}
	}
	created, err := config.CreateDefaultConfig(path)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	if !created {
		fmt.Fprintf(app.stdout, "%s %s already exists\n", WarningStyle.Render("-"), path)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}
