// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for addonbridge.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/addonbridge/addonbridge/internal/config"
	"github.com/addonbridge/addonbridge/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

type (
	// App carries the flags and services shared by every command.
	App struct {
		Config  config.Provider
		stdout  io.Writer
		stderr  io.Writer
		cfgFile string
		level   string
		verbose bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	return &App{Config: deps.Config, stdout: deps.Stdout, stderr: deps.Stderr}
}

// NewRootCommand builds the command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "addonbridge",
		Short: "Binary addon-message bridge and mod host for game-server scripting",
		Long: TitleStyle.Render("addonbridge") + SubtitleStyle.Render(" - binary messages over the addon channel") + `

addonbridge multiplexes opcode-tagged binary messages over the self-addressed
addon text channel, routes them to the mods that own each opcode, and hot
reloads Lua mods without restarting the host.

` + SubtitleStyle.Render("Examples:") + `
  addonbridge serve                      Run the dev host, gateway and watcher
  addonbridge mods list                  Show discovered mods and allow-list verdicts
  addonbridge frame encode 5 616263      Encode opcode 5 with payload "abc"
  addonbridge frame decode <text>        Decode an addon message
  addonbridge config show                Show the effective configuration`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/addonbridge/addonbridge.cue)")
	root.PersistentFlags().StringVar(&app.level, "log-level", "", "log level: debug, info, warn, error (overrides log.level)")
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "show the full error chain")

	root.AddCommand(
		newServeCommand(app),
		newFrameCommand(app),
		newModsCommand(app),
		newConfigCommand(app),
		newTemplatesCommand(app),
		newVersionCommand(app),
	)
	return root
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// loadConfig loads configuration honoring --config.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.cfgFile})
	if err != nil {
		a.renderIssue(issue.ConfigLoadFailedId)
		return nil, errors.New(formatErrorForDisplay(err, a.verbose))
	}
	return cfg, nil
}

// newLogger builds the process logger. --log-level wins over log.level.
func (a *App) newLogger(cfg *config.Config) (*log.Logger, error) {
	level := a.level
	if level == "" && cfg != nil {
		level = cfg.Log.Level.String()
	}
	if level == "" {
		level = config.LogLevelInfo.String()
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return log.NewWithOptions(a.stderr, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
	}), nil
}

// renderIssue prints the troubleshooting page for id to stderr.
func (a *App) renderIssue(id issue.Id) {
	rendered, err := issue.Get(id).Render("dark")
	if err != nil {
		return
	}
	fmt.Fprint(a.stderr, rendered)
}

// formatErrorForDisplay formats an error for user display.
// ActionableErrors render with their suggestions; verbose adds the chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(app.stdout, "addonbridge "+getVersionString())
			return err
		},
	}
}
