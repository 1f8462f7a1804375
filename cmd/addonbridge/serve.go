// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/addonbridge/addonbridge/internal/issue"
	"github.com/addonbridge/addonbridge/internal/server"
	"github.com/addonbridge/addonbridge/internal/telemetry"
)

// newServeCommand creates the `addonbridge serve` command.
func newServeCommand(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dev host with the websocket gateway and mod watcher",
		Long: `Run the dev host.

Loads every allowed mod script from the mods directory, starts the tick loop,
serves addon clients over websocket at /ws?name=<player>&gm=<0|1>, and hot
reloads mods when their script or manifest changes. Stop with Ctrl+C.

Tracing is exported over OTLP/HTTP when ` + telemetry.EnvEndpoint + ` is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), app, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides gateway.addr)")
	return cmd
}

func runServe(ctx context.Context, app *App, addr string) (err error) {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Gateway.Addr = addr
	}
	logger, err := app.newLogger(cfg)
	if err != nil {
		return err
	}

	shutdown, err := telemetry.Setup(ctx, telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		// The command context is canceled by now.
		err = errors.Join(err, shutdown(context.WithoutCancel(ctx)))
	}()

	srv, err := server.New(ctx, server.Options{Config: cfg, Logger: logger})
	if err != nil {
		return errors.New(formatErrorForDisplay(err, app.verbose))
	}
	defer func() { err = errors.Join(err, srv.Close()) }()

	results, err := srv.LoadAll(ctx)
	if err != nil {
		return err
	}
	printLoadResults(app.stdout, results)
	if len(results) == 0 {
		app.renderIssue(issue.ModsDirNotFoundId)
	}
	for _, res := range results {
		if res.Err != nil {
			app.renderIssue(issue.ModLoadFailedId)
			break
		}
	}

	logger.Info("serving", "addr", cfg.Gateway.Addr, "mods", cfg.ModsPath())
	if err := srv.Run(ctx); err != nil {
		if errors.Is(err, server.ErrListen) {
			app.renderIssue(issue.GatewayListenFailedId)
		}
		return err
	}
	return nil
}

func printLoadResults(w io.Writer, results []server.LoadResult) {
	for _, res := range results {
		switch {
		case res.Err != nil:
			fmt.Fprintf(w, "%s %s: %v\n", ErrorStyle.Render("✗"), KeyStyle.Render(res.Name), res.Err)
		case !res.Allowed:
			fmt.Fprintf(w, "%s %s %s\n", WarningStyle.Render("-"), KeyStyle.Render(res.Name), SubtitleStyle.Render("(not in allow-list)"))
		default:
			fmt.Fprintf(w, "%s %s %s\n", SuccessStyle.Render("✓"), KeyStyle.Render(res.Name), SubtitleStyle.Render(res.Record.ID.String()))
		}
	}
}
