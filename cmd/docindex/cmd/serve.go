package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/mcp"
)

func newServeCmd(g *globals) *cobra.Command {
	var (
		transport string
		resources bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index to AI assistants over MCP",
		Long: `Start a Model Context Protocol server on stdin/stdout.

The server exposes search, index, refresh, stats and suggest tools for
every library, plus the indexed documents of the selected library as
file:// resources. stdout carries the protocol stream, so logs go to
~/.docindex/logs/ only.

Example client configuration:
  {"command": "docindex", "args": ["serve", "--library", "work"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), g, transport, resources)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport (default from config: stdio)")
	cmd.Flags().BoolVar(&resources, "resources", true, "Expose indexed documents as resources")

	return cmd
}

func runServe(ctx context.Context, g *globals, transport string, resources bool) error {
	cat, reg, err := g.registry()
	if err != nil {
		return err
	}
	if transport == "" {
		transport = g.cfg.Server.Transport
	}

	srv, err := mcp.NewServer(reg, cat, g.libraryName(), g.log())
	if err != nil {
		return err
	}

	if resources {
		n, err := srv.RegisterResources(ctx)
		if err != nil {
			// Tools still work without resources.
			g.log().Warn("resources_not_registered", slog.String("error", err.Error()))
		} else {
			g.log().Info("resources_registered", slog.Int("count", n))
		}
	}

	err = srv.Serve(ctx, transport)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
