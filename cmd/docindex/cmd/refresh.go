package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/index"
)

func newRefreshCmd(g *globals) *cobra.Command {
	var opts passOptions

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Bring the index up to date with its directories",
		Long: `Re-scan the directories the current library was last indexed from and
apply only what changed since.

When none of the directories is reachable (an unmounted drive, for
example) nothing is touched and the pass reports "skipped".

Examples:
  docindex refresh
  docindex refresh --library work --plain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRefresh(cmd.Context(), cmd, g, opts)
		},
	}

	opts.bind(cmd)
	return cmd
}

func runRefresh(ctx context.Context, cmd *cobra.Command, g *globals, opts passOptions) error {
	name, inst, err := g.open(ctx)
	if err != nil {
		return err
	}
	return runPass(ctx, cmd, g, name, inst, opts, func(ctx context.Context, o index.Options) (*index.IndexStats, error) {
		return g.reg.RefreshIndex(ctx, inst.BasePath, o)
	})
}
