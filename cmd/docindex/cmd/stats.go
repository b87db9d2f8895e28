package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/output"
	"github.com/Aman-CERP/docindex/internal/ui"
)

func newStatsCmd(g *globals) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index, cache and search statistics",
		Long: `Show statistics for the current library: document counts by status and
type, index size, result cache efficiency and search latency.

Cache figures cover this process only; search figures cover the
library's whole history.

Examples:
  docindex stats
  docindex stats --library work --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, g, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, g *globals, format string) error {
	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}

	name, inst, err := g.open(ctx)
	if err != nil {
		return err
	}
	lib, err := g.catalog.Get(name)
	if err != nil {
		return err
	}

	st, err := inst.Store.Stats(ctx)
	if err != nil {
		return err
	}
	roots, err := inst.Store.Roots(ctx)
	if err != nil {
		return err
	}
	_, size, err := inst.Summary(ctx)
	if err != nil {
		return err
	}

	info := ui.StatsInfo{
		Library:  name,
		Backend:  string(inst.Backend),
		Path:     inst.BasePath,
		Roots:    roots,
		LastUsed: lib.LastUsed,
		Size:     size,
		Index:    *st,
		Cache:    inst.Engine.CacheStats(),
		Searches: inst.History.Stats(),
		Popular:  inst.History.Popular(5),
	}

	r := ui.NewStatsRenderer(cmd.OutOrStdout(), g.colorless())
	if f == output.FormatJSON {
		return r.RenderJSON(info)
	}
	return r.Render(info)
}
