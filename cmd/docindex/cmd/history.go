package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/output"
)

func newHistoryCmd(g *globals) *cobra.Command {
	var (
		limit   int
		popular bool
		erase   bool
		format  string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent or popular searches",
		Long: `Show the searches run against the current library, newest first.

Only the most recent searches are kept (search.history_size in the
configuration); popularity counts cover every search since the last
clear.

Examples:
  docindex history
  docindex history -n 5
  docindex history --popular
  docindex history --clear`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd.Context(), cmd, g, limit, popular, erase, format)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&popular, "popular", false, "Show the most frequent queries instead")
	cmd.Flags().BoolVar(&erase, "clear", false, "Erase the search history")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runHistory(ctx context.Context, cmd *cobra.Command, g *globals, limit int, popular, erase bool, format string) error {
	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}

	name, inst, err := g.open(ctx)
	if err != nil {
		return err
	}
	out := output.New(cmd.OutOrStdout())

	if erase {
		if err := inst.History.Clear(); err != nil {
			return err
		}
		out.Successf("Cleared search history for library '%s'", name)
		return nil
	}

	if popular {
		counts := inst.History.Popular(limit)
		if f == output.FormatJSON {
			return out.JSON(counts)
		}
		lines := make([]string, len(counts))
		for i, c := range counts {
			lines[i] = fmt.Sprintf("%5d  %s", c.Count, c.Query)
		}
		out.Lines(lines)
		return nil
	}

	entries := inst.History.Recent(limit)
	if f == output.FormatJSON {
		return out.JSON(entries)
	}
	out.History(entries)
	return nil
}
