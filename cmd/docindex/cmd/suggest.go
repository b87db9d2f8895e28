package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/output"
)

func newSuggestCmd(g *globals) *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "Complete a partial query",
		Long: `Suggest completions for a partial query from past searches and the words
in indexed file names, shortest first.

Examples:
  docindex suggest bud
  docindex suggest "meeting n" -n 3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			_, inst, err := g.open(cmd.Context())
			if err != nil {
				return err
			}

			suggestions, err := inst.Engine.Suggest(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if f == output.FormatJSON {
				if suggestions == nil {
					suggestions = []string{}
				}
				return out.JSON(suggestions)
			}
			out.Lines(suggestions)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum suggestions")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}
