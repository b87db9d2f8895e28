package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/output"
	"github.com/Aman-CERP/docindex/internal/search"
	"github.com/Aman-CERP/docindex/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	mode       string
	limit      int
	offset     int
	types      []string
	from       string
	to         string
	minSize    int64
	maxSize    int64
	sort       string
	desc       bool
	activeOnly bool
	noCache    bool
	format     string
}

func newSearchCmd(g *globals) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed documents",
		Long: `Search the current library.

Fuzzy mode (the default) matches words starting with each query term;
exact mode matches the phrase as written. Results are ranked by
relevance unless --sort says otherwise. Files deleted since they were
indexed are still found and marked [deleted]; use --active-only to hide
them.

Dates are YYYY-MM-DD or RFC 3339; --to includes the whole day.

Examples:
  docindex search budget
  docindex search "quarterly budget" --mode exact
  docindex search report --type pdf --type docx --from 2024-01-01
  docindex search notes --sort modified --desc -n 5 --offset 5
  docindex search invoice --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, g, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "Match mode: fuzzy, exact (default from config)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Results per page (default from config)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Results to skip")
	cmd.Flags().StringSliceVarP(&opts.types, "type", "t", nil, "Filter by file type, e.g. pdf (repeatable)")
	cmd.Flags().StringVar(&opts.from, "from", "", "Only files modified on or after this date")
	cmd.Flags().StringVar(&opts.to, "to", "", "Only files modified on or before this date")
	cmd.Flags().Int64Var(&opts.minSize, "min-size", 0, "Minimum file size in bytes")
	cmd.Flags().Int64Var(&opts.maxSize, "max-size", 0, "Maximum file size in bytes")
	cmd.Flags().StringVarP(&opts.sort, "sort", "s", "relevance", "Sort by: relevance, name, modified, size")
	cmd.Flags().BoolVar(&opts.desc, "desc", false, "Sort descending (name, modified, size)")
	cmd.Flags().BoolVar(&opts.activeOnly, "active-only", false, "Hide files deleted since indexing")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Bypass the result cache")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, g *globals, query string, opts searchOptions) error {
	format, err := output.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	q, err := opts.toQuery(query)
	if err != nil {
		return err
	}

	name, inst, err := g.open(ctx)
	if err != nil {
		return err
	}
	g.log().Info("search_started",
		slog.String("library", name),
		slog.String("query", query),
		slog.Int("limit", q.Limit))

	resp, err := inst.Engine.Search(ctx, q)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if format == output.FormatJSON {
		return out.JSON(resp)
	}
	out.WithHighlight(ui.GetStyles(g.colorless()).Mark.Render).SearchResults(resp)
	return nil
}

// toQuery turns flags into a query. Text, limits and filter ranges are
// validated by the engine.
func (o searchOptions) toQuery(text string) (search.SearchQuery, error) {
	var mode search.Mode
	if o.mode != "" {
		var ok bool
		if mode, ok = search.ParseMode(o.mode); !ok {
			return search.SearchQuery{}, docerrors.New(docerrors.ErrCodeInvalidQuery,
				fmt.Sprintf("unknown mode %q", o.mode), nil).
				WithSuggestion("Use --mode fuzzy or --mode exact.")
		}
	}
	field, ok := search.ParseSortField(o.sort)
	if !ok {
		return search.SearchQuery{}, docerrors.New(docerrors.ErrCodeInvalidQuery,
			fmt.Sprintf("unknown sort %q", o.sort), nil).
			WithSuggestion("Use --sort relevance, name, modified or size.")
	}

	q := search.SearchQuery{
		Text:    text,
		Mode:    mode,
		Limit:   o.limit,
		Offset:  o.offset,
		Sort:    search.Sort{Field: field, Desc: o.desc},
		NoCache: o.noCache,
		Filters: search.Filters{
			FileTypes:  o.types,
			SizeMin:    o.minSize,
			SizeMax:    o.maxSize,
			ActiveOnly: o.activeOnly,
		},
	}

	var err error
	if q.Filters.DateFrom, err = parseDateFlag("from", o.from, false); err != nil {
		return search.SearchQuery{}, err
	}
	if q.Filters.DateTo, err = parseDateFlag("to", o.to, true); err != nil {
		return search.SearchQuery{}, err
	}
	return q, nil
}

// parseDateFlag accepts YYYY-MM-DD or RFC 3339. A bare end date covers the
// whole day.
func parseDateFlag(flag, s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, docerrors.New(docerrors.ErrCodeInvalidFilter,
			fmt.Sprintf("invalid --%s date %q", flag, s), err).
			WithSuggestion("Use YYYY-MM-DD, e.g. 2024-03-31.")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
