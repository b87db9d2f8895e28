package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/docindex/internal/index"
	"github.com/Aman-CERP/docindex/internal/store"
)

// FormatSearchResults renders a result page as markdown. Matched terms
// become bold.
func FormatSearchResults(out *SearchOutput) string {
	if out == nil || out.Total == 0 {
		query := ""
		if out != nil {
			query = out.Query
		}
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", out.Query)
	fmt.Fprintf(&sb, "Found %d result", out.Total)
	if out.Total != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " (page %d of %d)\n\n", out.Page, out.TotalPages)

	for i, r := range out.Results {
		formatResult(&sb, i+1, r)
	}

	if out.HasNext {
		sb.WriteString("More results are available; repeat the search with a larger offset.\n")
	}
	return sb.String()
}

// formatResult formats a single result.
func formatResult(sb *strings.Builder, num int, r SearchResultOutput) {
	fmt.Fprintf(sb, "### %d. %s (score: %.2f)\n", num, r.Path, r.Score)
	if r.Status == string(store.StatusDeleted) {
		sb.WriteString("*File no longer exists on disk.*\n")
	}
	if snippet := markdownSnippet(r.Snippet); snippet != "" {
		fmt.Fprintf(sb, "\n> %s\n", snippet)
	}
	sb.WriteString("\n")
}

// markdownSnippet folds whitespace and turns highlight tags into bold.
func markdownSnippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, store.MarkOpen, "**")
	return strings.ReplaceAll(s, store.MarkClose, "**")
}

// FormatIndexStats renders the outcome of an index pass.
func FormatIndexStats(out *IndexOutput) string {
	if out == nil {
		return ""
	}
	if out.Status == string(index.RunSkipped) {
		return fmt.Sprintf("Index skipped: no indexed directory is reachable (%s).",
			strings.Join(out.Unreachable, ", "))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Index %s in %dms: %d scanned, %d added, %d updated, %d deleted, %d unchanged",
		out.Status, out.ElapsedMS, out.Scanned, out.Added, out.Updated, out.Deleted, out.Unchanged)
	if out.Failed > 0 {
		fmt.Fprintf(&sb, ", %d failed", out.Failed)
	}
	sb.WriteString(".")
	for _, root := range out.Unreachable {
		fmt.Fprintf(&sb, "\nUnreachable: %s", root)
	}
	return sb.String()
}
