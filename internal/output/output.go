// Package output formats CLI output: status lines, search results, search
// history, and JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Aman-CERP/docindex/internal/search"
	"github.com/Aman-CERP/docindex/internal/store"
	"github.com/Aman-CERP/docindex/internal/telemetry"
)

// Format is an output format accepted by --format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format value. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text or json)", s)
	}
}

// Writer provides formatted output for the CLI.
type Writer struct {
	out       io.Writer
	highlight func(string) string
}

// New creates a Writer. Highlighted terms are wrapped in ** by default.
func New(out io.Writer) *Writer {
	return &Writer{
		out:       out,
		highlight: func(s string) string { return "**" + s + "**" },
	}
}

// WithHighlight sets how matched snippet terms are rendered.
func (w *Writer) WithHighlight(fn func(string) string) *Writer {
	if fn != nil {
		w.highlight = fn
	}
	return w
}

// Status prints a status message with an icon. Write errors are ignored
// for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// SearchResults prints one page of results:
//
//	Found 45 results for "budget" (page 1/3, 2.1ms, cached)
//
//	1. /docs/q3-budget.md (score: 4.21)
//	   ... the **budget** for Q3 ...
func (w *Writer) SearchResults(resp *search.SearchResponse) {
	if resp == nil {
		return
	}
	if resp.Total == 0 {
		w.Status("", fmt.Sprintf("No results found for %q", resp.Query))
		return
	}

	header := fmt.Sprintf("Found %d results for %q (page %d/%d, %s", resp.Total, resp.Query,
		resp.Page, resp.TotalPages, formatLatency(resp.Elapsed))
	if resp.CacheHit {
		header += ", cached"
	}
	w.Statusf("🔍", "%s):", header)
	w.Newline()

	if len(resp.Results) == 0 {
		w.Status("", "No results on this page")
		return
	}

	start := (resp.Page - 1) * resp.PageSize
	for i, r := range resp.Results {
		line := fmt.Sprintf("%d. %s (score: %.2f)", start+i+1, r.Path, r.Score)
		if r.Status == store.StatusDeleted {
			line += " [deleted]"
		}
		w.Status("", line)
		if snippet := w.renderSnippet(r.Snippet); snippet != "" {
			w.Status("", "   "+snippet)
		}
		w.Newline()
	}

	if resp.HasNext {
		w.Statusf("", "More results: --offset %d", resp.Page*resp.PageSize)
	}
}

// renderSnippet replaces <mark> tags and folds the snippet onto one line.
func (w *Writer) renderSnippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	var b strings.Builder
	for {
		open := strings.Index(s, store.MarkOpen)
		if open < 0 {
			break
		}
		rest := s[open+len(store.MarkOpen):]
		end := strings.Index(rest, store.MarkClose)
		if end < 0 {
			break
		}
		b.WriteString(s[:open])
		b.WriteString(w.highlight(rest[:end]))
		s = rest[end+len(store.MarkClose):]
	}
	b.WriteString(s)
	return b.String()
}

// History prints recent searches, newest first.
func (w *Writer) History(entries []telemetry.Entry) {
	if len(entries) == 0 {
		w.Status("", "No searches recorded")
		return
	}

	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "WHEN\tQUERY\tMODE\tRESULTS\tLATENCY\tCACHED")
	for _, e := range entries {
		cached := ""
		if e.CacheHit {
			cached = "yes"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Query, e.Mode, e.ResultCount,
			formatLatency(e.Latency), cached)
	}
	_ = tw.Flush()
}

// Lines prints one item per line, for suggestions and scripting.
func (w *Writer) Lines(items []string) {
	for _, item := range items {
		_, _ = fmt.Fprintln(w.out, item)
	}
}

func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}
