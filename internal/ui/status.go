package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Aman-CERP/docindex/internal/search"
	"github.com/Aman-CERP/docindex/internal/store"
	"github.com/Aman-CERP/docindex/internal/telemetry"
)

// StatsInfo is everything `docindex stats` reports about one library.
type StatsInfo struct {
	Library  string    `json:"library"`
	Backend  string    `json:"backend"`
	Path     string    `json:"path"`
	Roots    []string  `json:"roots"`
	LastUsed time.Time `json:"last_used,omitempty"`
	Size     int64     `json:"size_bytes"`

	Index    store.Stats            `json:"index"`
	Cache    search.CacheStats      `json:"cache"`
	Searches telemetry.Stats        `json:"searches"`
	Popular  []telemetry.QueryCount `json:"popular,omitempty"`
}

// StatsRenderer prints StatsInfo.
type StatsRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatsRenderer creates a stats renderer.
func NewStatsRenderer(out io.Writer, noColor bool) *StatsRenderer {
	return &StatsRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render prints info as text.
func (r *StatsRenderer) Render(info StatsInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Library: "+info.Library))

	_, _ = fmt.Fprintf(r.out, "  Backend:   %s\n", info.Backend)
	_, _ = fmt.Fprintf(r.out, "  Location:  %s\n", info.Path)
	_, _ = fmt.Fprintf(r.out, "  Size:      %s\n", FormatBytes(info.Size))
	if !info.LastUsed.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last used: %s\n", formatTime(info.LastUsed))
	}
	for _, root := range info.Roots {
		_, _ = fmt.Fprintf(r.out, "  Root:      %s\n", root)
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Files:")
	_, _ = fmt.Fprintf(r.out, "    Total:   %d\n", info.Index.Total)
	_, _ = fmt.Fprintf(r.out, "    Active:  %s\n", r.styles.Success.Render(fmt.Sprint(info.Index.Active)))
	deleted := fmt.Sprint(info.Index.Deleted)
	if info.Index.Deleted > 0 {
		deleted = r.styles.Warning.Render(deleted)
	}
	_, _ = fmt.Fprintf(r.out, "    Deleted: %s\n", deleted)
	_, _ = fmt.Fprintf(r.out, "    Content: %s\n", FormatBytes(info.Index.TotalSize))
	if len(info.Index.ByType) > 0 {
		types := make([]string, 0, len(info.Index.ByType))
		for t := range info.Index.ByType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			_, _ = fmt.Fprintf(r.out, "      %-8s %d\n", t, info.Index.ByType[t])
		}
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Cache:")
	_, _ = fmt.Fprintf(r.out, "    Entries:  %d / %d\n", info.Cache.Size, info.Cache.Capacity)
	_, _ = fmt.Fprintf(r.out, "    Hit rate: %.1f%%\n", info.Cache.HitRate*100)
	_, _ = fmt.Fprintln(r.out)

	s := info.Searches
	_, _ = fmt.Fprintln(r.out, "  Searches:")
	_, _ = fmt.Fprintf(r.out, "    Total:   %d (%d unique)\n", s.TotalSearches, s.UniqueQueries)
	if s.TotalSearches > 0 {
		_, _ = fmt.Fprintf(r.out, "    Latency: avg %s, min %s, max %s\n",
			formatLatency(s.AvgLatency), formatLatency(s.MinLatency), formatLatency(s.MaxLatency))
		_, _ = fmt.Fprintf(r.out, "    Cached:  %d (%.1f%%)\n", s.CacheHits, s.CacheHitRate*100)
	}
	for i, p := range info.Popular {
		_, _ = fmt.Fprintf(r.out, "    %2d. %s %s\n", i+1, p.Query, r.styles.Dim.Render(fmt.Sprintf("(%d)", p.Count)))
	}

	return nil
}

// RenderJSON prints info as indented JSON.
func (r *StatsRenderer) RenderJSON(info StatsInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes with a binary unit.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
