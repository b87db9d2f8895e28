package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docindex/internal/search"
	"github.com/Aman-CERP/docindex/internal/store"
	"github.com/Aman-CERP/docindex/internal/telemetry"
)

func sampleStats() StatsInfo {
	return StatsInfo{
		Library:  "default",
		Backend:  "sqlite",
		Path:     "/data/libraries/default",
		Roots:    []string{"/home/me/docs"},
		LastUsed: time.Now().Add(-2 * time.Hour),
		Size:     3 * 1024 * 1024,
		Index: store.Stats{
			Total: 12, Active: 10, Deleted: 2, TotalSize: 2048,
			ByType: map[string]int{"txt": 4, "md": 6},
		},
		Cache: search.CacheStats{Size: 3, Capacity: 100, HitRate: 0.25},
		Searches: telemetry.Stats{
			TotalSearches: 8, UniqueQueries: 5,
			AvgLatency: 2 * time.Millisecond, MinLatency: 500 * time.Microsecond, MaxLatency: 7 * time.Millisecond,
			CacheHits: 2, CacheHitRate: 0.25,
		},
		Popular: []telemetry.QueryCount{{Query: "budget", Count: 3}},
	}
}

func TestStatsRenderer_Render(t *testing.T) {
	// Given: a populated library
	buf := &bytes.Buffer{}
	r := NewStatsRenderer(buf, true)

	// When: rendering as text
	require.NoError(t, r.Render(sampleStats()))

	// Then: every section is present
	out := buf.String()
	for _, want := range []string{
		"Library: default",
		"Backend:   sqlite",
		"Size:      3.0 MB",
		"Last used: 2 hours ago",
		"Root:      /home/me/docs",
		"Total:   12",
		"Deleted: 2",
		"Content: 2.0 KB",
		"Entries:  3 / 100",
		"Hit rate: 25.0%",
		"Total:   8 (5 unique)",
		"avg 2.0ms, min 500µs, max 7.0ms",
		"1. budget (3)",
	} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("md ")), bytes.Index(buf.Bytes(), []byte("txt ")))
}

func TestStatsRenderer_NoSearchesOmitsLatency(t *testing.T) {
	buf := &bytes.Buffer{}
	info := sampleStats()
	info.Searches = telemetry.Stats{}

	require.NoError(t, NewStatsRenderer(buf, true).Render(info))

	assert.NotContains(t, buf.String(), "Latency")
}

func TestStatsRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatsRenderer(buf, true)

	require.NoError(t, r.RenderJSON(sampleStats()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "default", got["library"])
	assert.Contains(t, got, "cache")
	assert.Contains(t, got, "searches")
	assert.Equal(t, float64(3*1024*1024), got["size_bytes"])
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBytes(tt.in))
		})
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	old := now.Add(-30 * 24 * time.Hour)

	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"seconds", now.Add(-10 * time.Second), "just now"},
		{"one minute", now.Add(-90 * time.Second), "1 minute ago"},
		{"minutes", now.Add(-5 * time.Minute), "5 minutes ago"},
		{"one hour", now.Add(-61 * time.Minute), "1 hour ago"},
		{"days", now.Add(-50 * time.Hour), "2 days ago"},
		{"old", old, old.Format("2006-01-02 15:04")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatTime(tt.in))
		})
	}
}

func TestFormatLatency(t *testing.T) {
	assert.Equal(t, "250µs", formatLatency(250*time.Microsecond))
	assert.Equal(t, "1.5ms", formatLatency(1500*time.Microsecond))
}
