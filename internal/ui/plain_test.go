package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docindex/internal/index"
)

func TestPlainRenderer_UpdateProgress_OutputFormat(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: updating progress
	r.UpdateProgress(ProgressEvent{
		Stage:       StageParsing,
		Current:     3,
		Total:       10,
		CurrentFile: "/docs/report.md",
	})

	// Then: output is one formatted line
	assert.Equal(t, "[PARSE] 3/10 - /docs/report.md\n", buf.String())
}

func TestPlainRenderer_UpdateProgress_NoANSICodes(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: rendering progress through all stages
	for _, stage := range []Stage{StageScanning, StageClassifying, StageParsing, StageWriting, StageComplete} {
		r.UpdateProgress(ProgressEvent{Stage: stage, Current: 5, Total: 10, Message: "working"})
	}

	// Then: output contains no escape codes
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Equal(t, 5, strings.Count(buf.String(), "\n"))
}

func TestPlainRenderer_UpdateProgress_ZeroTotal(t *testing.T) {
	tests := []struct {
		name  string
		event ProgressEvent
		want  string
	}{
		{"message only", ProgressEvent{Stage: StageScanning, Message: "Scanning..."}, "[SCAN] Scanning...\n"},
		{"nothing to say", ProgressEvent{Stage: StageWriting}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			r := NewPlainRenderer(NewConfig(buf))

			r.UpdateProgress(tt.event)

			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPlainRenderer_AddError(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.AddError(ErrorEvent{File: "/docs/blob.bin", Err: errors.New("binary content")})
	r.AddError(ErrorEvent{Err: errors.New("root gone"), IsWarn: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ERROR: /docs/blob.bin: binary content", lines[0])
	assert.Equal(t, "WARN: root gone", lines[1])
}

func TestPlainRenderer_Complete(t *testing.T) {
	tests := []struct {
		name     string
		stats    *index.IndexStats
		contains []string
		absent   []string
	}{
		{
			name: "summary",
			stats: &index.IndexStats{
				Scanned: 10, Added: 4, Updated: 2, Deleted: 1, Unchanged: 3,
				Elapsed: 1520 * time.Millisecond, Status: index.RunCompleted,
			},
			contains: []string{"Complete: 10 scanned, 4 added, 2 updated, 1 deleted, 3 unchanged in 1.5s"},
			absent:   []string{"failed", "WARN"},
		},
		{
			name: "failures and unreachable roots",
			stats: &index.IndexStats{
				Scanned: 5, Added: 3, Failed: 2, Status: index.RunCompleted,
				Unreachable: []string{"/mnt/share"},
			},
			contains: []string{"(2 failed)", "WARN: unreachable: /mnt/share"},
		},
		{
			name: "skipped",
			stats: &index.IndexStats{
				Status:      index.RunSkipped,
				Unreachable: []string{"/a", "/b"},
			},
			contains: []string{"Skipped: no indexed directory is reachable (2 unreachable)"},
			absent:   []string{"Complete:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			r := NewPlainRenderer(NewConfig(buf))

			r.Complete(tt.stats)

			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestPlainRenderer_CompleteNilIsSilent(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.Complete(nil)

	assert.Empty(t, buf.String())
}

func TestPlainRenderer_StartStop(t *testing.T) {
	r := NewPlainRenderer(NewConfig(&bytes.Buffer{}))

	assert.NoError(t, r.Start(context.Background()))
	assert.NoError(t, r.Stop())
}

func TestPlainRenderer_ConcurrentUpdates(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.UpdateProgress(ProgressEvent{Stage: StageParsing, Current: i, Total: 20, CurrentFile: "f"})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, strings.Count(buf.String(), "\n"))
}
