package ui

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/docindex/internal/index"
)

func TestNewTUIRenderer_FailsForNonTTY(t *testing.T) {
	// Given: a non-TTY buffer
	cfg := NewConfig(&bytes.Buffer{})

	// When: creating a TUI renderer
	r, err := NewTUIRenderer(cfg)

	// Then: it refuses
	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestIndexModel_InitialView(t *testing.T) {
	model := newIndexModel(NewProgressTracker(), "")

	view := model.View()

	assert.Contains(t, view, "docindex")
	assert.Contains(t, view, "Scanning")
}

func TestIndexModel_TitleShown(t *testing.T) {
	model := newIndexModel(NewProgressTracker(), "research")

	assert.Contains(t, model.View(), "research")
}

func TestIndexModel_StageIndicators(t *testing.T) {
	// Given: a model in the parse stage
	tracker := NewProgressTracker()
	tracker.SetStage(StageParsing, 10)
	model := newIndexModel(tracker, "")
	model.styles = NoColorStyles()

	// When: rendering
	view := model.View()

	// Then: earlier stages are done and later ones pending
	assert.Contains(t, view, "● Scanning")
	assert.Contains(t, view, "● Classifying")
	assert.Contains(t, view, "Parsing")
	assert.Contains(t, view, "○ Writing")
}

func TestIndexModel_ProgressDisplay(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.SetStage(StageParsing, 100)
	tracker.Update(50, 100, "/docs/report.md")
	model := newIndexModel(tracker, "")

	view := model.View()

	assert.Contains(t, view, "50 / 100 files")
	assert.Contains(t, view, "50%")
	assert.Contains(t, view, "report.md")
}

func TestIndexModel_ErrorCounts(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.AddError(ErrorEvent{File: "a.bin", Err: assert.AnError})
	tracker.AddError(ErrorEvent{File: "b.txt", Err: assert.AnError, IsWarn: true})
	model := newIndexModel(tracker, "")

	assert.Contains(t, model.View(), "1 errors, 1 warnings")
}

func TestIndexModel_CompleteMessageQuits(t *testing.T) {
	// Given: a running model
	model := newIndexModel(NewProgressTracker(), "")
	model.styles = NoColorStyles()

	// When: the pass completes
	_, cmd := model.Update(completeMsg{stats: index.IndexStats{
		Scanned: 9, Added: 4, Updated: 1, Unchanged: 3, Failed: 1,
		Elapsed: 2 * time.Second, Status: index.RunCompleted,
	}})

	// Then: the summary is shown and the program quits
	assert.NotNil(t, cmd)
	view := model.View()
	assert.Contains(t, view, "Index completed")
	assert.Contains(t, view, "Scanned:")
	assert.Contains(t, view, "1 files failed")
	assert.Contains(t, view, "2s")
}

func TestIndexModel_QuitKey(t *testing.T) {
	model := newIndexModel(NewProgressTracker(), "")

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	assert.NotNil(t, cmd)
	assert.Equal(t, "Cancelled.\n", model.View())
}

func TestIndexModel_WindowResize(t *testing.T) {
	model := newIndexModel(NewProgressTracker(), "")

	model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	assert.Equal(t, 120, model.width)
	assert.Equal(t, 100, model.bar.Width)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{450 * time.Millisecond, "450ms"},
		{12 * time.Second, "12s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{4 * time.Minute, "4m"},
		{time.Hour + 2*time.Minute, "1h 2m"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.in))
		})
	}
}

func TestTruncatePath(t *testing.T) {
	t.Run("short is unchanged", func(t *testing.T) {
		assert.Equal(t, "docs/a.md", truncatePath("docs/a.md", 50))
	})

	t.Run("long keeps file name", func(t *testing.T) {
		got := truncatePath("/home/me/very/deeply/nested/directory/file.md", 30)

		assert.Len(t, got, 30)
		assert.Contains(t, got, "...")
		assert.Contains(t, got, "file.md")
	})

	t.Run("long name is cut from the left", func(t *testing.T) {
		got := truncatePath("/x/"+"abcdefghijklmnopqrstuvwxyz.txt", 10)

		assert.Equal(t, "...xyz.txt", got)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, truncatePath("", 50))
	})
}
