package ui

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Initial(t *testing.T) {
	p := NewProgressTracker()

	stats := p.Stats()

	assert.Equal(t, StageScanning, stats.Stage)
	assert.Zero(t, stats.Progress)
	assert.Zero(t, stats.ETA)
	assert.Empty(t, stats.CurrentFile)
}

func TestProgressTracker_Update(t *testing.T) {
	// Given: a tracker in the parse stage
	p := NewProgressTracker()
	p.SetStage(StageParsing, 8)

	// When: two of eight files are done
	p.Update(2, 0, "/docs/a.md")

	// Then: progress is a quarter and the total is kept
	stats := p.Stats()
	assert.Equal(t, 2, stats.Current)
	assert.Equal(t, 8, stats.Total)
	assert.InDelta(t, 0.25, stats.Progress, 1e-9)
	assert.Equal(t, "/docs/a.md", stats.CurrentFile)
}

func TestProgressTracker_UpdateKeepsLastFile(t *testing.T) {
	p := NewProgressTracker()
	p.Update(1, 4, "/a")
	p.Update(2, 4, "")

	assert.Equal(t, "/a", p.Stats().CurrentFile)
}

func TestProgressTracker_ProgressIsCapped(t *testing.T) {
	p := NewProgressTracker()
	p.Update(12, 10, "")

	assert.Equal(t, 1.0, p.Stats().Progress)
}

func TestProgressTracker_SetStageResets(t *testing.T) {
	p := NewProgressTracker()
	p.Update(5, 10, "/x")

	p.SetStage(StageWriting, 3)

	stats := p.Stats()
	assert.Equal(t, StageWriting, stats.Stage)
	assert.Equal(t, 3, stats.Total)
	assert.Zero(t, stats.Current)
	assert.Empty(t, stats.CurrentFile)
}

func TestProgressTracker_AddError(t *testing.T) {
	p := NewProgressTracker()

	p.AddError(ErrorEvent{File: "a"})
	p.AddError(ErrorEvent{File: "b"})
	p.AddError(ErrorEvent{File: "c", IsWarn: true})

	stats := p.Stats()
	assert.Equal(t, 2, stats.ErrorCount)
	assert.Equal(t, 1, stats.WarnCount)
}

func TestProgressTracker_ETA(t *testing.T) {
	// Given: a stage that is half done after some time
	p := NewProgressTracker()
	p.SetStage(StageParsing, 100)
	time.Sleep(20 * time.Millisecond)
	p.Update(50, 100, "")

	// Then: the estimate is positive and finishing clears it
	assert.Positive(t, p.Stats().ETA)
	assert.Positive(t, p.Stats().Rate)

	p.Update(100, 100, "")
	assert.Zero(t, p.Stats().ETA)
}

func TestProgressTracker_Elapsed(t *testing.T) {
	p := NewProgressTracker()
	time.Sleep(5 * time.Millisecond)

	assert.GreaterOrEqual(t, p.Elapsed(), 5*time.Millisecond)
}

func TestProgressTracker_Concurrent(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageParsing, 100)

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			p.Update(i, 100, "f")
		}(i)
		go func() {
			defer wg.Done()
			_ = p.Stats()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, p.Stats().Total)
}
