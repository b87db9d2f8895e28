package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(path string, op Operation) FileEvent {
	return FileEvent{Path: path, Operation: op, Timestamp: time.Now()}
}

func nextBatch(t *testing.T, d *Debouncer, wait time.Duration) []FileEvent {
	t.Helper()
	select {
	case batch, ok := <-d.Output():
		require.True(t, ok, "output closed")
		return batch
	case <-time.After(wait):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

// =============================================================================
// Coalescing rules
// =============================================================================

func TestCoalesce(t *testing.T) {
	tests := []struct {
		name   string
		ops    []Operation
		want   Operation
		wantOK bool
	}{
		{"repeated saves", []Operation{OpModify, OpModify, OpModify}, OpModify, true},
		{"new file then saved", []Operation{OpCreate, OpModify}, OpCreate, true},
		{"temp file", []Operation{OpCreate, OpModify, OpDelete}, 0, false},
		{"edited then removed", []Operation{OpModify, OpDelete}, OpDelete, true},
		{"atomic replace", []Operation{OpDelete, OpCreate}, OpModify, true},
		{"renamed away", []Operation{OpModify, OpRename}, OpRename, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := &pendingEvent{event: ev("/docs/a.md", tt.ops[0]), firstOp: tt.ops[0]}
			ok := true
			for _, op := range tt.ops[1:] {
				var merged FileEvent
				merged, ok = coalesce(pe, ev("/docs/a.md", op))
				if !ok {
					break
				}
				pe.event = merged
			}

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, pe.event.Operation)
			}
		})
	}
}

// =============================================================================
// Batching
// =============================================================================

func TestDebouncer_BurstBecomesOneSortedBatch(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(60*time.Millisecond, nil)
	defer d.Stop()

	// When: an editor saves several documents in quick succession
	for i := 0; i < 3; i++ {
		d.Add(ev("/docs/zeta.txt", OpModify))
		d.Add(ev("/docs/alpha.md", OpModify))
		time.Sleep(10 * time.Millisecond)
	}
	d.Add(ev("/docs/mid.csv", OpCreate))

	// Then: one batch arrives, one event per path, ordered by path
	batch := nextBatch(t, d, time.Second)
	require.Len(t, batch, 3)
	assert.Equal(t, "/docs/alpha.md", batch[0].Path)
	assert.Equal(t, "/docs/mid.csv", batch[1].Path)
	assert.Equal(t, OpCreate, batch[1].Operation)
	assert.Equal(t, "/docs/zeta.txt", batch[2].Path)
}

func TestDebouncer_CancelledPairEmitsNothing(t *testing.T) {
	// Given: a file created and removed inside one window
	d := NewDebouncer(40*time.Millisecond, nil)
	defer d.Stop()
	d.Add(ev("/docs/~lock.tmp", OpCreate))
	d.Add(ev("/docs/~lock.tmp", OpDelete))

	// Then: no batch is emitted
	select {
	case batch := <-d.Output():
		t.Fatalf("unexpected batch: %v", batch)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncer_QuietPeriodsGiveSeparateBatches(t *testing.T) {
	d := NewDebouncer(30*time.Millisecond, nil)
	defer d.Stop()

	d.Add(ev("/docs/one.md", OpModify))
	first := nextBatch(t, d, time.Second)
	d.Add(ev("/docs/two.md", OpModify))
	second := nextBatch(t, d, time.Second)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, "/docs/one.md", first[0].Path)
	assert.Equal(t, "/docs/two.md", second[0].Path)
}

func TestDebouncer_StopClosesOutputAndIgnoresLateEvents(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, nil)

	d.Stop()
	d.Stop()
	d.Add(ev("/docs/late.md", OpCreate))

	_, ok := <-d.Output()
	assert.False(t, ok)
}
