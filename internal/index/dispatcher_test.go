package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/parser"
)

// parseFunc adapts a function to ContentParser.
type parseFunc func(ctx context.Context, path string) (*parser.Result, error)

func (f parseFunc) Parse(ctx context.Context, path string) (*parser.Result, error) {
	return f(ctx, path)
}

func okParser() parseFunc {
	return func(_ context.Context, path string) (*parser.Result, error) {
		return &parser.Result{Content: "content of " + path, Metadata: map[string]string{"encoding": "utf-8"}}, nil
	}
}

func tasks(n int) []Task {
	out := make([]Task, n)
	for i := range out {
		out[i] = Task{Path: fmt.Sprintf("/d/f%02d.txt", i), ContentHash: fmt.Sprintf("h%d", i)}
	}
	return out
}

func byPath(docs []ParsedDocument) map[string]ParsedDocument {
	m := make(map[string]ParsedDocument, len(docs))
	for _, d := range docs {
		m[d.Path] = d
	}
	return m
}

// =============================================================================
// Success and failure mapping
// =============================================================================

func TestDispatcher_ParsesEveryTask(t *testing.T) {
	d := NewDispatcher(okParser(), Options{Workers: 3}, nil)

	docs, err := d.Dispatch(context.Background(), tasks(10), nil)

	require.NoError(t, err)
	require.Len(t, docs, 10)
	for _, doc := range docs {
		assert.True(t, doc.Success)
		assert.NoError(t, doc.Err)
		assert.Equal(t, "content of "+doc.Path, doc.Content)
		assert.NotEmpty(t, doc.ContentHash, "task fields travel with the document")
	}
}

func TestDispatcher_EmptyTaskList(t *testing.T) {
	d := NewDispatcher(okParser(), Options{}, nil)

	docs, err := d.Dispatch(context.Background(), nil, nil)

	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDispatcher_FailureIsolation(t *testing.T) {
	tests := []struct {
		name     string
		parse    parseFunc
		wantCode string
	}{
		{
			name: "plain error becomes parse error",
			parse: func(context.Context, string) (*parser.Result, error) {
				return nil, errors.New("bad bytes")
			},
			wantCode: docerrors.ErrCodeParseFailed,
		},
		{
			name: "coded error is kept",
			parse: func(_ context.Context, path string) (*parser.Result, error) {
				return nil, docerrors.TimeoutError(path, errors.New("slow"))
			},
			wantCode: docerrors.ErrCodeParseTimeout,
		},
		{
			name: "nil result is a failure",
			parse: func(context.Context, string) (*parser.Result, error) {
				return nil, nil
			},
			wantCode: docerrors.ErrCodeParseFailed,
		},
		{
			name: "panic is recovered",
			parse: func(context.Context, string) (*parser.Result, error) {
				panic("boom")
			},
			wantCode: docerrors.ErrCodeWorkerPanic,
		},
		{
			name: "cooperative timeout",
			parse: func(ctx context.Context, _ string) (*parser.Result, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
			wantCode: docerrors.ErrCodeParseTimeout,
		},
		{
			name: "parser ignoring its context still times out",
			parse: func(context.Context, string) (*parser.Result, error) {
				time.Sleep(500 * time.Millisecond)
				return &parser.Result{Content: "late"}, nil
			},
			wantCode: docerrors.ErrCodeParseTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: one bad file among good ones
			bad := "/d/f01.txt"
			p := parseFunc(func(ctx context.Context, path string) (*parser.Result, error) {
				if path == bad {
					return tt.parse(ctx, path)
				}
				return okParser()(ctx, path)
			})
			d := NewDispatcher(p, Options{Workers: 2, ParseTimeout: 50 * time.Millisecond}, nil)

			// When: dispatching
			docs, err := d.Dispatch(context.Background(), tasks(4), nil)

			// Then: only the bad file fails, with the expected code
			require.NoError(t, err)
			require.Len(t, docs, 4)
			got := byPath(docs)
			assert.False(t, got[bad].Success)
			require.Error(t, got[bad].Err)
			assert.Equal(t, tt.wantCode, docerrors.GetCode(got[bad].Err))
			for path, doc := range got {
				if path != bad {
					assert.True(t, doc.Success, path)
				}
			}
		})
	}
}

// =============================================================================
// Concurrency and ordering
// =============================================================================

func TestDispatcher_RespectsWorkerBound(t *testing.T) {
	var active, peak int32
	p := parseFunc(func(_ context.Context, path string) (*parser.Result, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return &parser.Result{Content: path}, nil
	})
	d := NewDispatcher(p, Options{Workers: 3}, nil)

	docs, err := d.Dispatch(context.Background(), tasks(12), nil)

	require.NoError(t, err)
	assert.Len(t, docs, 12)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestDispatcher_SerialPreservesOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	p := parseFunc(func(_ context.Context, path string) (*parser.Result, error) {
		mu.Lock()
		order = append(order, path)
		mu.Unlock()
		return &parser.Result{Content: path}, nil
	})
	d := NewDispatcher(p, Options{Serial: true, Workers: 8}, nil)

	in := tasks(5)
	docs, err := d.Dispatch(context.Background(), in, nil)

	require.NoError(t, err)
	var want []string
	for _, task := range in {
		want = append(want, task.Path)
	}
	assert.Equal(t, want, order)
	for i, doc := range docs {
		assert.Equal(t, want[i], doc.Path)
	}
}

// =============================================================================
// Progress
// =============================================================================

func TestDispatcher_ProgressCountsEveryUnit(t *testing.T) {
	// Given: a callback that panics on its first call
	var calls []int
	var totals []int
	progress := func(processed, total int, _ string) {
		calls = append(calls, processed)
		totals = append(totals, total)
		if processed == 1 {
			panic("callback bug")
		}
	}
	d := NewDispatcher(okParser(), Options{Workers: 4}, nil)

	// When: dispatching
	docs, err := d.Dispatch(context.Background(), tasks(7), progress)

	// Then: the pass completes and processed counts run 1..7
	require.NoError(t, err)
	assert.Len(t, docs, 7)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, calls)
	for _, total := range totals {
		assert.Equal(t, 7, total)
	}
}

// =============================================================================
// Cancellation
// =============================================================================

func TestDispatcher_CancellationStopsSubmission(t *testing.T) {
	// Given: the first parse cancels the pass
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	p := parseFunc(func(_ context.Context, path string) (*parser.Result, error) {
		once.Do(cancel)
		time.Sleep(5 * time.Millisecond)
		return &parser.Result{Content: path}, nil
	})
	d := NewDispatcher(p, Options{Workers: 1}, nil)

	// When: dispatching many tasks
	docs, err := d.Dispatch(ctx, tasks(20), nil)

	// Then: the context error is returned with only the in-flight results
	require.ErrorIs(t, err, context.Canceled)
	assert.NotEmpty(t, docs)
	assert.Less(t, len(docs), 20)
	for _, doc := range docs {
		assert.True(t, doc.Success, "in-flight units finish normally")
	}
}

func TestDispatcher_SerialCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(okParser(), Options{Serial: true}, nil)
	docs, err := d.Dispatch(ctx, tasks(3), nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, docs)
}
