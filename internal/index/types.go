// Package index implements the incremental index engine: change
// classification, the parallel parse dispatcher, the batch persistence writer
// and the orchestrator that drives them.
package index

import (
	"runtime"
	"time"
)

// State is the orchestrator's position in an index pass.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateClassifying
	StateDispatching
	StateWriting
	StateCompleted
	StateFailed
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateClassifying:
		return "classifying"
	case StateDispatching:
		return "dispatching"
	case StateWriting:
		return "writing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RunStatus is the outcome reported in IndexStats.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	// RunSkipped means no root was reachable, so nothing was touched.
	RunSkipped RunStatus = "skipped"
	RunFailed  RunStatus = "failed"
)

// FileFailure records one file that could not be hashed, parsed or written.
type FileFailure struct {
	Path string
	Err  error
}

// IndexDelta is the classifier's output. A path appears in at most one of
// Added, Modified and Deleted.
type IndexDelta struct {
	Added    []string
	Modified []string
	Deleted  []string

	// Scanned counts distinct scanned paths. Overlapping roots can report a
	// file twice; it is classified once.
	Scanned int

	// Unchanged counts scanned files whose hash matched the store.
	Unchanged int

	// Failures are files that could not be hashed during classification.
	Failures []FileFailure

	// Tasks holds the parse task for every Added and Modified path.
	Tasks map[string]Task
}

// Task is the self-contained unit of parse work handed to a worker.
type Task struct {
	Path        string
	ContentHash string
	Size        int64
	ModTime     time.Time
}

// ParsedDocument is the result of one parse task. Err is non-nil exactly
// when Success is false.
type ParsedDocument struct {
	Task
	Content  string
	Metadata map[string]string
	Success  bool
	Err      error
	Elapsed  time.Duration
}

// IndexStats summarizes a build or refresh.
// Scanned always equals Added+Updated+Deleted+Unchanged+Failed.
type IndexStats struct {
	Scanned   int
	Added     int
	Updated   int
	Deleted   int
	Unchanged int
	Failed    int
	Elapsed   time.Duration
	Status    RunStatus

	// Failures lists the files counted in Failed.
	Failures []FileFailure `json:"-"`

	// Unreachable lists roots that could not be walked.
	Unreachable []string `json:",omitempty"`
}

// ProgressFunc receives one call per completed parse unit. Calls are
// serialized; a panicking callback is recovered.
type ProgressFunc func(processed, total int, path string)

// StateFunc is notified of every state transition.
type StateFunc func(State)

// Options tunes one pass.
type Options struct {
	// Workers bounds concurrent parses (0 = runtime.NumCPU()).
	Workers int

	// BatchSize is the number of records per store transaction (0 = 100).
	BatchSize int

	// Serial parses one file at a time, in input order.
	Serial bool

	// ParseTimeout bounds each parse (0 = 30s).
	ParseTimeout time.Duration

	Progress ProgressFunc
	OnState  StateFunc
}

// Defaults for Options fields left at zero.
const (
	DefaultBatchSize    = 100
	DefaultParseTimeout = 30 * time.Second
)

// withDefaults fills zero fields.
func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Serial {
		o.Workers = 1
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.ParseTimeout <= 0 {
		o.ParseTimeout = DefaultParseTimeout
	}
	return o
}
