// Package ui renders index progress and statistics on the terminal: a
// bubbletea view on interactive terminals, plain lines in CI and pipes.
package ui

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/docindex/internal/index"
)

// Stage is a step of an index pass as shown to the user.
type Stage int

const (
	StageScanning Stage = iota
	StageClassifying
	StageParsing
	StageWriting
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "Scanning"
	case StageClassifying:
		return "Classifying"
	case StageParsing:
		return "Parsing"
	case StageWriting:
		return "Writing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain output.
func (s Stage) Icon() string {
	switch s {
	case StageScanning:
		return "SCAN"
	case StageClassifying:
		return "DIFF"
	case StageParsing:
		return "PARSE"
	case StageWriting:
		return "WRITE"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// StageFor maps an orchestrator state to a display stage. ok is false for
// states with no stage of their own (idle, failed).
func StageFor(s index.State) (Stage, bool) {
	switch s {
	case index.StateScanning:
		return StageScanning, true
	case index.StateClassifying:
		return StageClassifying, true
	case index.StateDispatching:
		return StageParsing, true
	case index.StateWriting:
		return StageWriting, true
	case index.StateCompleted:
		return StageComplete, true
	default:
		return 0, false
	}
}

// ProgressEvent is a progress update.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// ErrorEvent is a file-level problem worth showing.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// Renderer displays the progress of one index pass.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats *index.IndexStats)
	Stop() error
}

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Title is shown in the TUI header, typically the library name.
	Title string
}

// ConfigOption modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithTitle sets the header title.
func WithTitle(title string) ConfigOption {
	return func(c *Config) {
		c.Title = title
	}
}

// NewConfig creates a Config for output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns a TUI renderer for interactive terminals and a plain
// renderer for CI, pipes, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// Hooks adapts r to the orchestrator's callbacks. Parse progress arrives
// once per file; state changes become stage transitions.
func Hooks(r Renderer) (index.ProgressFunc, index.StateFunc) {
	var mu sync.Mutex
	stage := StageScanning

	progress := func(processed, total int, path string) {
		mu.Lock()
		defer mu.Unlock()
		r.UpdateProgress(ProgressEvent{
			Stage:       stage,
			Current:     processed,
			Total:       total,
			CurrentFile: path,
		})
	}

	state := func(s index.State) {
		st, ok := StageFor(s)
		if !ok || st == StageComplete {
			return
		}
		mu.Lock()
		stage = st
		mu.Unlock()
		r.UpdateProgress(ProgressEvent{Stage: st, Message: st.String() + "..."})
	}

	return progress, state
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI reports whether we run under a CI system.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
