package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/index"
	"github.com/Aman-CERP/docindex/internal/output"
	"github.com/Aman-CERP/docindex/internal/registry"
	"github.com/Aman-CERP/docindex/internal/ui"
)

// passOptions holds the flags shared by index and refresh.
type passOptions struct {
	workers   int
	batchSize int
	serial    bool
	timeout   time.Duration
	plain     bool
	format    string
}

func (o *passOptions) bind(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&o.workers, "workers", "w", 0, "Concurrent parses (default from config)")
	cmd.Flags().IntVar(&o.batchSize, "batch-size", 0, "Records per store transaction (default from config)")
	cmd.Flags().BoolVar(&o.serial, "serial", false, "Parse one file at a time")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "Per-file parse timeout (default from config)")
	cmd.Flags().BoolVar(&o.plain, "plain", false, "Plain progress output instead of the interactive view")
	cmd.Flags().StringVarP(&o.format, "format", "f", "text", "Output format: text, json")
}

func (o *passOptions) indexOptions() index.Options {
	return index.Options{
		Workers:      o.workers,
		BatchSize:    o.batchSize,
		Serial:       o.serial,
		ParseTimeout: o.timeout,
	}
}

func newIndexCmd(g *globals) *cobra.Command {
	var opts passOptions

	cmd := &cobra.Command{
		Use:   "index [path...]",
		Short: "Index documents under one or more directories",
		Long: `Index documents under one or more directories into the current library.

Files are compared with the index by content hash: new files are added,
changed files are parsed again, and files that no longer exist are marked
deleted but stay searchable. The directories become the library's roots
for later 'docindex refresh' and 'docindex watch' runs.

With no path, the current directory is indexed.

Examples:
  docindex index ~/Documents ~/Notes
  docindex index --library work ~/work/specs
  docindex index . --workers 2 --plain
  docindex index . --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, g, args, opts)
		},
	}

	opts.bind(cmd)
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, g *globals, args []string, opts passOptions) error {
	roots, err := absRoots(args)
	if err != nil {
		return err
	}

	name, inst, err := g.open(ctx)
	if err != nil {
		return err
	}
	g.log().Info("index_started", slog.String("library", name), slog.Any("roots", roots))

	err = runPass(ctx, cmd, g, name, inst, opts, func(ctx context.Context, o index.Options) (*index.IndexStats, error) {
		return g.reg.BuildIndex(ctx, inst.BasePath, roots, o)
	})
	if err != nil {
		return err
	}
	return g.catalog.SetRoots(name, roots)
}

// absRoots resolves index arguments, defaulting to the working directory.
func absRoots(args []string) ([]string, error) {
	if len(args) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		return []string{cwd}, nil
	}
	roots := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return nil, fmt.Errorf("invalid path %s: %w", a, err)
		}
		roots = append(roots, abs)
	}
	return roots, nil
}

type passFunc func(ctx context.Context, opts index.Options) (*index.IndexStats, error)

// runPass runs one index pass with progress rendering and reports the result.
func runPass(ctx context.Context, cmd *cobra.Command, g *globals, name string, inst *registry.Instance, opts passOptions, pass passFunc) error {
	format, err := output.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	idxOpts := opts.indexOptions()

	var renderer ui.Renderer
	if format == output.FormatText {
		renderer = ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
			ui.WithForcePlain(opts.plain),
			ui.WithNoColor(g.colorless()),
			ui.WithTitle(name)))
		if err := renderer.Start(ctx); err != nil {
			return err
		}
		idxOpts.Progress, idxOpts.OnState = ui.Hooks(renderer)
	}

	stats, err := pass(ctx, idxOpts)

	if renderer != nil {
		if stats != nil {
			for _, f := range stats.Failures {
				renderer.AddError(ui.ErrorEvent{File: f.Path, Err: f.Err})
			}
			renderer.Complete(stats)
		}
		_ = renderer.Stop()
	}
	if err != nil {
		return err
	}

	g.log().Info("index_complete",
		slog.String("library", name),
		slog.String("status", string(stats.Status)),
		slog.Int("scanned", stats.Scanned),
		slog.Int("failed", stats.Failed),
		slog.Duration("elapsed", stats.Elapsed))
	g.recordStats(ctx, name, inst)

	if format == output.FormatJSON {
		return output.New(cmd.OutOrStdout()).JSON(newPassReport(name, stats))
	}
	return nil
}

// passReport is the JSON form of an index pass.
type passReport struct {
	Library     string          `json:"library"`
	Status      string          `json:"status"`
	Scanned     int             `json:"scanned"`
	Added       int             `json:"added"`
	Updated     int             `json:"updated"`
	Deleted     int             `json:"deleted"`
	Unchanged   int             `json:"unchanged"`
	Failed      int             `json:"failed"`
	ElapsedMS   int64           `json:"elapsed_ms"`
	Failures    []failureReport `json:"failures,omitempty"`
	Unreachable []string        `json:"unreachable,omitempty"`
}

type failureReport struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func newPassReport(name string, stats *index.IndexStats) passReport {
	r := passReport{
		Library:     name,
		Status:      string(stats.Status),
		Scanned:     stats.Scanned,
		Added:       stats.Added,
		Updated:     stats.Updated,
		Deleted:     stats.Deleted,
		Unchanged:   stats.Unchanged,
		Failed:      stats.Failed,
		ElapsedMS:   stats.Elapsed.Milliseconds(),
		Unreachable: stats.Unreachable,
	}
	for _, f := range stats.Failures {
		fr := failureReport{Path: f.Path}
		if f.Err != nil {
			fr.Error = f.Err.Error()
		}
		r.Failures = append(r.Failures, fr)
	}
	return r
}
