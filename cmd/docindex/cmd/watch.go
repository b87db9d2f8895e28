package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/index"
	"github.com/Aman-CERP/docindex/internal/output"
	"github.com/Aman-CERP/docindex/internal/registry"
	"github.com/Aman-CERP/docindex/internal/watcher"
)

func newWatchCmd(g *globals) *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the index up to date as files change",
		Long: `Watch the current library's directories and refresh the index whenever
files change. Bursts of changes are coalesced (watch.debounce in the
configuration) into one incremental refresh.

Runs until interrupted.

Examples:
  docindex watch
  docindex watch --library work --skip-initial`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, g, skipInitial)
		},
	}

	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "Do not refresh before watching")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, g *globals, skipInitial bool) error {
	name, inst, err := g.open(ctx)
	if err != nil {
		return err
	}
	roots, err := inst.Store.Roots(ctx)
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		return docerrors.New(docerrors.ErrCodeInvalidInput,
			"library '"+name+"' has no indexed directories", nil).
			WithSuggestion("Run 'docindex index --library " + name + " <dir>' first.")
	}

	out := output.New(cmd.OutOrStdout())
	refresh := func(ctx context.Context) error {
		return refreshQuietly(ctx, g, out, name, inst)
	}

	if !skipInitial {
		if err := refresh(ctx); err != nil {
			return err
		}
	}

	w, err := watcher.New(watcher.Options{
		Debounce: g.cfg.WatchDebounce(),
		Accept:   inst.Scanner.Accepts,
		Logger:   g.log(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	out.Statusf("👀", "Watching %d directories for library '%s' (Ctrl+C to stop)", len(roots), name)

	// The watcher ending for any reason ends the whole command.
	wctx, stop := context.WithCancel(ctx)
	defer stop()

	grp, gctx := errgroup.WithContext(wctx)
	grp.Go(func() error {
		err := w.Start(gctx, roots)
		if err == nil {
			stop()
		}
		return err
	})
	grp.Go(func() error {
		return watcher.RefreshOnChange(gctx, w.Batches(), refresh, g.log())
	})
	grp.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case err, ok := <-w.Errors():
				if !ok {
					return nil
				}
				g.log().Warn("watch_error", slog.String("error", err.Error()))
			}
		}
	})

	err = grp.Wait()
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		out.Status("", "Stopped.")
		return nil
	}
	return err
}

// refreshQuietly runs one refresh and prints a one-line summary.
func refreshQuietly(ctx context.Context, g *globals, out *output.Writer, name string, inst *registry.Instance) error {
	stats, err := g.reg.RefreshIndex(ctx, inst.BasePath, index.Options{})
	if err != nil {
		return err
	}
	g.recordStats(ctx, name, inst)

	if index.IsSkipped(stats) {
		out.Warningf("Refresh skipped: %d directories unreachable", len(stats.Unreachable))
		return nil
	}
	if stats.Added+stats.Updated+stats.Deleted+stats.Failed == 0 {
		return nil
	}
	out.Statusf("🔄", "%d added, %d updated, %d deleted, %d failed (%s)",
		stats.Added, stats.Updated, stats.Deleted, stats.Failed, stats.Elapsed.Round(time.Millisecond))
	return nil
}
