// Package cmd provides the CLI commands for docindex.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/logging"
	"github.com/Aman-CERP/docindex/internal/profiling"
	"github.com/Aman-CERP/docindex/pkg/version"
)

// NewRootCmd creates the root command for the docindex CLI.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *globals) {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "docindex",
		Short: "Incremental document indexing and full-text search",
		Long: `docindex keeps a full-text index of your document folders up to date
and searches it.

Indexing is incremental: only files whose content changed are parsed
again, and files that disappear stay searchable, marked deleted.
Each library is a separate index with its own roots and search history.

Run 'docindex index ~/Documents' to get started.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.start(cmd)
		},
	}

	cmd.SetVersionTemplate("docindex version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging to stderr and ~/.docindex/logs/")
	cmd.PersistentFlags().StringVarP(&g.library, "library", "L", "", "Library to use (default \"default\")")
	cmd.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "Directory holding libraries (default ~/.docindex)")
	cmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&g.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newIndexCmd(g))
	cmd.AddCommand(newRefreshCmd(g))
	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newStatsCmd(g))
	cmd.AddCommand(newHistoryCmd(g))
	cmd.AddCommand(newSuggestCmd(g))
	cmd.AddCommand(newLibraryCmd(g))
	cmd.AddCommand(newWatchCmd(g))
	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd, g
}

// start sets up logging and profiling before any command runs.
func (g *globals) start(cmd *cobra.Command) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	switch {
	case cmd.Name() == "serve":
		// stdout carries the protocol stream.
		level := "info"
		if g.debug {
			level = "debug"
		}
		logCfg = logging.ServeConfig(level)
	case g.debug:
		logCfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		if g.debug {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		// Logging is best effort outside --debug.
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		cleanup = func() {}
	}
	g.logger = logger
	g.logCleanup = cleanup
	slog.SetDefault(logger)
	if g.debug {
		slog.Debug("debug_logging_enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Version))
	}

	if g.profile.Enabled() {
		g.prof, err = profiling.Start(g.profile)
		if err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running
// command; errors are printed to stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, g := newRootCmd()
	err := cmd.ExecuteContext(ctx)
	if cerr := g.shutdown(); err == nil {
		err = cerr
	}
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, docerrors.FormatForCLI(err))
	}
	return err
}
