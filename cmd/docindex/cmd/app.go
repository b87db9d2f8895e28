package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/profiling"
	"github.com/Aman-CERP/docindex/internal/registry"
	"github.com/Aman-CERP/docindex/internal/ui"
)

// globals holds the persistent flags and the state shared by one
// invocation. Config, catalog and registry are loaded on first use so that
// commands like version never touch the data directory.
type globals struct {
	debug   bool
	library string
	dataDir string
	noColor bool
	profile profiling.Options

	logger     *slog.Logger
	logCleanup func()
	prof       *profiling.Session

	cfg     *config.Config
	catalog *registry.Catalog
	reg     *registry.Registry
}

// config loads configuration for the working directory. --data-dir wins
// over every config source.
func (g *globals) config() (*config.Config, error) {
	if g.cfg != nil {
		return g.cfg, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}
	if g.dataDir != "" {
		cfg.Store.DataDir = g.dataDir
	}
	g.cfg = cfg
	return cfg, nil
}

// registry returns the library catalog and the process registry.
func (g *globals) registry() (*registry.Catalog, *registry.Registry, error) {
	if g.reg != nil {
		return g.catalog, g.reg, nil
	}
	cfg, err := g.config()
	if err != nil {
		return nil, nil, err
	}
	cat, err := registry.LoadCatalog(cfg.Store.DataDir)
	if err != nil {
		return nil, nil, err
	}
	g.catalog = cat
	g.reg = registry.New(cfg, g.log())
	return g.catalog, g.reg, nil
}

// libraryName is the --library flag or the default library.
func (g *globals) libraryName() string {
	if g.library == "" {
		return registry.DefaultLibrary
	}
	return g.library
}

// open opens the selected library.
func (g *globals) open(ctx context.Context) (string, *registry.Instance, error) {
	cat, reg, err := g.registry()
	if err != nil {
		return "", nil, err
	}
	name := g.libraryName()
	inst, err := reg.OpenLibrary(ctx, cat, name)
	if err != nil {
		return "", nil, err
	}
	return name, inst, nil
}

// recordStats stores the library's document count and size in the catalog.
func (g *globals) recordStats(ctx context.Context, name string, inst *registry.Instance) {
	docs, size, err := inst.Summary(ctx)
	if err == nil {
		err = g.catalog.UpdateStats(name, docs, size)
	}
	if err != nil {
		g.log().Warn("library_stats_not_saved",
			slog.String("library", name),
			slog.String("error", err.Error()))
	}
}

func (g *globals) colorless() bool {
	return g.noColor || ui.DetectNoColor()
}

func (g *globals) log() *slog.Logger {
	if g.logger == nil {
		return slog.Default()
	}
	return g.logger
}

// shutdown closes every open index, then stops profiling and logging.
func (g *globals) shutdown() error {
	var errs []error
	if g.reg != nil {
		errs = append(errs, g.reg.Close())
		g.reg = nil
	}
	if g.prof != nil {
		errs = append(errs, g.prof.Stop())
		g.prof = nil
	}
	if g.logCleanup != nil {
		g.logCleanup()
		g.logCleanup = nil
	}
	return errors.Join(errs...)
}
