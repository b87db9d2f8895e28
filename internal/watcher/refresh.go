package watcher

import (
	"context"
	"log/slog"
)

// RefreshFunc brings the index up to date with the file system.
type RefreshFunc func(ctx context.Context) error

// RefreshOnChange calls refresh once per batch until batches closes or ctx
// is cancelled. Batches that arrive while a refresh runs are merged into the
// next call. Refresh errors are logged and watching continues.
func RefreshOnChange(ctx context.Context, batches <-chan []FileEvent, refresh RefreshFunc, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			events := len(batch) + drain(batches)

			logger.Info("watch_refresh", slog.Int("events", events))
			if err := refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("watch_refresh_failed", slog.String("error", err.Error()))
			}
		}
	}
}

// drain empties whatever is already queued and returns the event count.
func drain(batches <-chan []FileEvent) int {
	n := 0
	for {
		select {
		case batch, ok := <-batches:
			if !ok {
				return n
			}
			n += len(batch)
		default:
			return n
		}
	}
}
