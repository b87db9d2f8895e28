package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/parser"
)

// ContentParser extracts content from a path. *parser.Registry implements it.
type ContentParser interface {
	Parse(ctx context.Context, path string) (*parser.Result, error)
}

// Dispatcher runs parse tasks on a bounded worker pool.
type Dispatcher struct {
	parser  ContentParser
	workers int
	timeout time.Duration
	serial  bool
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher. Zero option fields take their defaults.
func NewDispatcher(p ContentParser, opts Options, logger *slog.Logger) *Dispatcher {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		parser:  p,
		workers: opts.Workers,
		timeout: opts.ParseTimeout,
		serial:  opts.Serial,
		logger:  logger,
	}
}

// Dispatch parses every task and returns one ParsedDocument per task, in
// completion order. Per-file failures, timeouts and panics become failed
// documents. The parent context is checked between dispatch batches: once it
// is done no further work is submitted, in-flight units are allowed to
// finish, and the context error is returned with the partial results.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks []Task, progress ProgressFunc) ([]ParsedDocument, error) {
	if len(tasks) == 0 {
		return nil, ctx.Err()
	}

	// Buffered to len(tasks) so workers never block on hand-off.
	done := make(chan ParsedDocument, len(tasks))
	collected := make(chan []ParsedDocument, 1)
	go d.report(done, len(tasks), progress, collected)

	submitErr := d.submit(ctx, tasks, done)
	close(done)

	docs := <-collected
	return docs, submitErr
}

// submit feeds tasks to workers in batches of d.workers.
func (d *Dispatcher) submit(ctx context.Context, tasks []Task, done chan<- ParsedDocument) error {
	if d.serial {
		for _, t := range tasks {
			if err := ctx.Err(); err != nil {
				return err
			}
			done <- d.run(ctx, t)
		}
		return nil
	}

	sem := semaphore.NewWeighted(int64(d.workers))
	var g errgroup.Group

	var stopErr error
	for start := 0; start < len(tasks); start += d.workers {
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}

		end := min(start+d.workers, len(tasks))
		for _, t := range tasks[start:end] {
			if err := sem.Acquire(ctx, 1); err != nil {
				stopErr = err
				break
			}
			g.Go(func() error {
				defer sem.Release(1)
				done <- d.run(ctx, t)
				return nil
			})
		}
		if stopErr != nil {
			break
		}
	}

	_ = g.Wait()
	return stopErr
}

// run executes one task with its own deadline. The deadline is detached
// from ctx cancellation so a cancelled pass lets in-flight units finish.
func (d *Dispatcher) run(ctx context.Context, t Task) ParsedDocument {
	start := time.Now()
	unitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	type outcome struct {
		res *parser.Result
		err error
	}
	out := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("parse_worker_panic",
					slog.String("path", t.Path),
					slog.Any("panic", r))
				out <- outcome{err: docerrors.New(docerrors.ErrCodeWorkerPanic,
					fmt.Sprintf("parser panicked on %s: %v", t.Path, r), nil).WithDetail("path", t.Path)}
			}
		}()
		res, err := d.parser.Parse(unitCtx, t.Path)
		out <- outcome{res: res, err: err}
	}()

	doc := ParsedDocument{Task: t}
	select {
	case o := <-out:
		switch {
		case o.err != nil:
			switch {
			case docerrors.GetCode(o.err) != "":
				doc.Err = o.err
			case errors.Is(o.err, context.DeadlineExceeded):
				doc.Err = docerrors.TimeoutError(t.Path, o.err)
			default:
				doc.Err = docerrors.ParseError(t.Path, o.err)
			}
		case o.res == nil:
			doc.Err = docerrors.ParseError(t.Path, errors.New("parser returned no result"))
		default:
			doc.Success = true
			doc.Content = o.res.Content
			doc.Metadata = o.res.Metadata
		}
	case <-unitCtx.Done():
		// The parser goroutine is abandoned; its result is discarded.
		doc.Err = docerrors.TimeoutError(t.Path, unitCtx.Err())
	}
	doc.Elapsed = time.Since(start)

	if !doc.Success {
		d.logger.Warn("parse_failed",
			slog.String("path", t.Path),
			slog.String("error", doc.Err.Error()),
			slog.Int64("elapsed_ms", doc.Elapsed.Milliseconds()))
	}
	return doc
}

// report collects finished documents and drives the progress callback on a
// single goroutine, so callbacks are serialized and never block workers.
func (d *Dispatcher) report(done <-chan ParsedDocument, total int, progress ProgressFunc, collected chan<- []ParsedDocument) {
	docs := make([]ParsedDocument, 0, total)

	for doc := range done {
		docs = append(docs, doc)
		if progress != nil {
			d.notify(progress, len(docs), total, doc.Path)
		}
	}

	collected <- docs
}

func (d *Dispatcher) notify(progress ProgressFunc, processed, total int, path string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("progress_callback_panic",
				slog.String("path", path),
				slog.Any("panic", r))
		}
	}()
	progress(processed, total, path)
}
