package index

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/store"
)

// WriteResult summarizes one Write call.
type WriteResult struct {
	// Written lists paths whose records were committed.
	Written []string

	Deleted int

	// Failures are records that failed both in their batch and on their own.
	Failures []FileFailure
}

// Writer commits parsed documents to the store in batches.
type Writer struct {
	store     store.Store
	batchSize int
	logger    *slog.Logger
}

// NewWriter creates a writer with the given batch size (0 = 100).
func NewWriter(s store.Store, batchSize int, logger *slog.Logger) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: s, batchSize: batchSize, logger: logger}
}

// Write upserts the successful documents and soft-deletes the deleted paths.
// A failed batch is retried record by record, so one bad record costs only
// itself. Failed documents are skipped; the caller has already counted them.
// The returned error is reserved for infrastructure failures.
func (w *Writer) Write(ctx context.Context, docs []ParsedDocument, deleted []string) (*WriteResult, error) {
	res := &WriteResult{}

	records := make([]*store.FileRecord, 0, len(docs))
	for i := range docs {
		if docs[i].Success {
			records = append(records, recordFor(&docs[i]))
		}
	}

	for start, batchNo := 0, 1; start < len(records); start, batchNo = start+w.batchSize, batchNo+1 {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		batch := records[start:min(start+w.batchSize, len(records))]
		if err := w.writeBatch(ctx, batch, batchNo, res); err != nil {
			return res, err
		}
	}

	for _, path := range deleted {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := w.store.SoftDelete(ctx, path); err != nil {
			return res, err
		}
		res.Deleted++
	}

	return res, nil
}

func (w *Writer) writeBatch(ctx context.Context, batch []*store.FileRecord, batchNo int, res *WriteResult) error {
	_, err := w.store.BatchUpsert(ctx, batch)
	if err == nil {
		for _, rec := range batch {
			res.Written = append(res.Written, rec.Path)
		}
		return nil
	}
	if isInfrastructure(err) {
		return err
	}

	batchErr := docerrors.New(docerrors.ErrCodeBatchWriteFailed, "batch write failed", err).
		WithDetail("batch", strconv.Itoa(batchNo)).
		WithDetail("size", strconv.Itoa(len(batch)))
	w.logger.Warn("batch_write_failed", docerrors.LogAttrs(batchErr)...)

	for _, rec := range batch {
		if err := w.store.Upsert(ctx, rec); err != nil {
			if isInfrastructure(err) {
				return err
			}
			writeErr := docerrors.New(docerrors.ErrCodeWriteFailed, "failed to write "+rec.Path, err).
				WithDetail("path", rec.Path)
			w.logger.Warn("record_write_failed", docerrors.LogAttrs(writeErr)...)
			res.Failures = append(res.Failures, FileFailure{Path: rec.Path, Err: writeErr})
			continue
		}
		res.Written = append(res.Written, rec.Path)
	}
	return nil
}

// isInfrastructure reports errors that should stop the pass rather than be
// charged to a single record.
func isInfrastructure(err error) bool {
	return errors.Is(err, store.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		docerrors.GetCode(err) == docerrors.ErrCodeStoreUnavailable ||
		docerrors.GetCode(err) == docerrors.ErrCodeCorruptIndex
}

func recordFor(doc *ParsedDocument) *store.FileRecord {
	rec := store.NewFileRecord(doc.Path)
	rec.Size = doc.Size
	rec.ModTime = doc.ModTime
	rec.ContentHash = doc.ContentHash
	rec.Content = doc.Content
	rec.Metadata = doc.Metadata
	return rec
}
