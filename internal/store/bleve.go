package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
	"github.com/blevesearch/bleve/v2/search/query"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// bleveDoc is the stored form of a FileRecord. Times are Unix milliseconds,
// which float64 holds exactly.
type bleveDoc struct {
	Path        string  `json:"path"`
	Name        string  `json:"name"`
	Size        float64 `json:"size"`
	Modified    float64 `json:"modified"`
	Indexed     float64 `json:"indexed"`
	FileType    string  `json:"file_type"`
	ContentHash string  `json:"content_hash"`
	Status      string  `json:"status"`
	Content     string  `json:"content"`
	// Metadata is JSON, stored but not indexed.
	Metadata string `json:"metadata"`
}

// bleveFields are the stored fields loaded for hits and records.
var bleveFields = []string{"path", "name", "size", "modified", "indexed", "file_type", "content_hash", "status", "metadata"}

const bleveRootsKey = "docindex_roots"

// BleveStore implements Store on a Bleve index. Document IDs are file paths.
type BleveStore struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ Store = (*BleveStore)(nil)

// NewBleveStore opens (or creates) a Bleve index directory at path. An empty
// path creates an in-memory index. A directory Bleve cannot open as an index
// is cleared and recreated.
func NewBleveStore(path string) (*BleveStore, error) {
	indexMapping := newBleveMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, mkErr)
		}

		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isBleveCorruption(err) {
			slog.Warn("bleve_index_corrupted",
				slog.String("path", path),
				slog.String("error", err.Error()))

			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, docerrors.New(docerrors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be removed", path), rmErr)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, docerrors.StoreError("failed to open bleve index", err).WithDetail("path", path)
	}

	return &BleveStore{index: idx, path: path}, nil
}

func isBleveCorruption(err error) bool {
	msg := err.Error()
	return errors.Is(err, bleve.ErrorIndexMetaCorrupt) ||
		errors.Is(err, bleve.ErrorIndexMetaMissing) ||
		strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment")
}

func newBleveMapping() *mapping.IndexMappingImpl {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = true
	text.IncludeTermVectors = true

	kw := bleve.NewKeywordFieldMapping()
	kw.Analyzer = keyword.Name

	num := bleve.NewNumericFieldMapping()

	stored := bleve.NewTextFieldMapping()
	stored.Index = false
	stored.Store = true

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt("content", text)
	for _, f := range []string{"path", "name", "file_type", "content_hash", "status"} {
		doc.AddFieldMappingsAt(f, kw)
	}
	for _, f := range []string{"size", "modified", "indexed"} {
		doc.AddFieldMappingsAt(f, num)
	}
	doc.AddFieldMappingsAt("metadata", stored)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

func toBleveDoc(rec *FileRecord) (bleveDoc, error) {
	meta := ""
	if len(rec.Metadata) > 0 {
		data, err := json.Marshal(rec.Metadata)
		if err != nil {
			return bleveDoc{}, fmt.Errorf("failed to encode metadata for %s: %w", rec.Path, err)
		}
		meta = string(data)
	}
	name := rec.Name
	if name == "" {
		name = filepath.Base(rec.Path)
	}
	status := rec.Status
	if status == "" {
		status = StatusActive
	}
	return bleveDoc{
		Path:        rec.Path,
		Name:        name,
		Size:        float64(rec.Size),
		Modified:    float64(rec.ModTime.UnixMilli()),
		Indexed:     float64(rec.IndexedAt.UnixMilli()),
		FileType:    rec.FileType,
		ContentHash: rec.ContentHash,
		Status:      string(status),
		Content:     rec.Content,
		Metadata:    meta,
	}, nil
}

// Upsert indexes one record, replacing any record with the same path.
func (b *BleveStore) Upsert(ctx context.Context, rec *FileRecord) error {
	_, err := b.BatchUpsert(ctx, []*FileRecord{rec})
	return err
}

// BatchUpsert applies recs as one Bleve batch. Validation happens before
// anything is written, so a bad record leaves the index untouched.
func (b *BleveStore) BatchUpsert(ctx context.Context, recs []*FileRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := time.Now()
	batch := b.index.NewBatch()
	for _, rec := range recs {
		if err := validateRecord(rec); err != nil {
			return 0, err
		}
		if rec.IndexedAt.IsZero() {
			rec.IndexedAt = now
		}
		rec.Status = StatusActive
		doc, err := toBleveDoc(rec)
		if err != nil {
			return 0, err
		}
		if err := batch.Index(rec.Path, doc); err != nil {
			return 0, fmt.Errorf("failed to index %s: %w", rec.Path, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return 0, docerrors.New(docerrors.ErrCodeBatchWriteFailed, "failed to apply batch", err)
	}
	return len(recs), nil
}

// SoftDelete re-indexes the record with status deleted.
func (b *BleveStore) SoftDelete(ctx context.Context, path string) error {
	rec, err := b.Get(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Status == StatusDeleted {
		return nil
	}

	rec.Status = StatusDeleted
	doc, err := toBleveDoc(rec)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if err := b.index.Index(path, doc); err != nil {
		return docerrors.StoreError("failed to soft delete "+path, err)
	}
	return nil
}

// textQuery builds the content predicate: a phrase, or a conjunction of
// prefix matches over the lower-cased terms.
func textQuery(q Query) query.Query {
	if q.Phrase {
		pq := bleve.NewMatchPhraseQuery(strings.Join(q.Terms, " "))
		pq.SetField("content")
		return pq
	}

	parts := make([]query.Query, 0, len(q.Terms))
	for _, term := range q.Terms {
		pq := bleve.NewPrefixQuery(strings.ToLower(term))
		pq.SetField("content")
		parts = append(parts, pq)
	}
	return bleve.NewConjunctionQuery(parts...)
}

func numericRange(field string, min, max float64, hasMin, hasMax bool) query.Query {
	inclusive := true
	var minPtr, maxPtr *float64
	if hasMin {
		minPtr = &min
	}
	if hasMax {
		maxPtr = &max
	}
	rq := bleve.NewNumericRangeInclusiveQuery(minPtr, maxPtr, &inclusive, &inclusive)
	rq.SetField(field)
	return rq
}

func filterQueries(f Filters) []query.Query {
	var out []query.Query

	if len(f.FileTypes) > 0 {
		types := make([]query.Query, 0, len(f.FileTypes))
		for _, t := range f.FileTypes {
			tq := bleve.NewTermQuery(strings.TrimPrefix(strings.ToLower(t), "."))
			tq.SetField("file_type")
			types = append(types, tq)
		}
		out = append(out, bleve.NewDisjunctionQuery(types...))
	}
	if !f.ModifiedFrom.IsZero() || !f.ModifiedTo.IsZero() {
		out = append(out, numericRange("modified",
			float64(f.ModifiedFrom.UnixMilli()), float64(f.ModifiedTo.UnixMilli()),
			!f.ModifiedFrom.IsZero(), !f.ModifiedTo.IsZero()))
	}
	if f.SizeMin > 0 || f.SizeMax > 0 {
		out = append(out, numericRange("size",
			float64(f.SizeMin), float64(f.SizeMax), f.SizeMin > 0, f.SizeMax > 0))
	}
	if f.ActiveOnly {
		sq := bleve.NewTermQuery(string(StatusActive))
		sq.SetField("status")
		out = append(out, sq)
	}

	return out
}

// Query searches content, ordered by descending score then path.
func (b *BleveStore) Query(ctx context.Context, q Query) ([]*Hit, int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, 0, ErrClosed
	}
	if len(q.Terms) == 0 {
		return []*Hit{}, 0, nil
	}

	conj := append([]query.Query{textQuery(q)}, filterQueries(q.Filters)...)

	size := q.Limit
	if size <= 0 {
		size = 1000
	}
	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(conj...), size, q.Offset, false)
	req.Fields = bleveFields
	req.SortBy([]string{"-_score", "path"})
	req.Highlight = bleve.NewHighlightWithStyle(html.Name)
	req.Highlight.AddField("content")

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, 0, docerrors.StoreError("search failed", err)
	}

	hits := make([]*Hit, 0, len(res.Hits))
	for _, dm := range res.Hits {
		rec := recordFromFields(dm.ID, dm.Fields)
		hits = append(hits, &Hit{
			ID:       rec.ID,
			Path:     rec.Path,
			Name:     rec.Name,
			Size:     rec.Size,
			ModTime:  rec.ModTime,
			FileType: rec.FileType,
			Status:   rec.Status,
			Snippet:  snippetFrom(dm),
			Score:    dm.Score,
			Metadata: rec.Metadata,
		})
	}

	return hits, int(res.Total), nil
}

func snippetFrom(dm *search.DocumentMatch) string {
	frags := dm.Fragments["content"]
	if len(frags) == 0 {
		return ""
	}
	return strings.Join(frags, "...")
}

// bleveRecordID derives a stable positive record ID from a path. Bleve keys
// documents by path and has no row IDs of its own.
func bleveRecordID(path string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	if id := int64(h.Sum64() >> 1); id != 0 {
		return id
	}
	return 1
}

func recordFromFields(id string, fields map[string]interface{}) *FileRecord {
	str := func(k string) string {
		s, _ := fields[k].(string)
		return s
	}
	num := func(k string) float64 {
		f, _ := fields[k].(float64)
		return f
	}

	rec := &FileRecord{
		ID:          bleveRecordID(id),
		Path:        id,
		Name:        str("name"),
		Size:        int64(num("size")),
		ModTime:     time.UnixMilli(int64(num("modified"))),
		IndexedAt:   time.UnixMilli(int64(num("indexed"))),
		FileType:    str("file_type"),
		ContentHash: str("content_hash"),
		Status:      Status(str("status")),
	}
	if meta := str("metadata"); meta != "" {
		_ = json.Unmarshal([]byte(meta), &rec.Metadata)
	}
	return rec
}

// all visits every stored document in path order.
func (b *BleveStore) all(ctx context.Context, q query.Query, fields []string, fn func(id string, fields map[string]interface{})) error {
	const page = 500
	for from := 0; ; from += page {
		req := bleve.NewSearchRequestOptions(q, page, from, false)
		req.Fields = fields
		req.SortBy([]string{"path"})

		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return docerrors.StoreError("failed to scan index", err)
		}
		for _, dm := range res.Hits {
			fn(dm.ID, dm.Fields)
		}
		if len(res.Hits) < page {
			return nil
		}
	}
}

// KnownPaths returns every active record keyed by path.
func (b *BleveStore) KnownPaths(ctx context.Context) (map[string]KnownFile, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	active := bleve.NewTermQuery(string(StatusActive))
	active.SetField("status")

	known := make(map[string]KnownFile)
	err := b.all(ctx, active, bleveFields, func(id string, fields map[string]interface{}) {
		rec := recordFromFields(id, fields)
		known[id] = KnownFile{ContentHash: rec.ContentHash, Size: rec.Size, ModTime: rec.ModTime}
	})
	return known, err
}

// Get returns the full record for path, or ErrNotFound.
func (b *BleveStore) Get(ctx context.Context, path string) (*FileRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{path}))
	req.Fields = append([]string{"content"}, bleveFields...)

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, docerrors.StoreError("failed to get "+path, err)
	}
	if len(res.Hits) == 0 {
		return nil, ErrNotFound
	}

	dm := res.Hits[0]
	rec := recordFromFields(dm.ID, dm.Fields)
	rec.Content, _ = dm.Fields["content"].(string)
	return rec, nil
}

// FileNames returns the distinct base names of all records.
func (b *BleveStore) FileNames(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	seen := make(map[string]bool)
	err := b.all(ctx, bleve.NewMatchAllQuery(), []string{"name"}, func(_ string, fields map[string]interface{}) {
		if name, ok := fields["name"].(string); ok {
			seen[name] = true
		}
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Stats counts records by status and type.
func (b *BleveStore) Stats(ctx context.Context) (*Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	stats := &Stats{ByType: make(map[string]int)}
	err := b.all(ctx, bleve.NewMatchAllQuery(), []string{"size", "file_type", "status"}, func(_ string, fields map[string]interface{}) {
		stats.Total++
		size, _ := fields["size"].(float64)
		stats.TotalSize += int64(size)
		ft, _ := fields["file_type"].(string)
		stats.ByType[ft]++
		if st, _ := fields["status"].(string); Status(st) == StatusDeleted {
			stats.Deleted++
		} else {
			stats.Active++
		}
	})
	return stats, err
}

// SetRoots stores the root directories in Bleve's internal key space.
func (b *BleveStore) SetRoots(_ context.Context, roots []string) error {
	data, err := json.Marshal(roots)
	if err != nil {
		return fmt.Errorf("failed to encode roots: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	return b.index.SetInternal([]byte(bleveRootsKey), data)
}

// Roots returns the stored root directories, or nil for a new index.
func (b *BleveStore) Roots(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	data, err := b.index.GetInternal([]byte(bleveRootsKey))
	if err != nil {
		return nil, docerrors.StoreError("failed to read roots", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var roots []string
	if err := json.Unmarshal(data, &roots); err != nil {
		return nil, fmt.Errorf("failed to decode roots: %w", err)
	}
	return roots, nil
}

// Close closes the index. Safe to call twice.
func (b *BleveStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
