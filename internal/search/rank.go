package search

import (
	"sort"
	"strings"

	"github.com/Aman-CERP/docindex/internal/store"
)

// toResults converts store hits in relevance order: score descending, path
// ascending on ties.
func toResults(hits []*store.Hit) []*SearchResult {
	results := make([]*SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, &SearchResult{
			ID:       h.ID,
			Path:     h.Path,
			Name:     h.Name,
			Snippet:  h.Snippet,
			Score:    h.Score,
			Status:   h.Status,
			Size:     h.Size,
			ModTime:  h.ModTime,
			FileType: h.FileType,
			Metadata: h.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})
	return results
}

// applySort re-sorts a fetched page. The sort is stable, so equal keys keep
// their relevance order in both directions.
func applySort(results []*SearchResult, s Sort) {
	var compare func(a, b *SearchResult) int
	switch s.Field {
	case SortName:
		compare = func(a, b *SearchResult) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	case SortModified:
		compare = func(a, b *SearchResult) int {
			return a.ModTime.Compare(b.ModTime)
		}
	case SortSize:
		compare = func(a, b *SearchResult) int {
			switch {
			case a.Size < b.Size:
				return -1
			case a.Size > b.Size:
				return 1
			}
			return 0
		}
	default:
		return
	}

	sort.SliceStable(results, func(i, j int) bool {
		c := compare(results[i], results[j])
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
}

// paginate fills the navigation fields. An offset past the end leaves the
// results empty while Total and TotalPages stay correct.
func paginate(resp *SearchResponse, total, limit, offset int) {
	resp.Total = total
	resp.PageSize = limit
	resp.Page = offset/limit + 1
	resp.TotalPages = (total + limit - 1) / limit
	resp.HasNext = offset+limit < total
	resp.HasPrev = offset > 0
}
