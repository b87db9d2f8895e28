package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/docindex/internal/store"
)

func names(results []*SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Name
	}
	return out
}

func TestToResults_RelevanceOrder(t *testing.T) {
	hits := []*store.Hit{
		{Path: "/b", Name: "b", Score: 1.0},
		{Path: "/c", Name: "c", Score: 3.0},
		{Path: "/a", Name: "a", Score: 1.0},
	}

	results := toResults(hits)

	assert.Equal(t, []string{"c", "a", "b"}, names(results))
}

func TestApplySort(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	page := func() []*SearchResult {
		// Relevance order: r1, r2, r3, r4.
		return []*SearchResult{
			{Name: "Delta.txt", Size: 30, ModTime: t0.Add(2 * time.Hour)},
			{Name: "alpha.txt", Size: 10, ModTime: t0},
			{Name: "charlie.txt", Size: 30, ModTime: t0.Add(time.Hour)},
			{Name: "bravo.txt", Size: 20, ModTime: t0.Add(3 * time.Hour)},
		}
	}

	tests := []struct {
		name string
		sort Sort
		want []string
	}{
		{"relevance keeps order", Sort{}, []string{"Delta.txt", "alpha.txt", "charlie.txt", "bravo.txt"}},
		{"name ignores case", Sort{Field: SortName}, []string{"alpha.txt", "bravo.txt", "charlie.txt", "Delta.txt"}},
		{"name desc", Sort{Field: SortName, Desc: true}, []string{"Delta.txt", "charlie.txt", "bravo.txt", "alpha.txt"}},
		{"modified", Sort{Field: SortModified}, []string{"alpha.txt", "charlie.txt", "Delta.txt", "bravo.txt"}},
		{"size is stable on ties", Sort{Field: SortSize}, []string{"alpha.txt", "bravo.txt", "Delta.txt", "charlie.txt"}},
		{"size desc is stable on ties", Sort{Field: SortSize, Desc: true}, []string{"Delta.txt", "charlie.txt", "bravo.txt", "alpha.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := page()
			applySort(results, tt.sort)
			assert.Equal(t, tt.want, names(results))
		})
	}
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name                 string
		total, limit, offset int
		page, pages          int
		hasNext, hasPrev     bool
	}{
		{"first page", 45, 20, 0, 1, 3, true, false},
		{"middle page", 45, 20, 20, 2, 3, true, true},
		{"last page", 45, 20, 40, 3, 3, false, true},
		{"exact fit", 40, 20, 20, 2, 2, false, true},
		{"offset past end", 5, 10, 50, 6, 1, false, true},
		{"no results", 0, 10, 0, 1, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &SearchResponse{}
			paginate(resp, tt.total, tt.limit, tt.offset)

			assert.Equal(t, tt.total, resp.Total)
			assert.Equal(t, tt.limit, resp.PageSize)
			assert.Equal(t, tt.page, resp.Page)
			assert.Equal(t, tt.pages, resp.TotalPages)
			assert.Equal(t, tt.hasNext, resp.HasNext)
			assert.Equal(t, tt.hasPrev, resp.HasPrev)
		})
	}
}
