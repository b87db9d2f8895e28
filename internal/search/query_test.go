package search

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

func TestBuild_Modes(t *testing.T) {
	tests := []struct {
		name       string
		query      SearchQuery
		wantMatch  string
		wantTerms  []string
		wantPhrase bool
	}{
		{
			name:       "exact wraps the whole input",
			query:      SearchQuery{Text: "  Windows Search Tool ", Mode: ModeExact, Limit: 10},
			wantMatch:  `"Windows Search Tool"`,
			wantTerms:  []string{"windows", "search", "tool"},
			wantPhrase: true,
		},
		{
			name:       "exact doubles embedded quotes",
			query:      SearchQuery{Text: `say "hi"`, Mode: ModeExact, Limit: 10},
			wantMatch:  `"say ""hi"""`,
			wantTerms:  []string{"say", "hi"},
			wantPhrase: true,
		},
		{
			name:      "fuzzy prefixes every token",
			query:     SearchQuery{Text: "quarterly report", Mode: ModeFuzzy, Limit: 10},
			wantMatch: `"quarterly"* "report"*`,
			wantTerms: []string{"quarterly", "report"},
		},
		{
			name:      "fuzzy strips operators and punctuation",
			query:     SearchQuery{Text: `(budget) OR-"plan"* ^x: 2024`, Mode: ModeFuzzy, Limit: 10},
			wantMatch: `"budget"* "or"* "plan"* "x"* "2024"*`,
			wantTerms: []string{"budget", "or", "plan", "x", "2024"},
		},
		{
			name:      "empty mode is fuzzy",
			query:     SearchQuery{Text: "Notes", Limit: 10},
			wantMatch: `"notes"*`,
			wantTerms: []string{"notes"},
		},
		{
			name:      "unicode letters survive",
			query:     SearchQuery{Text: "报告 résumé", Mode: ModeFuzzy, Limit: 10},
			wantMatch: `"报告"* "résumé"*`,
			wantTerms: []string{"报告", "résumé"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Build(tt.query)

			require.NoError(t, err)
			assert.Equal(t, tt.wantMatch, expr.Match)
			assert.Equal(t, tt.wantTerms, expr.Terms)
			assert.Equal(t, tt.wantPhrase, expr.Phrase)
		})
	}
}

func TestBuild_Rejections(t *testing.T) {
	valid := SearchQuery{Text: "ok", Mode: ModeFuzzy, Limit: 10}
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		mutate   func(q *SearchQuery)
		wantCode string
	}{
		{"empty", func(q *SearchQuery) { q.Text = "" }, docerrors.ErrCodeQueryEmpty},
		{"whitespace only", func(q *SearchQuery) { q.Text = " \t\n" }, docerrors.ErrCodeQueryEmpty},
		{"only punctuation", func(q *SearchQuery) { q.Text = `"*()` }, docerrors.ErrCodeInvalidQuery},
		{"too long", func(q *SearchQuery) { q.Text = strings.Repeat("a", MaxQueryLength+1) }, docerrors.ErrCodeQueryTooLong},
		{"unknown mode", func(q *SearchQuery) { q.Mode = "regex" }, docerrors.ErrCodeInvalidQuery},
		{"zero limit", func(q *SearchQuery) { q.Limit = 0 }, docerrors.ErrCodeInvalidQuery},
		{"huge limit", func(q *SearchQuery) { q.Limit = MaxLimit + 1 }, docerrors.ErrCodeInvalidQuery},
		{"negative offset", func(q *SearchQuery) { q.Offset = -1 }, docerrors.ErrCodeInvalidQuery},
		{"unknown sort", func(q *SearchQuery) { q.Sort.Field = "color" }, docerrors.ErrCodeInvalidQuery},
		{"inverted size range", func(q *SearchQuery) { q.Filters.SizeMin, q.Filters.SizeMax = 10, 5 }, docerrors.ErrCodeInvalidFilter},
		{"negative size", func(q *SearchQuery) { q.Filters.SizeMin = -1 }, docerrors.ErrCodeInvalidFilter},
		{"inverted date range", func(q *SearchQuery) {
			q.Filters.DateFrom, q.Filters.DateTo = day, day.AddDate(0, 0, -1)
		}, docerrors.ErrCodeInvalidFilter},
		{"blank file type", func(q *SearchQuery) { q.Filters.FileTypes = []string{"."} }, docerrors.ErrCodeInvalidFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid
			tt.mutate(&q)

			_, err := Build(q)

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, docerrors.GetCode(err))
			assert.True(t, docerrors.IsValidation(err))
		})
	}
}

func TestBuild_OpenRangesAreValid(t *testing.T) {
	q := SearchQuery{Text: "x", Limit: 5, Filters: Filters{
		SizeMin:  100,
		DateFrom: time.Now(),
	}}

	_, err := Build(q)
	assert.NoError(t, err)
}

func TestStoreQuery_NormalizesFileTypes(t *testing.T) {
	q := SearchQuery{Text: "x", Limit: 7, Offset: 14, Filters: Filters{
		FileTypes:  []string{".MD", "txt", " .Csv "},
		ActiveOnly: true,
	}}
	expr, err := Build(q)
	require.NoError(t, err)

	sq := storeQuery(q, expr)

	assert.Equal(t, []string{"md", "txt", "csv"}, sq.Filters.FileTypes)
	assert.True(t, sq.Filters.ActiveOnly)
	assert.Equal(t, 7, sq.Limit)
	assert.Equal(t, 14, sq.Offset)
	assert.Equal(t, expr.Match, sq.Match)
}
