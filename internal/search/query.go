package search

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/store"
)

// Expression is a query translated for the store. Match is the FTS5 form;
// Terms feed backends that build their own query tree.
type Expression struct {
	Match  string
	Terms  []string
	Phrase bool
}

// Build validates q and translates its text.
//
// Exact mode quotes the whole trimmed input as one phrase with embedded
// double quotes doubled. Fuzzy mode splits on anything that is not a letter
// or digit, which also drops FTS5 operators, and turns each token into a
// quoted prefix match; FTS5 ANDs space-separated terms.
func Build(q SearchQuery) (*Expression, error) {
	if err := Validate(q); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(q.Text)
	terms := Tokenize(text)
	if len(terms) == 0 {
		return nil, docerrors.New(docerrors.ErrCodeInvalidQuery,
			"query has no searchable words", nil).
			WithDetail("query", text).
			WithSuggestion("use letters or digits in the query")
	}

	if q.Mode == ModeExact {
		return &Expression{
			Match:  `"` + strings.ReplaceAll(text, `"`, `""`) + `"`,
			Terms:  terms,
			Phrase: true,
		}, nil
	}

	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = `"` + t + `"*`
	}
	return &Expression{Match: strings.Join(parts, " "), Terms: terms}, nil
}

// Validate rejects malformed queries before they reach the store.
func Validate(q SearchQuery) error {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return docerrors.New(docerrors.ErrCodeQueryEmpty, "query cannot be empty", nil)
	}
	if utf8.RuneCountInString(text) > MaxQueryLength {
		return docerrors.New(docerrors.ErrCodeQueryTooLong, "query is too long", nil).
			WithDetail("max", strconv.Itoa(MaxQueryLength))
	}
	if _, ok := ParseMode(string(q.Mode)); !ok {
		return docerrors.QueryError("invalid search mode: " + string(q.Mode)).
			WithSuggestion("use 'exact' or 'fuzzy'")
	}
	if q.Limit <= 0 || q.Limit > MaxLimit {
		return docerrors.QueryError("limit must be between 1 and " + strconv.Itoa(MaxLimit))
	}
	if q.Offset < 0 {
		return docerrors.QueryError("offset cannot be negative")
	}
	if _, ok := ParseSortField(string(q.Sort.Field)); !ok {
		return docerrors.QueryError("invalid sort field: " + string(q.Sort.Field)).
			WithSuggestion("use 'name', 'modified' or 'size'")
	}
	return validateFilters(q.Filters)
}

func validateFilters(f Filters) error {
	if f.SizeMin < 0 || f.SizeMax < 0 {
		return docerrors.FilterError("size bounds cannot be negative")
	}
	if f.SizeMax > 0 && f.SizeMin > f.SizeMax {
		return docerrors.FilterError("minimum size is greater than maximum size")
	}
	if !f.DateFrom.IsZero() && !f.DateTo.IsZero() && f.DateFrom.After(f.DateTo) {
		return docerrors.FilterError("start date is after end date")
	}
	for _, t := range f.FileTypes {
		if strings.Trim(t, ". ") == "" {
			return docerrors.FilterError("empty file type")
		}
	}
	return nil
}

// Tokenize splits text into lower-cased runs of letters and digits.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}

// storeQuery combines the expression with filters and paging.
func storeQuery(q SearchQuery, expr *Expression) store.Query {
	types := make([]string, 0, len(q.Filters.FileTypes))
	for _, t := range q.Filters.FileTypes {
		types = append(types, store.FileType("x."+strings.TrimPrefix(strings.TrimSpace(t), ".")))
	}
	return store.Query{
		Match:  expr.Match,
		Terms:  expr.Terms,
		Phrase: expr.Phrase,
		Filters: store.Filters{
			FileTypes:    types,
			ModifiedFrom: q.Filters.DateFrom,
			ModifiedTo:   q.Filters.DateTo,
			SizeMin:      q.Filters.SizeMin,
			SizeMax:      q.Filters.SizeMax,
			ActiveOnly:   q.Filters.ActiveOnly,
		},
		Limit:  q.Limit,
		Offset: q.Offset,
	}
}
