package telemetry

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultSuggestLimit is used when Suggest is asked for n <= 0.
const DefaultSuggestLimit = 10

// Suggest completes prefix from file names and this history's past queries.
func (h *History) Suggest(prefix string, names []string, n int) []string {
	return Suggest(prefix, names, h.queries(), n)
}

// Suggest completes prefix from file names and past queries.
//
// File names are split on '_', '-', '.' and spaces. Past queries contribute
// their full text and their whitespace-separated words. A candidate must
// start with prefix, case-insensitively, and be longer than it. Results are
// lower-cased, deduplicated and ordered by length, then text.
func Suggest(prefix string, names, queries []string, n int) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return []string{}
	}
	if n <= 0 {
		n = DefaultSuggestLimit
	}

	found := make(map[string]bool)
	consider := func(candidate string) {
		c := strings.ToLower(strings.TrimSpace(candidate))
		if len(c) > len(prefix) && strings.HasPrefix(c, prefix) {
			found[c] = true
		}
	}

	for _, name := range names {
		for _, word := range splitName(name) {
			consider(word)
		}
	}
	for _, q := range queries {
		consider(q)
		for _, word := range strings.Fields(q) {
			consider(word)
		}
	}

	out := make([]string, 0, len(found))
	for s := range found {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(out[i]), utf8.RuneCountInString(out[j])
		if li != lj {
			return li < lj
		}
		return out[i] < out[j]
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func splitName(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
}
