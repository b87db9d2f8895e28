package mcp

// LibraryInput selects a library. Empty means the server's default.
type LibraryInput struct {
	Library string `json:"library,omitempty" jsonschema:"library name, defaults to the server's library"`
}

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query      string   `json:"query" jsonschema:"the text to search for"`
	Mode       string   `json:"mode,omitempty" jsonschema:"exact (whole phrase) or fuzzy (word prefixes), default fuzzy"`
	Limit      int      `json:"limit,omitempty" jsonschema:"results per page, default 20, max 1000"`
	Offset     int      `json:"offset,omitempty" jsonschema:"number of results to skip"`
	FileTypes  []string `json:"file_types,omitempty" jsonschema:"restrict to extensions, e.g. md, pdf"`
	DateFrom   string   `json:"date_from,omitempty" jsonschema:"earliest modification date, YYYY-MM-DD"`
	DateTo     string   `json:"date_to,omitempty" jsonschema:"latest modification date, YYYY-MM-DD"`
	SizeMin    int64    `json:"size_min,omitempty" jsonschema:"minimum file size in bytes"`
	SizeMax    int64    `json:"size_max,omitempty" jsonschema:"maximum file size in bytes"`
	ActiveOnly bool     `json:"active_only,omitempty" jsonschema:"exclude documents whose files were deleted"`
	Sort       string   `json:"sort,omitempty" jsonschema:"relevance, name, modified or size"`
	Desc       bool     `json:"desc,omitempty" jsonschema:"reverse the sort order"`
	Library    string   `json:"library,omitempty" jsonschema:"library name, defaults to the server's library"`
}

// SearchOutput is one page of results.
type SearchOutput struct {
	Query      string               `json:"query"`
	Total      int                  `json:"total" jsonschema:"number of matches across all pages"`
	Page       int                  `json:"page"`
	TotalPages int                  `json:"total_pages"`
	HasNext    bool                 `json:"has_next"`
	CacheHit   bool                 `json:"cache_hit"`
	ElapsedMS  float64              `json:"elapsed_ms"`
	Results    []SearchResultOutput `json:"results"`
}

// SearchResultOutput is a single result.
type SearchResultOutput struct {
	Path     string  `json:"path" jsonschema:"absolute path of the document"`
	Name     string  `json:"name"`
	Snippet  string  `json:"snippet" jsonschema:"excerpt with matched terms wrapped in <mark>"`
	Score    float64 `json:"score" jsonschema:"relevance, higher is better"`
	Status   string  `json:"status" jsonschema:"active, or deleted if the file is gone"`
	Size     int64   `json:"size"`
	Modified string  `json:"modified"`
	FileType string  `json:"file_type"`
}

// IndexInput defines the input schema for the index tool.
type IndexInput struct {
	Roots   []string `json:"roots" jsonschema:"directories to index"`
	Library string   `json:"library,omitempty" jsonschema:"library name, defaults to the server's library"`
}

// IndexOutput summarizes an index pass.
type IndexOutput struct {
	Status      string   `json:"status" jsonschema:"completed, skipped or failed"`
	Scanned     int      `json:"scanned"`
	Added       int      `json:"added"`
	Updated     int      `json:"updated"`
	Deleted     int      `json:"deleted"`
	Unchanged   int      `json:"unchanged"`
	Failed      int      `json:"failed"`
	ElapsedMS   int64    `json:"elapsed_ms"`
	Unreachable []string `json:"unreachable,omitempty"`
}

// StatsOutput describes a library.
type StatsOutput struct {
	Library       string         `json:"library"`
	Backend       string         `json:"backend"`
	Roots         []string       `json:"roots"`
	Documents     int            `json:"documents"`
	Active        int            `json:"active"`
	Deleted       int            `json:"deleted"`
	SizeBytes     int64          `json:"size_bytes"`
	ByType        map[string]int `json:"by_type,omitempty"`
	CacheEntries  int            `json:"cache_entries"`
	CacheHitRate  float64        `json:"cache_hit_rate"`
	TotalSearches int64          `json:"total_searches"`
	PopularQuery  []string       `json:"popular_queries,omitempty"`
}

// SuggestInput defines the input schema for the suggest tool.
type SuggestInput struct {
	Prefix  string `json:"prefix" jsonschema:"partial query to complete"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum suggestions, default 10"`
	Library string `json:"library,omitempty" jsonschema:"library name, defaults to the server's library"`
}

// SuggestOutput lists completions.
type SuggestOutput struct {
	Suggestions []string `json:"suggestions"`
}
