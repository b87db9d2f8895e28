package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docindex/internal/index"
	"github.com/Aman-CERP/docindex/internal/registry"
	"github.com/Aman-CERP/docindex/internal/search"
	"github.com/Aman-CERP/docindex/pkg/version"
)

// serverName is reported to clients during initialization.
const serverName = "docindex"

// defaultSuggestions is the suggest tool's limit when none is given.
const defaultSuggestions = 10

// Server bridges MCP clients with the libraries of one registry.
type Server struct {
	mcp     *mcp.Server
	reg     *registry.Registry
	catalog *registry.Catalog
	logger  *slog.Logger

	// library is used when a tool call names none.
	library string

	mu sync.RWMutex
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Full-text search over indexed documents. Fuzzy mode matches word prefixes, exact mode matches the whole query as a phrase. Supports file type, date and size filters, sorting and pagination.",
	},
	{
		Name:        "index",
		Description: "Index the given directories into a library. Unchanged files are skipped; changed files are re-parsed; missing files are marked deleted.",
	},
	{
		Name:        "refresh",
		Description: "Re-scan the directories a library was built from and apply changes since the last pass.",
	},
	{
		Name:        "stats",
		Description: "Document counts, index size, cache and search statistics for a library.",
	},
	{
		Name:        "suggest",
		Description: "Complete a partial query from past searches and indexed file names.",
	},
}

// NewServer creates an MCP server over reg. library is the default library
// name; empty means registry.DefaultLibrary.
func NewServer(reg *registry.Registry, catalog *registry.Catalog, library string, logger *slog.Logger) (*Server, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if catalog == nil {
		return nil, errors.New("library catalog is required")
	}
	if library == "" {
		library = registry.DefaultLibrary
	}
	if _, err := catalog.Get(library); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		reg:     reg,
		catalog: catalog,
		library: library,
		logger:  logger,
	}

	// Capabilities are inferred from registered tools and resources.
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// Library returns the default library name.
func (s *Server) Library() string {
	return s.library
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpIndexHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpRefreshHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[3].Name, Description: tools[3].Description}, s.mcpStatsHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[4].Name, Description: tools[4].Description}, s.mcpSuggestHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// instance resolves a library name to its open instance.
func (s *Server) instance(ctx context.Context, library string) (string, *registry.Instance, error) {
	if library == "" {
		library = s.library
	}
	inst, err := s.reg.OpenLibrary(ctx, s.catalog, library)
	if err != nil {
		return library, nil, err
	}
	return library, inst, nil
}

// Search runs the search tool.
func (s *Server) Search(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	requestID := generateRequestID()

	q, err := toQuery(in)
	if err != nil {
		return nil, err
	}

	_, inst, err := s.instance(ctx, in.Library)
	if err != nil {
		return nil, MapError(err)
	}

	s.logger.Info("search_started",
		slog.String("request_id", requestID),
		slog.String("query", q.Text),
		slog.String("mode", string(q.Mode)))

	resp, err := inst.Engine.Search(ctx, q)
	if err != nil {
		s.logger.Error("search_failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", resp.Elapsed),
		slog.Int("total", resp.Total),
		slog.Bool("cache_hit", resp.CacheHit))

	return toSearchOutput(resp), nil
}

// Index runs the index tool.
func (s *Server) Index(ctx context.Context, in IndexInput) (*IndexOutput, error) {
	if len(in.Roots) == 0 {
		return nil, NewInvalidParamsError("roots must name at least one directory")
	}

	name, inst, err := s.instance(ctx, in.Library)
	if err != nil {
		return nil, MapError(err)
	}

	stats, err := inst.Orchestrator.BuildIndex(ctx, in.Roots, index.Options{})
	if err != nil {
		return nil, MapError(err)
	}
	if err := s.catalog.SetRoots(name, in.Roots); err != nil {
		s.logger.Warn("library_roots_not_saved", slog.String("library", name), slog.String("error", err.Error()))
	}
	s.recordStats(ctx, name, inst)
	return toIndexOutput(stats), nil
}

// Refresh runs the refresh tool.
func (s *Server) Refresh(ctx context.Context, in LibraryInput) (*IndexOutput, error) {
	name, inst, err := s.instance(ctx, in.Library)
	if err != nil {
		return nil, MapError(err)
	}

	stats, err := inst.Orchestrator.RefreshIndex(ctx, index.Options{})
	if err != nil {
		return nil, MapError(err)
	}
	s.recordStats(ctx, name, inst)
	return toIndexOutput(stats), nil
}

// Stats runs the stats tool.
func (s *Server) Stats(ctx context.Context, in LibraryInput) (*StatsOutput, error) {
	name, inst, err := s.instance(ctx, in.Library)
	if err != nil {
		return nil, MapError(err)
	}

	st, err := inst.Store.Stats(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	roots, err := inst.Store.Roots(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	_, size, err := inst.Summary(ctx)
	if err != nil {
		return nil, MapError(err)
	}

	cache := inst.Engine.CacheStats()
	hist := inst.History.Stats()

	out := &StatsOutput{
		Library:       name,
		Backend:       string(inst.Backend),
		Roots:         roots,
		Documents:     st.Total,
		Active:        st.Active,
		Deleted:       st.Deleted,
		SizeBytes:     size,
		ByType:        st.ByType,
		CacheEntries:  cache.Size,
		CacheHitRate:  cache.HitRate,
		TotalSearches: hist.TotalSearches,
	}
	for _, p := range inst.History.Popular(5) {
		out.PopularQuery = append(out.PopularQuery, p.Query)
	}
	return out, nil
}

// Suggest runs the suggest tool.
func (s *Server) Suggest(ctx context.Context, in SuggestInput) (*SuggestOutput, error) {
	if strings.TrimSpace(in.Prefix) == "" {
		return nil, NewInvalidParamsError("prefix is required")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultSuggestions
	}

	_, inst, err := s.instance(ctx, in.Library)
	if err != nil {
		return nil, MapError(err)
	}

	suggestions, err := inst.Engine.Suggest(ctx, in.Prefix, limit)
	if err != nil {
		return nil, MapError(err)
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return &SuggestOutput{Suggestions: suggestions}, nil
}

// recordStats stores the document count and size in the catalog.
func (s *Server) recordStats(ctx context.Context, name string, inst *registry.Instance) {
	docs, size, err := inst.Summary(ctx)
	if err == nil {
		err = s.catalog.UpdateStats(name, docs, size)
	}
	if err != nil {
		s.logger.Warn("library_stats_not_saved", slog.String("library", name), slog.String("error", err.Error()))
	}
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, *SearchOutput, error) {
	out, err := s.Search(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return textResult(FormatSearchResults(out)), out, nil
}

func (s *Server) mcpIndexHandler(ctx context.Context, _ *mcp.CallToolRequest, in IndexInput) (*mcp.CallToolResult, *IndexOutput, error) {
	out, err := s.Index(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return textResult(FormatIndexStats(out)), out, nil
}

func (s *Server) mcpRefreshHandler(ctx context.Context, _ *mcp.CallToolRequest, in LibraryInput) (*mcp.CallToolResult, *IndexOutput, error) {
	out, err := s.Refresh(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return textResult(FormatIndexStats(out)), out, nil
}

func (s *Server) mcpStatsHandler(ctx context.Context, _ *mcp.CallToolRequest, in LibraryInput) (*mcp.CallToolResult, *StatsOutput, error) {
	out, err := s.Stats(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

func (s *Server) mcpSuggestHandler(ctx context.Context, _ *mcp.CallToolRequest, in SuggestInput) (*mcp.CallToolResult, *SuggestOutput, error) {
	out, err := s.Suggest(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// Serve runs the server on the given transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting",
		slog.String("transport", transport),
		slog.String("library", s.library))

	switch transport {
	case "", "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// toQuery validates tool input into a search query. Query text itself is
// validated by the engine.
func toQuery(in SearchInput) (search.SearchQuery, error) {
	// An empty mode leaves the engine's configured default in place.
	var mode search.Mode
	if in.Mode != "" {
		var ok bool
		if mode, ok = search.ParseMode(in.Mode); !ok {
			return search.SearchQuery{}, NewInvalidParamsError(fmt.Sprintf("unknown mode %q (want exact or fuzzy)", in.Mode))
		}
	}
	field, ok := search.ParseSortField(in.Sort)
	if !ok {
		return search.SearchQuery{}, NewInvalidParamsError(fmt.Sprintf("unknown sort %q", in.Sort))
	}

	q := search.SearchQuery{
		Text:   in.Query,
		Mode:   mode,
		Limit:  in.Limit,
		Offset: in.Offset,
		Sort:   search.Sort{Field: field, Desc: in.Desc},
		Filters: search.Filters{
			FileTypes:  in.FileTypes,
			SizeMin:    in.SizeMin,
			SizeMax:    in.SizeMax,
			ActiveOnly: in.ActiveOnly,
		},
	}

	var err error
	if q.Filters.DateFrom, err = parseDate(in.DateFrom, false); err != nil {
		return search.SearchQuery{}, err
	}
	if q.Filters.DateTo, err = parseDate(in.DateTo, true); err != nil {
		return search.SearchQuery{}, err
	}
	return q, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. A bare end date covers the
// whole day.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, NewInvalidParamsError(fmt.Sprintf("invalid date %q (want YYYY-MM-DD)", s))
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func toSearchOutput(resp *search.SearchResponse) *SearchOutput {
	out := &SearchOutput{
		Query:      resp.Query,
		Total:      resp.Total,
		Page:       resp.Page,
		TotalPages: resp.TotalPages,
		HasNext:    resp.HasNext,
		CacheHit:   resp.CacheHit,
		ElapsedMS:  float64(resp.Elapsed) / float64(time.Millisecond),
		Results:    make([]SearchResultOutput, 0, len(resp.Results)),
	}
	for _, r := range resp.Results {
		out.Results = append(out.Results, SearchResultOutput{
			Path:     r.Path,
			Name:     r.Name,
			Snippet:  r.Snippet,
			Score:    r.Score,
			Status:   string(r.Status),
			Size:     r.Size,
			Modified: r.ModTime.Format(time.RFC3339),
			FileType: r.FileType,
		})
	}
	return out
}

func toIndexOutput(stats *index.IndexStats) *IndexOutput {
	return &IndexOutput{
		Status:      string(stats.Status),
		Scanned:     stats.Scanned,
		Added:       stats.Added,
		Updated:     stats.Updated,
		Deleted:     stats.Deleted,
		Unchanged:   stats.Unchanged,
		Failed:      stats.Failed,
		ElapsedMS:   stats.Elapsed.Milliseconds(),
		Unreachable: stats.Unreachable,
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
