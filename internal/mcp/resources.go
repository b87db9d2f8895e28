package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docindex/internal/store"
)

const (
	// MaxResourceSize is the largest document text served as a resource (1MB).
	MaxResourceSize = 1024 * 1024

	// MaxResources caps how many documents are registered.
	MaxResources = 10000

	// LibrariesURI lists the library catalog.
	LibrariesURI = "docindex://libraries"
)

// RegisterResources registers the catalog and every active document of the
// default library as resources. Document resources serve the text stored
// in the index, so they stay readable after the source file moves.
func (s *Server) RegisterResources(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mcp.AddResource(&mcp.Resource{
		Name:        "libraries",
		URI:         LibrariesURI,
		Description: "Index libraries with their roots and document counts",
		MIMEType:    "application/json",
	}, s.handleLibraries)

	_, inst, err := s.instance(ctx, "")
	if err != nil {
		return 0, MapError(err)
	}
	known, err := inst.Store.KnownPaths(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}

	paths := make([]string, 0, len(known))
	for p := range known {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if len(paths) > MaxResources {
		s.logger.Warn("resources_truncated",
			slog.Int("documents", len(paths)),
			slog.Int("registered", MaxResources))
		paths = paths[:MaxResources]
	}

	for _, p := range paths {
		s.mcp.AddResource(&mcp.Resource{
			Name:        filepath.Base(p),
			URI:         documentURI(p),
			Description: fmt.Sprintf("%s (%s)", p, humanSize(known[p].Size)),
			MIMEType:    MimeTypeForPath(p),
		}, s.makeDocumentHandler(inst.Store, p))
	}

	s.logger.Info("resources_registered", slog.Int("count", len(paths)))
	return len(paths), nil
}

// documentURI returns the file:// URI of an absolute path.
func documentURI(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "file://" + p
}

func (s *Server) makeDocumentHandler(st store.Store, path string) mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return readDocument(ctx, st, path)
	}
}

// readDocument returns the indexed text of path.
func readDocument(ctx context.Context, st store.Store, path string) (*mcp.ReadResourceResult, error) {
	rec, err := st.Get(ctx, path)
	if err != nil {
		return nil, MapError(err)
	}
	if len(rec.Content) > MaxResourceSize {
		return nil, &MCPError{
			Code:    ErrCodeFileTooLarge,
			Message: fmt.Sprintf("document too large: %d bytes (max %d)", len(rec.Content), MaxResourceSize),
		}
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      documentURI(path),
			MIMEType: MimeTypeForPath(path),
			Text:     rec.Content,
		}},
	}, nil
}

func (s *Server) handleLibraries(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(s.catalog.List(), "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      LibrariesURI,
			MIMEType: "application/json",
			Text:     string(content),
		}},
	}, nil
}

// humanSize formats bytes as a human-readable string.
func humanSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
