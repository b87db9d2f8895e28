// Package parser extracts searchable text from files.
//
// Parsers are stateless and safe for concurrent use. A Registry picks the
// parser for a path by extension; the index engine hands the same Registry to
// every worker.
package parser

//go:generate mockgen -source=parser.go -destination=../mocks/mock_parser.go -package=mocks

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// Result is the extracted content of one file.
type Result struct {
	Content  string
	Metadata map[string]string
}

// Parser extracts content from the files it supports.
type Parser interface {
	// Name identifies the parser in logs.
	Name() string

	// Supports reports whether the parser handles path, judged by name only.
	Supports(path string) bool

	// Parse reads path and returns its content. Implementations should
	// return promptly once ctx is done.
	Parse(ctx context.Context, path string) (*Result, error)
}

// Registry maps paths to parsers. It is built once and then only read.
type Registry struct {
	parsers []Parser
}

// NewRegistry creates a registry. Earlier parsers win when several support a path.
func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: append([]Parser(nil), parsers...)}
}

// DefaultRegistry returns the registry with every built-in parser.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewTextParser(),
		NewPDFParser(),
		NewDocxParser(),
		NewXlsxParser(),
		NewPptxParser(),
	)
}

// For returns the parser for path, or nil.
func (r *Registry) For(path string) Parser {
	for _, p := range r.parsers {
		if p.Supports(path) {
			return p
		}
	}
	return nil
}

// Supports reports whether any parser handles path.
func (r *Registry) Supports(path string) bool {
	return r.For(path) != nil
}

// Parse dispatches to the parser for path. Failures are ERR_207 DocErrors.
func (r *Registry) Parse(ctx context.Context, path string) (*Result, error) {
	p := r.For(path)
	if p == nil {
		return nil, docerrors.ParseError(path,
			fmt.Errorf("no parser for extension %q", filepath.Ext(path)))
	}
	return p.Parse(ctx, path)
}

// Extensions lists every extension the registered parsers claim, for help output.
func (r *Registry) Extensions() []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range r.parsers {
		lister, ok := p.(interface{ Extensions() []string })
		if !ok {
			continue
		}
		for _, ext := range lister.Extensions() {
			if !seen[ext] {
				seen[ext] = true
				out = append(out, ext)
			}
		}
	}
	return out
}

func extOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
