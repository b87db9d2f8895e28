package parser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// scannedCharsPerPage is the average text per page below which a PDF is
// reported as a likely scan.
const scannedCharsPerPage = 50

// PDFParser extracts the text layer of PDF files. Pages are separated by a
// "Page i/n" line. Image-only pages contribute nothing.
type PDFParser struct{}

// NewPDFParser creates a PDFParser.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Name implements Parser.
func (p *PDFParser) Name() string {
	return "pdf"
}

// Supports implements Parser.
func (p *PDFParser) Supports(path string) bool {
	return extOf(path) == ".pdf"
}

// Extensions lists the supported extensions.
func (p *PDFParser) Extensions() []string {
	return []string{".pdf"}
}

// Parse implements Parser. The PDF library panics on some malformed input;
// those panics surface as parse failures.
func (p *PDFParser) Parse(ctx context.Context, path string) (res *Result, err error) {
	if err := ctx.Err(); err != nil {
		return nil, docerrors.TimeoutError(path, err)
	}

	defer func() {
		if r := recover(); r != nil {
			res, err = nil, docerrors.ParseError(path, fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, docerrors.ParseError(path, err)
	}
	defer func() { _ = f.Close() }()

	pages := r.NumPage()
	var out []string
	chars := 0
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, docerrors.TimeoutError(path, err)
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, docerrors.ParseError(path, fmt.Errorf("page %d: %w", i, err))
		}
		text = strings.TrimSpace(text)
		chars += len([]rune(text))

		out = append(out, fmt.Sprintf("Page %d/%d", i, pages))
		if text != "" {
			out = append(out, text)
		}
	}

	content := strings.Join(out, "\n")
	meta := extractedMetadata(ContentTypeDocument, content)
	meta["pages"] = strconv.Itoa(pages)
	meta["is_scanned"] = strconv.FormatBool(pages > 0 && chars/pages < scannedCharsPerPage)

	info := r.Trailer().Key("Info")
	for key, name := range map[string]string{
		"title":    "Title",
		"author":   "Author",
		"subject":  "Subject",
		"keywords": "Keywords",
		"creator":  "Creator",
		"producer": "Producer",
	} {
		if v := strings.TrimSpace(info.Key(name).Text()); v != "" {
			meta[key] = v
		}
	}

	return &Result{Content: content, Metadata: meta}, nil
}
