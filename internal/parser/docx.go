package parser

import (
	"context"
	"encoding/xml"
	"sort"
	"strconv"
	"strings"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// DocxParser extracts Word documents: body paragraphs and tables in
// document order, then headers and footers.
type DocxParser struct{}

// NewDocxParser creates a DocxParser.
func NewDocxParser() *DocxParser {
	return &DocxParser{}
}

// Name implements Parser.
func (p *DocxParser) Name() string {
	return "docx"
}

// Supports implements Parser.
func (p *DocxParser) Supports(path string) bool {
	return extOf(path) == ".docx"
}

// Extensions lists the supported extensions.
func (p *DocxParser) Extensions() []string {
	return []string{".docx"}
}

// Parse implements Parser.
func (p *DocxParser) Parse(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, docerrors.TimeoutError(path, err)
	}

	pkg, err := openOOXML(path)
	if err != nil {
		return nil, docerrors.ParseError(path, err)
	}
	defer pkg.Close()

	body := &wordText{}
	if err := pkg.walk("word/document.xml", body.token); err != nil {
		return nil, docerrors.ParseError(path, err)
	}
	blocks := body.blocks

	for _, part := range []struct{ prefix, label string }{
		{"word/header", "Header"},
		{"word/footer", "Footer"},
	} {
		names := pkg.names(part.prefix, ".xml")
		sort.Strings(names)
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return nil, docerrors.TimeoutError(path, err)
			}
			hf := &wordText{}
			if err := pkg.walk(name, hf.token); err != nil {
				return nil, docerrors.ParseError(path, err)
			}
			if text := strings.Join(hf.blocks, "\n"); text != "" {
				blocks = append(blocks, part.label+": "+text)
			}
		}
	}

	content := strings.Join(blocks, "\n")
	meta := extractedMetadata(ContentTypeDocument, content)
	meta["paragraphs"] = strconv.Itoa(body.paragraphs)
	meta["tables"] = strconv.Itoa(body.tables)
	pkg.coreProperties(meta)

	return &Result{Content: content, Metadata: meta}, nil
}

// wordText collects the text of a WordprocessingML part. Tables render one
// row per line with cells joined by " | "; nested tables fold into the
// enclosing cell.
type wordText struct {
	blocks     []string
	paragraphs int
	tables     int

	inText   bool
	para     strings.Builder
	tblDepth int
	cell     strings.Builder
	row      []string
	rows     []string
}

func (w *wordText) token(tok xml.Token) error {
	switch t := tok.(type) {
	case xml.StartElement:
		switch t.Name.Local {
		case "p":
			w.para.Reset()
		case "t":
			w.inText = true
		case "tab":
			w.para.WriteByte('\t')
		case "br", "cr":
			w.para.WriteByte('\n')
		case "tbl":
			w.tblDepth++
			if w.tblDepth == 1 {
				w.rows = nil
			}
		case "tr":
			if w.tblDepth == 1 {
				w.row = nil
			}
		case "tc":
			if w.tblDepth == 1 {
				w.cell.Reset()
			}
		}

	case xml.CharData:
		if w.inText {
			w.para.Write(t)
		}

	case xml.EndElement:
		switch t.Name.Local {
		case "t":
			w.inText = false
		case "p":
			text := strings.TrimSpace(w.para.String())
			switch {
			case w.tblDepth == 0:
				w.paragraphs++
				if text != "" {
					w.blocks = append(w.blocks, text)
				}
			case text != "":
				if w.cell.Len() > 0 {
					w.cell.WriteByte(' ')
				}
				w.cell.WriteString(text)
			}
		case "tc":
			if w.tblDepth == 1 {
				w.row = append(w.row, w.cell.String())
			}
		case "tr":
			if w.tblDepth == 1 {
				if line := joinCells(w.row); line != "" {
					w.rows = append(w.rows, line)
				}
			}
		case "tbl":
			if w.tblDepth == 1 {
				w.tables++
				if len(w.rows) > 0 {
					w.blocks = append(w.blocks, strings.Join(w.rows, "\n"))
				}
			}
			w.tblDepth--
		}
	}
	return nil
}
