package parser

import (
	"context"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// PptxParser extracts PowerPoint presentations slide by slide, including
// tables and speaker notes.
type PptxParser struct{}

// NewPptxParser creates a PptxParser.
func NewPptxParser() *PptxParser {
	return &PptxParser{}
}

// Name implements Parser.
func (p *PptxParser) Name() string {
	return "pptx"
}

// Supports implements Parser.
func (p *PptxParser) Supports(path string) bool {
	return extOf(path) == ".pptx"
}

// Extensions lists the supported extensions.
func (p *PptxParser) Extensions() []string {
	return []string{".pptx"}
}

// Parse implements Parser.
func (p *PptxParser) Parse(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, docerrors.TimeoutError(path, err)
	}

	pkg, err := openOOXML(path)
	if err != nil {
		return nil, docerrors.ParseError(path, err)
	}
	defer pkg.Close()

	slides := slideOrder(pkg)
	if len(slides) == 0 && !pkg.has("ppt/presentation.xml") {
		return nil, docerrors.ParseError(path, fmt.Errorf("no presentation part"))
	}

	var out []string
	for i, slide := range slides {
		if err := ctx.Err(); err != nil {
			return nil, docerrors.TimeoutError(path, err)
		}

		st := &slideText{}
		if err := pkg.walk(slide, st.token); err != nil {
			return nil, docerrors.ParseError(path, err)
		}
		out = append(out, fmt.Sprintf("Slide %d/%d", i+1, len(slides)))
		out = append(out, st.lines...)

		for _, rel := range pkg.relationships(slide) {
			if !strings.HasSuffix(rel.Type, "/notesSlide") || !pkg.has(rel.Target) {
				continue
			}
			notes := &slideText{}
			if err := pkg.walk(rel.Target, notes.token); err != nil {
				return nil, docerrors.ParseError(path, err)
			}
			if text := strings.Join(notes.lines, " "); text != "" {
				out = append(out, "Notes: "+text)
			}
		}
	}

	content := strings.Join(out, "\n")
	meta := extractedMetadata(ContentTypePresentation, content)
	meta["slides"] = strconv.Itoa(len(slides))
	pkg.coreProperties(meta)

	return &Result{Content: content, Metadata: meta}, nil
}

// slideOrder returns slide part names in presentation order, falling back
// to slide number when the presentation part lists none.
func slideOrder(pkg *ooxml) []string {
	const main = "ppt/presentation.xml"

	var slides []string
	if pkg.has(main) {
		rels := pkg.relationships(main)
		_ = pkg.walk(main, func(tok xml.Token) error {
			e, ok := tok.(xml.StartElement)
			if !ok || e.Name.Local != "sldId" {
				return nil
			}
			for _, a := range e.Attr {
				// r:id, not the numeric id attribute.
				if a.Name.Local == "id" && a.Name.Space != "" {
					if rel, ok := rels[a.Value]; ok && pkg.has(rel.Target) {
						slides = append(slides, rel.Target)
					}
				}
			}
			return nil
		})
	}
	if len(slides) > 0 {
		return slides
	}

	slides = pkg.names("ppt/slides/slide", ".xml")
	sort.Slice(slides, func(i, j int) bool {
		return slideNumber(slides[i]) < slideNumber(slides[j])
	})
	return slides
}

func slideNumber(name string) int {
	n, _ := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml"))
	return n
}

// skippedPlaceholders carry slide furniture rather than content.
var skippedPlaceholders = map[string]bool{
	"sldNum": true,
	"sldImg": true,
	"dt":     true,
	"ftr":    true,
	"hdr":    true,
}

// slideText collects the text of a slide or notes part, one shape per line
// group. Title placeholders are prefixed, table rows are joined by " | ".
type slideText struct {
	lines []string

	inShape bool
	kind    string
	shape   []string

	inText bool
	para   strings.Builder

	inCell bool
	cell   strings.Builder
	row    []string
}

func (s *slideText) token(tok xml.Token) error {
	switch t := tok.(type) {
	case xml.StartElement:
		switch t.Name.Local {
		case "sp":
			s.inShape, s.kind, s.shape = true, "", nil
		case "ph":
			if s.inShape {
				s.kind = attr(t, "type")
				if s.kind == "" {
					s.kind = "body"
				}
			}
		case "p":
			s.para.Reset()
		case "t":
			s.inText = true
		case "br":
			s.para.WriteByte('\n')
		case "tr":
			s.row = nil
		case "tc":
			s.inCell = true
			s.cell.Reset()
		}

	case xml.CharData:
		if s.inText {
			s.para.Write(t)
		}

	case xml.EndElement:
		switch t.Name.Local {
		case "t":
			s.inText = false
		case "p":
			text := strings.TrimSpace(s.para.String())
			switch {
			case text == "":
			case s.inCell:
				if s.cell.Len() > 0 {
					s.cell.WriteByte(' ')
				}
				s.cell.WriteString(text)
			case s.inShape:
				s.shape = append(s.shape, text)
			default:
				s.lines = append(s.lines, text)
			}
		case "tc":
			s.inCell = false
			s.row = append(s.row, s.cell.String())
		case "tr":
			if line := joinCells(s.row); line != "" {
				s.lines = append(s.lines, line)
			}
		case "sp":
			s.inShape = false
			s.flushShape()
		}
	}
	return nil
}

func (s *slideText) flushShape() {
	if skippedPlaceholders[s.kind] || len(s.shape) == 0 {
		return
	}
	text := strings.Join(s.shape, "\n")
	if s.kind == "title" || s.kind == "ctrTitle" {
		text = "Title: " + text
	}
	s.lines = append(s.lines, text)
}
