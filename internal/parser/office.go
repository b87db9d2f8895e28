package parser

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxPartSize bounds how much of one package part is decompressed.
const maxPartSize = 64 << 20

// ooxml is an opened Office Open XML package (.docx, .pptx).
type ooxml struct {
	zr    *zip.ReadCloser
	parts map[string]*zip.File
}

func openOOXML(path string) (*ooxml, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("not an Office Open XML package: %w", err)
	}
	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[f.Name] = f
	}
	return &ooxml{zr: zr, parts: parts}, nil
}

func (o *ooxml) Close() error {
	return o.zr.Close()
}

func (o *ooxml) has(name string) bool {
	_, ok := o.parts[name]
	return ok
}

// names returns the part names with the given prefix and suffix.
func (o *ooxml) names(prefix, suffix string) []string {
	var out []string
	for name := range o.parts {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			out = append(out, name)
		}
	}
	return out
}

// walk streams the XML tokens of one part to fn.
func (o *ooxml) walk(name string, fn func(xml.Token) error) error {
	f, ok := o.parts[name]
	if !ok {
		return fmt.Errorf("missing part %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(io.LimitReader(rc, maxPartSize))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := fn(tok); err != nil {
			return err
		}
	}
}

// relationship is one entry of a part's .rels file, Target resolved to a
// part name.
type relationship struct {
	Type   string
	Target string
}

// relationships returns the internal relationships of part by id.
func (o *ooxml) relationships(part string) map[string]relationship {
	dir, file := path.Split(part)
	relsName := dir + "_rels/" + file + ".rels"
	rels := make(map[string]relationship)
	if !o.has(relsName) {
		return rels
	}
	_ = o.walk(relsName, func(tok xml.Token) error {
		e, ok := tok.(xml.StartElement)
		if !ok || e.Name.Local != "Relationship" || attr(e, "TargetMode") == "External" {
			return nil
		}
		target := attr(e, "Target")
		if strings.HasPrefix(target, "/") {
			target = strings.TrimPrefix(target, "/")
		} else {
			target = path.Join(dir, target)
		}
		rels[attr(e, "Id")] = relationship{Type: attr(e, "Type"), Target: target}
		return nil
	})
	return rels
}

// corePropertyKeys maps docProps/core.xml elements to metadata keys.
var corePropertyKeys = map[string]string{
	"title":          "title",
	"creator":        "author",
	"subject":        "subject",
	"keywords":       "keywords",
	"description":    "comments",
	"created":        "created",
	"modified":       "modified",
	"lastModifiedBy": "last_modified_by",
}

// coreProperties copies the package's document properties into meta.
// A package without them is not an error.
func (o *ooxml) coreProperties(meta map[string]string) {
	if !o.has("docProps/core.xml") {
		return
	}
	var key string
	var text strings.Builder
	_ = o.walk("docProps/core.xml", func(tok xml.Token) error {
		switch t := tok.(type) {
		case xml.StartElement:
			key = corePropertyKeys[t.Name.Local]
			text.Reset()
		case xml.CharData:
			if key != "" {
				text.Write(t)
			}
		case xml.EndElement:
			if key != "" {
				if v := strings.TrimSpace(text.String()); v != "" {
					meta[key] = v
				}
				key = ""
			}
		}
		return nil
	})
}

// attr returns the value of the attribute with the given local name.
func attr(e xml.StartElement, local string) string {
	for _, a := range e.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// joinCells renders one table row, or "" when every cell is empty.
func joinCells(cells []string) string {
	for _, c := range cells {
		if c != "" {
			return strings.Join(cells, " | ")
		}
	}
	return ""
}

// extractedMetadata is the metadata every document parser reports.
func extractedMetadata(ct ContentType, content string) map[string]string {
	return map[string]string{
		"content_type": string(ct),
		"lines":        strconv.Itoa(countLines(content)),
		"characters":   strconv.Itoa(utf8.RuneCountInString(content)),
	}
}
