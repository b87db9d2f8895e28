package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// ContentType is a coarse classification stored in document metadata.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeCode     ContentType = "code"
	ContentTypeConfig   ContentType = "config"
	ContentTypeData     ContentType = "data"

	ContentTypeDocument     ContentType = "document"
	ContentTypeSpreadsheet  ContentType = "spreadsheet"
	ContentTypePresentation ContentType = "presentation"
)

// textExtensions maps each supported extension to its content type.
var textExtensions = map[string]ContentType{
	// Plain text
	".txt": ContentTypeText,
	".log": ContentTypeText,
	".rst": ContentTypeText,

	// Markdown
	".md":       ContentTypeMarkdown,
	".markdown": ContentTypeMarkdown,
	".mdx":      ContentTypeMarkdown,

	// Data
	".csv":  ContentTypeData,
	".tsv":  ContentTypeData,
	".json": ContentTypeData,
	".xml":  ContentTypeData,

	// Config
	".yaml":       ContentTypeConfig,
	".yml":        ContentTypeConfig,
	".toml":       ContentTypeConfig,
	".ini":        ContentTypeConfig,
	".conf":       ContentTypeConfig,
	".cfg":        ContentTypeConfig,
	".properties": ContentTypeConfig,

	// Code and markup
	".html": ContentTypeCode,
	".htm":  ContentTypeCode,
	".css":  ContentTypeCode,
	".go":   ContentTypeCode,
	".py":   ContentTypeCode,
	".js":   ContentTypeCode,
	".ts":   ContentTypeCode,
	".java": ContentTypeCode,
	".c":    ContentTypeCode,
	".h":    ContentTypeCode,
	".sh":   ContentTypeCode,
	".sql":  ContentTypeCode,
}

// binarySniffLen is how much of a file is checked for NUL bytes.
const binarySniffLen = 8000

// ErrUndecodable is returned when no known encoding yields clean text.
var ErrUndecodable = errors.New("unable to decode with any known encoding")

// ErrBinary is returned for files that look binary.
var ErrBinary = errors.New("file appears to be binary")

// TextParser reads plain-text formats. Decoding tries UTF-8, then UTF-16 when
// a byte order mark is present, then GBK and GB18030.
type TextParser struct{}

// NewTextParser creates a TextParser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Name implements Parser.
func (p *TextParser) Name() string {
	return "text"
}

// Supports implements Parser.
func (p *TextParser) Supports(path string) bool {
	_, ok := textExtensions[extOf(path)]
	return ok
}

// Extensions returns the supported extensions in sorted order.
func (p *TextParser) Extensions() []string {
	out := make([]string, 0, len(textExtensions))
	for ext := range textExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Parse implements Parser.
func (p *TextParser) Parse(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, docerrors.TimeoutError(path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, docerrors.ParseError(path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, docerrors.TimeoutError(path, err)
	}

	content, enc, err := Decode(data)
	if err != nil {
		return nil, docerrors.ParseError(path, err)
	}

	return &Result{
		Content: content,
		Metadata: map[string]string{
			"encoding":     enc,
			"size":         strconv.Itoa(len(data)),
			"lines":        strconv.Itoa(countLines(content)),
			"characters":   strconv.Itoa(utf8.RuneCountInString(content)),
			"content_type": string(textExtensions[extOf(path)]),
		},
	}, nil
}

// Decode converts raw bytes to a UTF-8 string and names the source encoding.
func Decode(data []byte) (string, string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		data = data[3:]
		if utf8.Valid(data) {
			return string(data), "utf-8", nil
		}
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		s, err := decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), data)
		if err != nil {
			return "", "", fmt.Errorf("utf-16: %w", err)
		}
		return s, "utf-16", nil
	}

	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return "", "", ErrBinary
	}

	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	candidates := []struct {
		name string
		enc  encoding.Encoding
	}{
		{"gbk", simplifiedchinese.GBK},
		{"gb18030", simplifiedchinese.GB18030},
	}
	for _, c := range candidates {
		if s, err := decodeWith(c.enc, data); err == nil {
			return s, c.name, nil
		}
	}

	return "", "", ErrUndecodable
}

// decodeWith decodes data, rejecting output that contains replacement
// characters, which the x/text decoders emit for invalid input.
func decodeWith(enc encoding.Encoding, data []byte) (string, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", err
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", ErrUndecodable
	}
	return string(out), nil
}

// countLines counts lines the way a text editor does: a trailing newline
// does not start a new line.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
