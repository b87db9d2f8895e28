package parser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// XlsxParser extracts Excel workbooks sheet by sheet, one row per line.
type XlsxParser struct{}

// NewXlsxParser creates an XlsxParser.
func NewXlsxParser() *XlsxParser {
	return &XlsxParser{}
}

// Name implements Parser.
func (p *XlsxParser) Name() string {
	return "xlsx"
}

// Supports implements Parser.
func (p *XlsxParser) Supports(path string) bool {
	switch extOf(path) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// Extensions lists the supported extensions.
func (p *XlsxParser) Extensions() []string {
	return []string{".xlsx", ".xlsm"}
}

// Parse implements Parser.
func (p *XlsxParser) Parse(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, docerrors.TimeoutError(path, err)
	}

	f, err := excelize.OpenFile(path, excelize.Options{UnzipSizeLimit: maxPartSize * 4})
	if err != nil {
		return nil, docerrors.ParseError(path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	var out []string
	cells := 0
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, docerrors.TimeoutError(path, err)
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, docerrors.ParseError(path, fmt.Errorf("sheet %q: %w", sheet, err))
		}

		out = append(out, "[Sheet: "+sheet+"]")
		for _, row := range rows {
			for _, c := range row {
				if c != "" {
					cells++
				}
			}
			if line := joinCells(row); line != "" {
				out = append(out, line)
			}
		}
	}

	content := strings.Join(out, "\n")
	meta := extractedMetadata(ContentTypeSpreadsheet, content)
	meta["sheets"] = strconv.Itoa(len(sheets))
	meta["sheet_names"] = strings.Join(sheets, ",")
	meta["total_cells"] = strconv.Itoa(cells)

	if props, err := f.GetDocProps(); err == nil && props != nil {
		for key, v := range map[string]string{
			"title":            props.Title,
			"author":           props.Creator,
			"subject":          props.Subject,
			"keywords":         props.Keywords,
			"comments":         props.Description,
			"created":          props.Created,
			"modified":         props.Modified,
			"last_modified_by": props.LastModifiedBy,
		} {
			if v = strings.TrimSpace(v); v != "" {
				meta[key] = v
			}
		}
	}

	return &Result{Content: content, Metadata: meta}, nil
}
