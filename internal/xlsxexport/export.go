package xlsxexport

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"formedit/engine/internal/sheetxml"
)

// Result summarizes a written review workbook.
type Result struct {
	Path        string `json:"path"`
	Sheets      int    `json:"sheets"`
	Rows        int    `json:"rows"`
	Highlighted int    `json:"highlighted"`
}

// PathFor names the .xlsx copy of a workbook next to it.
func PathFor(xmlPath string) string {
	return strings.TrimSuffix(xmlPath, filepath.Ext(xmlPath)) + ".xlsx"
}

// Export writes doc as an .xlsx workbook. Highlight styles on rows and
// cells become solid fills in the document's palette; a cell style wins
// over its row style. Cell positions follow explicit indexes.
func Export(doc *sheetxml.Document, path string) (*Result, error) {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := newStyles(f, doc.Palette())
	if err != nil {
		return nil, err
	}
	result := &Result{Path: path}
	const defaultSheet = "Sheet1"
	written := map[string]bool{}
	for _, ws := range doc.Worksheets() {
		name := ws.Name()
		if name == "" || written[name] {
			continue
		}
		if len(written) == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return nil, fmt.Errorf("sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		written[name] = true
		result.Sheets++
		table, ok := ws.Table()
		if !ok {
			continue
		}
		for r, row := range table.Rows() {
			n, err := writeRow(f, name, r+1, row, styles, r == 0)
			if err != nil {
				return nil, err
			}
			result.Rows++
			result.Highlighted += n
		}
	}
	if err := f.SaveAs(path); err != nil {
		return nil, err
	}
	return result, nil
}

type styleSet struct {
	header int
	fills  map[string]int
}

func newStyles(f *excelize.File, palette sheetxml.Palette) (styleSet, error) {
	set := styleSet{fills: map[string]int{}}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return set, err
	}
	set.header = header
	for _, id := range []string{sheetxml.StyleAdded, sheetxml.StyleModified, sheetxml.StyleMerged} {
		color, ok := palette.Color(id)
		if !ok {
			continue
		}
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{
				Type:    "pattern",
				Color:   []string{strings.TrimPrefix(color, "#")},
				Pattern: 1,
			},
		})
		if err != nil {
			return set, fmt.Errorf("style %s: %w", id, err)
		}
		set.fills[id] = style
	}
	return set, nil
}

// writeRow writes one row and returns how many cells were filled.
func writeRow(f *excelize.File, sheet string, rowNum int, row *sheetxml.Row, styles styleSet, header bool) (int, error) {
	rowFill, rowHighlighted := styles.fills[row.StyleID()]
	highlighted := 0
	cells := row.Cells()
	for i, pos := range row.Positions() {
		cell := cells[i]
		ref, err := excelize.CoordinatesToCellName(pos+1, rowNum)
		if err != nil {
			return highlighted, err
		}
		if err := f.SetCellValue(sheet, ref, typedValue(cell)); err != nil {
			return highlighted, err
		}
		style := 0
		switch {
		case header:
			style = styles.header
		case styles.fills[cell.StyleID()] != 0:
			style = styles.fills[cell.StyleID()]
		case rowHighlighted:
			style = rowFill
		}
		if style == 0 {
			continue
		}
		if err := f.SetCellStyle(sheet, ref, ref, style); err != nil {
			return highlighted, err
		}
		if !header {
			highlighted++
		}
	}
	return highlighted, nil
}

func typedValue(cell *sheetxml.Cell) any {
	text := cell.Text()
	switch cell.Type() {
	case sheetxml.TypeNumber:
		if n, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return n
		}
	case sheetxml.TypeBoolean:
		return strings.TrimSpace(text) == "1"
	}
	return text
}
