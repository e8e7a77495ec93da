package editor

import (
	"fmt"
	"strings"

	"formedit/engine/internal/filter"
	"formedit/engine/internal/sheetxml"
)

type FieldMergeResult struct {
	Success       bool     `json:"success"`
	FieldsCopied  int      `json:"fields_copied"`
	ChoicesCopied int      `json:"choices_copied"`
	Missing       []string `json:"missing,omitempty"`
	Skipped       []string `json:"skipped,omitempty"`
}

type FilterMergeResult struct {
	Success       bool     `json:"success"`
	MergedRows    int      `json:"merged_rows"`
	CopiedChoices int      `json:"copied_choices"`
	Skipped       []string `json:"skipped,omitempty"`
}

// MergeFieldsFromSource copies the named survey fields from the workbook at
// sourcePath, along with the choice lists they reference. Fields are found
// by exact name, then by label substring. Fields whose name already exists
// here are skipped.
func (e *Editor) MergeFieldsFromSource(sourcePath string, fieldNames []string) (*FieldMergeResult, error) {
	m, err := e.openMerge(sourcePath)
	if err != nil {
		e.record("merge_fields", false, "%v", err)
		return nil, err
	}
	result := &FieldMergeResult{}
	var rows []*sheetxml.Row
	picked := map[*sheetxml.Row]bool{}
	for _, fieldName := range fieldNames {
		row, _ := findField(m.src, fieldName)
		if row == nil {
			result.Missing = append(result.Missing, fieldName)
			continue
		}
		if picked[row] {
			continue
		}
		picked[row] = true
		rows = append(rows, row)
	}
	rows, result.Skipped = m.withoutExisting(rows)
	result.FieldsCopied = m.copyFields(rows, sheetxml.StyleAdded)
	result.ChoicesCopied = m.copyChoices(rows, sheetxml.StyleAdded)
	result.Success = result.FieldsCopied > 0
	e.record("merge_fields", result.Success, "copied %d field(s) and %d choice(s) from %s", result.FieldsCopied, result.ChoicesCopied, sourcePath)
	return result, nil
}

// MergeByFilterFromSource copies every source survey field matching groups,
// with their choice lists, tagging them as merged.
func (e *Editor) MergeByFilterFromSource(sourcePath string, groups filter.Groups) (*FilterMergeResult, error) {
	matcher, err := filter.Compile(groups)
	if err != nil {
		e.record("merge_by_filter", false, "%v", err)
		return nil, err
	}
	m, err := e.openMerge(sourcePath)
	if err != nil {
		e.record("merge_by_filter", false, "%v", err)
		return nil, err
	}
	var rows []*sheetxml.Row
	for _, row := range m.src.table.DataRows() {
		if matcher.Match(row.Values(m.src.headers)) {
			rows = append(rows, row)
		}
	}
	result := &FilterMergeResult{}
	rows, result.Skipped = m.withoutExisting(rows)
	result.MergedRows = m.copyFields(rows, sheetxml.StyleMerged)
	result.CopiedChoices = m.copyChoices(rows, sheetxml.StyleMerged)
	result.Success = true
	e.record("merge_by_filter", true, "merged %d row(s) and %d choice(s) from %s", result.MergedRows, result.CopiedChoices, sourcePath)
	return result, nil
}

type merge struct {
	e      *Editor
	source *sheetxml.Document
	src    sheet
	dst    sheet
}

func (e *Editor) openMerge(sourcePath string) (*merge, error) {
	source, err := sheetxml.Open(sourcePath, e.sourceOpts...)
	if err != nil {
		return nil, err
	}
	src, err := openSheet(source, sheetxml.WorksheetSurvey)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if err := requireColumns(src, colType, colName); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	dst, err := openSheet(e.doc, sheetxml.WorksheetSurvey)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	if err := requireColumns(dst, colType, colName); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	return &merge{e: e, source: source, src: src, dst: dst}, nil
}

// withoutExisting drops rows whose name is already a destination field.
func (m *merge) withoutExisting(rows []*sheetxml.Row) ([]*sheetxml.Row, []string) {
	existing := map[string]bool{}
	dstName := m.dst.col(colName)
	for _, row := range m.dst.table.DataRows() {
		if name := cellValue(row, dstName); name != "" {
			existing[name] = true
		}
	}
	srcName := m.src.col(colName)
	var kept []*sheetxml.Row
	var skipped []string
	for _, row := range rows {
		name := cellValue(row, srcName)
		if name != "" && existing[name] {
			skipped = append(skipped, name)
			continue
		}
		kept = append(kept, row)
	}
	return kept, skipped
}

func (m *merge) copyFields(rows []*sheetxml.Row, style string) int {
	if len(rows) == 0 {
		return 0
	}
	copied := m.e.copyRows(rows, m.src.headers, m.dst, style)
	m.e.logger.Info("editor.merge_fields", "rows", copied, "style", style)
	return copied
}

// copyChoices copies each list referenced by rows once. A list the
// destination sheet already holds is left alone.
func (m *merge) copyChoices(rows []*sheetxml.Row, style string) int {
	typeCol := m.src.col(colType)
	var lists []string
	seen := map[string]bool{}
	for _, row := range rows {
		if list, ok := ChoiceListFromType(cellValue(row, typeCol)); ok && !seen[list] {
			seen[list] = true
			lists = append(lists, list)
		}
	}
	if len(lists) == 0 {
		return 0
	}
	dstSheets := choiceSheets(m.e.doc)
	copied := 0
	for _, src := range choiceSheets(m.source) {
		srcList := src.col(listNameAliases...)
		if srcList < 0 {
			continue
		}
		dst, ok := matchChoiceSheet(src.ws.Name(), dstSheets)
		if !ok {
			m.e.logger.Warn("merge.choice_sheet_missing", "source_sheet", src.ws.Name())
			continue
		}
		dstList := dst.col(listNameAliases...)
		if dstList < 0 {
			m.e.logger.Warn("merge.choice_sheet_skipped", "worksheet", dst.ws.Name(), "reason", "no list name column")
			continue
		}
		wanted := map[string]bool{}
		for _, list := range lists {
			if sheetHasList(dst, dstList, list) {
				m.e.logger.Info("merge.choice_list_exists", "worksheet", dst.ws.Name(), "list", list)
				continue
			}
			wanted[list] = true
		}
		var picked []*sheetxml.Row
		for _, row := range src.table.DataRows() {
			if wanted[strings.TrimSpace(cellValue(row, srcList))] {
				picked = append(picked, row)
			}
		}
		if len(picked) > 0 {
			copied += m.e.copyRows(picked, src.headers, dst, style)
		}
	}
	return copied
}

func matchChoiceSheet(name string, sheets []sheet) (sheet, bool) {
	for _, s := range sheets {
		if s.ws.Name() == name {
			return s, true
		}
	}
	if len(sheets) > 0 {
		return sheets[0], true
	}
	return sheet{}, false
}

// copyRows appends copies of rows to dst with source styling removed and
// style applied, then resets the row count to the actual number of rows.
// Rows are remapped by header name when the header layouts differ.
func (e *Editor) copyRows(rows []*sheetxml.Row, srcHeaders []string, dst sheet, style string) int {
	e.doc.EnsureHighlightStyles()
	sameLayout := sameHeaders(srcHeaders, dst.headers)
	for _, row := range rows {
		var copied *sheetxml.Row
		if sameLayout {
			copied = e.doc.ImportRow(row)
		} else {
			copied = e.doc.NewRowFromCells(remapCells(row, srcHeaders, dst.headers))
		}
		copied.ClearStyles()
		copied.SetStyle(style)
		dst.table.AppendRow(copied)
	}
	dst.table.SyncRowCount()
	e.doc.MarkModified()
	return len(rows)
}

func sameHeaders(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(strings.TrimSpace(a[i]), strings.TrimSpace(b[i])) {
			return false
		}
	}
	return true
}

func remapCells(row *sheetxml.Row, srcHeaders, dstHeaders []string) []sheetxml.CellData {
	cells := make([]sheetxml.CellData, len(dstHeaders))
	for i, header := range dstHeaders {
		cells[i].Type = sheetxml.TypeString
		if strings.TrimSpace(header) == "" {
			continue
		}
		srcCol := sheetxml.HeaderIndex(srcHeaders, header)
		if srcCol < 0 {
			continue
		}
		if cell, ok := row.CellAt(srcCol); ok {
			cells[i].Value = cell.Text()
			if typ := cell.Type(); typ != "" {
				cells[i].Type = typ
			}
		}
	}
	return cells
}
