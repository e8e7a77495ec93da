package editor

import (
	"fmt"
	"strings"

	"formedit/engine/internal/filter"
	"formedit/engine/internal/sheetxml"
)

// ModifyFieldProperty sets propertyName on the row whose keyFieldName
// column equals keyFieldValue. On the settings worksheet the lone data row
// is targeted and the key is ignored.
func (e *Editor) ModifyFieldProperty(worksheetName, keyFieldName, keyFieldValue, propertyName, value string) bool {
	s, err := openSheet(e.doc, worksheetName)
	if err != nil {
		e.record("modify_field", false, "%v", err)
		return false
	}
	propCol := s.col(propertyName)
	if propCol < 0 {
		e.record("modify_field", false, "column %q not found in %q", propertyName, worksheetName)
		return false
	}
	var target *sheetxml.Row
	rows := s.table.DataRows()
	if strings.EqualFold(worksheetName, sheetxml.WorksheetSettings) {
		if len(rows) > 0 {
			target = rows[0]
		}
	} else {
		keyCol := s.col(keyFieldName)
		if keyCol < 0 {
			e.record("modify_field", false, "column %q not found in %q", keyFieldName, worksheetName)
			return false
		}
		for _, row := range rows {
			if cellValue(row, keyCol) == keyFieldValue {
				target = row
				break
			}
		}
	}
	if target == nil {
		e.record("modify_field", false, "no row with %s=%q in %q", keyFieldName, keyFieldValue, worksheetName)
		return false
	}
	e.doc.SetSparseCell(target, propCol, value, sheetxml.StyleModified)
	e.record("modify_field", true, "set %s on %s=%q in %q", propertyName, keyFieldName, keyFieldValue, worksheetName)
	return true
}

// RemoveFieldByName removes a survey field, matched by exact name or, as a
// fallback, by label substring. References to it are blanked and its
// choice list is removed from every choice worksheet.
func (e *Editor) RemoveFieldByName(fieldName string) bool {
	survey, err := openSheet(e.doc, sheetxml.WorksheetSurvey)
	if err != nil {
		e.record("remove_field", false, "%v", err)
		return false
	}
	row, matchedBy := findField(survey, fieldName)
	if row == nil {
		e.record("remove_field", false, "field %q not found", fieldName)
		return false
	}
	name := cellValue(row, survey.col(colName))
	if name == "" {
		name = fieldName
	}
	cleared, cascaded := e.removeField(survey, row, name)
	e.record("remove_field", true, "removed %q (matched by %s), cleared %d reference(s), removed %d choice(s)",
		name, matchedBy, cleared, cascaded)
	return true
}

// FilterRemoveResult reports a filtered bulk removal.
type FilterRemoveResult struct {
	Success      bool   `json:"success"`
	DeletedCount int    `json:"deleted_count"`
	Message      string `json:"message"`
}

// RemoveFieldsByFilter removes every survey field matching groups. Each
// match goes through the same cascade as RemoveFieldByName. When nothing
// matches the document is left untouched.
func (e *Editor) RemoveFieldsByFilter(groups filter.Groups) FilterRemoveResult {
	if len(groups) == 0 {
		e.record("remove_by_filter", false, "no filter groups provided")
		return FilterRemoveResult{Message: "no filter groups provided"}
	}
	matcher, err := filter.Compile(groups)
	if err != nil {
		e.record("remove_by_filter", false, "%v", err)
		return FilterRemoveResult{Message: err.Error()}
	}
	survey, err := openSheet(e.doc, sheetxml.WorksheetSurvey)
	if err != nil {
		e.record("remove_by_filter", false, "%v", err)
		return FilterRemoveResult{Message: err.Error()}
	}
	nameCol := survey.col(colName)
	type match struct {
		row  *sheetxml.Row
		name string
	}
	var matches []match
	for _, row := range survey.table.DataRows() {
		if matcher.Match(row.Values(survey.headers)) {
			matches = append(matches, match{row: row, name: cellValue(row, nameCol)})
		}
	}
	if len(matches) == 0 {
		e.record("remove_by_filter", true, "no fields matched")
		return FilterRemoveResult{Success: true, Message: "no fields matched the filter"}
	}
	cascaded := 0
	for _, m := range matches {
		_, n := e.removeField(survey, m.row, m.name)
		cascaded += n
	}
	e.record("remove_by_filter", true, "removed %d field(s), %d choice(s)", len(matches), cascaded)
	return FilterRemoveResult{
		Success:      true,
		DeletedCount: len(matches),
		Message:      fmt.Sprintf("removed %d field(s) and %d choice(s)", len(matches), cascaded),
	}
}

// removeField clears ${name} references in the other survey rows, drops
// the field's choice list and detaches the row.
func (e *Editor) removeField(survey sheet, row *sheetxml.Row, name string) (cleared, cascaded int) {
	if name != "" {
		ref := "${" + name + "}"
		for _, other := range survey.table.DataRows() {
			if other.Same(row) {
				continue
			}
			for _, cell := range other.Cells() {
				if strings.Contains(cell.Text(), ref) {
					if cleared == 0 {
						e.doc.EnsureHighlightStyles()
					}
					cell.SetData("", sheetxml.TypeString)
					cell.SetStyle(sheetxml.StyleModified)
					cleared++
				}
			}
		}
	}
	if listName, ok := ChoiceListFromType(cellValue(row, survey.col(colType))); ok {
		cascaded = e.removeChoiceList(listName)
	}
	e.doc.RemoveRow(survey.ws, row)
	return cleared, cascaded
}

func (e *Editor) removeChoiceList(listName string) int {
	removed := 0
	for _, s := range choiceSheets(e.doc) {
		listCol := s.col(listNameAliases...)
		if listCol < 0 {
			continue
		}
		for _, row := range s.table.DataRows() {
			if strings.TrimSpace(cellValue(row, listCol)) == listName && e.doc.RemoveRow(s.ws, row) {
				removed++
			}
		}
	}
	if removed > 0 {
		e.logger.Info("editor.cascade_choices", "list", listName, "removed", removed)
	}
	return removed
}

// AddRow appends values to a worksheet, aligned to its header width.
func (e *Editor) AddRow(worksheetName string, values []string) bool {
	ws, ok := e.doc.FindWorksheet(worksheetName)
	if !ok {
		e.record("add_row", false, "worksheet %q not found", worksheetName)
		return false
	}
	_, ok = e.doc.AddRowAligned(ws, values)
	e.record("add_row", ok, "%d value(s) to %q", len(values), worksheetName)
	return ok
}

// SetCell writes one positional cell.
func (e *Editor) SetCell(worksheetName string, rowIndex, colIndex int, value string) bool {
	ws, ok := e.doc.FindWorksheet(worksheetName)
	if !ok {
		e.record("set_cell", false, "worksheet %q not found", worksheetName)
		return false
	}
	ok = e.doc.SetCellValue(ws, rowIndex, colIndex, value)
	e.record("set_cell", ok, "%q row %d col %d", worksheetName, rowIndex, colIndex)
	return ok
}

type BestMatchResult struct {
	Success   bool     `json:"success"`
	Worksheet string   `json:"worksheet,omitempty"`
	Headers   []string `json:"headers,omitempty"`
	Message   string   `json:"message,omitempty"`
}

var bestMatchKeywords = map[string]bool{
	"form_title":     true,
	"form_id":        true,
	"style":          true,
	"version":        true,
	"run_diagnostic": true,
	"send_reports":   true,
	"integration":    true,
	"label":          true,
	"name":           true,
	"list name":      true,
	"list_name":      true,
}

const hintScore = 100

// AddRowToBestMatch appends values to the hinted worksheet when it exists,
// otherwise to the worksheet whose header width and keywords fit best.
func (e *Editor) AddRowToBestMatch(values []string, sheetHint string) BestMatchResult {
	var best *sheetxml.Worksheet
	var bestHeaders []string
	bestScore := -1
	if sheetHint != "" {
		if ws, ok := e.doc.FindWorksheet(sheetHint); ok {
			if headers := ws.Headers(); len(headers) > 0 {
				best, bestHeaders, bestScore = ws, headers, hintScore
			}
		}
	}
	for _, ws := range e.doc.Worksheets() {
		headers := ws.Headers()
		if len(headers) == 0 {
			continue
		}
		score := bestMatchScore(headers, len(values))
		if score > bestScore {
			best, bestHeaders, bestScore = ws, headers, score
		}
	}
	if best == nil {
		e.record("add_row_best_match", false, "no compatible worksheet found")
		return BestMatchResult{Message: "no compatible worksheet found"}
	}
	_, ok := e.doc.AddRowAligned(best, values)
	e.record("add_row_best_match", ok, "%d value(s) to %q", len(values), best.Name())
	return BestMatchResult{Success: ok, Worksheet: best.Name(), Headers: bestHeaders}
}

func bestMatchScore(headers []string, width int) int {
	diff := len(headers) - width
	if diff < 0 {
		diff = -diff
	}
	score := 10 - diff
	if score < 0 {
		score = 0
	}
	for _, h := range headers {
		if bestMatchKeywords[strings.ToLower(strings.TrimSpace(h))] {
			score++
		}
	}
	return score
}
