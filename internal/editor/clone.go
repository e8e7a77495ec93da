package editor

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"formedit/engine/internal/filter"
	"formedit/engine/internal/sheetxml"
)

// CloneResult describes an equipment-scoped clone.
type CloneResult struct {
	OutputPath    string         `json:"output_path"`
	KeptRows      int            `json:"kept_rows"`
	DroppedRows   int            `json:"dropped_rows"`
	UsedLists     []string       `json:"used_lists"`
	ChoiceRows    map[string]int `json:"choice_rows"`
	SkippedSheets []string       `json:"skipped_sheets,omitempty"`
}

// CloneAndFilterByEquipment rebuilds the document keeping survey rows that
// are equipment-agnostic or belong to one of equipment, then keeps only the
// choice rows of lists those rows still use. The rebuilt tree is saved under
// a name derived from newFormName and then replaces the editor's document.
func (e *Editor) CloneAndFilterByEquipment(newFormName string, equipment []string) (*CloneResult, error) {
	result, err := e.cloneByEquipment(newFormName, equipment)
	if err != nil {
		e.record("clone", false, "%v", err)
		return nil, err
	}
	e.record("clone", true, "kept %d survey row(s) for %v, wrote %s", result.KeptRows, equipment, result.OutputPath)
	return result, nil
}

func (e *Editor) cloneByEquipment(newFormName string, equipment []string) (*CloneResult, error) {
	if strings.TrimSpace(newFormName) == "" {
		return nil, fmt.Errorf("new form name is empty")
	}
	data, err := e.doc.Bytes()
	if err != nil {
		return nil, err
	}
	work, err := sheetxml.Parse(data)
	if err != nil {
		return nil, err
	}
	survey, err := openSheet(work, sheetxml.WorksheetSurvey)
	if err != nil {
		return nil, err
	}
	typeCol := survey.col(colType)
	equipCol := survey.col(colEquipment)
	relevantCol := survey.col(colRelevant)
	if err := requireColumns(survey, colType, colEquipment, colRelevant); err != nil {
		return nil, err
	}
	matchers := compileEquipment(equipment)

	result := &CloneResult{ChoiceRows: map[string]int{}}
	used := map[string]bool{}
	for _, row := range survey.table.DataRows() {
		if !keepForEquipment(cellValue(row, equipCol), cellValue(row, relevantCol), equipment, matchers) {
			work.RemoveRow(survey.ws, row)
			result.DroppedRows++
			continue
		}
		result.KeptRows++
		if list, ok := ChoiceListFromType(cellValue(row, typeCol)); ok && !used[list] {
			used[list] = true
			result.UsedLists = append(result.UsedLists, list)
		}
	}
	survey.table.SetRowCount(result.KeptRows + 1)

	for _, s := range choiceSheets(work) {
		listCol := s.col(listNameAliases...)
		name := s.ws.Name()
		if listCol < 0 {
			e.logger.Warn("clone.choice_sheet_skipped", "worksheet", name, "reason", "no list name column")
			result.SkippedSheets = append(result.SkippedSheets, name)
			continue
		}
		kept := 0
		for _, row := range s.table.DataRows() {
			if used[strings.TrimSpace(cellValue(row, listCol))] {
				kept++
				continue
			}
			work.RemoveRow(s.ws, row)
		}
		s.table.SetRowCount(kept + 1)
		result.ChoiceRows[name] = kept
	}

	out, err := e.doc.SaveFrom(work, e.doc.OutputPathFor(newFormName))
	if err != nil {
		return nil, err
	}
	result.OutputPath = out
	return result, nil
}

// compileEquipment builds a quoted-or-whole-word matcher per equipment name
// for searching relevance expressions.
func compileEquipment(equipment []string) []*regexp2.Regexp {
	var out []*regexp2.Regexp
	for _, name := range equipment {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		quoted := regexp2.Escape(name)
		re, err := regexp2.Compile(`['"]`+quoted+`['"]|\b`+quoted+`\b`, regexp2.IgnoreCase)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}

func keepForEquipment(equipType, relevant string, equipment []string, mentions []*regexp2.Regexp) bool {
	equipType = strings.TrimSpace(equipType)
	if equipType == "" {
		return true
	}
	for _, name := range equipment {
		if strings.TrimSpace(name) != "" && filter.MatchWildcard(strings.TrimSpace(name), equipType) {
			return true
		}
	}
	for _, re := range mentions {
		if ok, err := re.MatchString(relevant); err == nil && ok {
			return true
		}
	}
	return false
}
