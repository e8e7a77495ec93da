package editor

import (
	"strings"

	"github.com/dlclark/regexp2"

	"formedit/engine/internal/sheetxml"
)

// ChoiceItem is one option to add to a list. A missing name is derived
// from the label.
type ChoiceItem struct {
	Label string `json:"label"`
	Name  string `json:"name,omitempty"`
}

type ChoiceFailure struct {
	Label  string `json:"label"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type BatchResult struct {
	Added    int             `json:"added"`
	Failed   []ChoiceFailure `json:"failed"`
	Modified bool            `json:"modified"`
}

const (
	reasonMissingLabel = "missing label"
	reasonInsertFailed = "insert failed"
)

var nonNameChars = regexp2.MustCompile(`[^A-Za-z0-9_]+`, regexp2.None)

// DeriveChoiceName turns a label into a choice name: runs of characters
// outside [A-Za-z0-9_] become one underscore, outer underscores dropped.
func DeriveChoiceName(label string) string {
	replaced, err := nonNameChars.Replace(label, "_", -1, -1)
	if err != nil {
		return ""
	}
	return strings.Trim(replaced, "_")
}

// AddChoiceOption appends one option to a choice list. With a hint only
// that worksheet is considered, otherwise the detected choice worksheets.
func (e *Editor) AddChoiceOption(listName, label, name, worksheetHint string) bool {
	target, ok := e.addChoice(listName, label, name, worksheetHint)
	if ok {
		e.record("add_choice", true, "added %q to list %q in %q", name, listName, target)
	} else {
		e.record("add_choice", false, "no worksheet accepted %q for list %q", name, listName)
	}
	return ok
}

// AddChoiceOptionsBatch resolves the target worksheet once and adds each
// item to it. Individual failures are reported, never fatal. Nothing is
// saved here.
func (e *Editor) AddChoiceOptionsBatch(listName string, items []ChoiceItem, worksheetHint string) BatchResult {
	target := worksheetHint
	if target == "" {
		if detected := e.doc.ChoiceWorksheets(); len(detected) > 0 {
			target = detected[0]
		}
	}
	result := BatchResult{Failed: []ChoiceFailure{}}
	for _, item := range items {
		label := strings.TrimSpace(item.Label)
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = DeriveChoiceName(label)
		}
		if label == "" {
			result.Failed = append(result.Failed, ChoiceFailure{Label: label, Name: name, Reason: reasonMissingLabel})
			continue
		}
		if target == "" || !e.AddChoiceOption(listName, label, name, target) {
			result.Failed = append(result.Failed, ChoiceFailure{Label: label, Name: name, Reason: reasonInsertFailed})
			continue
		}
		result.Added++
	}
	result.Modified = e.doc.Modified()
	e.record("add_choice_batch", result.Added > 0, "added %d of %d options to list %q", result.Added, len(items), listName)
	return result
}

type choiceTarget struct {
	sheet
	listCol  int
	nameCol  int
	labelCol int
	hasList  bool
}

func (e *Editor) choiceTargets(worksheetHint string) []sheet {
	var names []string
	if worksheetHint != "" {
		names = []string{worksheetHint}
	} else {
		names = e.doc.ChoiceWorksheets()
	}
	var out []sheet
	for _, name := range names {
		s, err := openSheet(e.doc, name)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (e *Editor) addChoice(listName, label, name, worksheetHint string) (string, bool) {
	var candidates []choiceTarget
	for _, s := range e.choiceTargets(worksheetHint) {
		c := choiceTarget{
			sheet:    s,
			listCol:  s.col(listNameAliases...),
			nameCol:  s.col(colName),
			labelCol: labelColumn(s.headers),
		}
		if c.listCol < 0 || c.nameCol < 0 {
			continue
		}
		c.hasList = sheetHasList(s, c.listCol, listName)
		candidates = append(candidates, c)
	}
	var target *choiceTarget
	for i := range candidates {
		if candidates[i].hasList {
			target = &candidates[i]
			break
		}
	}
	if target == nil && e.policy != ChoiceStrict && len(candidates) > 0 {
		target = &candidates[0]
	}
	if target == nil {
		return "", false
	}
	values := make([]string, len(target.headers))
	values[target.listCol] = listName
	values[target.nameCol] = name
	if target.labelCol >= 0 {
		values[target.labelCol] = label
	}
	if _, ok := e.doc.AddRow(target.ws, values, sheetxml.AtEnd); !ok {
		return "", false
	}
	return target.ws.Name(), true
}

// labelColumn prefers a plain label header and accepts a translated one
// such as "label::English".
func labelColumn(headers []string) int {
	if idx := sheetxml.HeaderIndex(headers, colLabel); idx >= 0 {
		return idx
	}
	for i, h := range headers {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(h)), colLabel) {
			return i
		}
	}
	return -1
}

var editableChoiceProperties = map[string]bool{colLabel: true, colName: true, colOrder: true}

// ModifyChoiceProperty updates label, name or order of the choice
// (listName, choiceName) in every choice worksheet holding it. It reports
// whether any row changed.
func (e *Editor) ModifyChoiceProperty(listName, choiceName, property, value string) bool {
	prop := strings.ToLower(strings.TrimSpace(property))
	if !editableChoiceProperties[prop] {
		e.record("modify_choice", false, "property %q cannot be changed on a choice", property)
		return false
	}
	updated := 0
	for _, s := range choiceSheets(e.doc) {
		listCol := s.col(listNameAliases...)
		nameCol := s.col(colName)
		propCol := s.col(prop)
		if listCol < 0 || nameCol < 0 || propCol < 0 {
			continue
		}
		for _, row := range s.table.DataRows() {
			if cellValue(row, listCol) != listName || cellValue(row, nameCol) != choiceName {
				continue
			}
			e.doc.SetSparseCell(row, propCol, value, sheetxml.StyleModified)
			updated++
			break
		}
	}
	if updated == 0 {
		e.record("modify_choice", false, "choice %q not found in list %q", choiceName, listName)
		return false
	}
	e.record("modify_choice", true, "set %s of %q in list %q on %d worksheet(s)", prop, choiceName, listName, updated)
	return true
}
