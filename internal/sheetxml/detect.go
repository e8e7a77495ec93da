package sheetxml

import (
	"sort"
	"strings"
)

const choiceSheetThreshold = 3

// DetectChoiceWorksheets ranks worksheets that look like choice lists.
// Header tokens score label +2, name +2 and list name +1. Worksheets
// scoring at least 3 are returned by score, ties in document order.
func (d *Document) DetectChoiceWorksheets() []string {
	type candidate struct {
		name  string
		score int
	}
	var candidates []candidate
	for _, ws := range d.Worksheets() {
		score := choiceSheetScore(ws.Headers())
		if score >= choiceSheetThreshold {
			candidates = append(candidates, candidate{name: ws.Name(), score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.name)
	}
	return names
}

// ChoiceWorksheets is DetectChoiceWorksheets without the survey and
// settings worksheets, which carry label and name columns of their own.
func (d *Document) ChoiceWorksheets() []string {
	var names []string
	for _, name := range d.DetectChoiceWorksheets() {
		if name == WorksheetSurvey || name == WorksheetSettings {
			continue
		}
		names = append(names, name)
	}
	return names
}

func choiceSheetScore(headers []string) int {
	var hasLabel, hasName, hasList bool
	for _, header := range headers {
		h := strings.ToLower(strings.TrimSpace(header))
		if h == "" {
			continue
		}
		if strings.HasPrefix(h, "label") {
			hasLabel = true
		}
		if h == "name" || strings.HasSuffix(h, ":name") {
			hasName = true
		}
		if normalized := strings.ReplaceAll(h, " ", "_"); normalized == "list_name" || normalized == "listname" {
			hasList = true
		}
	}
	score := 0
	if hasLabel {
		score += 2
	}
	if hasName {
		score += 2
	}
	if hasList {
		score++
	}
	return score
}

// WorksheetInfo summarizes one worksheet for inspection.
type WorksheetInfo struct {
	Name        string   `json:"name"`
	Headers     []string `json:"headers"`
	DataRows    int      `json:"data_rows"`
	RowCount    int      `json:"row_count"`
	HasRowCount bool     `json:"has_row_count"`
	HasTable    bool     `json:"has_table"`
	ChoiceList  bool     `json:"choice_list"`
}

// Inspect reports the shape of every worksheet in document order.
func (d *Document) Inspect() []WorksheetInfo {
	detected := make(map[string]bool)
	for _, name := range d.ChoiceWorksheets() {
		detected[name] = true
	}
	var out []WorksheetInfo
	for _, ws := range d.Worksheets() {
		info := WorksheetInfo{Name: ws.Name(), ChoiceList: detected[ws.Name()]}
		if table, ok := ws.Table(); ok {
			info.HasTable = true
			info.Headers = table.Headers()
			info.DataRows = len(table.DataRows())
			info.RowCount, info.HasRowCount = table.RowCount()
		}
		if info.Headers == nil {
			info.Headers = []string{}
		}
		out = append(out, info)
	}
	return out
}
