package diff

import (
	"strings"

	"formedit/engine/internal/sheetxml"
)

// SheetDiff is the row-level review diff of one worksheet.
type SheetDiff struct {
	Worksheet string `json:"worksheet"`
	Status    string `json:"status"`
	Added     int    `json:"added"`
	Removed   int    `json:"removed"`
	Hunks     []Hunk `json:"hunks,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

// DocumentDiff compares two workbooks worksheet by worksheet, rendering
// every row as one line. Worksheets are matched by name, in the order of
// after followed by those only present in before.
func DocumentDiff(before, after *sheetxml.Document, maxLines int) []SheetDiff {
	beforeText := renderSheets(before)
	afterText := renderSheets(after)
	var out []SheetDiff
	seen := map[string]bool{}
	for _, name := range sheetNames(after) {
		seen[name] = true
		old, ok := beforeText[name]
		if !ok {
			out = append(out, sheetDiff(name, SheetAdded, "", afterText[name], maxLines))
			continue
		}
		status := SheetUnchanged
		if old != afterText[name] {
			status = SheetChanged
		}
		out = append(out, sheetDiff(name, status, old, afterText[name], maxLines))
	}
	for _, name := range sheetNames(before) {
		if !seen[name] {
			seen[name] = true
			out = append(out, sheetDiff(name, SheetRemoved, beforeText[name], "", maxLines))
		}
	}
	return out
}

func sheetDiff(name, status, before, after string, maxLines int) SheetDiff {
	d := SheetDiff{Worksheet: name, Status: status}
	if status == SheetUnchanged {
		return d
	}
	hunks, truncated := TextDiffWithLimit(before, after, maxLines)
	d.Truncated = truncated
	d.Hunks = hunks
	d.Added, d.Removed = countChanges(hunks)
	return d
}

func sheetNames(doc *sheetxml.Document) []string {
	var names []string
	seen := map[string]bool{}
	for _, ws := range doc.Worksheets() {
		if name := ws.Name(); !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// renderSheets renders the first worksheet of each name.
func renderSheets(doc *sheetxml.Document) map[string]string {
	out := map[string]string{}
	for _, ws := range doc.Worksheets() {
		if _, ok := out[ws.Name()]; ok {
			continue
		}
		table, ok := ws.Table()
		if !ok {
			out[ws.Name()] = ""
			continue
		}
		var b strings.Builder
		for _, row := range table.Rows() {
			b.WriteString(RenderRow(row))
			b.WriteByte('\n')
		}
		out[ws.Name()] = b.String()
	}
	return out
}

// RenderRow lays the row out by logical column, separated by " | ". A row
// style is appended in brackets.
func RenderRow(row *sheetxml.Row) string {
	cells := row.Cells()
	positions := row.Positions()
	width := 0
	for _, pos := range positions {
		if pos+1 > width {
			width = pos + 1
		}
	}
	values := make([]string, width)
	for i, cell := range cells {
		if positions[i] >= 0 {
			values[positions[i]] = cell.Text()
		}
	}
	line := strings.Join(values, " | ")
	if style := row.StyleID(); style != "" {
		line += " [" + style + "]"
	}
	return line
}
