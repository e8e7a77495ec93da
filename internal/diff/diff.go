// Package diff compares workbook revisions for review. Worksheets are
// rendered one row per line and the lines are diffed with go-diff.
package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Line is one rendered row in a hunk. Line numbers are 1-based and
// count the header row.
type Line struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

type Hunk struct {
	Lines []Line `json:"lines"`
}

const (
	LineContext = "context"
	LineAdded   = "added"
	LineRemoved = "removed"
)

const (
	SheetUnchanged = "unchanged"
	SheetChanged   = "changed"
	SheetAdded     = "added"
	SheetRemoved   = "removed"
)

// MaxDiffLines caps the rendered rows of both sides of one worksheet.
const MaxDiffLines = 5000

// TextDiff diffs before and after line by line.
func TextDiff(before, after string) []Hunk {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, rows := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(beforeChars, afterChars, false), rows)

	var lines []Line
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		for _, text := range splitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, Line{Type: LineContext, Text: text, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				lines = append(lines, Line{Type: LineRemoved, Text: text, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				lines = append(lines, Line{Type: LineAdded, Text: text, NewLine: newLine})
				newLine++
			}
		}
	}
	return []Hunk{{Lines: lines}}
}

// TextDiffWithLimit is TextDiff that gives up, reporting truncation, when
// the two sides together exceed maxLines. maxLines <= 0 means MaxDiffLines.
func TextDiffWithLimit(before, after string, maxLines int) ([]Hunk, bool) {
	if maxLines <= 0 {
		maxLines = MaxDiffLines
	}
	if lineCount(before)+lineCount(after) > maxLines {
		return nil, true
	}
	return TextDiff(before, after), false
}

func countChanges(hunks []Hunk) (added, removed int) {
	for _, hunk := range hunks {
		for _, line := range hunk.Lines {
			switch line.Type {
			case LineAdded:
				added++
			case LineRemoved:
				removed++
			}
		}
	}
	return added, removed
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

func lineCount(value string) int {
	if value == "" {
		return 0
	}
	return strings.Count(value, "\n") + 1
}
