package editor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"formedit/engine/internal/sheetxml"
)

func copyTestdata(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func newTestEditor(t *testing.T, opts ...Option) *Editor {
	t.Helper()
	doc, err := sheetxml.Open(copyTestdata(t, "form.xml"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return New(doc, opts...)
}

func testSheet(t *testing.T, e *Editor, name string) sheet {
	t.Helper()
	s, err := openSheet(e.Document(), name)
	if err != nil {
		t.Fatalf("open sheet %q: %v", name, err)
	}
	return s
}

func columnValues(t *testing.T, e *Editor, worksheet, column string) []string {
	t.Helper()
	s := testSheet(t, e, worksheet)
	col := s.col(column)
	if col < 0 {
		t.Fatalf("column %q missing in %q", column, worksheet)
	}
	var out []string
	for _, row := range s.table.DataRows() {
		out = append(out, cellValue(row, col))
	}
	return out
}

func rowByName(t *testing.T, e *Editor, worksheet, name string) *sheetxml.Row {
	t.Helper()
	s := testSheet(t, e, worksheet)
	col := s.col(colName)
	for _, row := range s.table.DataRows() {
		if cellValue(row, col) == name {
			return row
		}
	}
	return nil
}

func declaredRows(t *testing.T, e *Editor, worksheet string) int {
	t.Helper()
	s := testSheet(t, e, worksheet)
	count, ok := s.table.RowCount()
	if !ok {
		t.Fatalf("%q has no declared row count", worksheet)
	}
	if actual := len(s.table.Rows()); actual != count {
		t.Fatalf("%q declares %d rows but holds %d", worksheet, count, actual)
	}
	return count
}

func TestChoiceListFromType(t *testing.T) {
	cases := map[string]string{
		"select_one EquipList":       "EquipList",
		"  SELECT_MULTIPLE faults x": "faults",
		"select_one_from_file a.csv": "",
		"integer":                    "",
		"select_one":                 "",
	}
	for in, want := range cases {
		got, ok := ChoiceListFromType(in)
		if ok != (want != "") || got != want {
			t.Fatalf("ChoiceListFromType(%q) = %q, %v; expected %q", in, got, ok, want)
		}
	}
}

func TestParseChoicePolicy(t *testing.T) {
	if p, ok := ParseChoicePolicy(" Strict "); !ok || p != ChoiceStrict {
		t.Fatalf("expected strict, got %q %v", p, ok)
	}
	if p, ok := ParseChoicePolicy("sometimes"); ok || p != ChoicePermissive {
		t.Fatalf("expected permissive fallback, got %q %v", p, ok)
	}
}

func TestSummaryCountsHistory(t *testing.T) {
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	e := newTestEditor(t, WithClock(func() time.Time { return fixed }))
	if !e.AddRow("settings", []string{"x"}) {
		t.Fatalf("expected add row to succeed")
	}
	if e.AddRow("nowhere", []string{"x"}) {
		t.Fatalf("expected add row on a missing sheet to fail")
	}
	summary := e.Summary()
	if summary.TotalEdits != 2 || summary.SuccessfulEdits != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if !summary.Modified {
		t.Fatalf("expected modified summary")
	}
	if summary.OriginalFile != e.Document().Path() {
		t.Fatalf("expected original file %q, got %q", e.Document().Path(), summary.OriginalFile)
	}
	if got := summary.EditHistory[0].Timestamp; got != "2024-05-06T07:08:09Z" {
		t.Fatalf("unexpected timestamp %q", got)
	}
	if summary.EditHistory[1].Operation != "add_row" || summary.EditHistory[1].Success {
		t.Fatalf("unexpected second edit %+v", summary.EditHistory[1])
	}
}

func TestOpenSheetErrors(t *testing.T) {
	e := newTestEditor(t)
	if _, err := openSheet(e.Document(), "nowhere"); !errors.Is(err, ErrWorksheetNotFound) {
		t.Fatalf("expected ErrWorksheetNotFound, got %v", err)
	}
	s := testSheet(t, e, "settings")
	if err := requireColumns(s, "form_id", "type"); !errors.Is(err, ErrColumnMissing) {
		t.Fatalf("expected ErrColumnMissing, got %v", err)
	}
}

func TestFindFieldFallsBackToLabel(t *testing.T) {
	e := newTestEditor(t)
	s := testSheet(t, e, "survey")
	row, by := findField(s, "boiler_temp")
	if row == nil || by != "name" {
		t.Fatalf("expected match by name, got %v %q", row, by)
	}
	row, by = findField(s, "COOLANT TYPE")
	if row == nil || by != "label" || cellValue(row, s.col(colName)) != "coolant" {
		t.Fatalf("expected label match on coolant, got %q", by)
	}
	if row, _ := findField(s, "absent"); row != nil {
		t.Fatalf("expected no match")
	}
}

func TestSaveWritesOnce(t *testing.T) {
	e := newTestEditor(t)
	e.ModifyFieldProperty("settings", "", "", "version", "2")
	out, err := e.Save("")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected output at %s: %v", out, err)
	}
	if _, err := os.Stat(e.Document().BackupPath()); err != nil {
		t.Fatalf("expected backup: %v", err)
	}
	reopened, err := sheetxml.Open(out)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	ws, _ := reopened.FindWorksheet("settings")
	if got := ws.DataRows()[0].Values(ws.Headers())["version"]; got != "2" {
		t.Fatalf("expected saved version 2, got %q", got)
	}
}
