package editor

import (
	"bytes"
	"reflect"
	"testing"

	"formedit/engine/internal/filter"
	"formedit/engine/internal/sheetxml"
)

func TestModifyFieldPropertyOnSurvey(t *testing.T) {
	e := newTestEditor(t)
	if !e.ModifyFieldProperty("survey", "name", "boiler_temp", "required", "TRUE") {
		t.Fatalf("expected update to succeed")
	}
	row := rowByName(t, e, "survey", "boiler_temp")
	cell, ok := row.CellAt(5)
	if !ok {
		t.Fatalf("expected a cell in the required column")
	}
	if cell.Text() != "1" || cell.Type() != sheetxml.TypeBoolean {
		t.Fatalf("expected Boolean 1, got %q %q", cell.Text(), cell.Type())
	}
	if cell.StyleID() != sheetxml.StyleModified {
		t.Fatalf("expected modified style, got %q", cell.StyleID())
	}
	if !e.Document().HasStyle(sheetxml.StyleModified) {
		t.Fatalf("expected highlight styles to be declared")
	}
}

func TestModifyFieldPropertyOnSettingsIgnoresKey(t *testing.T) {
	e := newTestEditor(t)
	if !e.ModifyFieldProperty("settings", "form_id", "whatever", "form_title", "Plant Inspection") {
		t.Fatalf("expected settings update")
	}
	if got := columnValues(t, e, "settings", "form_title"); !reflect.DeepEqual(got, []string{"Plant Inspection"}) {
		t.Fatalf("unexpected settings %v", got)
	}
}

func TestModifyFieldPropertyFailures(t *testing.T) {
	e := newTestEditor(t)
	if e.ModifyFieldProperty("survey", "name", "absent", "label", "x") {
		t.Fatalf("expected missing key to fail")
	}
	if e.ModifyFieldProperty("survey", "name", "site_name", "hint", "x") {
		t.Fatalf("expected missing property column to fail")
	}
	if e.ModifyFieldProperty("nowhere", "name", "site_name", "label", "x") {
		t.Fatalf("expected missing worksheet to fail")
	}
	if e.Modified() {
		t.Fatalf("failed edits must not modify the document")
	}
}

func TestRemoveFieldByNameCascades(t *testing.T) {
	e := newTestEditor(t)
	if !e.RemoveFieldByName("equipment") {
		t.Fatalf("expected removal")
	}
	if rowByName(t, e, "survey", "equipment") != nil {
		t.Fatalf("field still present")
	}
	relevant := columnValues(t, e, "survey", "relevant")
	for _, v := range relevant {
		if v == "${equipment} = 'boiler'" || v == "selected(${equipment}, 'chiller')" {
			t.Fatalf("reference survived: %v", relevant)
		}
	}
	cell, _ := rowByName(t, e, "survey", "boiler_temp").CellAt(3)
	if cell.Text() != "" || cell.StyleID() != sheetxml.StyleModified {
		t.Fatalf("expected cleared modified cell, got %q %q", cell.Text(), cell.StyleID())
	}
	lists := columnValues(t, e, "select_one", "list name")
	if !reflect.DeepEqual(lists, []string{"CoolantType", "CoolantType"}) {
		t.Fatalf("expected EquipList choices removed, got %v", lists)
	}
	if declaredRows(t, e, "survey") != 6 || declaredRows(t, e, "select_one") != 3 {
		t.Fatalf("unexpected row counts")
	}
}

func TestRemoveFieldByLabelRemovesListEverywhere(t *testing.T) {
	e := newTestEditor(t)
	if !e.RemoveFieldByName("coolant type") {
		t.Fatalf("expected removal by label")
	}
	if got := columnValues(t, e, "select_one", "list name"); !reflect.DeepEqual(got, []string{"EquipList", "EquipList"}) {
		t.Fatalf("unexpected select_one lists %v", got)
	}
	if got := columnValues(t, e, "select_multiple", "list_name"); !reflect.DeepEqual(got, []string{"Faults"}) {
		t.Fatalf("unexpected select_multiple lists %v", got)
	}
	label, _ := rowByName(t, e, "survey", "sensor_temp").ValueAt(2)
	if label != "" {
		t.Fatalf("expected referencing label to be cleared, got %q", label)
	}
	declaredRows(t, e, "select_multiple")
}

func TestRemoveFieldByNameMissing(t *testing.T) {
	e := newTestEditor(t)
	if e.RemoveFieldByName("does_not_exist") {
		t.Fatalf("expected failure")
	}
	if e.Modified() {
		t.Fatalf("document must be untouched")
	}
}

func TestRemoveFieldsByFilter(t *testing.T) {
	e := newTestEditor(t)
	result := e.RemoveFieldsByFilter(filter.Groups{
		{{Property: "type", Operator: filter.OpStartsWith, Value: "select_one"}},
		{{Property: "name", Operator: filter.OpLike, Value: "temp_%"}},
	})
	if !result.Success || result.DeletedCount != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	names := columnValues(t, e, "survey", "name")
	if !reflect.DeepEqual(names, []string{"site_name", "boiler_temp", "sensor_temp"}) {
		t.Fatalf("unexpected survey names %v", names)
	}
	if got := columnValues(t, e, "select_one", "name"); len(got) != 0 {
		t.Fatalf("expected every select_one choice removed, got %v", got)
	}
	if got := columnValues(t, e, "select_multiple", "name"); !reflect.DeepEqual(got, []string{"leak"}) {
		t.Fatalf("unexpected select_multiple %v", got)
	}
	declaredRows(t, e, "survey")
	declaredRows(t, e, "select_one")
}

func TestRemoveFieldsByFilterWithoutMatchLeavesDocument(t *testing.T) {
	e := newTestEditor(t)
	before, err := e.Document().Bytes()
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	result := e.RemoveFieldsByFilter(filter.Groups{
		{{Property: "name", Operator: filter.OpEquals, Value: "nothing_here"}},
	})
	if !result.Success || result.DeletedCount != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	after, err := e.Document().Bytes()
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	if !bytes.Equal(before, after) || e.Modified() {
		t.Fatalf("document changed without a match")
	}
}

func TestRemoveFieldsByFilterRejectsBadInput(t *testing.T) {
	e := newTestEditor(t)
	if result := e.RemoveFieldsByFilter(nil); result.Success {
		t.Fatalf("empty filter must fail")
	}
	result := e.RemoveFieldsByFilter(filter.Groups{{{Property: "name", Operator: "near", Value: "x"}}})
	if result.Success || result.Message == "" {
		t.Fatalf("unknown operator must fail with a message, got %+v", result)
	}
}

func TestAddRowAndSetCell(t *testing.T) {
	e := newTestEditor(t)
	if !e.AddRow("survey", []string{"text", "notes", "Notes", "", "", "", "extra"}) {
		t.Fatalf("expected add")
	}
	row := rowByName(t, e, "survey", "notes")
	if len(row.Cells()) != 6 {
		t.Fatalf("expected row aligned to 6 headers, got %d cells", len(row.Cells()))
	}
	if !e.SetCell("settings", 1, 2, "false") {
		t.Fatalf("expected set cell")
	}
	v, _ := testSheet(t, e, "settings").table.DataRows()[0].ValueAt(2)
	if v != "0" {
		t.Fatalf("expected boolean 0, got %q", v)
	}
	if e.SetCell("settings", 9, 0, "x") {
		t.Fatalf("expected out of range row to fail")
	}
}

func TestAddRowToBestMatch(t *testing.T) {
	e := newTestEditor(t)
	result := e.AddRowToBestMatch([]string{"Brand", "acme", "Acme"}, "")
	if !result.Success || result.Worksheet != "select_one" {
		t.Fatalf("expected select_one, got %+v", result)
	}
	result = e.AddRowToBestMatch([]string{"x"}, "settings")
	if !result.Success || result.Worksheet != "settings" {
		t.Fatalf("expected hinted settings, got %+v", result)
	}
	if !reflect.DeepEqual(result.Headers, []string{"form_title", "form_id", "version"}) {
		t.Fatalf("unexpected headers %v", result.Headers)
	}
}
