package editor

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"formedit/engine/internal/sheetxml"
)

func TestCloneAndFilterByEquipment(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	doc, err := sheetxml.Open(copyTestdata(t, "form.xml"), sheetxml.WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	e := New(doc)
	result, err := e.CloneAndFilterByEquipment("Boiler Checks", []string{"Boiler"})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if result.KeptRows != 5 || result.DroppedRows != 1 {
		t.Fatalf("expected 5 kept and 1 dropped, got %+v", result)
	}
	if !reflect.DeepEqual(result.UsedLists, []string{"EquipList"}) {
		t.Fatalf("unexpected used lists %v", result.UsedLists)
	}
	if !reflect.DeepEqual(result.ChoiceRows, map[string]int{"select_one": 2, "select_multiple": 0}) {
		t.Fatalf("unexpected choice rows %v", result.ChoiceRows)
	}
	wantPath := filepath.Join(filepath.Dir(doc.Path()), "modified_Boiler_Checks_20240102_030405.xml")
	if result.OutputPath != wantPath {
		t.Fatalf("expected output %s, got %s", wantPath, result.OutputPath)
	}

	out, err := sheetxml.Open(result.OutputPath)
	if err != nil {
		t.Fatalf("reopen clone: %v", err)
	}
	cloned := New(out)
	names := columnValues(t, cloned, "survey", "name")
	want := []string{"site_name", "equipment", "boiler_temp", "temp_sensor_1", "sensor_temp"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected survey %v, got %v", want, names)
	}
	if declaredRows(t, cloned, "survey") != 6 {
		t.Fatalf("expected survey row count 6")
	}
	if got := columnValues(t, cloned, "select_one", "list name"); !reflect.DeepEqual(got, []string{"EquipList", "EquipList"}) {
		t.Fatalf("unexpected select_one lists %v", got)
	}
	if declaredRows(t, cloned, "select_multiple") != 1 {
		t.Fatalf("expected an empty select_multiple")
	}
	if _, err := os.Stat(doc.BackupPath()); err != nil {
		t.Fatalf("expected backup of the original: %v", err)
	}
}

func TestCloneKeepsRowsMentioningEquipment(t *testing.T) {
	e := newTestEditor(t)
	result, err := e.CloneAndFilterByEquipment("chiller form", []string{"chill*"})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	names := columnValues(t, e, "survey", "name")
	want := []string{"site_name", "equipment", "coolant", "temp_sensor_1", "sensor_temp"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected survey %v, got %v", want, names)
	}
	if !reflect.DeepEqual(result.UsedLists, []string{"EquipList", "CoolantType"}) {
		t.Fatalf("unexpected used lists %v", result.UsedLists)
	}
	if result.ChoiceRows["select_multiple"] != 1 {
		t.Fatalf("expected the CoolantType choice to survive in select_multiple")
	}
}

func TestCloneRequiresColumns(t *testing.T) {
	doc, err := sheetxml.Open(filepath.Join("testdata", "source.xml"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	doc2, err := sheetxml.Parse([]byte(strings.Replace(string(mustRead(t, "source.xml")), ">relevant<", ">condition<", 1)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := New(doc2).CloneAndFilterByEquipment("x", []string{"Pump"}); err == nil {
		t.Fatalf("expected missing relevant column to fail")
	}
	if _, err := New(doc).CloneAndFilterByEquipment(" ", []string{"Pump"}); err == nil {
		t.Fatalf("expected empty form name to fail")
	}
}

func TestCloneSaveFailureKeepsDocument(t *testing.T) {
	e := newTestEditor(t)
	if err := os.Remove(e.Document().Path()); err != nil {
		t.Fatalf("remove original: %v", err)
	}
	if _, err := e.CloneAndFilterByEquipment("Boiler Checks", []string{"Boiler"}); !errors.Is(err, sheetxml.ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	if e.Modified() {
		t.Fatalf("failed clone must not modify the document")
	}
	if names := columnValues(t, e, "survey", "name"); len(names) != 6 {
		t.Fatalf("expected all 6 survey rows, got %v", names)
	}
}

func TestKeepForEquipment(t *testing.T) {
	equipment := []string{"Boiler"}
	mentions := compileEquipment(equipment)
	cases := []struct {
		equip, relevant string
		want            bool
	}{
		{"", "", true},
		{"boiler", "", true},
		{"Chiller", "", false},
		{"Chiller", "${x} = 'boiler'", true},
		{"Chiller", "boilerplate", false},
	}
	for _, c := range cases {
		if got := keepForEquipment(c.equip, c.relevant, equipment, mentions); got != c.want {
			t.Fatalf("keepForEquipment(%q, %q) = %v", c.equip, c.relevant, got)
		}
	}
}

func mustRead(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return data
}
