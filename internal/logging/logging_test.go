package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCompactJSONShortensLongValues(t *testing.T) {
	items := make([]string, 30)
	for i := range items {
		items[i] = "x"
	}
	raw, err := json.Marshal(map[string]any{
		"xml":   strings.Repeat("a", 1000),
		"items": items,
		"token": "abc",
		"name":  "site",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := CompactJSON(raw).(map[string]any)
	if got := out["xml"].(string); !strings.HasSuffix(got, "...(+744 bytes)") {
		t.Fatalf("unexpected compacted string %q", got)
	}
	list := out["items"].([]any)
	if len(list) != maxListLen+1 || list[maxListLen] != "...(+10 items)" {
		t.Fatalf("unexpected compacted list %v", list)
	}
	if out["token"] != "****" || out["name"] != "site" {
		t.Fatalf("unexpected values %v", out)
	}
}

func TestCompactAnyHandlesStructs(t *testing.T) {
	type payload struct {
		Path string `json:"path"`
	}
	out := CompactAny(payload{Path: "form.xml"}).(map[string]any)
	if out["path"] != "form.xml" {
		t.Fatalf("unexpected struct compaction %v", out)
	}
	if CompactJSON(json.RawMessage("not json")) != "not json" {
		t.Fatalf("expected invalid json to pass through as text")
	}
}

func TestNewFileLoggerDisabled(t *testing.T) {
	root := t.TempDir()
	setup, err := NewFileLogger(root, false)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if setup.Enabled {
		t.Fatalf("expected disabled logger")
	}
	setup.Logger.Info("ignored")
	if _, err := os.Stat(root + "/logs"); !os.IsNotExist(err) {
		t.Fatalf("expected no log dir, got %v", err)
	}
}

func TestNewFileLoggerWritesJSON(t *testing.T) {
	root := t.TempDir()
	setup, err := NewFileLogger(root, true)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	setup.Logger.Debug("editor.add_row", "worksheet", "survey", "xml", strings.Repeat("b", 600), "token", "abc123")
	if err := setup.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(setup.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"editor.add_row"`) || !strings.Contains(out, `"worksheet":"survey"`) {
		t.Fatalf("unexpected log contents %s", out)
	}
	if !strings.Contains(out, "...(+344 bytes)") || strings.Contains(out, strings.Repeat("b", 300)) {
		t.Fatalf("expected long attribute to be compacted: %s", out)
	}
	if strings.Contains(out, "abc123") || !strings.Contains(out, `"token":"****"`) {
		t.Fatalf("expected token to be masked: %s", out)
	}
	if filepath.Base(setup.Path) != logFileName {
		t.Fatalf("unexpected log path %s", setup.Path)
	}
}
