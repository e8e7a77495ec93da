package appdirs

import (
	"path/filepath"
	"testing"
)

func TestDataDirOverride(t *testing.T) {
	t.Setenv(DataDirEnv, "/tmp/formedit-test")
	path, err := DataDir()
	if err != nil {
		t.Fatalf("data dir: %v", err)
	}
	if path != "/tmp/formedit-test" {
		t.Fatalf("expected override path, got %s", path)
	}

	if got := WorkbenchesDir(path); got != filepath.Join("/tmp/formedit-test", "workbenches") {
		t.Fatalf("expected workbenches dir, got %s", got)
	}
	if got := SettingsPath(path); got != filepath.Join("/tmp/formedit-test", "settings.json") {
		t.Fatalf("expected settings path, got %s", got)
	}
}
