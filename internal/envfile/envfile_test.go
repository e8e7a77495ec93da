package envfile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadPathAppliesOnlyPrefixedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# local overrides\nexport FORMEDIT_DEBUG=\"1\"\nFORMEDIT_DATA_DIR='/tmp/fe'\nOTHER_TOKEN=abc\nnot a pair\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("FORMEDIT_DEBUG", "")
	os.Unsetenv("FORMEDIT_DEBUG")
	t.Setenv("FORMEDIT_DATA_DIR", "/already/set")

	res := LoadPath(path)
	if res.Err != nil || !res.Loaded {
		t.Fatalf("load: %+v", res)
	}
	if !reflect.DeepEqual(res.Applied, []string{"FORMEDIT_DEBUG"}) {
		t.Fatalf("unexpected applied keys %v", res.Applied)
	}
	if res.Ignored != 1 {
		t.Fatalf("expected one ignored key, got %d", res.Ignored)
	}
	if got := os.Getenv("FORMEDIT_DEBUG"); got != "1" {
		t.Fatalf("expected unquoted value, got %q", got)
	}
	if got := os.Getenv("FORMEDIT_DATA_DIR"); got != "/already/set" {
		t.Fatalf("environment must win, got %q", got)
	}
	if _, ok := os.LookupEnv("OTHER_TOKEN"); ok {
		t.Fatalf("unprefixed keys must not be applied")
	}
}

func TestLoadPathMissingFile(t *testing.T) {
	res := LoadPath(filepath.Join(t.TempDir(), "missing.env"))
	if res.Loaded || res.Err == nil {
		t.Fatalf("expected a load error, got %+v", res)
	}
}
