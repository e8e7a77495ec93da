package appdirs

import (
	"os"
	"path/filepath"
)

const (
	appDirName = "formedit"
	// DataDirEnv overrides the data directory.
	DataDirEnv = "FORMEDIT_DATA_DIR"
)

func DataDir() (string, error) {
	if override := os.Getenv(DataDirEnv); override != "" {
		return override, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDirName), nil
}

func WorkbenchesDir(dataDir string) string {
	return filepath.Join(dataDir, "workbenches")
}

func SettingsPath(dataDir string) string {
	return filepath.Join(dataDir, "settings.json")
}
