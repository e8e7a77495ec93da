package envfile

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

const (
	// PathEnv points at an explicit env file.
	PathEnv = "FORMEDIT_ENV_PATH"
	// Prefix limits which keys an env file may set.
	Prefix = "FORMEDIT_"
)

type Result struct {
	Path    string
	Loaded  bool
	Applied []string
	Ignored int
	Err     error
}

// Load applies FORMEDIT_* settings from the file named by FORMEDIT_ENV_PATH,
// or from the nearest .env above the working directory. Variables already
// set in the environment win.
func Load() Result {
	if override := strings.TrimSpace(os.Getenv(PathEnv)); override != "" {
		return LoadPath(override)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return Result{Err: err}
	}
	path := findUpwards(cwd, ".env")
	if path == "" {
		return Result{}
	}
	return LoadPath(path)
}

func LoadPath(path string) Result {
	res := Result{Path: path}
	file, err := os.Open(path)
	if err != nil {
		res.Err = err
		return res
	}
	defer file.Close()
	res.Loaded = true
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if !strings.HasPrefix(key, Prefix) {
			res.Ignored++
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			res.Err = err
			return res
		}
		res.Applied = append(res.Applied, key)
	}
	if err := scanner.Err(); err != nil {
		res.Err = err
	}
	return res
}

func parseLine(raw string) (string, string, bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	key, value, ok := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", false
	}
	return key, unquote(strings.TrimSpace(value)), true
}

func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	first, last := value[0], value[len(value)-1]
	if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}

func findUpwards(start, filename string) string {
	for dir := start; ; {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
