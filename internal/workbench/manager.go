package workbench

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	schema     = 1
	metaFolder = "meta"
)

var (
	ErrInvalidID = errors.New("invalid workbench id")
	ErrNotFound  = errors.New("workbench not found")
)

// Workbench groups the saved outputs and edit history of one original
// form file.
type Workbench struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	SourcePath    string `json:"source_path"`
	SchemaVersion int    `json:"schema_version"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// HistoryEntry is one recorded editor operation.
type HistoryEntry struct {
	Operation string `json:"operation"`
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id,omitempty"`
}

// Manager owns the workbench directories. Writes are serialized so
// concurrent saves of one form keep every history entry and version.
type Manager struct {
	mu      sync.Mutex
	baseDir string
	now     func() time.Time
}

func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir, now: time.Now}
}

// SetClock replaces the time source used for metadata timestamps.
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

func (m *Manager) Init() error {
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return err
	}
	return m.cleanupTransientFiles()
}

// cleanupTransientFiles removes temp files left by an interrupted write.
func (m *Manager) cleanupTransientFiles() error {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metaRoot := filepath.Join(m.baseDir, entry.Name(), metaFolder)
		files, err := os.ReadDir(metaRoot)
		if err != nil {
			continue
		}
		for _, file := range files {
			if strings.HasPrefix(file.Name(), ".tmp") {
				_ = os.Remove(filepath.Join(metaRoot, file.Name()))
			}
		}
	}
	return nil
}

// IDForSource derives a stable workbench id from the absolute path of an
// original form.
func IDForSource(sourcePath string) string {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		abs = sourcePath
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return hex.EncodeToString(sum[:8])
}

// Ensure opens the workbench of sourcePath, creating it on first use.
func (m *Manager) Ensure(sourcePath string) (*Workbench, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := IDForSource(sourcePath)
	if wb, err := m.Open(id); err == nil {
		return wb, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	root, err := m.workbenchRoot(id)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		abs = sourcePath
	}
	now := m.now().UTC().Format(time.RFC3339)
	wb := &Workbench{
		ID:            id,
		Name:          strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs)),
		SourcePath:    abs,
		SchemaVersion: schema,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := writeJSON(filepath.Join(root, metaFolder, "workbench.json"), wb); err != nil {
		return nil, err
	}
	return wb, nil
}

func (m *Manager) List() ([]Workbench, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Workbench{}, nil
		}
		return nil, err
	}
	workbenches := []Workbench{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		wb, err := m.Open(entry.Name())
		if err != nil {
			continue
		}
		workbenches = append(workbenches, *wb)
	}
	sort.Slice(workbenches, func(i, j int) bool {
		return workbenches[i].UpdatedAt > workbenches[j].UpdatedAt
	})
	return workbenches, nil
}

func (m *Manager) Open(id string) (*Workbench, error) {
	root, err := m.workbenchRoot(id)
	if err != nil {
		return nil, err
	}
	var wb Workbench
	if err := readJSON(filepath.Join(root, metaFolder, "workbench.json"), &wb); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &wb, nil
}

// Delete removes the workbench metadata and version snapshots. Outputs
// written next to the original form are left alone.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	root, err := m.workbenchRoot(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	return os.RemoveAll(root)
}

// AppendHistory adds entries to the workbench history log.
func (m *Manager) AppendHistory(id string, entries []HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	root, err := m.workbenchRoot(id)
	if err != nil {
		return err
	}
	history, err := m.History(id)
	if err != nil {
		return err
	}
	history = append(history, entries...)
	if err := writeJSON(filepath.Join(root, metaFolder, "history.json"), history); err != nil {
		return err
	}
	return m.touchUpdated(root)
}

func (m *Manager) History(id string) ([]HistoryEntry, error) {
	root, err := m.workbenchRoot(id)
	if err != nil {
		return nil, err
	}
	var history []HistoryEntry
	if err := readJSON(filepath.Join(root, metaFolder, "history.json"), &history); err != nil {
		if os.IsNotExist(err) {
			return []HistoryEntry{}, nil
		}
		return nil, err
	}
	return history, nil
}

func (m *Manager) workbenchRoot(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, string(filepath.Separator)+"\\/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(m.baseDir, id), nil
}

func (m *Manager) touchUpdated(root string) error {
	path := filepath.Join(root, metaFolder, "workbench.json")
	var wb Workbench
	if err := readJSON(path, &wb); err != nil {
		return err
	}
	wb.UpdatedAt = m.now().UTC().Format(time.RFC3339)
	return writeJSON(path, &wb)
}

func readJSON(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func writeJSON(path string, payload interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

func newID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func uniqueDestination(destinationDir, name string) (string, error) {
	candidate := name
	for i := 0; ; i++ {
		if i > 0 {
			stem, ext := splitFileName(name)
			candidate = fmt.Sprintf("%s(%d)%s", stem, i, ext)
		}
		dest := filepath.Join(destinationDir, candidate)
		if _, err := os.Stat(dest); err == nil {
			continue
		} else if os.IsNotExist(err) {
			return dest, nil
		} else {
			return "", err
		}
	}
}

func splitFileName(name string) (stem, ext string) {
	if strings.HasPrefix(name, ".") && strings.Count(name, ".") == 1 {
		return name, ""
	}
	ext = filepath.Ext(name)
	if ext == "" {
		return name, ""
	}
	stem = strings.TrimSuffix(name, ext)
	if stem == "" {
		return name, ""
	}
	return stem, ext
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name)
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(name, path)
}
