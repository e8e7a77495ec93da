package workbench

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	ReasonSession     = "session"
	ReasonClone       = "clone"
	ReasonMerge       = "merge"
	ReasonFilterMerge = "merge_by_filter"
	ReasonSave        = "save"
)

const maxVersions = 100

var ErrVersionNotFound = errors.New("version not found")

// VersionMetadata describes one saved output of a form.
type VersionMetadata struct {
	VersionID   string       `json:"version_id"`
	CreatedAt   string       `json:"created_at"`
	Reason      string       `json:"reason"`
	Description string       `json:"description,omitempty"`
	SessionID   string       `json:"session_id,omitempty"`
	OutputPath  string       `json:"output_path"`
	Stats       VersionStats `json:"stats"`
}

type VersionStats struct {
	Bytes  int64  `json:"bytes"`
	SHA256 string `json:"sha256"`
}

func (m *Manager) versionsRoot(id string) (string, error) {
	root, err := m.workbenchRoot(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, metaFolder, "versions"), nil
}

// VersionsList returns the recorded versions, newest first.
func (m *Manager) VersionsList(id string) ([]VersionMetadata, error) {
	root, err := m.versionsRoot(id)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []VersionMetadata{}, nil
		}
		return nil, err
	}
	results := []VersionMetadata{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var meta VersionMetadata
		if err := readJSON(filepath.Join(root, entry.Name()), &meta); err != nil {
			continue
		}
		results = append(results, meta)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt > results[j].CreatedAt
	})
	return results, nil
}

func (m *Manager) VersionGet(id, versionID string) (*VersionMetadata, error) {
	root, err := m.versionsRoot(id)
	if err != nil {
		return nil, err
	}
	if _, err := m.workbenchRoot(versionID); err != nil {
		return nil, err
	}
	var meta VersionMetadata
	if err := readJSON(filepath.Join(root, versionID+".json"), &meta); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, versionID)
		}
		return nil, err
	}
	return &meta, nil
}

// VersionRecord snapshots outputPath into the workbench and records it as
// a new version.
func (m *Manager) VersionRecord(id, reason, description, sessionID, outputPath string) (*VersionMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	root, err := m.workbenchRoot(id)
	if err != nil {
		return nil, err
	}
	if _, err := m.Open(id); err != nil {
		return nil, err
	}
	versionsRoot, err := m.versionsRoot(id)
	if err != nil {
		return nil, err
	}
	versionID := newID()
	snapshot := filepath.Join(versionsRoot, versionID, filepath.Base(outputPath))
	if err := copyFile(outputPath, snapshot); err != nil {
		return nil, err
	}
	stats, err := fileStats(snapshot)
	if err != nil {
		return nil, err
	}
	meta := VersionMetadata{
		VersionID:   versionID,
		CreatedAt:   m.now().UTC().Format(time.RFC3339Nano),
		Reason:      reason,
		Description: description,
		SessionID:   sessionID,
		OutputPath:  outputPath,
		Stats:       stats,
	}
	if err := writeJSON(filepath.Join(versionsRoot, versionID+".json"), meta); err != nil {
		return nil, err
	}
	if err := m.touchUpdated(root); err != nil {
		return nil, err
	}
	m.pruneVersions(id)
	return &meta, nil
}

// VersionSnapshotPath is where the recorded copy of a version lives.
func (m *Manager) VersionSnapshotPath(id, versionID string) (string, error) {
	meta, err := m.VersionGet(id, versionID)
	if err != nil {
		return "", err
	}
	root, err := m.versionsRoot(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, versionID, filepath.Base(meta.OutputPath)), nil
}

// VersionRestore copies a version snapshot into destinationDir under its
// original file name, numbering the name when it is taken.
func (m *Manager) VersionRestore(id, versionID, destinationDir string) (string, error) {
	snapshot, err := m.VersionSnapshotPath(id, versionID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(destinationDir, 0o755); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	dest, err := uniqueDestination(destinationDir, filepath.Base(snapshot))
	if err != nil {
		return "", err
	}
	if err := copyFile(snapshot, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (m *Manager) pruneVersions(id string) {
	versions, err := m.VersionsList(id)
	if err != nil || len(versions) <= maxVersions {
		return
	}
	for _, v := range versions[maxVersions:] {
		_ = m.deleteVersion(id, v.VersionID)
	}
}

func (m *Manager) deleteVersion(id, versionID string) error {
	root, err := m.versionsRoot(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(root, versionID)); err != nil {
		return err
	}
	return os.Remove(filepath.Join(root, versionID+".json"))
}

func fileStats(path string) (VersionStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return VersionStats{}, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return VersionStats{}, err
	}
	return VersionStats{Bytes: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}
