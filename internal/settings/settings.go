package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const schemaVersion = 1

const (
	ChoicePolicyPermissive = "permissive"
	ChoicePolicyStrict     = "strict"

	defaultSessionTTLMinutes = 30
	maxSessionTTLMinutes     = 24 * 60
)

// Highlight colors default to the values written by earlier releases.
const (
	defaultAddedColor    = "#FFC7CE"
	defaultModifiedColor = "#FFD966"
	defaultMergedColor   = "#C6EFCE"
)

type HighlightColors struct {
	Added    string `json:"added"`
	Modified string `json:"modified"`
	Merged   string `json:"merged"`
}

type Settings struct {
	SchemaVersion     int             `json:"schema_version"`
	Highlights        HighlightColors `json:"highlights"`
	ChoicePolicy      string          `json:"choice_policy"`
	SessionTTLMinutes int             `json:"session_ttl_minutes"`
}

type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load() (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultSettings(), nil
		}
		return nil, err
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	backfillSettings(&settings)
	return &settings, nil
}

func (s *Store) Save(settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	backfillSettings(settings)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *Store) Update(fn func(*Settings)) (*Settings, error) {
	settings, err := s.Load()
	if err != nil {
		return nil, err
	}
	fn(settings)
	return settings, s.Save(settings)
}

func defaultSettings() *Settings {
	return &Settings{
		SchemaVersion: schemaVersion,
		Highlights: HighlightColors{
			Added:    defaultAddedColor,
			Modified: defaultModifiedColor,
			Merged:   defaultMergedColor,
		},
		ChoicePolicy:      ChoicePolicyPermissive,
		SessionTTLMinutes: defaultSessionTTLMinutes,
	}
}

func backfillSettings(settings *Settings) {
	if settings.SchemaVersion == 0 {
		settings.SchemaVersion = schemaVersion
	}
	settings.Highlights.Added = normalizeColor(settings.Highlights.Added, defaultAddedColor)
	settings.Highlights.Modified = normalizeColor(settings.Highlights.Modified, defaultModifiedColor)
	settings.Highlights.Merged = normalizeColor(settings.Highlights.Merged, defaultMergedColor)
	settings.ChoicePolicy = normalizeChoicePolicy(settings.ChoicePolicy)
	if settings.SessionTTLMinutes <= 0 {
		settings.SessionTTLMinutes = defaultSessionTTLMinutes
	}
	if settings.SessionTTLMinutes > maxSessionTTLMinutes {
		settings.SessionTTLMinutes = maxSessionTTLMinutes
	}
}

func normalizeChoicePolicy(value string) string {
	switch policy := strings.ToLower(strings.TrimSpace(value)); policy {
	case ChoicePolicyPermissive, ChoicePolicyStrict:
		return policy
	}
	return ChoicePolicyPermissive
}

// normalizeColor accepts "#RRGGBB" with or without the leading hash and
// returns it upper-cased with the hash.
func normalizeColor(value, fallback string) string {
	color := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(color) != 6 {
		return fallback
	}
	for _, r := range color {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return fallback
		}
	}
	return "#" + strings.ToUpper(color)
}
