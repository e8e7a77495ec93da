// Package logging sets up the engine's slog loggers and keeps logged
// payloads short.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	logDirName  = "logs"
	logFileName = "formedit-engine.log"
)

// FileLogger is the engine logger plus the file behind it. A disabled
// logger discards everything and has no path.
type FileLogger struct {
	Logger  *slog.Logger
	Close   func() error
	Path    string
	Enabled bool
}

func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func disabled() FileLogger {
	return FileLogger{Logger: Nop(), Close: func() error { return nil }}
}

// NewFileLogger appends JSON records to <dataDir>/logs/formedit-engine.log
// when debug is set. String attributes are compacted and sensitive keys
// masked before they reach the file.
func NewFileLogger(dataDir string, debug bool) (FileLogger, error) {
	if !debug {
		return disabled(), nil
	}
	logDir := filepath.Join(dataDir, logDirName)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return disabled(), err
	}
	path := filepath.Join(logDir, logFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return disabled(), err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		AddSource:   true,
		ReplaceAttr: compactAttr,
	})
	return FileLogger{
		Logger:  slog.New(handler),
		Close:   file.Close,
		Path:    path,
		Enabled: true,
	}, nil
}

func compactAttr(groups []string, attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString {
		return attr
	}
	if redactedKeys[strings.ToLower(attr.Key)] {
		return slog.String(attr.Key, redactedValue)
	}
	return slog.String(attr.Key, CompactValue(attr.Value.String()))
}
