package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"formedit/engine/internal/appdirs"
	"formedit/engine/internal/editor"
	"formedit/engine/internal/errinfo"
	"formedit/engine/internal/filter"
	"formedit/engine/internal/logging"
	"formedit/engine/internal/settings"
	"formedit/engine/internal/sheetxml"
	"formedit/engine/internal/tasks"
	"formedit/engine/internal/workbench"
)

const (
	EngineVersion = "0.1.0"
	APIVersion    = "1"
)

type Notifier func(method string, params any)

// Engine serves the RPC surface: document inspection and rebuilds, task
// sessions, saved versions and review diffs, and settings.
type Engine struct {
	dataDir     string
	settings    *settings.Store
	workbenches *workbench.Manager
	sessions    *tasks.Store
	notify      Notifier
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock replaces the time source for output names, sessions and
// version metadata.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithDataDir skips the environment lookup for the data directory.
func WithDataDir(dir string) Option {
	return func(e *Engine) {
		e.dataDir = dir
	}
}

func New(opts ...Option) (*Engine, error) {
	engine := &Engine{logger: logging.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(engine)
	}
	if engine.dataDir == "" {
		dataDir, err := appdirs.DataDir()
		if err != nil {
			return nil, err
		}
		engine.dataDir = dataDir
	}
	if err := os.MkdirAll(engine.dataDir, 0o755); err != nil {
		return nil, err
	}
	workbenchesDir := appdirs.WorkbenchesDir(engine.dataDir)
	mgr := workbench.NewManager(workbenchesDir)
	mgr.SetClock(engine.now)
	if err := mgr.Init(); err != nil {
		return nil, err
	}
	engine.workbenches = mgr
	engine.settings = settings.NewStore(appdirs.SettingsPath(engine.dataDir))
	cfg, err := engine.settings.Load()
	if err != nil {
		return nil, err
	}
	engine.sessions = tasks.NewStore(
		tasks.WithTTL(time.Duration(cfg.SessionTTLMinutes)*time.Minute),
		tasks.WithStoreClock(engine.now),
	)
	engine.logger.Debug("engine.init", "data_dir", engine.dataDir, "workbenches_dir", workbenchesDir, "choice_policy", cfg.ChoicePolicy)
	return engine, nil
}

func (e *Engine) SetNotifier(notify Notifier) {
	e.notify = notify
}

func (e *Engine) emit(method string, params map[string]any) {
	if e.notify != nil {
		e.notify(method, params)
	}
}

func (e *Engine) EngineGetInfo(ctx context.Context, _ json.RawMessage) (any, *errinfo.ErrorInfo) {
	actions := make([]string, 0, len(tasks.Actions()))
	for _, action := range tasks.Actions() {
		actions = append(actions, string(action))
	}
	operators := make([]string, 0, len(filter.Operators))
	for _, op := range filter.Operators {
		operators = append(operators, string(op))
	}
	return map[string]any{
		"engine_version":   EngineVersion,
		"api_version":      APIVersion,
		"data_dir":         e.dataDir,
		"task_actions":     actions,
		"filter_operators": operators,
	}, nil
}

// toolkit bundles the document and editor options derived from the current
// settings.
type toolkit struct {
	doc    []sheetxml.Option
	editor []editor.Option
}

func (e *Engine) toolkit() (toolkit, *errinfo.ErrorInfo) {
	cfg, err := e.settings.Load()
	if err != nil {
		return toolkit{}, errinfo.FileReadFailed(errinfo.PhaseSettings, err.Error())
	}
	palette := sheetxml.Palette{
		Added:    cfg.Highlights.Added,
		Modified: cfg.Highlights.Modified,
		Merged:   cfg.Highlights.Merged,
	}
	policy, _ := editor.ParseChoicePolicy(cfg.ChoicePolicy)
	docOpts := []sheetxml.Option{
		sheetxml.WithLogger(e.logger),
		sheetxml.WithClock(e.now),
		sheetxml.WithPalette(palette),
	}
	return toolkit{
		doc: docOpts,
		editor: []editor.Option{
			editor.WithLogger(e.logger),
			editor.WithClock(e.now),
			editor.WithChoicePolicy(policy),
			editor.WithSourceOptions(docOpts...),
		},
	}, nil
}

// openEditor loads the workbook at path with the settings-derived options.
func (e *Engine) openEditor(phase, path string) (*editor.Editor, *errinfo.ErrorInfo) {
	if path == "" {
		return nil, errinfo.ValidationFailed(phase, "path is required")
	}
	kit, errInfo := e.toolkit()
	if errInfo != nil {
		return nil, errInfo
	}
	doc, err := sheetxml.Open(path, kit.doc...)
	if err != nil {
		return nil, documentError(phase, err)
	}
	return editor.New(doc, kit.editor...), nil
}

// recordOutput snapshots a saved output into the original's workbench and
// appends the editor history. Failures are logged; the output itself is
// already on disk.
func (e *Engine) recordOutput(sourcePath, reason, sessionID, outputPath string, summary editor.Summary) *workbench.VersionMetadata {
	logger := e.logger.With("source", sourcePath, "reason", reason)
	wb, err := e.workbenches.Ensure(sourcePath)
	if err != nil {
		logger.Warn("engine.workbench_failed", "error", err.Error())
		return nil
	}
	version, err := e.workbenches.VersionRecord(wb.ID, reason, summaryLine(summary), sessionID, outputPath)
	if err != nil {
		logger.Warn("engine.version_failed", "workbench_id", wb.ID, "error", err.Error())
		return nil
	}
	entries := make([]workbench.HistoryEntry, 0, len(summary.EditHistory))
	for _, edit := range summary.EditHistory {
		entries = append(entries, workbench.HistoryEntry{
			Operation: edit.Operation,
			Success:   edit.Success,
			Message:   edit.Message,
			Timestamp: edit.Timestamp,
			SessionID: sessionID,
		})
	}
	if err := e.workbenches.AppendHistory(wb.ID, entries); err != nil {
		logger.Warn("engine.history_failed", "workbench_id", wb.ID, "error", err.Error())
	}
	e.emit("VersionRecorded", map[string]any{
		"workbench_id": wb.ID,
		"version_id":   version.VersionID,
		"reason":       reason,
		"output_path":  outputPath,
	})
	return version
}

func summaryLine(summary editor.Summary) string {
	if summary.TotalEdits == 0 {
		return ""
	}
	return fmt.Sprintf("%d of %d edits succeeded", summary.SuccessfulEdits, summary.TotalEdits)
}

func documentError(phase string, err error) *errinfo.ErrorInfo {
	switch {
	case errors.Is(err, sheetxml.ErrWriteFailed):
		return errinfo.FileWriteFailed(phase, err.Error())
	case errors.Is(err, fs.ErrNotExist):
		return errinfo.NotFound(phase, err.Error())
	case errors.Is(err, sheetxml.ErrNotWorkbook),
		errors.Is(err, editor.ErrWorksheetNotFound),
		errors.Is(err, editor.ErrTableNotFound),
		errors.Is(err, editor.ErrColumnMissing):
		return errinfo.StructureInvalid(phase, err.Error())
	case isFilterError(err):
		return errinfo.ValidationFailed(phase, err.Error())
	case errors.Is(err, sheetxml.ErrOverwriteOriginal):
		return errinfo.ValidationFailed(phase, err.Error())
	}
	return errinfo.FileReadFailed(phase, err.Error())
}

func isFilterError(err error) bool {
	for _, target := range []error{
		filter.ErrEmptyFilter,
		filter.ErrEmptyGroup,
		filter.ErrMissingProperty,
		filter.ErrUnknownOperator,
		filter.ErrInvalidPattern,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func decodeParams(phase string, params json.RawMessage, dst any) *errinfo.ErrorInfo {
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return errinfo.ValidationFailed(phase, "invalid params")
	}
	return nil
}
