package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"formedit/engine/internal/errinfo"
	"formedit/engine/internal/tasks"
	"formedit/engine/internal/workbench"
)

func (e *Engine) SessionCreate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		SourcePath  string           `json:"source_path"`
		Description string           `json:"description"`
		Tasks       []tasks.TaskSpec `json:"tasks"`
	}
	if errInfo := decodeParams(errinfo.PhaseSession, params, &req); errInfo != nil {
		return nil, errInfo
	}
	if req.SourcePath == "" {
		return nil, errinfo.ValidationFailed(errinfo.PhaseSession, "source_path is required")
	}
	if _, err := os.Stat(req.SourcePath); err != nil {
		return nil, documentError(errinfo.PhaseSession, err)
	}
	if pruned := e.sessions.Prune(); pruned > 0 {
		e.logger.Debug("session.pruned", "count", pruned)
	}
	session, err := e.sessions.Create(req.SourcePath, req.Description, req.Tasks)
	if err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseSession, err.Error())
	}
	e.logger.Info("session.created", "session_id", session.ID, "tasks", len(session.Tasks))
	return map[string]any{"session": session}, nil
}

func (e *Engine) SessionGet(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if errInfo := decodeParams(errinfo.PhaseSession, params, &req); errInfo != nil {
		return nil, errInfo
	}
	if req.SessionID == "" {
		return map[string]any{"sessions": e.sessions.List()}, nil
	}
	session, ok := e.sessions.Get(req.SessionID)
	if !ok {
		return nil, errinfo.SessionNotFound(req.SessionID)
	}
	return map[string]any{"session": session}, nil
}

// SessionExecute runs a pending session once. Without confirm the session
// stays pending and nothing is written.
func (e *Engine) SessionExecute(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		SessionID string `json:"session_id"`
		Confirm   bool   `json:"confirm"`
	}
	if errInfo := decodeParams(errinfo.PhaseSession, params, &req); errInfo != nil {
		return nil, errInfo
	}
	if !req.Confirm {
		if _, ok := e.sessions.Get(req.SessionID); !ok {
			return nil, errinfo.SessionNotFound(req.SessionID)
		}
		e.logger.Info("session.canceled", "session_id", req.SessionID)
		info := errinfo.UserCanceled(errinfo.PhaseSession, tasks.ErrCanceled.Error())
		info.SessionID = req.SessionID
		return nil, info
	}
	kit, errInfo := e.toolkit()
	if errInfo != nil {
		return nil, errInfo
	}
	session, err := e.sessions.Take(req.SessionID)
	if err != nil {
		return nil, errinfo.SessionNotFound(req.SessionID)
	}
	executor := tasks.NewExecutor(
		tasks.WithLogger(e.logger),
		tasks.WithClock(e.now),
		tasks.WithDocumentOptions(kit.doc...),
		tasks.WithEditorOptions(kit.editor...),
	)
	report, err := executor.Execute(ctx, session, true)
	if err != nil {
		info := documentError(errinfo.PhaseSession, err)
		if errors.Is(err, tasks.ErrSaveFailed) {
			info = errinfo.FileWriteFailed(errinfo.PhaseSession, err.Error())
		}
		info.SessionID = session.ID
		return nil, info
	}
	var versions []*workbench.VersionMetadata
	for _, out := range report.ModifiedFiles {
		if version := e.recordOutput(session.SourcePath, workbench.ReasonSession, session.ID, out, report.Summary); version != nil {
			versions = append(versions, version)
		}
	}
	e.emit("SessionExecuted", map[string]any{
		"session_id":     session.ID,
		"status":         report.Status,
		"modified_files": report.ModifiedFiles,
	})
	return map[string]any{"report": report, "versions": versions}, nil
}
