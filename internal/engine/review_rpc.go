package engine

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"

	"formedit/engine/internal/diff"
	"formedit/engine/internal/errinfo"
	"formedit/engine/internal/sheetxml"
	"formedit/engine/internal/workbench"
)

// workbenchID resolves the request to a workbench, preferring an explicit
// id over the source path.
func (e *Engine) workbenchID(id, sourcePath string) (string, *errinfo.ErrorInfo) {
	if id == "" && sourcePath == "" {
		return "", errinfo.ValidationFailed(errinfo.PhaseReview, "workbench_id or path is required")
	}
	if id == "" {
		id = workbench.IDForSource(sourcePath)
	}
	if _, err := e.workbenches.Open(id); err != nil {
		switch {
		case errors.Is(err, workbench.ErrNotFound):
			return "", errinfo.NotFound(errinfo.PhaseReview, "no versions recorded")
		case errors.Is(err, workbench.ErrInvalidID):
			return "", errinfo.ValidationFailed(errinfo.PhaseReview, err.Error())
		}
		return "", errinfo.FileReadFailed(errinfo.PhaseReview, err.Error())
	}
	return id, nil
}

func (e *Engine) VersionsList(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		WorkbenchID string `json:"workbench_id"`
		Path        string `json:"path"`
	}
	if errInfo := decodeParams(errinfo.PhaseReview, params, &req); errInfo != nil {
		return nil, errInfo
	}
	id, errInfo := e.workbenchID(req.WorkbenchID, req.Path)
	if errInfo != nil {
		return nil, errInfo
	}
	versions, err := e.workbenches.VersionsList(id)
	if err != nil {
		return nil, errinfo.FileReadFailed(errinfo.PhaseReview, err.Error())
	}
	history, err := e.workbenches.History(id)
	if err != nil {
		return nil, errinfo.FileReadFailed(errinfo.PhaseReview, err.Error())
	}
	return map[string]any{"workbench_id": id, "versions": versions, "history": history}, nil
}

// VersionRestore copies a recorded output back next to the original, or
// into destination_dir when given.
func (e *Engine) VersionRestore(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		WorkbenchID    string `json:"workbench_id"`
		Path           string `json:"path"`
		VersionID      string `json:"version_id"`
		DestinationDir string `json:"destination_dir"`
	}
	if errInfo := decodeParams(errinfo.PhaseReview, params, &req); errInfo != nil {
		return nil, errInfo
	}
	id, errInfo := e.workbenchID(req.WorkbenchID, req.Path)
	if errInfo != nil {
		return nil, errInfo
	}
	dest := req.DestinationDir
	if dest == "" {
		wb, err := e.workbenches.Open(id)
		if err != nil {
			return nil, errinfo.FileReadFailed(errinfo.PhaseReview, err.Error())
		}
		dest = filepath.Dir(wb.SourcePath)
	}
	restored, err := e.workbenches.VersionRestore(id, req.VersionID, dest)
	if err != nil {
		if errors.Is(err, workbench.ErrVersionNotFound) {
			return nil, errinfo.NotFound(errinfo.PhaseReview, err.Error())
		}
		return nil, errinfo.FileWriteFailed(errinfo.PhaseReview, err.Error())
	}
	e.logger.Info("review.version_restored", "workbench_id", id, "version_id", req.VersionID, "path", restored)
	return map[string]any{"path": restored}, nil
}

// ReviewGetDiff compares two workbooks row by row. With only path set, the
// newest recorded version of that original is compared against it.
func (e *Engine) ReviewGetDiff(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		Path       string `json:"path"`
		OutputPath string `json:"output_path"`
		MaxLines   int    `json:"max_lines"`
	}
	if errInfo := decodeParams(errinfo.PhaseReview, params, &req); errInfo != nil {
		return nil, errInfo
	}
	if req.Path == "" {
		return nil, errinfo.ValidationFailed(errinfo.PhaseReview, "path is required").WithSubphase(errinfo.SubphaseDiff)
	}
	if req.OutputPath == "" {
		id, errInfo := e.workbenchID("", req.Path)
		if errInfo != nil {
			return nil, errInfo.WithSubphase(errinfo.SubphaseDiff)
		}
		versions, err := e.workbenches.VersionsList(id)
		if err != nil {
			return nil, errinfo.FileReadFailed(errinfo.PhaseReview, err.Error()).WithSubphase(errinfo.SubphaseDiff)
		}
		if len(versions) == 0 {
			return nil, errinfo.NotFound(errinfo.PhaseReview, "no versions recorded").WithSubphase(errinfo.SubphaseDiff)
		}
		snapshot, err := e.workbenches.VersionSnapshotPath(id, versions[0].VersionID)
		if err != nil {
			return nil, errinfo.FileReadFailed(errinfo.PhaseReview, err.Error()).WithSubphase(errinfo.SubphaseDiff)
		}
		req.OutputPath = snapshot
	}
	before, err := sheetxml.Open(req.Path)
	if err != nil {
		return nil, documentError(errinfo.PhaseReview, err).WithSubphase(errinfo.SubphaseDiff)
	}
	after, err := sheetxml.Open(req.OutputPath)
	if err != nil {
		return nil, documentError(errinfo.PhaseReview, err).WithSubphase(errinfo.SubphaseDiff)
	}
	sheets := diff.DocumentDiff(before, after, req.MaxLines)
	changed := 0
	for _, sheet := range sheets {
		if sheet.Status != diff.SheetUnchanged {
			changed++
		}
	}
	return map[string]any{
		"path":           req.Path,
		"output_path":    req.OutputPath,
		"worksheets":     sheets,
		"changed_sheets": changed,
	}, nil
}
