package engine

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"

	"formedit/engine/internal/editor"
	"formedit/engine/internal/errinfo"
	"formedit/engine/internal/filter"
	"formedit/engine/internal/sheetxml"
	"formedit/engine/internal/workbench"
	"formedit/engine/internal/xlsxexport"
)

func (e *Engine) DocumentInspect(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		Path string `json:"path"`
	}
	if errInfo := decodeParams(errinfo.PhaseDocument, params, &req); errInfo != nil {
		return nil, errInfo
	}
	ed, errInfo := e.openEditor(errinfo.PhaseDocument, req.Path)
	if errInfo != nil {
		return nil, errInfo
	}
	doc := ed.Document()
	choiceSheets := doc.ChoiceWorksheets()
	if choiceSheets == nil {
		choiceSheets = []string{}
	}
	e.logger.Debug("document.inspect", "path", req.Path)
	return map[string]any{
		"path":              req.Path,
		"workbench_id":      workbench.IDForSource(req.Path),
		"worksheets":        doc.Inspect(),
		"choice_worksheets": choiceSheets,
	}, nil
}

func (e *Engine) DocumentClone(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		Path        string   `json:"path"`
		NewFormName string   `json:"new_form_name"`
		Equipment   []string `json:"equipment"`
	}
	if errInfo := decodeParams(errinfo.PhaseRebuild, params, &req); errInfo != nil {
		return nil, errInfo
	}
	if strings.TrimSpace(req.NewFormName) == "" {
		return nil, errinfo.ValidationFailed(errinfo.PhaseRebuild, "new_form_name is required").WithSubphase(errinfo.SubphaseClone)
	}
	ed, errInfo := e.openEditor(errinfo.PhaseRebuild, req.Path)
	if errInfo != nil {
		return nil, errInfo.WithSubphase(errinfo.SubphaseClone)
	}
	result, err := ed.CloneAndFilterByEquipment(req.NewFormName, req.Equipment)
	if err != nil {
		return nil, rebuildError(err).WithSubphase(errinfo.SubphaseClone)
	}
	version := e.recordOutput(req.Path, workbench.ReasonClone, "", result.OutputPath, ed.Summary())
	return map[string]any{"result": result, "version": version}, nil
}

func (e *Engine) DocumentMerge(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		Path       string   `json:"path"`
		SourcePath string   `json:"source_path"`
		FieldNames []string `json:"field_names"`
		OutputPath string   `json:"output_path"`
	}
	if errInfo := decodeParams(errinfo.PhaseRebuild, params, &req); errInfo != nil {
		return nil, errInfo
	}
	if req.SourcePath == "" || len(req.FieldNames) == 0 {
		return nil, errinfo.ValidationFailed(errinfo.PhaseRebuild, "source_path and field_names are required").WithSubphase(errinfo.SubphaseMerge)
	}
	ed, errInfo := e.openEditor(errinfo.PhaseRebuild, req.Path)
	if errInfo != nil {
		return nil, errInfo.WithSubphase(errinfo.SubphaseMerge)
	}
	result, err := ed.MergeFieldsFromSource(req.SourcePath, req.FieldNames)
	if err != nil {
		return nil, rebuildError(err).WithSubphase(errinfo.SubphaseMerge)
	}
	out, version, errInfo := e.saveRebuild(ed, req.Path, req.OutputPath, workbench.ReasonMerge)
	if errInfo != nil {
		return nil, errInfo.WithSubphase(errinfo.SubphaseMerge)
	}
	return map[string]any{"result": result, "output_path": out, "version": version}, nil
}

func (e *Engine) DocumentMergeByFilter(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		Path         string        `json:"path"`
		SourcePath   string        `json:"source_path"`
		FilterGroups filter.Groups `json:"filter_groups"`
		OutputPath   string        `json:"output_path"`
	}
	if errInfo := decodeParams(errinfo.PhaseRebuild, params, &req); errInfo != nil {
		return nil, errInfo
	}
	if req.SourcePath == "" {
		return nil, errinfo.ValidationFailed(errinfo.PhaseRebuild, "source_path is required").WithSubphase(errinfo.SubphaseMergeByFilter)
	}
	ed, errInfo := e.openEditor(errinfo.PhaseRebuild, req.Path)
	if errInfo != nil {
		return nil, errInfo.WithSubphase(errinfo.SubphaseMergeByFilter)
	}
	result, err := ed.MergeByFilterFromSource(req.SourcePath, req.FilterGroups)
	if err != nil {
		return nil, rebuildError(err).WithSubphase(errinfo.SubphaseMergeByFilter)
	}
	out, version, errInfo := e.saveRebuild(ed, req.Path, req.OutputPath, workbench.ReasonFilterMerge)
	if errInfo != nil {
		return nil, errInfo.WithSubphase(errinfo.SubphaseMergeByFilter)
	}
	return map[string]any{"result": result, "output_path": out, "version": version}, nil
}

// saveRebuild writes a merged document when the merge changed anything.
// An unchanged document yields an empty output path.
func (e *Engine) saveRebuild(ed *editor.Editor, sourcePath, outputPath, reason string) (string, *workbench.VersionMetadata, *errinfo.ErrorInfo) {
	if !ed.Modified() {
		return "", nil, nil
	}
	out, err := ed.Save(outputPath)
	if err != nil {
		if errors.Is(err, sheetxml.ErrOverwriteOriginal) {
			return "", nil, errinfo.ValidationFailed(errinfo.PhaseRebuild, err.Error())
		}
		return "", nil, errinfo.FileWriteFailed(errinfo.PhaseRebuild, err.Error())
	}
	return out, e.recordOutput(sourcePath, reason, "", out, ed.Summary()), nil
}

func (e *Engine) DocumentExportXLSX(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		Path       string `json:"path"`
		OutputPath string `json:"output_path"`
	}
	if errInfo := decodeParams(errinfo.PhaseReview, params, &req); errInfo != nil {
		return nil, errInfo
	}
	out := req.OutputPath
	if out == "" {
		out = xlsxexport.PathFor(req.Path)
	}
	if !strings.EqualFold(filepath.Ext(out), ".xlsx") {
		return nil, errinfo.ValidationFailed(errinfo.PhaseReview, "output_path must end in .xlsx").WithSubphase(errinfo.SubphaseExport)
	}
	ed, errInfo := e.openEditor(errinfo.PhaseReview, req.Path)
	if errInfo != nil {
		return nil, errInfo.WithSubphase(errinfo.SubphaseExport)
	}
	result, err := xlsxexport.Export(ed.Document(), out)
	if err != nil {
		return nil, errinfo.FileWriteFailed(errinfo.PhaseReview, err.Error()).WithSubphase(errinfo.SubphaseExport)
	}
	e.logger.Info("document.exported", "path", req.Path, "xlsx", result.Path, "highlighted", result.Highlighted)
	return result, nil
}

func rebuildError(err error) *errinfo.ErrorInfo {
	return documentError(errinfo.PhaseRebuild, err)
}
