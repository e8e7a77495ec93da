package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"formedit/engine/internal/editor"
	"formedit/engine/internal/logging"
	"formedit/engine/internal/sheetxml"
)

var (
	ErrCanceled   = errors.New("task execution canceled by user")
	ErrSaveFailed = errors.New("save failed")
)

// TaskResult is the per-task line of an execution report.
type TaskResult struct {
	TaskID string   `json:"task_id"`
	Title  string   `json:"title"`
	Status Status   `json:"status"`
	Result *Outcome `json:"result,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type Report struct {
	SessionID      string         `json:"session_id"`
	Status         Status         `json:"status"`
	TotalTasks     int            `json:"total_tasks"`
	CompletedTasks int            `json:"completed_tasks"`
	FailedTasks    int            `json:"failed_tasks"`
	ModifiedFiles  []string       `json:"modified_files"`
	Results        []TaskResult   `json:"results"`
	Summary        editor.Summary `json:"summary"`
	ExecutionTime  string         `json:"execution_time"`
}

type Executor struct {
	logger     *slog.Logger
	now        func() time.Time
	docOpts    []sheetxml.Option
	editorOpts []editor.Option
}

type ExecutorOption func(*Executor)

func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(x *Executor) {
		if logger != nil {
			x.logger = logger
		}
	}
}

func WithClock(now func() time.Time) ExecutorOption {
	return func(x *Executor) {
		if now != nil {
			x.now = now
		}
	}
}

// WithDocumentOptions sets the options used to open each session's
// original workbook.
func WithDocumentOptions(opts ...sheetxml.Option) ExecutorOption {
	return func(x *Executor) {
		x.docOpts = append(x.docOpts, opts...)
	}
}

func WithEditorOptions(opts ...editor.Option) ExecutorOption {
	return func(x *Executor) {
		x.editorOpts = append(x.editorOpts, opts...)
	}
}

func NewExecutor(opts ...ExecutorOption) *Executor {
	x := &Executor{logger: logging.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Execute runs every task of session in order against one editor and
// saves once if anything changed. A failing task never stops the tasks
// after it. With confirm false nothing is opened and ErrCanceled is
// returned. A canceled context fails the remaining tasks.
func (x *Executor) Execute(ctx context.Context, session *Session, confirm bool) (*Report, error) {
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if !confirm {
		x.logger.Info("tasks.canceled", "session_id", session.ID)
		return nil, ErrCanceled
	}
	doc, err := sheetxml.Open(session.SourcePath, x.docOpts...)
	if err != nil {
		session.Status = SessionFailed
		return nil, fmt.Errorf("open %s: %w", session.SourcePath, err)
	}
	ed := editor.New(doc, x.editorOpts...)
	session.Status = SessionExecuting
	started := x.now()
	logger := x.logger.With("session_id", session.ID)

	report := &Report{SessionID: session.ID, TotalTasks: len(session.Tasks)}
	for _, task := range session.Tasks {
		at := x.now().UTC()
		task.StartedAt = &at
		task.Status = StatusInProgress
		switch {
		case ctx.Err() != nil:
			task.Status = StatusFailed
			task.Error = ctx.Err().Error()
		case task.op == nil:
			task.Status = StatusFailed
			task.Error = fmt.Sprintf("unsupported action: %s", task.Action)
		default:
			outcome := task.op.Apply(ed)
			task.Result = &outcome
			if outcome.Success {
				task.Status = StatusCompleted
			} else {
				task.Status = StatusFailed
				task.Error = outcome.Error
				if task.Error == "" {
					task.Error = "unknown error"
				}
			}
		}
		done := x.now().UTC()
		task.CompletedAt = &done
		logger.Debug("tasks.task_done", "task_id", task.ID, "action", task.Action, "status", task.Status)
		if task.Status == StatusCompleted {
			report.CompletedTasks++
		} else {
			report.FailedTasks++
		}
		report.Results = append(report.Results, TaskResult{
			TaskID: task.ID,
			Title:  task.Title,
			Status: task.Status,
			Result: task.Result,
			Error:  task.Error,
		})
	}

	if ed.Modified() {
		out, err := ed.Save("")
		if err != nil {
			session.Status = SessionFailed
			logger.Error("tasks.save_failed", "error", err)
			return nil, fmt.Errorf("%w: %w", ErrSaveFailed, err)
		}
		session.ModifiedFiles = append(session.ModifiedFiles, out)
	}

	switch {
	case report.FailedTasks == 0:
		session.Status = SessionCompleted
	case report.CompletedTasks > 0:
		session.Status = SessionPartialSuccess
	default:
		session.Status = SessionFailed
	}
	finished := x.now().UTC()
	session.CompletedAt = &finished

	report.Status = session.Status
	report.ModifiedFiles = append([]string{}, session.ModifiedFiles...)
	report.Summary = ed.Summary()
	report.ExecutionTime = fmt.Sprintf("%.1fs", x.now().Sub(started).Seconds())
	logger.Info("tasks.executed", "status", session.Status, "completed", report.CompletedTasks, "failed", report.FailedTasks)
	return report, nil
}
