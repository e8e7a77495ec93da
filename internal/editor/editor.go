package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"formedit/engine/internal/logging"
	"formedit/engine/internal/sheetxml"
)

type ChoicePolicy string

const (
	// ChoicePermissive appends to the sheet already holding the list, or to
	// the first sheet shaped like a choice list.
	ChoicePermissive ChoicePolicy = "permissive"
	// ChoiceStrict only appends where the list already has a row.
	ChoiceStrict ChoicePolicy = "strict"
)

// ParseChoicePolicy maps a settings value to a policy. Unknown values fall
// back to ChoicePermissive and report false.
func ParseChoicePolicy(value string) (ChoicePolicy, bool) {
	switch ChoicePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case ChoicePermissive:
		return ChoicePermissive, true
	case ChoiceStrict:
		return ChoiceStrict, true
	}
	return ChoicePermissive, false
}

var (
	ErrWorksheetNotFound = errors.New("worksheet not found")
	ErrTableNotFound     = errors.New("table not found")
	ErrColumnMissing     = errors.New("required column missing")
)

const (
	colType      = "type"
	colName      = "name"
	colLabel     = "label"
	colRelevant  = "relevant"
	colEquipment = "equipment_type"
	colOrder     = "order"
)

var listNameAliases = []string{"list name", "list_name"}

var selectTypePattern = regexp2.MustCompile(`^(select_one|select_multiple)\s+(\S+)`, regexp2.IgnoreCase)

// ChoiceListFromType extracts the list name from a select_one or
// select_multiple field type.
func ChoiceListFromType(fieldType string) (string, bool) {
	m, err := selectTypePattern.FindStringMatch(strings.TrimSpace(fieldType))
	if err != nil || m == nil {
		return "", false
	}
	return m.GroupByNumber(2).String(), true
}

// Edit is one entry of the editor's history.
type Edit struct {
	Operation string `json:"operation"`
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

type Summary struct {
	OriginalFile    string `json:"original_file"`
	Modified        bool   `json:"modified"`
	TotalEdits      int    `json:"total_edits"`
	SuccessfulEdits int    `json:"successful_edits"`
	EditHistory     []Edit `json:"edit_history"`
}

// Editor applies field and choice level operations to one document. Like
// the document it wraps, it is not safe for concurrent use.
type Editor struct {
	doc        *sheetxml.Document
	logger     *slog.Logger
	policy     ChoicePolicy
	now        func() time.Time
	sourceOpts []sheetxml.Option
	history    []Edit
}

type Option func(*Editor)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithChoicePolicy(policy ChoicePolicy) Option {
	return func(e *Editor) {
		if p, ok := ParseChoicePolicy(string(policy)); ok {
			e.policy = p
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Editor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSourceOptions sets the options used to open merge sources.
func WithSourceOptions(opts ...sheetxml.Option) Option {
	return func(e *Editor) {
		e.sourceOpts = append([]sheetxml.Option(nil), opts...)
	}
}

func New(doc *sheetxml.Document, opts ...Option) *Editor {
	e := &Editor{
		doc:    doc,
		logger: logging.Nop(),
		policy: ChoicePermissive,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Editor) Document() *sheetxml.Document {
	return e.doc
}

func (e *Editor) Modified() bool {
	return e.doc.Modified()
}

func (e *Editor) Policy() ChoicePolicy {
	return e.policy
}

// Save writes the document once. An empty path picks the default name.
func (e *Editor) Save(outputPath string) (string, error) {
	path, err := e.doc.Save(outputPath)
	e.record("save", err == nil, "%s", path)
	return path, err
}

func (e *Editor) Summary() Summary {
	history := append([]Edit(nil), e.history...)
	successful := 0
	for _, edit := range history {
		if edit.Success {
			successful++
		}
	}
	return Summary{
		OriginalFile:    e.doc.Path(),
		Modified:        e.doc.Modified(),
		TotalEdits:      len(history),
		SuccessfulEdits: successful,
		EditHistory:     history,
	}
}

func (e *Editor) record(operation string, success bool, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	e.history = append(e.history, Edit{
		Operation: operation,
		Success:   success,
		Message:   message,
		Timestamp: e.now().UTC().Format(time.RFC3339),
	})
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	e.logger.Log(context.Background(), level, "editor."+operation, "success", success, "message", message)
}

type sheet struct {
	ws      *sheetxml.Worksheet
	table   *sheetxml.Table
	headers []string
}

func (s sheet) col(aliases ...string) int {
	return sheetxml.HeaderIndex(s.headers, aliases...)
}

func openSheet(doc *sheetxml.Document, name string) (sheet, error) {
	ws, ok := doc.FindWorksheet(name)
	if !ok {
		return sheet{}, fmt.Errorf("%w: %q", ErrWorksheetNotFound, name)
	}
	table, ok := ws.Table()
	if !ok {
		return sheet{}, fmt.Errorf("%w: worksheet %q", ErrTableNotFound, name)
	}
	return sheet{ws: ws, table: table, headers: table.Headers()}, nil
}

// choiceSheets returns select_one, select_multiple and any other detected
// choice worksheet, excluding the survey and settings sheets.
func choiceSheets(doc *sheetxml.Document) []sheet {
	names := []string{sheetxml.WorksheetSelectOne, sheetxml.WorksheetSelectMultiple}
	names = append(names, doc.ChoiceWorksheets()...)
	seen := map[string]bool{sheetxml.WorksheetSurvey: true, sheetxml.WorksheetSettings: true}
	var out []sheet
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		s, err := openSheet(doc, name)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out
}

func requireColumns(s sheet, names ...string) error {
	for _, name := range names {
		if s.col(name) < 0 {
			return fmt.Errorf("%w: %q has no %q column (headers %v)", ErrColumnMissing, s.ws.Name(), name, s.headers)
		}
	}
	return nil
}

func cellValue(row *sheetxml.Row, col int) string {
	if col < 0 {
		return ""
	}
	v, _ := row.ValueAt(col)
	return v
}

// findField locates a survey row by exact name, then by a case-insensitive
// label substring. The first match wins in both passes.
func findField(s sheet, fieldName string) (*sheetxml.Row, string) {
	nameCol := s.col(colName)
	rows := s.table.DataRows()
	if nameCol >= 0 {
		for _, row := range rows {
			if cellValue(row, nameCol) == fieldName {
				return row, "name"
			}
		}
	}
	labelCol := s.col(colLabel)
	needle := strings.ToLower(strings.TrimSpace(fieldName))
	if labelCol < 0 || needle == "" {
		return nil, ""
	}
	for _, row := range rows {
		if strings.Contains(strings.ToLower(cellValue(row, labelCol)), needle) {
			return row, "label"
		}
	}
	return nil, ""
}

func sheetHasList(s sheet, listCol int, listName string) bool {
	if listCol < 0 {
		return false
	}
	for _, row := range s.table.DataRows() {
		if strings.TrimSpace(cellValue(row, listCol)) == listName {
			return true
		}
	}
	return false
}
