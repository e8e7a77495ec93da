package tasks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"formedit/engine/internal/editor"
	"formedit/engine/internal/filter"
)

type Action string

const (
	ActionAddRow              Action = "add_row"
	ActionAddChoice           Action = "add_choice"
	ActionAddChoiceBatch      Action = "add_choice_batch"
	ActionModifyFieldProperty Action = "modify_field_property"
	ActionModifyChoice        Action = "modify_choice"
	ActionDeleteField         Action = "delete_field"
	ActionDeleteByFilter      Action = "delete_by_filter"
	ActionSetCell             Action = "set_cell"
)

var ErrInvalidTask = errors.New("invalid task")

// TaskSpec is a task as it arrives from a caller, before validation.
type TaskSpec struct {
	Title     string          `json:"title,omitempty"`
	Action    Action          `json:"action"`
	Worksheet string          `json:"worksheet,omitempty"`
	Params    json.RawMessage `json:"params"`
}

// Outcome is what applying one operation produced.
type Outcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Detail  any    `json:"detail,omitempty"`
}

// Operation is a validated edit. The set of implementations is closed.
type Operation interface {
	Action() Action
	Apply(e *editor.Editor) Outcome
	validate() error
}

type AddRow struct {
	Values      []string `json:"values"`
	TargetSheet string   `json:"target_sheet,omitempty"`
}

func (AddRow) Action() Action { return ActionAddRow }

func (op AddRow) validate() error {
	if len(op.Values) == 0 {
		return errors.New("values is empty")
	}
	return nil
}

func (op AddRow) Apply(e *editor.Editor) Outcome {
	res := e.AddRowToBestMatch(op.Values, op.TargetSheet)
	return Outcome{Success: res.Success, Error: res.Message, Detail: res}
}

type AddChoice struct {
	ListName  string `json:"list_name"`
	Label     string `json:"label"`
	Name      string `json:"name,omitempty"`
	Worksheet string `json:"worksheet,omitempty"`
}

func (AddChoice) Action() Action { return ActionAddChoice }

func (op AddChoice) validate() error {
	if strings.TrimSpace(op.ListName) == "" {
		return errors.New("list_name is required")
	}
	if strings.TrimSpace(op.Label) == "" {
		return errors.New("label is required")
	}
	return nil
}

func (op AddChoice) Apply(e *editor.Editor) Outcome {
	name := strings.TrimSpace(op.Name)
	if name == "" {
		name = editor.DeriveChoiceName(op.Label)
	}
	if !e.AddChoiceOption(op.ListName, strings.TrimSpace(op.Label), name, op.Worksheet) {
		return Outcome{Error: fmt.Sprintf("could not add %q to list %q", op.Label, op.ListName)}
	}
	return Outcome{Success: true}
}

// ChoiceItems accepts either plain labels or {label, name} objects.
type ChoiceItems []editor.ChoiceItem

func (items *ChoiceItems) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(ChoiceItems, 0, len(raw))
	for _, entry := range raw {
		var label string
		if err := json.Unmarshal(entry, &label); err == nil {
			out = append(out, editor.ChoiceItem{Label: label})
			continue
		}
		var item editor.ChoiceItem
		if err := json.Unmarshal(entry, &item); err != nil {
			return fmt.Errorf("choice item: %w", err)
		}
		out = append(out, item)
	}
	*items = out
	return nil
}

type AddChoiceBatch struct {
	ListName  string      `json:"list_name"`
	Items     ChoiceItems `json:"items"`
	Worksheet string      `json:"worksheet,omitempty"`
}

func (AddChoiceBatch) Action() Action { return ActionAddChoiceBatch }

func (op AddChoiceBatch) validate() error {
	if strings.TrimSpace(op.ListName) == "" {
		return errors.New("list_name is required")
	}
	if len(op.Items) == 0 {
		return errors.New("items is empty")
	}
	return nil
}

func (op AddChoiceBatch) Apply(e *editor.Editor) Outcome {
	res := e.AddChoiceOptionsBatch(op.ListName, op.Items, op.Worksheet)
	out := Outcome{Success: res.Added > 0 && res.Modified, Detail: res}
	if len(res.Failed) > 0 {
		out.Error = fmt.Sprintf("%d of %d item(s) failed", len(res.Failed), len(op.Items))
	}
	return out
}

type ModifyFieldProperty struct {
	WorksheetName    string `json:"worksheet_name"`
	KeyFieldName     string `json:"key_field_name"`
	KeyFieldValue    string `json:"key_field_value"`
	PropertyToChange string `json:"property_to_change"`
	NewValue         string `json:"new_value"`
}

func (ModifyFieldProperty) Action() Action { return ActionModifyFieldProperty }

func (op ModifyFieldProperty) validate() error {
	if strings.TrimSpace(op.WorksheetName) == "" || strings.TrimSpace(op.PropertyToChange) == "" {
		return errors.New("worksheet_name and property_to_change are required")
	}
	return nil
}

func (op ModifyFieldProperty) Apply(e *editor.Editor) Outcome {
	ok := e.ModifyFieldProperty(op.WorksheetName, op.KeyFieldName, op.KeyFieldValue, op.PropertyToChange, op.NewValue)
	if !ok {
		return Outcome{Error: fmt.Sprintf("could not set %s where %s=%q in %s", op.PropertyToChange, op.KeyFieldName, op.KeyFieldValue, op.WorksheetName)}
	}
	return Outcome{Success: true}
}

type ModifyChoice struct {
	ListName         string `json:"list_name"`
	ChoiceName       string `json:"choice_name"`
	PropertyToChange string `json:"property_to_change"`
	NewValue         string `json:"new_value"`
}

func (ModifyChoice) Action() Action { return ActionModifyChoice }

func (op ModifyChoice) validate() error {
	if op.ListName == "" || op.ChoiceName == "" || op.PropertyToChange == "" {
		return errors.New("list_name, choice_name and property_to_change are required")
	}
	return nil
}

func (op ModifyChoice) Apply(e *editor.Editor) Outcome {
	if !e.ModifyChoiceProperty(op.ListName, op.ChoiceName, op.PropertyToChange, op.NewValue) {
		return Outcome{Error: fmt.Sprintf("could not change %s of %q in list %q", op.PropertyToChange, op.ChoiceName, op.ListName)}
	}
	return Outcome{Success: true}
}

type DeleteField struct {
	FieldName string `json:"field_name"`
}

func (DeleteField) Action() Action { return ActionDeleteField }

func (op DeleteField) validate() error {
	if strings.TrimSpace(op.FieldName) == "" {
		return errors.New("field_name is required")
	}
	return nil
}

func (op DeleteField) Apply(e *editor.Editor) Outcome {
	if !e.RemoveFieldByName(op.FieldName) {
		return Outcome{Error: fmt.Sprintf("field %q not found", op.FieldName)}
	}
	return Outcome{Success: true}
}

type DeleteByFilter struct {
	FilterGroups filter.Groups `json:"filter_groups"`
}

func (DeleteByFilter) Action() Action { return ActionDeleteByFilter }

func (op DeleteByFilter) validate() error {
	_, err := filter.Compile(op.FilterGroups)
	return err
}

func (op DeleteByFilter) Apply(e *editor.Editor) Outcome {
	res := e.RemoveFieldsByFilter(op.FilterGroups)
	out := Outcome{Success: res.Success, Detail: res}
	if !res.Success {
		out.Error = res.Message
	}
	return out
}

type SetCell struct {
	Worksheet string `json:"worksheet"`
	Row       int    `json:"row"`
	Column    int    `json:"column"`
	Value     string `json:"value"`
}

func (SetCell) Action() Action { return ActionSetCell }

func (op SetCell) validate() error {
	if op.Worksheet == "" {
		return errors.New("worksheet is required")
	}
	if op.Row < 1 || op.Column < 0 {
		return errors.New("row must be at least 1 and column at least 0")
	}
	return nil
}

func (op SetCell) Apply(e *editor.Editor) Outcome {
	if !e.SetCell(op.Worksheet, op.Row, op.Column, op.Value) {
		return Outcome{Error: fmt.Sprintf("no cell at row %d column %d in %s", op.Row, op.Column, op.Worksheet)}
	}
	return Outcome{Success: true}
}

var decoders = map[Action]func() Operation{
	ActionAddRow:              func() Operation { return &AddRow{} },
	ActionAddChoice:           func() Operation { return &AddChoice{} },
	ActionAddChoiceBatch:      func() Operation { return &AddChoiceBatch{} },
	ActionModifyFieldProperty: func() Operation { return &ModifyFieldProperty{} },
	ActionModifyChoice:        func() Operation { return &ModifyChoice{} },
	ActionDeleteField:         func() Operation { return &DeleteField{} },
	ActionDeleteByFilter:      func() Operation { return &DeleteByFilter{} },
	ActionSetCell:             func() Operation { return &SetCell{} },
}

// Decode turns a spec into a validated operation. Unknown actions,
// unknown parameters and missing required values are rejected here so the
// editor only ever sees well-formed requests.
func Decode(spec TaskSpec) (Operation, error) {
	action := Action(strings.ToLower(strings.TrimSpace(string(spec.Action))))
	newOp, ok := decoders[action]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported action %q", ErrInvalidTask, spec.Action)
	}
	op := newOp()
	params := spec.Params
	if len(bytes.TrimSpace(params)) == 0 {
		params = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(op); err != nil {
		return nil, fmt.Errorf("%w: %s params: %v", ErrInvalidTask, action, err)
	}
	if err := op.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTask, action, err)
	}
	return op, nil
}

// Actions lists every supported action name.
func Actions() []Action {
	return []Action{
		ActionAddRow, ActionAddChoice, ActionAddChoiceBatch, ActionModifyFieldProperty,
		ActionModifyChoice, ActionDeleteField, ActionDeleteByFilter, ActionSetCell,
	}
}
