package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"formedit/engine/internal/sheetxml"
)

func copyForm(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "form.xml"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "form.xml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestExecutePartialSuccessSavesOnce(t *testing.T) {
	path := copyForm(t)
	store := NewStore()
	session, err := store.Create(path, "tidy form", []TaskSpec{
		spec(ActionDeleteField, `{"field_name":"coolant"}`),
		spec(ActionDeleteField, `{"field_name":"ghost"}`),
		spec(ActionModifyFieldProperty, `{"worksheet_name":"settings","key_field_name":"","key_field_value":"","property_to_change":"version","new_value":"2"}`),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	taken, err := store.Take(session.ID)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	report, err := NewExecutor().Execute(context.Background(), taken, true)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Status != SessionPartialSuccess || report.CompletedTasks != 2 || report.FailedTasks != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Results[1].Status != StatusFailed || report.Results[1].Error == "" {
		t.Fatalf("expected second task to fail with a reason, got %+v", report.Results[1])
	}
	if len(report.ModifiedFiles) != 1 {
		t.Fatalf("expected one saved file, got %v", report.ModifiedFiles)
	}
	doc, err := sheetxml.Open(report.ModifiedFiles[0])
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	survey, _ := doc.FindWorksheet("survey")
	for _, row := range survey.DataRows() {
		if row.Values(survey.Headers())["name"] == "coolant" {
			t.Fatalf("coolant survived in the saved output")
		}
	}
	if _, err := os.Stat(path + sheetxml.BackupSuffix); err != nil {
		t.Fatalf("expected backup: %v", err)
	}
	if report.Summary.TotalEdits < 3 {
		t.Fatalf("expected edit history in the summary, got %+v", report.Summary)
	}
	if _, ok := store.Get(session.ID); ok {
		t.Fatalf("executed session must not stay in the store")
	}
}

func TestExecuteAllFailedWritesNothing(t *testing.T) {
	path := copyForm(t)
	store := NewStore()
	session, err := store.Create(path, "", []TaskSpec{spec(ActionDeleteField, `{"field_name":"ghost"}`)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	taken, _ := store.Take(session.ID)
	report, err := NewExecutor().Execute(context.Background(), taken, true)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Status != SessionFailed || len(report.ModifiedFiles) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the original on disk, got %d entries", len(entries))
	}
}

func TestExecuteCanceled(t *testing.T) {
	path := copyForm(t)
	store := NewStore()
	session, err := store.Create(path, "", []TaskSpec{spec(ActionDeleteField, `{"field_name":"coolant"}`)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	taken, _ := store.Take(session.ID)
	if _, err := NewExecutor().Execute(context.Background(), taken, false); !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if taken.Status != SessionPending || taken.Tasks[0].Status != StatusPending {
		t.Fatalf("canceled session must stay untouched")
	}
}

func TestExecuteWithCanceledContextFailsTasks(t *testing.T) {
	path := copyForm(t)
	store := NewStore()
	session, err := store.Create(path, "", []TaskSpec{spec(ActionDeleteField, `{"field_name":"coolant"}`)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	taken, _ := store.Take(session.ID)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := NewExecutor().Execute(ctx, taken, true)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Status != SessionFailed || report.Results[0].Error == "" {
		t.Fatalf("expected failed task, got %+v", report)
	}
}

func TestStoreLifecycle(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(WithTTL(time.Minute), WithStoreClock(func() time.Time { return now }))
	session, err := store.Create("form.xml", "", []TaskSpec{spec(ActionDeleteField, `{"field_name":"x"}`)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, ok := store.Get(session.ID)
	if !ok || got.Tasks[0].ID != "task_1" || got.Tasks[0].Title != string(ActionDeleteField) {
		t.Fatalf("unexpected session %+v", got)
	}
	got.Tasks[0].Status = StatusFailed
	again, _ := store.Get(session.ID)
	if again.Tasks[0].Status != StatusPending {
		t.Fatalf("Get must return a copy")
	}
	if len(store.List()) != 1 {
		t.Fatalf("expected one listed session")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := store.Get(session.ID); ok {
		t.Fatalf("expired session must be invisible")
	}
	if _, err := store.Take(session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStorePrune(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(WithTTL(time.Minute), WithStoreClock(func() time.Time { return now }))
	for i := 0; i < 3; i++ {
		if _, err := store.Create("form.xml", "", []TaskSpec{spec(ActionDeleteField, `{"field_name":"x"}`)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	now = now.Add(time.Hour)
	if removed := store.Prune(); removed != 3 {
		t.Fatalf("expected 3 pruned, got %d", removed)
	}
}

func TestStoreCreateRejectsInvalidPlan(t *testing.T) {
	store := NewStore()
	_, err := store.Create("form.xml", "", []TaskSpec{
		spec(ActionDeleteField, `{"field_name":"x"}`),
		spec("explode", `{}`),
	})
	if !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("expected ErrInvalidTask, got %v", err)
	}
	if len(store.List()) != 0 {
		t.Fatalf("invalid plan must not be stored")
	}
}
