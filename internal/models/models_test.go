package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid"
)

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusInProgress, StatusCompleted} {
		if !s.Valid() {
			t.Errorf("Expected status %q to be valid", s)
		}
	}

	if Status("done").Valid() {
		t.Error("Expected status 'done' to be invalid")
	}
	if Status("").Valid() {
		t.Error("Expected empty status to be invalid")
	}
}

func TestPriorityWeightOrdering(t *testing.T) {
	if PriorityHigh.Weight() <= PriorityMedium.Weight() {
		t.Error("Expected high to outweigh medium")
	}
	if PriorityMedium.Weight() <= PriorityLow.Weight() {
		t.Error("Expected medium to outweigh low")
	}
	if Priority("urgent").Weight() != 0 {
		t.Error("Expected unknown priority weight 0")
	}
}

func TestPermissionValid(t *testing.T) {
	if !PermissionView.Valid() || !PermissionEdit.Valid() {
		t.Error("Expected view and edit to be valid grant permissions")
	}
	if PermissionNone.Valid() {
		t.Error("Expected none to be invalid as a grant permission")
	}
}

func TestTaskCompletedDerivedFromStatus(t *testing.T) {
	task := Task{Status: StatusCompleted}
	if !task.Completed() {
		t.Error("Expected completed task to report Completed()")
	}

	task.Status = StatusInProgress
	if task.Completed() {
		t.Error("Expected in_progress task to not report Completed()")
	}
}

func TestTaskMarshalJSONIncludesCompleted(t *testing.T) {
	task := Task{
		ID:     uuid.Must(uuid.NewV4()),
		Title:  "Write spec",
		Status: StatusCompleted,
	}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Failed to marshal task: %v", err)
	}

	if !strings.Contains(string(data), `"completed":true`) {
		t.Errorf("Expected derived completed flag in JSON, got %s", data)
	}
}

func TestShareFor(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	task := Task{
		Shares: []ShareEntry{
			{UserID: userID, Permission: PermissionEdit},
		},
	}

	entry, ok := task.ShareFor(userID)
	if !ok {
		t.Fatal("Expected share entry for user")
	}
	if entry.Permission != PermissionEdit {
		t.Errorf("Expected edit permission, got %s", entry.Permission)
	}

	if _, ok := task.ShareFor(uuid.Must(uuid.NewV4())); ok {
		t.Error("Expected no share entry for unrelated user")
	}
}

func TestTaskCloneIsDeep(t *testing.T) {
	due := time.Now().Add(24 * time.Hour)
	task := Task{
		ID:      uuid.Must(uuid.NewV4()),
		DueDate: &due,
		Shares:  []ShareEntry{{UserID: uuid.Must(uuid.NewV4()), Permission: PermissionView}},
	}

	dup := task.Clone()
	dup.Shares[0].Permission = PermissionEdit
	*dup.DueDate = due.Add(time.Hour)

	if task.Shares[0].Permission != PermissionView {
		t.Error("Expected clone share mutation to not affect original")
	}
	if !task.DueDate.Equal(due) {
		t.Error("Expected clone due date mutation to not affect original")
	}
}
