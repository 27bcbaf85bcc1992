package store

import (
	"testing"

	"github.com/taskquest/taskquest/internal/model"
)

func setupTaskTest(t *testing.T) (*TaskStore, *UserStore, *model.User, *model.User) {
	t.Helper()
	db := setupTestDB(t)
	us := NewUserStore(db)

	parent, err := us.CreateParent("mom@example.com", "Mom", "hash")
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := us.CreateChild(parent.ID, "kid@example.com", "Kid", "hash")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return NewTaskStore(db), us, parent, child
}

func TestTaskCreate(t *testing.T) {
	ts, _, parent, child := setupTaskTest(t)

	task, err := ts.Create("Make bed", "Every morning", 5, model.TaskTypeDaily, "bed", parent.ID, []int64{child.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Title != "Make bed" {
		t.Errorf("title = %q", task.Title)
	}
	if task.CoinValue != 5 {
		t.Errorf("coin_value = %d, want 5", task.CoinValue)
	}
	if task.Completed {
		t.Error("new task should not be completed")
	}
	if task.LastCompletedAt != nil {
		t.Error("new task should have no completion timestamp")
	}
	if len(task.AssignedTo) != 1 || task.AssignedTo[0] != child.ID {
		t.Errorf("assigned_to = %v, want [%d]", task.AssignedTo, child.ID)
	}
}

func TestTaskListScoping(t *testing.T) {
	ts, us, parent, child := setupTaskTest(t)

	other, _ := us.CreateChild(parent.ID, "sib@example.com", "Sib", "hash")

	ts.Create("Make bed", "", 5, model.TaskTypeDaily, "", parent.ID, []int64{child.ID})
	ts.Create("Homework", "", 10, model.TaskTypeOneTime, "", parent.ID, []int64{child.ID, other.ID})

	byCreator, err := ts.ListByCreator(parent.ID)
	if err != nil {
		t.Fatalf("list by creator: %v", err)
	}
	if len(byCreator) != 2 {
		t.Errorf("creator sees %d tasks, want 2", len(byCreator))
	}

	byChild, err := ts.ListByAssignee(child.ID)
	if err != nil {
		t.Fatalf("list by assignee: %v", err)
	}
	if len(byChild) != 2 {
		t.Errorf("child sees %d tasks, want 2", len(byChild))
	}

	bySib, err := ts.ListByAssignee(other.ID)
	if err != nil {
		t.Fatalf("list by assignee: %v", err)
	}
	if len(bySib) != 1 {
		t.Errorf("sibling sees %d tasks, want 1", len(bySib))
	}
}

func TestTaskUpdateReplacesAssignmentsAndResets(t *testing.T) {
	ts, us, parent, child := setupTaskTest(t)

	other, _ := us.CreateChild(parent.ID, "sib@example.com", "Sib", "hash")
	task, _ := ts.Create("Make bed", "", 5, model.TaskTypeDaily, "", parent.ID, []int64{child.ID})

	// Simulate a completion so the reset is observable.
	if _, err := ts.db.Exec(
		`UPDATE tasks SET completed = 1, last_completed_at = datetime('now') WHERE id = ?`, task.ID,
	); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	updated, err := ts.Update(task.ID, "Make bed nicely", "With pillows", 8, model.TaskTypeDaily, "bed", []int64{other.ID}, true)
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if updated.Title != "Make bed nicely" || updated.CoinValue != 8 {
		t.Errorf("updated = %q/%d", updated.Title, updated.CoinValue)
	}
	if updated.Completed {
		t.Error("edit should return task to pending")
	}
	if updated.LastCompletedAt != nil {
		t.Error("edit should clear completion timestamp")
	}
	if len(updated.AssignedTo) != 1 || updated.AssignedTo[0] != other.ID {
		t.Errorf("assigned_to = %v, want [%d]", updated.AssignedTo, other.ID)
	}

	assigned, err := ts.IsAssigned(task.ID, child.ID)
	if err != nil {
		t.Fatalf("is assigned: %v", err)
	}
	if assigned {
		t.Error("old assignee should be removed")
	}
}

func TestTaskDelete(t *testing.T) {
	ts, _, parent, child := setupTaskTest(t)

	task, _ := ts.Create("Make bed", "", 5, model.TaskTypeDaily, "", parent.ID, []int64{child.ID})
	if err := ts.Delete(task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}

	got, err := ts.GetByID(task.ID)
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if got != nil {
		t.Error("expected nil for deleted task")
	}

	// Assignment rows go with the task.
	assigned, err := ts.IsAssigned(task.ID, child.ID)
	if err != nil {
		t.Fatalf("is assigned: %v", err)
	}
	if assigned {
		t.Error("assignments should cascade on delete")
	}
}
