package engine

import (
	"context"
	"testing"
	"time"

	"github.com/taskquest/taskquest/internal/model"
)

func TestSweepResetsYesterdaysDailies(t *testing.T) {
	f := setup(t)

	loc := time.Local
	yesterday := time.Date(2026, time.August, 27, 23, 59, 0, 0, loc)
	today := time.Date(2026, time.August, 28, 0, 1, 0, 0, loc)

	task, _ := f.tasks.Create("Make bed", "", 5, model.TaskTypeDaily, "", f.parent.ID, []int64{f.child.ID})

	// Complete at 23:59 yesterday.
	f.engine.now = func() time.Time { return yesterday }
	if _, err := f.engine.CompleteTask(f.asChild(), task.ID); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	// Two minutes later it is a new calendar day; the task resets.
	f.engine.now = func() time.Time { return today }
	count, err := f.engine.SweepDailyTasks()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 1 {
		t.Fatalf("reset count = %d, want 1", count)
	}

	got, _ := f.tasks.GetByID(task.ID)
	if got.Completed {
		t.Error("task should be pending again")
	}
	if got.LastCompletedAt != nil {
		t.Error("completion timestamp should be cleared")
	}

	// The earlier credit stays on the ledger.
	if f.coins(t, f.child.ID) != 5 {
		t.Errorf("coins = %d, want 5", f.coins(t, f.child.ID))
	}
}

func TestSweepLeavesSameDayCompletions(t *testing.T) {
	f := setup(t)

	noon := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.Local)
	evening := time.Date(2026, time.August, 28, 20, 0, 0, 0, time.Local)

	task, _ := f.tasks.Create("Make bed", "", 5, model.TaskTypeDaily, "", f.parent.ID, []int64{f.child.ID})

	f.engine.now = func() time.Time { return noon }
	if _, err := f.engine.CompleteTask(f.asChild(), task.ID); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	f.engine.now = func() time.Time { return evening }
	count, err := f.engine.SweepDailyTasks()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 0 {
		t.Fatalf("reset count = %d, want 0", count)
	}

	got, _ := f.tasks.GetByID(task.ID)
	if !got.Completed {
		t.Error("same-day completion should stand")
	}
}

func TestSweepIgnoresOneTimeTasks(t *testing.T) {
	f := setup(t)

	yesterday := time.Date(2026, time.August, 27, 12, 0, 0, 0, time.Local)
	today := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.Local)

	task, _ := f.tasks.Create("Clean garage", "", 20, model.TaskTypeOneTime, "", f.parent.ID, []int64{f.child.ID})

	f.engine.now = func() time.Time { return yesterday }
	if _, err := f.engine.CompleteTask(f.asChild(), task.ID); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	f.engine.now = func() time.Time { return today }
	count, err := f.engine.SweepDailyTasks()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 0 {
		t.Fatalf("reset count = %d, want 0", count)
	}

	got, _ := f.tasks.GetByID(task.ID)
	if !got.Completed {
		t.Error("one-time tasks never reset")
	}
}

func TestSweeperStartStop(t *testing.T) {
	f := setup(t)

	yesterday := time.Date(2026, time.August, 27, 23, 0, 0, 0, time.Local)
	task, _ := f.tasks.Create("Make bed", "", 5, model.TaskTypeDaily, "", f.parent.ID, []int64{f.child.ID})

	f.engine.now = func() time.Time { return yesterday }
	if _, err := f.engine.CompleteTask(f.asChild(), task.ID); err != nil {
		t.Fatalf("complete task: %v", err)
	}
	f.engine.now = time.Now

	resets := make(chan int64, 1)
	sweeper := NewSweeper(f.engine, time.Hour, func(count int64) {
		resets <- count
	})

	sweeper.Start(context.Background())
	defer sweeper.Stop()

	// The immediate sweep on Start catches the stale completion.
	select {
	case count := <-resets:
		if count != 1 {
			t.Errorf("reset count = %d, want 1", count)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not run")
	}

	got, _ := f.tasks.GetByID(task.ID)
	if got.Completed {
		t.Error("task should be pending after sweep")
	}
}
