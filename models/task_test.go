package models

import (
	"testing"
	"time"
)

func TestEffectiveStatus_OverdueOverlay(t *testing.T) {
	now := time.Now()
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	if got := EffectiveStatus(StatusPending, yesterday, now); got != StatusOverdue {
		t.Fatalf("pending past due: expected Overdue, got %s", got)
	}
	if got := EffectiveStatus(StatusInProgress, yesterday, now); got != StatusOverdue {
		t.Fatalf("in progress past due: expected Overdue, got %s", got)
	}
	if got := EffectiveStatus(StatusCompleted, yesterday, now); got != StatusCompleted {
		t.Fatalf("completed is never overdue, got %s", got)
	}
	if got := EffectiveStatus(StatusPending, tomorrow, now); got != StatusPending {
		t.Fatalf("pending before due: expected Pending, got %s", got)
	}
}

func TestEffectiveStatus_DueDateEqualToNowIsNotOverdue(t *testing.T) {
	now := time.Now()
	if got := EffectiveStatus(StatusPending, now, now); got != StatusPending {
		t.Fatalf("dueDate == now must not be overdue, got %s", got)
	}
}

func TestChecklistProgress(t *testing.T) {
	if got := ChecklistProgress(nil); got != 0 {
		t.Fatalf("empty checklist: expected 0, got %d", got)
	}

	items := []TodoItem{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	if got := ChecklistProgress(items); got != 0 {
		t.Fatalf("no completed items: expected 0, got %d", got)
	}

	items[0].Completed = true
	if got := ChecklistProgress(items); got != 33 {
		t.Fatalf("1 of 3: expected 33, got %d", got)
	}

	items[1].Completed = true
	if got := ChecklistProgress(items); got != 67 {
		t.Fatalf("2 of 3: expected 67, got %d", got)
	}

	items[2].Completed = true
	if got := ChecklistProgress(items); got != 100 {
		t.Fatalf("3 of 3: expected 100, got %d", got)
	}
}

func TestStatusForProgress_TransitionLaw(t *testing.T) {
	if got := StatusForProgress(0); got != StatusPending {
		t.Fatalf("progress 0: expected Pending, got %s", got)
	}
	if got := StatusForProgress(33); got != StatusInProgress {
		t.Fatalf("progress 33: expected In Progress, got %s", got)
	}
	if got := StatusForProgress(99); got != StatusInProgress {
		t.Fatalf("progress 99: expected In Progress, got %s", got)
	}
	if got := StatusForProgress(100); got != StatusCompleted {
		t.Fatalf("progress 100: expected Completed, got %s", got)
	}
}

func TestChecklistProgress_Idempotent(t *testing.T) {
	items := []TodoItem{{Text: "a", Completed: true}, {Text: "b"}}
	first := ChecklistProgress(items)
	second := ChecklistProgress(items)
	if first != second {
		t.Fatalf("progress must be stable for identical input: %d vs %d", first, second)
	}
	if StatusForProgress(first) != StatusForProgress(second) {
		t.Fatalf("derived status must be stable for identical input")
	}
}
