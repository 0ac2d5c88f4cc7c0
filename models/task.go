package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "Pending"
	StatusInProgress TaskStatus = "In Progress"
	StatusCompleted  TaskStatus = "Completed"

	// StatusOverdue is derived at read time and never persisted.
	StatusOverdue TaskStatus = "Overdue"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "Low"
	PriorityMedium TaskPriority = "Medium"
	PriorityHigh   TaskPriority = "High"
)

// TodoItem is a single checklist entry inside a task.
type TodoItem struct {
	Text      string `json:"text" bson:"text"`
	Completed bool   `json:"completed" bson:"completed"`
}

type Task struct {
	ID            primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Title         string               `json:"title" bson:"title"`
	Description   string               `json:"description" bson:"description"`
	Priority      TaskPriority         `json:"priority" bson:"priority"`
	Status        TaskStatus           `json:"status" bson:"status"`
	DueDate       time.Time            `json:"dueDate" bson:"dueDate"`
	StartDate     time.Time            `json:"startDate,omitempty" bson:"startDate,omitempty"`
	AssignedTo    []primitive.ObjectID `json:"assignedTo" bson:"assignedTo"`
	CreatedBy     primitive.ObjectID   `json:"createdBy" bson:"createdBy"`
	TodoChecklist []TodoItem           `json:"todoChecklist" bson:"todoChecklist"`
	Attachments   []string             `json:"attachments" bson:"attachments"`
	Progress      int                  `json:"progress" bson:"progress"`
	CreatedAt     time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// AssigneeSummary is the projection of a user embedded in task responses.
type AssigneeSummary struct {
	ID              primitive.ObjectID `json:"id" bson:"_id"`
	Name            string             `json:"name" bson:"name"`
	Email           string             `json:"email" bson:"email"`
	ProfileImageURL string             `json:"profileImageUrl" bson:"profileImageUrl"`
}

// TaskView is a task as returned to clients: assignees expanded, the overdue
// overlay applied and checklist counters attached.
type TaskView struct {
	Task
	Status             TaskStatus        `json:"status"`
	AssignedTo         []AssigneeSummary `json:"assignedTo"`
	CompletedTodoCount int               `json:"completedTodoCount"`
	TotalTodoCount     int               `json:"totalTodoCount"`
}

// EffectiveStatus overlays the synthetic Overdue status on top of the stored
// one. Completed tasks are never overdue; a due date equal to now is not
// overdue either (strict less-than).
func EffectiveStatus(stored TaskStatus, dueDate, now time.Time) TaskStatus {
	if stored == StatusCompleted {
		return stored
	}
	if dueDate.Before(now) {
		return StatusOverdue
	}
	return stored
}

// ChecklistProgress returns the rounded completion percentage of a checklist.
// An empty checklist counts as 0.
func ChecklistProgress(items []TodoItem) int {
	if len(items) == 0 {
		return 0
	}
	completed := 0
	for _, item := range items {
		if item.Completed {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(items)) * 100))
}

// StatusForProgress maps a progress percentage onto the stored status.
func StatusForProgress(progress int) TaskStatus {
	switch {
	case progress == 100:
		return StatusCompleted
	case progress > 0:
		return StatusInProgress
	default:
		return StatusPending
	}
}

// CompletedTodoCount counts checked items in a checklist.
func CompletedTodoCount(items []TodoItem) int {
	completed := 0
	for _, item := range items {
		if item.Completed {
			completed++
		}
	}
	return completed
}

// IsAssignedTo reports whether the given user appears in the task's
// assignee set.
func (t *Task) IsAssignedTo(userID primitive.ObjectID) bool {
	for _, id := range t.AssignedTo {
		if id == userID {
			return true
		}
	}
	return false
}
