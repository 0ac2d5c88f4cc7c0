package services

import (
	"errors"
	"testing"
	"time"

	"task-manager/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBuildTaskFilter_Overdue(t *testing.T) {
	now := time.Now()
	filter := buildTaskFilter("Overdue", "", now)

	status, ok := filter["status"].(bson.M)
	if !ok {
		t.Fatalf("expected status clause, got %v", filter["status"])
	}
	if status["$ne"] != models.StatusCompleted {
		t.Fatalf("overdue filter must exclude Completed, got %v", status["$ne"])
	}

	due, ok := filter["dueDate"].(bson.M)
	if !ok {
		t.Fatalf("expected dueDate clause, got %v", filter["dueDate"])
	}
	if due["$lt"] != now {
		t.Fatalf("overdue filter must use strict less-than now")
	}
}

func TestBuildTaskFilter_SpecificStatus(t *testing.T) {
	filter := buildTaskFilter("Pending", "", time.Now())
	if filter["status"] != models.StatusPending {
		t.Fatalf("expected Pending status filter, got %v", filter["status"])
	}
	if _, ok := filter["dueDate"]; ok {
		t.Fatalf("specific status filter must not constrain dueDate")
	}
}

func TestBuildTaskFilter_AllAndEmpty(t *testing.T) {
	for _, status := range []string{"", "All"} {
		filter := buildTaskFilter(status, "", time.Now())
		if _, ok := filter["status"]; ok {
			t.Fatalf("status %q must not produce a status clause", status)
		}
	}
}

func TestBuildTaskFilter_Search(t *testing.T) {
	filter := buildTaskFilter("", "deploy", time.Now())
	or, ok := filter["$or"].(bson.A)
	if !ok {
		t.Fatalf("expected $or clause for search, got %v", filter["$or"])
	}
	if len(or) != 2 {
		t.Fatalf("search must match title and description, got %d clauses", len(or))
	}

	title := or[0].(bson.M)["title"].(bson.M)
	if title["$options"] != "i" {
		t.Fatalf("search must be case-insensitive")
	}
}

func TestBuildTaskFilter_SearchEscapesRegexMeta(t *testing.T) {
	filter := buildTaskFilter("", "a.b*", time.Now())
	or := filter["$or"].(bson.A)
	title := or[0].(bson.M)["title"].(bson.M)
	if title["$regex"] != `a\.b\*` {
		t.Fatalf("regex metacharacters must be quoted, got %v", title["$regex"])
	}
}

func TestScopeToCaller(t *testing.T) {
	callerID := primitive.NewObjectID()

	admin := scopeToCaller(bson.M{}, models.RoleAdmin, callerID)
	if _, ok := admin["assignedTo"]; ok {
		t.Fatalf("admin scope must not restrict by assignment")
	}

	member := scopeToCaller(bson.M{}, models.RoleMember, callerID)
	if member["assignedTo"] != callerID {
		t.Fatalf("member scope must restrict to caller assignments, got %v", member["assignedTo"])
	}
}

func TestSortOrder(t *testing.T) {
	newest := sortOrder("newest")
	if len(newest) != 1 || newest[0].Key != "dueDate" || newest[0].Value != 1 {
		t.Fatalf("newest must sort dueDate ascending, got %v", newest)
	}

	oldest := sortOrder("oldest")
	if len(oldest) != 1 || oldest[0].Key != "dueDate" || oldest[0].Value != -1 {
		t.Fatalf("oldest must sort dueDate descending, got %v", oldest)
	}

	if sortOrder("") != nil {
		t.Fatalf("unspecified sort must leave order stable")
	}
}

func TestWithStatus_DoesNotMutateBase(t *testing.T) {
	callerID := primitive.NewObjectID()
	base := bson.M{"assignedTo": callerID}

	filter := withStatus(base, models.StatusCompleted)
	if filter["status"] != models.StatusCompleted {
		t.Fatalf("expected status clause, got %v", filter["status"])
	}
	if filter["assignedTo"] != callerID {
		t.Fatalf("scope must be preserved")
	}
	if _, ok := base["status"]; ok {
		t.Fatalf("base filter must not be mutated")
	}
}

func TestOverdueCountFilter_MatchesOverlaySemantics(t *testing.T) {
	now := time.Now()
	base := bson.M{"assignedTo": primitive.NewObjectID()}

	filter := overdueCountFilter(base, now)
	status := filter["status"].(bson.M)
	if status["$ne"] != models.StatusCompleted {
		t.Fatalf("overdue count must exclude Completed")
	}
	due := filter["dueDate"].(bson.M)
	if due["$lt"] != now {
		t.Fatalf("overdue count must use strict less-than now")
	}
	if len(base) != 1 {
		t.Fatalf("base filter must not be mutated")
	}
}

func TestUniqueIDs(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	got := uniqueIDs([]primitive.ObjectID{a, b, a, a})
	if len(got) != 2 {
		t.Fatalf("expected 2 unique ids, got %d", len(got))
	}
	if got[0] != a || got[1] != b {
		t.Fatalf("dedup must preserve order")
	}
}

func TestCanModifyTask(t *testing.T) {
	assignee := primitive.NewObjectID()
	outsider := primitive.NewObjectID()
	task := models.Task{AssignedTo: []primitive.ObjectID{assignee}}

	if !canModifyTask(&task, assignee, models.RoleMember) {
		t.Fatalf("assigned member must be allowed")
	}
	if canModifyTask(&task, outsider, models.RoleMember) {
		t.Fatalf("member outside assignedTo must be forbidden")
	}
	if !canModifyTask(&task, outsider, models.RoleAdmin) {
		t.Fatalf("admin must be allowed regardless of assignment")
	}
}

func TestApplyStatusOverride_CompletedForcesChecklist(t *testing.T) {
	task := models.Task{
		Status:   models.StatusInProgress,
		Progress: 33,
		TodoChecklist: []models.TodoItem{
			{Text: "a", Completed: true},
			{Text: "b"},
			{Text: "c"},
		},
	}

	applyStatusOverride(&task, models.StatusCompleted)

	if task.Status != models.StatusCompleted {
		t.Fatalf("expected Completed, got %s", task.Status)
	}
	if task.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", task.Progress)
	}
	for i, item := range task.TodoChecklist {
		if !item.Completed {
			t.Fatalf("item %d must be forced complete", i)
		}
	}
}

func TestApplyStatusOverride_OtherStatusesLeaveChecklistAlone(t *testing.T) {
	task := models.Task{
		Status:   models.StatusPending,
		Progress: 50,
		TodoChecklist: []models.TodoItem{
			{Text: "a", Completed: true},
			{Text: "b"},
		},
	}

	applyStatusOverride(&task, models.StatusInProgress)

	if task.Status != models.StatusInProgress {
		t.Fatalf("expected In Progress, got %s", task.Status)
	}
	// Direct override must not recompute progress from the checklist.
	if task.Progress != 50 {
		t.Fatalf("progress must be untouched, got %d", task.Progress)
	}
	if task.TodoChecklist[1].Completed {
		t.Fatalf("checklist must be untouched")
	}
}

func TestParseAssigneeIDs(t *testing.T) {
	if _, err := parseAssigneeIDs(nil); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("empty assignedTo must be a validation error, got %v", err)
	}
	if _, err := parseAssigneeIDs([]string{}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("empty assignedTo must be a validation error, got %v", err)
	}
	if _, err := parseAssigneeIDs([]string{"not-an-id"}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("malformed id must be a validation error, got %v", err)
	}

	id := primitive.NewObjectID()
	got, err := parseAssigneeIDs([]string{id.Hex()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != id {
		t.Fatalf("expected parsed id %s, got %v", id.Hex(), got)
	}
}

func TestBuildTaskView_OverlayAndCounts(t *testing.T) {
	now := time.Now()
	assignee := primitive.NewObjectID()
	task := models.Task{
		ID:         primitive.NewObjectID(),
		Title:      "ship release",
		Status:     models.StatusPending,
		DueDate:    now.Add(-time.Hour),
		AssignedTo: []primitive.ObjectID{assignee},
		TodoChecklist: []models.TodoItem{
			{Text: "tag", Completed: true},
			{Text: "publish"},
		},
	}

	index := map[primitive.ObjectID]models.AssigneeSummary{
		assignee: {ID: assignee, Name: "Ana", Email: "ana@example.com"},
	}

	view := buildTaskView(task, index, now)
	if view.Status != models.StatusOverdue {
		t.Fatalf("pending past-due task must display Overdue, got %s", view.Status)
	}
	if view.CompletedTodoCount != 1 || view.TotalTodoCount != 2 {
		t.Fatalf("expected 1/2 todo counts, got %d/%d", view.CompletedTodoCount, view.TotalTodoCount)
	}
	if len(view.AssignedTo) != 1 || view.AssignedTo[0].Email != "ana@example.com" {
		t.Fatalf("assignee expansion incomplete: %+v", view.AssignedTo)
	}
	// Stored status stays untouched: the overlay is read-time only.
	if view.Task.Status != models.StatusPending {
		t.Fatalf("stored status must remain Pending, got %s", view.Task.Status)
	}
}
