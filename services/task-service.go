package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"task-manager/logging"
	"task-manager/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

type TaskService struct {
	tasksCollection *mongo.Collection
	usersCollection *mongo.Collection
}

func NewTaskService(tasksCollection, usersCollection *mongo.Collection) *TaskService {
	return &TaskService{
		tasksCollection: tasksCollection,
		usersCollection: usersCollection,
	}
}

// StatusSummary carries the tab counts returned alongside task listings.
// The counts are scoped by role and search but never by the active status
// filter, so they stay stable across tabs.
type StatusSummary struct {
	All        int64 `json:"all"`
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"inProgress"`
	Completed  int64 `json:"completed"`
	Overdue    int64 `json:"overdue"`
}

type TaskListResult struct {
	Tasks         []models.TaskView `json:"tasks"`
	StatusSummary StatusSummary     `json:"statusSummary"`
}

// buildTaskFilter translates the status/search query parameters into a Mongo
// filter. "Overdue" is synthetic: it matches non-completed tasks past due.
func buildTaskFilter(status, search string, now time.Time) bson.M {
	filter := bson.M{}

	if status == string(models.StatusOverdue) {
		filter["status"] = bson.M{"$ne": models.StatusCompleted}
		filter["dueDate"] = bson.M{"$lt": now}
	} else if status != "" && status != "All" {
		filter["status"] = models.TaskStatus(status)
	}

	if search != "" {
		pattern := regexp.QuoteMeta(search)
		filter["$or"] = bson.A{
			bson.M{"title": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}

	return filter
}

// scopeToCaller restricts a filter to the caller's assigned tasks unless the
// caller is an admin.
func scopeToCaller(filter bson.M, callerRole string, callerID primitive.ObjectID) bson.M {
	if callerRole != models.RoleAdmin {
		filter["assignedTo"] = callerID
	}
	return filter
}

func sortOrder(sortBy string) bson.D {
	switch sortBy {
	case "newest":
		return bson.D{{Key: "dueDate", Value: 1}}
	case "oldest":
		return bson.D{{Key: "dueDate", Value: -1}}
	default:
		return nil
	}
}

func overdueCountFilter(base bson.M, now time.Time) bson.M {
	filter := bson.M{
		"status":  bson.M{"$ne": models.StatusCompleted},
		"dueDate": bson.M{"$lt": now},
	}
	for k, v := range base {
		filter[k] = v
	}
	return filter
}

func withStatus(base bson.M, status models.TaskStatus) bson.M {
	filter := bson.M{"status": status}
	for k, v := range base {
		filter[k] = v
	}
	return filter
}

// GetTasks lists tasks matching the status/search/sort parameters, scoped to
// the caller's assignments for non-admins, together with the status summary.
func (s *TaskService) GetTasks(ctx context.Context, callerID primitive.ObjectID, callerRole, status, search, sortBy string) (*TaskListResult, error) {
	now := time.Now()

	filter := scopeToCaller(buildTaskFilter(status, search, now), callerRole, callerID)

	findOpts := options.Find()
	if sort := sortOrder(sortBy); sort != nil {
		findOpts.SetSort(sort)
	}

	cursor, err := s.tasksCollection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tasks: %v", err)
	}

	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %v", err)
	}

	views, err := s.expandTasks(ctx, tasks, now)
	if err != nil {
		return nil, err
	}

	// Summary counts share the role and search scope but ignore the status
	// filter, so tab counts reflect the full role-scoped set.
	summaryBase := scopeToCaller(buildTaskFilter("", search, now), callerRole, callerID)
	summary, err := s.statusSummary(ctx, summaryBase, now)
	if err != nil {
		return nil, err
	}

	return &TaskListResult{Tasks: views, StatusSummary: *summary}, nil
}

// statusSummary issues the five count queries concurrently.
func (s *TaskService) statusSummary(ctx context.Context, base bson.M, now time.Time) (*StatusSummary, error) {
	summary := &StatusSummary{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		summary.All, err = s.tasksCollection.CountDocuments(gctx, base)
		return err
	})
	g.Go(func() (err error) {
		summary.Pending, err = s.tasksCollection.CountDocuments(gctx, withStatus(base, models.StatusPending))
		return err
	})
	g.Go(func() (err error) {
		summary.InProgress, err = s.tasksCollection.CountDocuments(gctx, withStatus(base, models.StatusInProgress))
		return err
	})
	g.Go(func() (err error) {
		summary.Completed, err = s.tasksCollection.CountDocuments(gctx, withStatus(base, models.StatusCompleted))
		return err
	})
	g.Go(func() (err error) {
		summary.Overdue, err = s.tasksCollection.CountDocuments(gctx, overdueCountFilter(base, now))
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to compute status summary: %v", err)
	}
	return summary, nil
}

// expandTasks resolves assignee profiles and applies the overdue overlay and
// checklist counters to each task.
func (s *TaskService) expandTasks(ctx context.Context, tasks []models.Task, now time.Time) ([]models.TaskView, error) {
	assignees, err := s.assigneeIndex(ctx, tasks)
	if err != nil {
		return nil, err
	}

	views := make([]models.TaskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, buildTaskView(task, assignees, now))
	}
	return views, nil
}

// assigneeIndex fetches every referenced assignee in one query.
func (s *TaskService) assigneeIndex(ctx context.Context, tasks []models.Task) (map[primitive.ObjectID]models.AssigneeSummary, error) {
	idSet := map[primitive.ObjectID]struct{}{}
	for _, task := range tasks {
		for _, id := range task.AssignedTo {
			idSet[id] = struct{}{}
		}
	}
	if len(idSet) == 0 {
		return map[primitive.ObjectID]models.AssigneeSummary{}, nil
	}

	ids := make([]primitive.ObjectID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	cursor, err := s.usersCollection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignees: %v", err)
	}

	var users []models.AssigneeSummary
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode assignees: %v", err)
	}

	index := make(map[primitive.ObjectID]models.AssigneeSummary, len(users))
	for _, user := range users {
		index[user.ID] = user
	}
	return index, nil
}

func buildTaskView(task models.Task, assignees map[primitive.ObjectID]models.AssigneeSummary, now time.Time) models.TaskView {
	view := models.TaskView{
		Task:               task,
		Status:             models.EffectiveStatus(task.Status, task.DueDate, now),
		AssignedTo:         make([]models.AssigneeSummary, 0, len(task.AssignedTo)),
		CompletedTodoCount: models.CompletedTodoCount(task.TodoChecklist),
		TotalTodoCount:     len(task.TodoChecklist),
	}
	for _, id := range task.AssignedTo {
		if summary, ok := assignees[id]; ok {
			view.AssignedTo = append(view.AssignedTo, summary)
		}
	}
	return view
}

// GetTaskByID returns a single task with assignee expansion and the overdue
// overlay. Malformed ids are reported as not found.
func (s *TaskService) GetTaskByID(ctx context.Context, taskID string) (*models.TaskView, error) {
	objectID, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return nil, fmt.Errorf("invalid task id %q: %w", taskID, models.ErrNotFound)
	}

	var task models.Task
	if err := s.tasksCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&task); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("task %s: %w", taskID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve task: %v", err)
	}

	views, err := s.expandTasks(ctx, []models.Task{task}, time.Now())
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

type CreateTaskInput struct {
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Priority      models.TaskPriority `json:"priority"`
	DueDate       time.Time           `json:"dueDate"`
	StartDate     time.Time           `json:"startDate"`
	AssignedTo    []string            `json:"assignedTo"`
	TodoChecklist []models.TodoItem   `json:"todoChecklist"`
	Attachments   []string            `json:"attachments"`
}

// CreateTask persists a new task for the admin creator. The checklist always
// starts unchecked regardless of the flags supplied by the client.
func (s *TaskService) CreateTask(ctx context.Context, creatorID primitive.ObjectID, input CreateTaskInput) (*models.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("title is required: %w", models.ErrValidation)
	}
	if input.DueDate.IsZero() {
		return nil, fmt.Errorf("dueDate is required: %w", models.ErrValidation)
	}

	assignedTo, err := s.resolveAssignees(ctx, input.AssignedTo)
	if err != nil {
		return nil, err
	}

	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	checklist := make([]models.TodoItem, 0, len(input.TodoChecklist))
	for _, item := range input.TodoChecklist {
		checklist = append(checklist, models.TodoItem{Text: item.Text})
	}

	attachments := input.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	now := time.Now()
	task := &models.Task{
		ID:            primitive.NewObjectID(),
		Title:         input.Title,
		Description:   input.Description,
		Priority:      priority,
		Status:        models.StatusPending,
		DueDate:       input.DueDate,
		StartDate:     input.StartDate,
		AssignedTo:    assignedTo,
		CreatedBy:     creatorID,
		TodoChecklist: checklist,
		Attachments:   attachments,
		Progress:      0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := s.tasksCollection.InsertOne(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %v", err)
	}

	logging.Logger.Infof("Event ID: TASK_CREATED, Description: Task %s created by %s with %d assignees", task.ID.Hex(), creatorID.Hex(), len(assignedTo))
	return task, nil
}

// parseAssigneeIDs validates the assignee id list shape: it must be
// non-empty and every entry must be a well-formed object id.
func parseAssigneeIDs(ids []string) ([]primitive.ObjectID, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("assignedTo must be a non-empty array of user ids: %w", models.ErrValidation)
	}

	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, raw := range ids {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return nil, fmt.Errorf("assignedTo contains invalid user id %q: %w", raw, models.ErrValidation)
		}
		objectIDs = append(objectIDs, id)
	}
	return objectIDs, nil
}

// resolveAssignees parses the assignee id list and verifies every id belongs
// to an existing user.
func (s *TaskService) resolveAssignees(ctx context.Context, ids []string) ([]primitive.ObjectID, error) {
	objectIDs, err := parseAssigneeIDs(ids)
	if err != nil {
		return nil, err
	}

	count, err := s.usersCollection.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to verify assignees: %v", err)
	}
	if count != int64(len(uniqueIDs(objectIDs))) {
		return nil, fmt.Errorf("assignedTo references unknown users: %w", models.ErrValidation)
	}

	return objectIDs, nil
}

func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type UpdateTaskInput struct {
	Title         *string              `json:"title"`
	Description   *string              `json:"description"`
	Priority      *models.TaskPriority `json:"priority"`
	DueDate       *time.Time           `json:"dueDate"`
	StartDate     *time.Time           `json:"startDate"`
	AssignedTo    *[]string            `json:"assignedTo"`
	TodoChecklist *[]models.TodoItem   `json:"todoChecklist"`
	Attachments   *[]string            `json:"attachments"`
}

// UpdateTask applies a partial update: provided fields overwrite, absent
// fields keep their prior value. A supplied checklist is replaced wholesale
// and progress/status are recomputed from it.
func (s *TaskService) UpdateTask(ctx context.Context, taskID string, input UpdateTaskInput) (*models.Task, error) {
	objectID, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return nil, fmt.Errorf("invalid task id %q: %w", taskID, models.ErrNotFound)
	}

	var task models.Task
	if err := s.tasksCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&task); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("task %s: %w", taskID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve task: %v", err)
	}

	if input.Title != nil {
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.DueDate != nil {
		task.DueDate = *input.DueDate
	}
	if input.StartDate != nil {
		task.StartDate = *input.StartDate
	}
	if input.Attachments != nil {
		task.Attachments = *input.Attachments
	}
	if input.AssignedTo != nil {
		assignedTo, err := s.resolveAssignees(ctx, *input.AssignedTo)
		if err != nil {
			return nil, err
		}
		task.AssignedTo = assignedTo
	}
	if input.TodoChecklist != nil {
		task.TodoChecklist = *input.TodoChecklist
		task.Progress = models.ChecklistProgress(task.TodoChecklist)
		task.Status = models.StatusForProgress(task.Progress)
	}
	task.UpdatedAt = time.Now()

	if _, err := s.tasksCollection.ReplaceOne(ctx, bson.M{"_id": objectID}, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %v", err)
	}

	return &task, nil
}

// DeleteTask hard-deletes a task.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string) error {
	objectID, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return fmt.Errorf("invalid task id %q: %w", taskID, models.ErrNotFound)
	}

	result, err := s.tasksCollection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete task: %v", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("task %s: %w", taskID, models.ErrNotFound)
	}

	logging.Logger.Infof("Event ID: TASK_DELETED, Description: Task %s deleted", taskID)
	return nil
}

// canModifyTask reports whether the caller may change a task's status or
// checklist: admins always, members only when assigned.
func canModifyTask(task *models.Task, callerID primitive.ObjectID, callerRole string) bool {
	return callerRole == models.RoleAdmin || task.IsAssignedTo(callerID)
}

// applyStatusOverride sets the stored status directly. Completed forces every
// checklist item done and progress to 100; any other value is stored as
// given, without recomputation from the checklist.
func applyStatusOverride(task *models.Task, status models.TaskStatus) {
	task.Status = status
	if status == models.StatusCompleted {
		for i := range task.TodoChecklist {
			task.TodoChecklist[i].Completed = true
		}
		task.Progress = 100
	}
}

// ChangeTaskStatus stores the requested status verbatim via
// applyStatusOverride. The asymmetry with UpdateTaskChecklist is deliberate:
// a status-only update must not recompute progress from a stale checklist.
func (s *TaskService) ChangeTaskStatus(ctx context.Context, taskID string, status models.TaskStatus, callerID primitive.ObjectID, callerRole string) (*models.Task, error) {
	switch status {
	case models.StatusPending, models.StatusInProgress, models.StatusCompleted:
	default:
		return nil, fmt.Errorf("invalid status %q: %w", status, models.ErrValidation)
	}

	objectID, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return nil, fmt.Errorf("invalid task id %q: %w", taskID, models.ErrNotFound)
	}

	var task models.Task
	if err := s.tasksCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&task); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("task %s: %w", taskID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve task: %v", err)
	}

	if !canModifyTask(&task, callerID, callerRole) {
		return nil, fmt.Errorf("caller is not assigned to task %s: %w", taskID, models.ErrForbidden)
	}

	applyStatusOverride(&task, status)
	task.UpdatedAt = time.Now()

	if _, err := s.tasksCollection.ReplaceOne(ctx, bson.M{"_id": objectID}, task); err != nil {
		return nil, fmt.Errorf("failed to update task status: %v", err)
	}

	logging.Logger.Infof("Event ID: TASK_STATUS_CHANGED, Description: Task %s status set to %s by %s", taskID, status, callerID.Hex())
	return &task, nil
}

// UpdateTaskChecklist replaces the checklist wholesale and derives progress
// and status from it.
func (s *TaskService) UpdateTaskChecklist(ctx context.Context, taskID string, checklist []models.TodoItem, callerID primitive.ObjectID, callerRole string) (*models.TaskView, error) {
	objectID, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return nil, fmt.Errorf("invalid task id %q: %w", taskID, models.ErrNotFound)
	}

	var task models.Task
	if err := s.tasksCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&task); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("task %s: %w", taskID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve task: %v", err)
	}

	if !canModifyTask(&task, callerID, callerRole) {
		return nil, fmt.Errorf("caller may not update checklist of task %s: %w", taskID, models.ErrForbidden)
	}

	if checklist == nil {
		checklist = []models.TodoItem{}
	}
	task.TodoChecklist = checklist
	task.Progress = models.ChecklistProgress(checklist)
	task.Status = models.StatusForProgress(task.Progress)
	task.UpdatedAt = time.Now()

	if _, err := s.tasksCollection.ReplaceOne(ctx, bson.M{"_id": objectID}, task); err != nil {
		return nil, fmt.Errorf("failed to update checklist: %v", err)
	}

	views, err := s.expandTasks(ctx, []models.Task{task}, time.Now())
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}
