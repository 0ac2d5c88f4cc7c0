package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"task-manager/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReportService renders admin exports over the full, unfiltered read paths.
type ReportService struct {
	taskService *TaskService
	userService *UserService
}

func NewReportService(taskService *TaskService, userService *UserService) *ReportService {
	return &ReportService{taskService: taskService, userService: userService}
}

// ExportTasks writes every task as CSV, one row per task, with the effective
// status and assignee emails.
func (s *ReportService) ExportTasks(ctx context.Context, adminID primitive.ObjectID, w io.Writer) error {
	result, err := s.taskService.GetTasks(ctx, adminID, models.RoleAdmin, "", "", "")
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Title", "Description", "Priority", "Status", "Due Date", "Progress", "Completed Todos", "Total Todos", "Assigned To"}); err != nil {
		return fmt.Errorf("failed to write report header: %v", err)
	}

	for _, task := range result.Tasks {
		emails := make([]string, 0, len(task.AssignedTo))
		for _, assignee := range task.AssignedTo {
			emails = append(emails, assignee.Email)
		}

		row := []string{
			task.Title,
			task.Description,
			string(task.Priority),
			string(task.Status),
			task.DueDate.Format(time.RFC3339),
			strconv.Itoa(task.Progress),
			strconv.Itoa(task.CompletedTodoCount),
			strconv.Itoa(task.TotalTodoCount),
			strings.Join(emails, "; "),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write report row: %v", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportUsers writes the member listing with per-status task counts as CSV.
func (s *ReportService) ExportUsers(ctx context.Context, w io.Writer) error {
	members, err := s.userService.GetMembers(ctx, "")
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Name", "Email", "Pending Tasks", "In Progress Tasks", "Completed Tasks", "Overdue Tasks"}); err != nil {
		return fmt.Errorf("failed to write report header: %v", err)
	}

	for _, member := range members {
		row := []string{
			member.Name,
			member.Email,
			strconv.FormatInt(member.PendingTasks, 10),
			strconv.FormatInt(member.InProgressTasks, 10),
			strconv.FormatInt(member.CompletedTasks, 10),
			strconv.FormatInt(member.OverdueTasks, 10),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write report row: %v", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
