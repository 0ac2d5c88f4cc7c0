package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"task-manager/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

type DashboardStatistics struct {
	TotalTasks      int64 `json:"totalTasks"`
	PendingTasks    int64 `json:"pendingTasks"`
	InProgressTasks int64 `json:"inProgressTasks"`
	CompletedTasks  int64 `json:"completedTasks"`
	OverdueTasks    int64 `json:"overdueTasks"`
}

type DashboardCharts struct {
	TaskDistribution   map[string]int64 `json:"taskDistribution"`
	TaskPriorityLevels map[string]int64 `json:"taskPriorityLevels"`
}

// RecentTask is the trimmed projection shown on the dashboard.
type RecentTask struct {
	ID        primitive.ObjectID  `json:"id" bson:"_id"`
	Title     string              `json:"title" bson:"title"`
	Status    models.TaskStatus   `json:"status" bson:"status"`
	Priority  models.TaskPriority `json:"priority" bson:"priority"`
	DueDate   time.Time           `json:"dueDate" bson:"dueDate"`
	CreatedAt time.Time           `json:"createdAt" bson:"createdAt"`
}

type DashboardData struct {
	Statistics  DashboardStatistics `json:"statistics"`
	Charts      DashboardCharts     `json:"charts"`
	RecentTasks []RecentTask        `json:"recentTasks"`
}

// distributionKey strips internal whitespace from a status for chart keys
// ("In Progress" -> "InProgress").
func distributionKey(status models.TaskStatus) string {
	return strings.ReplaceAll(string(status), " ", "")
}

// DashboardData computes the statistics, chart distributions and recent
// tasks for one scope: global when userID is nil, otherwise restricted to
// tasks assigned to that user. The independent queries fan out concurrently.
func (s *TaskService) DashboardData(ctx context.Context, userID *primitive.ObjectID) (*DashboardData, error) {
	now := time.Now()

	base := bson.M{}
	if userID != nil {
		base["assignedTo"] = *userID
	}

	data := &DashboardData{
		Charts: DashboardCharts{
			TaskDistribution:   map[string]int64{},
			TaskPriorityLevels: map[string]int64{},
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		data.Statistics.TotalTasks, err = s.tasksCollection.CountDocuments(gctx, base)
		return err
	})
	g.Go(func() (err error) {
		data.Statistics.PendingTasks, err = s.tasksCollection.CountDocuments(gctx, withStatus(base, models.StatusPending))
		return err
	})
	g.Go(func() (err error) {
		data.Statistics.InProgressTasks, err = s.tasksCollection.CountDocuments(gctx, withStatus(base, models.StatusInProgress))
		return err
	})
	g.Go(func() (err error) {
		data.Statistics.CompletedTasks, err = s.tasksCollection.CountDocuments(gctx, withStatus(base, models.StatusCompleted))
		return err
	})
	g.Go(func() (err error) {
		data.Statistics.OverdueTasks, err = s.tasksCollection.CountDocuments(gctx, overdueCountFilter(base, now))
		return err
	})

	var statusGroups, priorityGroups map[string]int64
	g.Go(func() (err error) {
		statusGroups, err = s.groupCounts(gctx, base, "$status")
		return err
	})
	g.Go(func() (err error) {
		priorityGroups, err = s.groupCounts(gctx, base, "$priority")
		return err
	})

	g.Go(func() (err error) {
		data.RecentTasks, err = s.recentTasks(gctx, base)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to compute dashboard data: %v", err)
	}

	for _, status := range []models.TaskStatus{models.StatusPending, models.StatusInProgress, models.StatusCompleted} {
		data.Charts.TaskDistribution[distributionKey(status)] = statusGroups[string(status)]
	}
	data.Charts.TaskDistribution["All"] = data.Statistics.TotalTasks

	for _, priority := range []models.TaskPriority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh} {
		data.Charts.TaskPriorityLevels[string(priority)] = priorityGroups[string(priority)]
	}

	return data, nil
}

// groupCounts runs a group-by aggregation over the scoped task set.
func (s *TaskService) groupCounts(ctx context.Context, base bson.M, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{}
	if len(base) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: base}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$group", Value: bson.M{
		"_id":   field,
		"count": bson.M{"$sum": 1},
	}}})

	cursor, err := s.tasksCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %v", field, err)
	}

	var groups []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode %s aggregation: %v", field, err)
	}

	counts := make(map[string]int64, len(groups))
	for _, group := range groups {
		counts[group.ID] = group.Count
	}
	return counts, nil
}

func (s *TaskService) recentTasks(ctx context.Context, base bson.M) ([]RecentTask, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(10).
		SetProjection(bson.M{"title": 1, "status": 1, "priority": 1, "dueDate": 1, "createdAt": 1})

	cursor, err := s.tasksCollection.Find(ctx, base, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent tasks: %v", err)
	}

	recent := []RecentTask{}
	if err := cursor.All(ctx, &recent); err != nil {
		return nil, fmt.Errorf("failed to decode recent tasks: %v", err)
	}
	return recent, nil
}
