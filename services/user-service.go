package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"regexp"
	"time"

	"task-manager/logging"
	"task-manager/models"
	"task-manager/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

type UserService struct {
	usersCollection *mongo.Collection
	tasksCollection *mongo.Collection
	taskService     *TaskService
}

func NewUserService(usersCollection, tasksCollection *mongo.Collection, taskService *TaskService) *UserService {
	return &UserService{
		usersCollection: usersCollection,
		tasksCollection: tasksCollection,
		taskService:     taskService,
	}
}

type RegisterInput struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	ProfileImageURL  string `json:"profileImageUrl"`
	AdminInviteToken string `json:"adminInviteToken"`
}

// AuthResponse is returned by register, login and profile update: the public
// profile plus a fresh token.
type AuthResponse struct {
	ID              primitive.ObjectID `json:"id"`
	Name            string             `json:"name"`
	Email           string             `json:"email"`
	Role            string             `json:"role"`
	ProfileImageURL string             `json:"profileImageUrl"`
	Token           string             `json:"token"`
}

// RegisterUser creates an account. A matching admin invite token grants the
// admin role, everybody else registers as a member.
func (s *UserService) RegisterUser(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	if input.Name == "" || input.Email == "" || input.Password == "" {
		return nil, fmt.Errorf("name, email and password are required: %w", models.ErrValidation)
	}
	if err := utils.ValidatePassword(input.Password); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrValidation)
	}

	var existing models.User
	if err := s.usersCollection.FindOne(ctx, bson.M{"email": input.Email}).Decode(&existing); err == nil {
		return nil, fmt.Errorf("user with email %s already exists: %w", input.Email, models.ErrConflict)
	}

	role := models.RoleMember
	if input.AdminInviteToken != "" && input.AdminInviteToken == os.Getenv("ADMIN_INVITE_TOKEN") {
		role = models.RoleAdmin
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := newUserFromRegistration(input, role, hashed, time.Now())

	if _, err := s.usersCollection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("user with email %s already exists: %w", input.Email, models.ErrConflict)
		}
		return nil, fmt.Errorf("failed to save user: %v", err)
	}

	token, err := utils.GenerateToken(user.ID.Hex(), user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %v", err)
	}

	logging.Logger.Infof("Event ID: USER_REGISTERED, Description: User %s registered with role %s", user.ID.Hex(), role)
	return authResponse(user, token), nil
}

// LoginUser checks credentials and issues a token. Both failure modes return
// the same message so the response does not reveal which field was wrong.
func (s *UserService) LoginUser(ctx context.Context, email, password string) (*AuthResponse, error) {
	var user models.User
	if err := s.usersCollection.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}

	if !utils.CheckPassword(user.Password, password) {
		return nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}

	token, err := utils.GenerateToken(user.ID.Hex(), user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %v", err)
	}

	return authResponse(user, token), nil
}

// newUserFromRegistration builds the user document for a registration. The
// display name is escaped; the email is stored verbatim so that uniqueness
// checks and login lookups with the raw input always match.
func newUserFromRegistration(input RegisterInput, role, hashedPassword string, now time.Time) models.User {
	return models.User{
		ID:              primitive.NewObjectID(),
		Name:            html.EscapeString(input.Name),
		Email:           input.Email,
		Password:        hashedPassword,
		Role:            role,
		ProfileImageURL: input.ProfileImageURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func authResponse(user models.User, token string) *AuthResponse {
	return &AuthResponse{
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		Role:            user.Role,
		ProfileImageURL: user.ProfileImageURL,
		Token:           token,
	}
}

// GetUserByID returns a user profile without the password hash.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	objectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, models.ErrNotFound)
	}

	var user models.User
	if err := s.usersCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve user: %v", err)
	}

	user.Password = ""
	return &user, nil
}

type UpdateProfileInput struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	ProfileImageURL *string `json:"profileImageUrl"`
	Password        *string `json:"password"`
}

// UpdateProfile updates the caller's own profile and returns it with a fresh
// token. Email changes keep the uniqueness invariant.
func (s *UserService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, input UpdateProfileInput) (*AuthResponse, error) {
	var user models.User
	if err := s.usersCollection.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", userID.Hex(), models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve user: %v", err)
	}

	if input.Name != nil {
		user.Name = html.EscapeString(*input.Name)
	}
	if input.Email != nil && *input.Email != user.Email {
		var existing models.User
		if err := s.usersCollection.FindOne(ctx, bson.M{"email": *input.Email}).Decode(&existing); err == nil {
			return nil, fmt.Errorf("email %s already in use: %w", *input.Email, models.ErrConflict)
		}
		user.Email = *input.Email
	}
	if input.ProfileImageURL != nil {
		user.ProfileImageURL = *input.ProfileImageURL
	}
	if input.Password != nil {
		if err := utils.ValidatePassword(*input.Password); err != nil {
			return nil, fmt.Errorf("%v: %w", err, models.ErrValidation)
		}
		hashed, err := utils.HashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hashed
	}
	user.UpdatedAt = time.Now()

	if _, err := s.usersCollection.ReplaceOne(ctx, bson.M{"_id": userID}, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %v", err)
	}

	token, err := utils.GenerateToken(user.ID.Hex(), user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %v", err)
	}

	return authResponse(user, token), nil
}

// GetMembers lists member users, optionally filtered by a name/email search,
// each annotated with per-status counts of their assigned tasks. Pending and
// in-progress buckets exclude past-due tasks, which show up as overdue
// instead.
func (s *UserService) GetMembers(ctx context.Context, search string) ([]models.UserWithTaskCounts, error) {
	cursor, err := s.usersCollection.Find(ctx, buildMemberFilter(search))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch members: %v", err)
	}

	var members []models.User
	if err := cursor.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("failed to parse members: %v", err)
	}

	now := time.Now()
	annotated := make([]models.UserWithTaskCounts, len(members))
	g, gctx := errgroup.WithContext(ctx)
	for i, member := range members {
		i, member := i, member
		g.Go(func() error {
			counts, err := s.taskCountsForUser(gctx, member.ID, now)
			if err != nil {
				return err
			}
			member.Password = ""
			counts.User = member
			annotated[i] = *counts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return annotated, nil
}

// buildMemberFilter selects member users, optionally narrowed by a
// case-insensitive name/email search.
func buildMemberFilter(search string) bson.M {
	filter := bson.M{"role": models.RoleMember}
	if search != "" {
		pattern := regexp.QuoteMeta(search)
		filter["$or"] = bson.A{
			bson.M{"name": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"email": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	return filter
}

func (s *UserService) taskCountsForUser(ctx context.Context, userID primitive.ObjectID, now time.Time) (*models.UserWithTaskCounts, error) {
	counts := &models.UserWithTaskCounts{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		counts.PendingTasks, err = s.tasksCollection.CountDocuments(gctx, bson.M{
			"assignedTo": userID,
			"status":     models.StatusPending,
			"dueDate":    bson.M{"$gte": now},
		})
		return err
	})
	g.Go(func() (err error) {
		counts.InProgressTasks, err = s.tasksCollection.CountDocuments(gctx, bson.M{
			"assignedTo": userID,
			"status":     models.StatusInProgress,
			"dueDate":    bson.M{"$gte": now},
		})
		return err
	})
	g.Go(func() (err error) {
		counts.CompletedTasks, err = s.tasksCollection.CountDocuments(gctx, bson.M{
			"assignedTo": userID,
			"status":     models.StatusCompleted,
		})
		return err
	})
	g.Go(func() (err error) {
		counts.OverdueTasks, err = s.tasksCollection.CountDocuments(gctx, bson.M{
			"assignedTo": userID,
			"status":     bson.M{"$ne": models.StatusCompleted},
			"dueDate":    bson.M{"$lt": now},
		})
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to count tasks for user %s: %v", userID.Hex(), err)
	}
	return counts, nil
}

// UserDetails is the admin drill-down view: the user, their assigned tasks
// newest first, and the status summary over that set.
type UserDetails struct {
	User          models.User       `json:"user"`
	Tasks         []models.TaskView `json:"tasks"`
	StatusSummary StatusSummary     `json:"statusSummary"`
}

func (s *UserService) GetUserDetails(ctx context.Context, userID string) (*UserDetails, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	scope := bson.M{"assignedTo": user.ID}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.tasksCollection.Find(ctx, scope, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks for user %s: %v", userID, err)
	}

	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks for user %s: %v", userID, err)
	}

	views, err := s.taskService.expandTasks(ctx, tasks, now)
	if err != nil {
		return nil, err
	}

	summary, err := s.taskService.statusSummary(ctx, scope, now)
	if err != nil {
		return nil, err
	}

	return &UserDetails{User: *user, Tasks: views, StatusSummary: *summary}, nil
}

// cascadeFilters returns the queries applied when a user is deleted: tasks
// the user created are hard-deleted, and the user is pulled from the
// assignee set of every remaining task. The cascade keys off createdBy and
// assignedTo only, never off assignment-free associations.
func cascadeFilters(userID primitive.ObjectID) (deleteCreated, pullAssigned, pullUpdate bson.M) {
	deleteCreated = bson.M{"createdBy": userID}
	pullAssigned = bson.M{"assignedTo": userID}
	pullUpdate = bson.M{"$pull": bson.M{"assignedTo": userID}}
	return deleteCreated, pullAssigned, pullUpdate
}

// DeleteUser removes a user and cascades to their tasks per cascadeFilters.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	objectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, models.ErrNotFound)
	}

	result, err := s.usersCollection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete user: %v", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}

	deleteCreated, pullAssigned, pullUpdate := cascadeFilters(objectID)

	deleted, err := s.tasksCollection.DeleteMany(ctx, deleteCreated)
	if err != nil {
		return fmt.Errorf("failed to delete tasks created by user %s: %v", userID, err)
	}

	if _, err := s.tasksCollection.UpdateMany(ctx, pullAssigned, pullUpdate); err != nil {
		return fmt.Errorf("failed to unassign user %s from tasks: %v", userID, err)
	}

	logging.Logger.Infof("Event ID: USER_DELETED, Description: User %s deleted, %d created tasks removed", userID, deleted.DeletedCount)
	return nil
}
