package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"task-manager/handlers"
	"task-manager/logging"
	"task-manager/middleware"
	"task-manager/services"
	"task-manager/utils"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	logging.InitLogger()

	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting Task Manager service...")
	if err := godotenv.Load(".env"); err != nil {
		logging.Logger.Warnf("Event ID: ENV_LOAD_WARNING, Description: No .env file loaded: %v", err)
	}

	mongoURI := os.Getenv("MONGO_URI")
	mongoDBName := os.Getenv("MONGO_DB_NAME")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}
	if mongoDBName == "" {
		mongoDBName = "task_manager"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		logging.Logger.Fatalf("Event ID: DB_CONNECTION_FAILED, Description: Database connection for MongoDB failed: %v", err)
	}
	defer client.Disconnect(ctx)

	if err := client.Ping(ctx, nil); err != nil {
		logging.Logger.Fatalf("Event ID: DB_PING_FAILED, Description: MongoDB connection ping error: %v", err)
	}
	logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB at %s.", mongoURI)

	db := client.Database(mongoDBName)
	usersCollection := db.Collection("users")
	tasksCollection := db.Collection("tasks")

	// Email uniqueness is enforced at the store level.
	if _, err := usersCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		logging.Logger.Fatalf("Event ID: DB_INDEX_FAILED, Description: Failed to ensure email index: %v", err)
	}

	imageStoreBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ImageStoreCB",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}

	taskService := services.NewTaskService(tasksCollection, usersCollection)
	userService := services.NewUserService(usersCollection, tasksCollection, taskService)
	uploadService := services.NewUploadService(uploadDir, os.Getenv("IMAGE_STORE_URL"), utils.NewHTTPClient(), imageStoreBreaker)
	reportService := services.NewReportService(taskService, userService)

	taskHandler := handlers.NewTaskHandler(taskService)
	userHandler := handlers.NewUserHandler(userService)
	authHandler := handlers.NewAuthHandler(userService, uploadService)
	reportHandler := handlers.NewReportHandler(reportService)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	// Public auth routes.
	api.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	// Everything below requires a valid bearer token.
	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.JWTAuthMiddleware)

	protected.HandleFunc("/auth/profile", authHandler.GetProfile).Methods(http.MethodGet)
	protected.HandleFunc("/auth/profile", authHandler.UpdateProfile).Methods(http.MethodPut)
	protected.HandleFunc("/auth/upload-image", authHandler.UploadImage).Methods(http.MethodPost)

	protected.Handle("/tasks/dashboard-data", middleware.AdminOnly(http.HandlerFunc(taskHandler.GetDashboardData))).Methods(http.MethodGet)
	protected.HandleFunc("/tasks/user-dashboard-data", taskHandler.GetUserDashboardData).Methods(http.MethodGet)
	protected.HandleFunc("/tasks", taskHandler.GetTasks).Methods(http.MethodGet)
	protected.Handle("/tasks", middleware.AdminOnly(http.HandlerFunc(taskHandler.CreateTask))).Methods(http.MethodPost)
	protected.HandleFunc("/tasks/{id}", taskHandler.GetTaskByID).Methods(http.MethodGet)
	protected.HandleFunc("/tasks/{id}", taskHandler.UpdateTask).Methods(http.MethodPut)
	protected.Handle("/tasks/{id}", middleware.AdminOnly(http.HandlerFunc(taskHandler.DeleteTask))).Methods(http.MethodDelete)
	protected.HandleFunc("/tasks/{id}/status", taskHandler.UpdateTaskStatus).Methods(http.MethodPut)
	protected.HandleFunc("/tasks/{id}/todo", taskHandler.UpdateTaskChecklist).Methods(http.MethodPut)

	protected.Handle("/users", middleware.AdminOnly(http.HandlerFunc(userHandler.GetUsers))).Methods(http.MethodGet)
	protected.Handle("/users/details/{id}", middleware.AdminOnly(http.HandlerFunc(userHandler.GetUserDetails))).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}", userHandler.GetUserByID).Methods(http.MethodGet)
	protected.Handle("/users/{id}", middleware.AdminOnly(http.HandlerFunc(userHandler.DeleteUser))).Methods(http.MethodDelete)

	protected.Handle("/reports/export/tasks", middleware.AdminOnly(http.HandlerFunc(reportHandler.ExportTasks))).Methods(http.MethodGet)
	protected.Handle("/reports/export/users", middleware.AdminOnly(http.HandlerFunc(reportHandler.ExportUsers))).Methods(http.MethodGet)

	// Locally stored images.
	r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))

	// Nightly overdue digest.
	digestSchedule := os.Getenv("OVERDUE_DIGEST_CRON")
	if digestSchedule == "" {
		digestSchedule = "0 6 * * *"
	}
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(digestSchedule, func() {
		digestCtx, digestCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer digestCancel()

		data, err := taskService.DashboardData(digestCtx, nil)
		if err != nil {
			logging.Logger.Warnf("Event ID: OVERDUE_DIGEST_FAILED, Description: Failed to compute overdue digest: %v", err)
			return
		}
		logging.Logger.Infof("Event ID: OVERDUE_DIGEST, Description: %d tasks total, %d pending, %d in progress, %d completed, %d overdue",
			data.Statistics.TotalTasks, data.Statistics.PendingTasks, data.Statistics.InProgressTasks, data.Statistics.CompletedTasks, data.Statistics.OverdueTasks)
	}); err != nil {
		logging.Logger.Fatalf("Event ID: SCHEDULER_ERROR, Description: Invalid digest schedule %q: %v", digestSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	serverAddress := fmt.Sprintf(":%s", serverPort)
	logging.Logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", serverAddress)

	if err := http.ListenAndServe(serverAddress, enableCORS(r)); err != nil {
		logging.Logger.Fatalf("Event ID: SERVER_FATAL_ERROR, Description: Server failed to start: %v", err)
	}
}
