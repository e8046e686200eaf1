package main

import (
	"campuscloud/backend/internal/api"
	"campuscloud/backend/internal/config"
	"campuscloud/backend/internal/notify"
	"campuscloud/backend/internal/repository/mongo"
	"campuscloud/backend/internal/service"
	"campuscloud/backend/internal/storage"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("Starting Campus Cloud Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	log.Println("Ensuring database indexes...")
	go func() { // Run index creation concurrently/in background
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureUserIndexes(ctx, appDB.Collection("users"))
		mongo.EnsureFileIndexes(ctx, appDB.Collection("files"))
		mongo.EnsureShareIndexes(ctx, appDB.Collection("shares"))
		mongo.EnsureAssignmentIndexes(ctx, appDB.Collection("assignments"))
		mongo.EnsureSubmissionIndexes(ctx, appDB.Collection("submissions"))
		log.Println("Index creation process completed.")
	}()

	// --- Initialize Storage ---
	log.Println("Initializing file storage service...")
	fileStorage, err := storage.NewS3Storage(cfg.S3)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
	}

	// --- Initialize Notifications ---
	var notifier notify.Notifier
	if cfg.Notifications.Enabled && cfg.Notifications.TopicARN != "" {
		notifier, err = notify.NewSNSNotifier(cfg.S3.Region, cfg.Notifications.TopicARN)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize SNS notifier: %v", err)
		}
		log.Println("SNS notifications enabled.")
	} else {
		notifier = notify.NewLogNotifier()
		log.Println("Notifications disabled, logging only.")
	}

	// --- Initialize Repositories ---
	log.Println("Initializing repositories...")
	userRepo := mongo.NewMongoUserRepository(appDB)
	fileRepo := mongo.NewMongoFileRepository(appDB)
	shareRepo := mongo.NewMongoShareRepository(appDB)
	assignmentRepo := mongo.NewMongoAssignmentRepository(appDB)
	submissionRepo := mongo.NewMongoSubmissionRepository(appDB)

	// --- Initialize Services ---
	log.Println("Initializing services...")
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	shareService := service.NewShareService(shareRepo, fileRepo, userRepo, notifier)
	fileService := service.NewFileService(fileRepo, fileStorage, shareService, cfg.Upload, cfg.S3.BucketName)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, fileRepo, userRepo, notifier)

	// --- Initialize Gin Engine ---
	// gin.SetMode(gin.ReleaseMode) // Uncomment for production
	router := gin.Default() // Includes Logger and Recovery middleware

	// --- Setup Routes ---
	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, authService, fileService, shareService, submissionService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
