package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codearena/internal/api"
	"codearena/internal/app/judge"
	"codearena/internal/app/service"
	"codearena/internal/app/worker"
	"codearena/internal/app/ws"
	"codearena/internal/common/security"
	"codearena/internal/domain/repository"
	"codearena/internal/platform/config"
	"codearena/internal/platform/database"
	"codearena/internal/platform/executor"
	"codearena/internal/platform/queue"
)

func main() {
	config.Load()
	fmt.Println("Configuration loaded.")

	security.InitJWT()

	database.Connect()
	defer database.Close()
	fmt.Println("Database connected.")

	queue.ConnectRedis()
	defer queue.CloseRedis()
	fmt.Println("Redis connected.")

	// Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	problemRepo := repository.NewPgProblemRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)
	potdRepo := repository.NewPgPOTDRepository(database.DB)
	contestRepo := repository.NewPgContestRepository(database.DB)
	profileRepo := repository.NewPgProfileRepository(database.DB)

	// Judge runner against the Piston execution engine
	pistonClient := executor.NewClient(config.AppConfig.PistonURL, config.AppConfig.PistonTimeout)
	runner := judge.NewRunner(pistonClient)

	// Services
	authService := service.NewAuthService(userRepo, submissionRepo)
	problemService := service.NewProblemService(problemRepo, database.DB)
	submissionService := service.NewSubmissionService(submissionRepo, problemRepo, contestRepo, runner, queue.RDB, database.DB)
	feedbackService := service.NewFeedbackService(submissionRepo, problemRepo, config.AppConfig.FeedbackURL, config.AppConfig.FeedbackTimeout)
	potdService := service.NewPOTDService(potdRepo, problemRepo)
	contestService := service.NewContestService(contestRepo, problemRepo, submissionRepo, database.DB, queue.RDB)
	adminService := service.NewAdminService(userRepo, problemRepo, submissionRepo, problemService)
	profileService := service.NewProfileService(profileRepo)

	// Live contest hub
	hub := ws.NewHub()

	// Judge worker goroutine
	judgeWorker := worker.NewJudgeWorker(queue.RDB, database.DB, submissionRepo, problemRepo, contestRepo, runner, contestService, hub)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go judgeWorker.Start(workerCtx)
	fmt.Println("Judge worker started.")

	router := api.NewRouter(
		authService,
		problemService,
		submissionService,
		feedbackService,
		potdService,
		contestService,
		adminService,
		profileService,
		hub,
	)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // Run endpoint waits on Piston
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()

	<-stop

	log.Println("Shutting down server...")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server and worker stopped gracefully.")
}
