package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"agentsched/internal/api"
	"agentsched/internal/config"
	"agentsched/internal/db"
	"agentsched/internal/notify"
	"agentsched/internal/scheduler"
	"agentsched/internal/store/postgres"
	"agentsched/internal/tier"
	"agentsched/internal/tools"
)

func main() {
	cfg := config.Load()
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.Connect(cfg.PostgresURL)
	if err != nil {
		log.Fatalf("[Main] Failed to connect to postgres: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(ctx, database); err != nil {
		cancel()
		log.Fatalf("[Main] Migration failed: %v", err)
	}
	cancel()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		// The tier cache degrades to store lookups without redis.
		log.Printf("[Main] Redis unavailable (%v), tier cache disabled", err)
		redisClient = nil
	}

	taskStore := postgres.NewTaskStore(database)
	executionStore := postgres.NewExecutionStore(database)
	projectStore := postgres.NewProjectStore(database)
	tenantStore := postgres.NewTenantStore(database)

	engine := scheduler.New(
		taskStore,
		executionStore,
		tools.NewExecutor(projectStore),
		notify.New(cfg.SendgridKey, cfg.FromName, cfg.FromAddress),
		tier.NewResolver(tenantStore, redisClient, cfg.TierCacheTTL),
		scheduler.Config{
			ExecutionTimeout:  cfg.ExecutionTimeout,
			OnCompleteWorkers: cfg.OnCompleteWorkers,
		},
	)
	if err := engine.Start(context.Background()); err != nil {
		log.Fatalf("[Main] Failed to start scheduler: %v", err)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewServer(engine).Router(),
	}

	go func() {
		log.Printf("[Main] Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[Main] Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("[Main] Shutting down")

	engine.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Main] Forced shutdown: %v", err)
	}
}
