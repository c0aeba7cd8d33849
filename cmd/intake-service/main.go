// Command intake-service runs the job lifecycle HTTP surface, worker
// pool, and retention sweep described in spec.md §6.1. It is stateful:
// the only service that owns the analyses table and uploaded images.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/arqvault/threatmodel/internal/analyzerclient"
	"github.com/arqvault/threatmodel/internal/api"
	"github.com/arqvault/threatmodel/internal/cleanup"
	"github.com/arqvault/threatmodel/internal/config"
	"github.com/arqvault/threatmodel/internal/imagestore"
	"github.com/arqvault/threatmodel/internal/lifecycle"
	"github.com/arqvault/threatmodel/internal/queue"
	"github.com/arqvault/threatmodel/internal/repository"
	"github.com/arqvault/threatmodel/internal/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	envFile := flag.String("env-file",
		getEnv("ENV_FILE", ".env"),
		"Path to a .env file to load before reading configuration")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("warning: could not load %s: %v", *envFile, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", *envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	log.Printf("starting %s", version.Full())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo repository.Repository
	if getEnv("REPOSITORY_BACKEND", "postgres") == "memory" {
		repo = repository.NewMemoryRepository()
		log.Println("using in-memory repository")
	} else {
		pgRepo, err := repository.NewPostgresRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pgRepo.Close()
		repo = pgRepo
		log.Println("connected to postgres and applied migrations")
	}

	store, err := imagestore.New(cfg.UploadDir)
	if err != nil {
		log.Fatalf("failed to initialize image store: %v", err)
	}

	manager := lifecycle.New(repo, store, cfg.MaxUploadSizeBytes(), cfg.AllowedImageTypes)

	analyzer := analyzerclient.New(cfg.AnalyzerURL, cfg.JobTimeout)
	executor := queue.NewAnalyzerExecutor(store, analyzer)
	pool := queue.NewPool(repo, executor, cfg.WorkerCount, cfg.JobTimeout, cfg.PollInterval)
	pool.Start(ctx)
	defer pool.Stop()

	cleanupService := cleanup.NewService(repo, store, cfg.AnalysisRetentionDays, 24*time.Hour)
	cleanupService.Start(ctx)
	defer cleanupService.Stop()

	server := api.NewIntakeServer(manager, cfg.CORSOrigins)

	go func() {
		log.Printf("intake HTTP server listening on :%s", cfg.Port)
		if err := server.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("intake server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down intake-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during HTTP shutdown: %v", err)
	}
}
