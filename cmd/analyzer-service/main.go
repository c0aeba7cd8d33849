// Command analyzer-service runs the stateless three-stage threat
// modeling pipeline described in spec.md §6.2. It owns no database: every
// request is a self-contained image-in, AnalysisResult-out call.
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

	"github.com/arqvault/threatmodel/internal/api"
	"github.com/arqvault/threatmodel/internal/cache"
	"github.com/arqvault/threatmodel/internal/config"
	"github.com/arqvault/threatmodel/internal/llmfallback"
	"github.com/arqvault/threatmodel/internal/llmprovider"
	"github.com/arqvault/threatmodel/internal/pipeline"
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

	var registry *config.ProviderRegistry
	if cfg.ProviderConfig != "" {
		registry, err = config.LoadProviderRegistry(cfg.ProviderConfig)
		if err != nil {
			log.Fatalf("failed to load llm provider registry: %v", err)
		}
		log.Printf("loaded %d llm providers from %s", registry.Len(), cfg.ProviderConfig)
	}
	providers := llmprovider.BuildProviders(registry, cfg.PrimaryModel, cfg.FallbackModel, cfg.LLMTemperature)

	var cacheBackend cache.Backend = cache.NoopBackend{}
	if cfg.RedisURL != "" {
		redisBackend, err := cache.NewRedisBackend(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		cacheBackend = redisBackend
		log.Println("using redis fingerprint cache")
	}

	runner := llmfallback.New(providers, cacheBackend, 24*time.Hour)
	orchestrator := pipeline.New(runner)

	server := api.NewAnalyzerServer(orchestrator, cfg.AllowedImageTypes)

	go func() {
		log.Printf("analyzer HTTP server listening on :%s", cfg.Port)
		if err := server.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("analyzer server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down analyzer-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during HTTP shutdown: %v", err)
	}
}
