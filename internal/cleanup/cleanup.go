// Package cleanup enforces the analysis retention policy: periodically
// removing completed/failed analyses (and their stored images) older
// than the configured retention window. Adapted from the teacher's
// pkg/cleanup, which ran the same ticker-driven idempotent-Start/Stop
// shape against chat sessions and events.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/arqvault/threatmodel/internal/imagestore"
	"github.com/arqvault/threatmodel/internal/repository"
)

// Service periodically deletes analyses past their retention window.
// Safe to run from multiple processes: DeleteOlderThan is a single
// idempotent storage-layer operation per backend.
type Service struct {
	repo            repository.Repository
	store           *imagestore.Store
	retention       time.Duration
	cleanupInterval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService builds a Service. retentionDays is converted to a duration;
// cleanupInterval controls how often the sweep runs.
func NewService(repo repository.Repository, store *imagestore.Store, retentionDays int, cleanupInterval time.Duration) *Service {
	return &Service{
		repo:            repo,
		store:           store,
		retention:       time.Duration(retentionDays) * 24 * time.Hour,
		cleanupInterval: cleanupInterval,
	}
}

// Start launches the background cleanup loop. Idempotent.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started",
		"retention", s.retention, "interval", s.cleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("retention sweep failed", "error", err)
		return
	}
	for _, a := range deleted {
		if err := s.store.Delete(a.ImagePath); err != nil {
			slog.Error("retention image cleanup failed", "analysis_id", a.ID, "error", err)
		}
	}
	if len(deleted) > 0 {
		slog.Info("retention swept expired analyses", "count", len(deleted))
	}
}
