// Package lifecycle owns the Analysis job state machine: submission,
// lookup, listing, and deletion. Grounded on the teacher's
// pkg/services/alert_service.go (validate-then-mutate structure) and
// pkg/services/errors.go (sentinel + typed error pattern, here
// internal/apperrors).
package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/arqvault/threatmodel/internal/apperrors"
	"github.com/arqvault/threatmodel/internal/domain"
	"github.com/arqvault/threatmodel/internal/imagestore"
	"github.com/arqvault/threatmodel/internal/repository"
)

// Manager wraps a Repository and an image Store, presenting the job
// lifecycle operations the HTTP surface calls. The worker pool uses the
// Repository directly.
type Manager struct {
	repo  repository.Repository
	store *imagestore.Store

	maxUploadSizeBytes int64
	allowedImageTypes  map[string]bool
}

// New builds a Manager. allowedImageTypes is the configured allow-list
// (e.g. image/png, image/jpeg, image/webp, image/gif).
func New(repo repository.Repository, store *imagestore.Store, maxUploadSizeBytes int64, allowedImageTypes []string) *Manager {
	allowed := make(map[string]bool, len(allowedImageTypes))
	for _, t := range allowedImageTypes {
		allowed[t] = true
	}
	return &Manager{repo: repo, store: store, maxUploadSizeBytes: maxUploadSizeBytes, allowedImageTypes: allowed}
}

// Submit validates an uploaded image and creates a new OPEN analysis.
func (m *Manager) Submit(ctx context.Context, content []byte, declaredContentType string) (*domain.Analysis, error) {
	if len(content) == 0 {
		return nil, apperrors.NewValidationError("file", "empty upload")
	}
	if int64(len(content)) > m.maxUploadSizeBytes {
		return nil, apperrors.NewValidationError("file", "upload exceeds maximum size")
	}

	mediaType := imagestore.SniffMediaType(content)
	if len(m.allowedImageTypes) > 0 && !m.allowedImageTypes[mediaType] {
		return nil, apperrors.NewValidationError("content_type", fmt.Sprintf("unsupported content type %q", mediaType))
	}

	id := uuid.New().String()
	path, sniffed, err := m.store.Save(id, content)
	if err != nil {
		return nil, fmt.Errorf("save uploaded image: %w", err)
	}

	analysis, err := m.repo.Create(ctx, path, sniffed)
	if err != nil {
		_ = m.store.Delete(path)
		return nil, fmt.Errorf("create analysis record: %w", err)
	}
	return analysis, nil
}

// Get returns one analysis by ID.
func (m *Manager) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	return m.repo.Get(ctx, id)
}

// GetImage returns the raw bytes and media type of an analysis's stored
// upload.
func (m *Manager) GetImage(ctx context.Context, id string) ([]byte, string, error) {
	a, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	content, err := m.store.Read(a.ImagePath)
	if err != nil {
		return nil, "", fmt.Errorf("read stored image: %w", err)
	}
	return content, a.ImageMediaType, nil
}

// GetLogs returns an analysis's processing log lines.
func (m *Manager) GetLogs(ctx context.Context, id string) ([]string, error) {
	a, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.ProcessingLog, nil
}

// List returns a filtered, paginated set of analyses.
func (m *Manager) List(ctx context.Context, filter repository.ListFilter) ([]*domain.Analysis, int, error) {
	return m.repo.List(ctx, filter)
}

// Delete removes an analysis and its stored image. Safe to call while the
// worker is mid-run on the same record: the worker re-reads before
// writing back and silently skips the write if the record is gone.
func (m *Manager) Delete(ctx context.Context, id string) error {
	a, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}
	return m.store.Delete(a.ImagePath)
}
