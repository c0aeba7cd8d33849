// Package repository persists Analysis records. Repository is the seam
// between the lifecycle manager and storage; MemoryRepository is the
// in-process implementation (grounded on the teacher's
// pkg/session/manager.go), PostgresRepository backs it with pgx and is
// the backend intake-service uses unless REPOSITORY_BACKEND=memory.
package repository

import (
	"context"
	"time"

	"github.com/arqvault/threatmodel/internal/domain"
)

// ListFilter narrows a List call by status, code, and an inclusive
// created_at range, and bounds the page returned, matching the intake
// HTTP surface's query parameters (spec §4.1/§6.1).
type ListFilter struct {
	Status       domain.Status
	HasStatus    bool
	CodeSubstr   string
	CreatedFrom  time.Time
	HasFrom      bool
	CreatedTo    time.Time
	HasTo        bool
	Limit        int
	Offset       int
}

// Repository is the storage seam for Analysis records.
type Repository interface {
	// Create persists a new analysis in the OPEN state, generating a
	// unique code, and returns the stored record.
	Create(ctx context.Context, imagePath, imageMediaType string) (*domain.Analysis, error)

	// Get returns one analysis by ID, or apperrors.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Analysis, error)

	// List returns analyses matching filter, newest first, capped at 2000
	// records regardless of the requested limit.
	List(ctx context.Context, filter ListFilter) ([]*domain.Analysis, int, error)

	// ClaimNext atomically selects and marks RUNNING the oldest OPEN
	// record, returning apperrors.ErrNotFound if none is available.
	ClaimNext(ctx context.Context) (*domain.Analysis, error)

	// MarkDone transitions id from RUNNING to DONE, storing result.
	MarkDone(ctx context.Context, id string, result *domain.AnalysisResult) error

	// MarkFailed transitions id to FAILED, recording reason. Legal from
	// both OPEN and RUNNING per the state table.
	MarkFailed(ctx context.Context, id string, reason string) error

	// AppendLog appends one processing-log line to id.
	AppendLog(ctx context.Context, id string, line string) error

	// Delete removes an analysis. Safe to call on a RUNNING record; the
	// worker re-reads before writing back and skips the write if the
	// record is gone.
	Delete(ctx context.Context, id string) error

	// DeleteOlderThan removes every DONE or FAILED analysis whose
	// CompletedAt precedes cutoff and returns the deleted records, so the
	// caller can also remove their stored images.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Analysis, error)
}
