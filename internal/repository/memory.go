package repository

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arqvault/threatmodel/internal/apperrors"
	"github.com/arqvault/threatmodel/internal/domain"
)

// MemoryRepository is a thread-safe in-memory Repository, selected in
// intake-service with REPOSITORY_BACKEND=memory and used by every
// package's unit tests. Adapted from the teacher's session.Manager (sync.RWMutex-guarded
// map, Clone()-on-read).
type MemoryRepository struct {
	mu        sync.RWMutex
	analyses  map[string]*domain.Analysis
	byCode    map[string]bool
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		analyses: make(map[string]*domain.Analysis),
		byCode:   make(map[string]bool),
	}
}

const maxCodeAttempts = 10

func generateCode() (string, error) {
	var digits [8]byte
	if _, err := rand.Read(digits[:]); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("TMA-")
	for _, d := range digits {
		fmt.Fprintf(&b, "%d", int(d)%10)
	}
	return b.String(), nil
}

func (r *MemoryRepository) Create(_ context.Context, imagePath, imageMediaType string) (*domain.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var code string
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate, err := generateCode()
		if err != nil {
			return nil, fmt.Errorf("generate analysis code: %w", err)
		}
		if !r.byCode[candidate] {
			code = candidate
			break
		}
	}
	if code == "" {
		return nil, apperrors.ErrCodeExhausted
	}

	now := time.Now()
	a := &domain.Analysis{
		ID:             uuid.New().String(),
		Code:           code,
		Status:         domain.StatusOpen,
		ImagePath:      imagePath,
		ImageMediaType: imageMediaType,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.analyses[a.ID] = a
	r.byCode[code] = true
	return a.Clone(), nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*domain.Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analyses[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a.Clone(), nil
}

func (r *MemoryRepository) List(_ context.Context, filter ListFilter) ([]*domain.Analysis, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*domain.Analysis, 0, len(r.analyses))
	for _, a := range r.analyses {
		if filter.HasStatus && a.Status != filter.Status {
			continue
		}
		if filter.CodeSubstr != "" && !strings.Contains(strings.ToLower(a.Code), strings.ToLower(filter.CodeSubstr)) {
			continue
		}
		if filter.HasFrom && a.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if filter.HasTo && a.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	const hardCap = 2000
	if len(matched) > hardCap {
		matched = matched[:hardCap]
	}
	total := len(matched)

	limit := filter.Limit
	if limit <= 0 {
		limit = total
	}
	offset := filter.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]*domain.Analysis, 0, end-offset)
	for _, a := range matched[offset:end] {
		page = append(page, a.Clone())
	}
	return page, total, nil
}

func (r *MemoryRepository) ClaimNext(_ context.Context) (*domain.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var oldest *domain.Analysis
	for _, a := range r.analyses {
		if a.Status != domain.StatusOpen {
			continue
		}
		if oldest == nil || a.CreatedAt.Before(oldest.CreatedAt) {
			oldest = a
		}
	}
	if oldest == nil {
		return nil, apperrors.ErrNotFound
	}
	if !domain.CanTransition(oldest.Status, domain.StatusRunning) {
		panic(fmt.Sprintf("illegal transition %s -> %s for analysis %s", oldest.Status, domain.StatusRunning, oldest.ID))
	}
	now := time.Now()
	oldest.Status = domain.StatusRunning
	oldest.StartedAt = &now
	oldest.UpdatedAt = now
	return oldest.Clone(), nil
}

func (r *MemoryRepository) MarkDone(_ context.Context, id string, result *domain.AnalysisResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyses[id]
	if !ok {
		// Record was deleted mid-run; skip the write rather than resurrect it.
		return nil
	}
	if !domain.CanTransition(a.Status, domain.StatusDone) {
		panic(fmt.Sprintf("illegal transition %s -> %s for analysis %s", a.Status, domain.StatusDone, id))
	}
	now := time.Now()
	a.Status = domain.StatusDone
	a.Result = result
	a.CompletedAt = &now
	a.UpdatedAt = now
	return nil
}

func (r *MemoryRepository) MarkFailed(_ context.Context, id string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyses[id]
	if !ok {
		return nil
	}
	if !domain.CanTransition(a.Status, domain.StatusFailed) {
		panic(fmt.Sprintf("illegal transition %s -> %s for analysis %s", a.Status, domain.StatusFailed, id))
	}
	now := time.Now()
	a.Status = domain.StatusFailed
	a.FailureReason = reason
	a.CompletedAt = &now
	a.UpdatedAt = now
	return nil
}

func (r *MemoryRepository) AppendLog(_ context.Context, id string, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyses[id]
	if !ok {
		return nil
	}
	a.ProcessingLog = append(a.ProcessingLog, line)
	a.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyses[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	delete(r.byCode, a.Code)
	delete(r.analyses, id)
	return nil
}

func (r *MemoryRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) ([]*domain.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted []*domain.Analysis
	for id, a := range r.analyses {
		if a.Status != domain.StatusDone && a.Status != domain.StatusFailed {
			continue
		}
		if a.CompletedAt == nil || !a.CompletedAt.Before(cutoff) {
			continue
		}
		deleted = append(deleted, a.Clone())
		delete(r.byCode, a.Code)
		delete(r.analyses, id)
	}
	return deleted, nil
}
