package queue

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/arqvault/threatmodel/internal/domain"
	"github.com/arqvault/threatmodel/internal/repository"
)

type fakeExecutor struct {
	result *domain.AnalysisResult
	err    error
}

func (f *fakeExecutor) Execute(_ context.Context, _ *domain.Analysis) (*domain.AnalysisResult, error) {
	return f.result, f.err
}

func TestPollAndProcessAppendsProcessingLogs(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()

	a, err := repo.Create(ctx, "a.png", "image/png")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	executor := &fakeExecutor{result: &domain.AnalysisResult{
		ModelUsed:      "test-model",
		ProcessingLogs: []string{"diagram: 0.100s", "stride: 0.050s", "dread: 0.075s"},
	}}
	pool := NewPool(repo, executor, 1, time.Minute, time.Second)

	if err := pool.pollAndProcess(ctx, slog.Default()); err != nil {
		t.Fatalf("pollAndProcess() error: %v", err)
	}

	stored, err := repo.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if stored.Status != domain.StatusDone {
		t.Fatalf("expected DONE, got %s", stored.Status)
	}
	joined := strings.Join(stored.ProcessingLog, "\n")
	for _, want := range []string{"diagram:", "stride:", "dread:"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected processing log to contain %q, got %q", want, joined)
		}
	}
}
