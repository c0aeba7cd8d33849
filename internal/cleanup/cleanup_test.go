package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arqvault/threatmodel/internal/imagestore"
	"github.com/arqvault/threatmodel/internal/repository"
)

func TestSweepRemovesExpiredCompletedAnalyses(t *testing.T) {
	repo := repository.NewMemoryRepository()
	store, err := imagestore.New(t.TempDir())
	require.NoError(t, err)

	created, err := repo.Create(context.Background(), "", "")
	require.NoError(t, err)
	_, err = repo.ClaimNext(context.Background())
	require.NoError(t, err)
	require.NoError(t, repo.MarkDone(context.Background(), created.ID, nil))

	svc := NewService(repo, store, 0, time.Hour)
	svc.sweep(context.Background())

	_, err = repo.Get(context.Background(), created.ID)
	require.Error(t, err)
}

func TestSweepLeavesFreshAnalysesAlone(t *testing.T) {
	repo := repository.NewMemoryRepository()
	store, err := imagestore.New(t.TempDir())
	require.NoError(t, err)

	created, err := repo.Create(context.Background(), "", "")
	require.NoError(t, err)
	_, err = repo.ClaimNext(context.Background())
	require.NoError(t, err)
	require.NoError(t, repo.MarkDone(context.Background(), created.ID, nil))

	svc := NewService(repo, store, 30, time.Hour)
	svc.sweep(context.Background())

	fetched, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, fetched.ID)
}

func TestStartStopIsIdempotent(t *testing.T) {
	repo := repository.NewMemoryRepository()
	store, err := imagestore.New(t.TempDir())
	require.NoError(t, err)

	svc := NewService(repo, store, 30, time.Millisecond)
	svc.Start(context.Background())
	svc.Start(context.Background()) // second call is a no-op, not a second goroutine
	svc.Stop()
}
