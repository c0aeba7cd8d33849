// Package queue runs the poll/claim/execute/finalize worker loop that
// drains OPEN analyses and hands them to the analyzer service. Adapted
// from the teacher's pkg/queue/pool.go and pkg/queue/worker.go: idempotent
// Start/Stop, jittered poll interval, heartbeat-free single-attempt
// execution (the analyzer call is itself bounded by a timeout, so no
// separate heartbeat goroutine is needed the way a long agent session
// needed one).
package queue

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/arqvault/threatmodel/internal/apperrors"
	"github.com/arqvault/threatmodel/internal/domain"
	"github.com/arqvault/threatmodel/internal/repository"
)

// ErrNoAnalysesAvailable signals the poll loop found nothing to claim.
var ErrNoAnalysesAvailable = errors.New("no analyses available")

// Executor runs the pipeline (or calls the analyzer service) for one
// claimed analysis and returns its outcome.
type Executor interface {
	Execute(ctx context.Context, analysis *domain.Analysis) (*domain.AnalysisResult, error)
}

// Pool runs a fixed number of Workers pulling from a shared Repository.
type Pool struct {
	repo     repository.Repository
	executor Executor

	workerCount  int
	jobTimeout   time.Duration
	pollInterval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewPool builds a Pool. workerCount controls parallelism, jobTimeout
// bounds each claimed analysis's total processing time, pollInterval is
// the base delay between empty-queue polls (jittered +/-20%).
func NewPool(repo repository.Repository, executor Executor, workerCount int, jobTimeout, pollInterval time.Duration) *Pool {
	return &Pool{
		repo:         repo,
		executor:     executor,
		workerCount:  workerCount,
		jobTimeout:   jobTimeout,
		pollInterval: pollInterval,
		stopCh:       make(chan struct{}),
	}
}

// Start launches the worker goroutines. Idempotent: a second call is a
// no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
	slog.Info("worker pool started", "workers", p.workerCount)
}

// Stop signals every worker to exit and waits for them to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
	slog.Info("worker pool stopped")
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := slog.With("worker", id)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		err := p.pollAndProcess(ctx, logger)
		switch {
		case err == nil:
			continue // immediately look for more work
		case errors.Is(err, ErrNoAnalysesAvailable):
			sleep(p.stopCh, p.jitteredPollInterval())
		default:
			logger.Error("worker poll error", "error", err)
			sleep(p.stopCh, time.Second)
		}
	}
}

func (p *Pool) jitteredPollInterval() time.Duration {
	jitter := 0.8 + rand.Float64()*0.4 // +/-20%
	return time.Duration(float64(p.pollInterval) * jitter)
}

func sleep(stopCh <-chan struct{}, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-stopCh:
	}
}

func (p *Pool) pollAndProcess(ctx context.Context, logger *slog.Logger) error {
	analysis, err := p.repo.ClaimNext(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ErrNoAnalysesAvailable
		}
		return err
	}

	logger = logger.With("analysis_id", analysis.ID, "code", analysis.Code)
	logger.Info("claimed analysis")

	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	result, execErr := p.executor.Execute(jobCtx, analysis)

	// Re-read before writing back: the record may have been deleted while
	// the executor was running (spec scenario: deletion mid-run).
	if _, getErr := p.repo.Get(context.Background(), analysis.ID); getErr != nil {
		logger.Info("analysis deleted mid-run, skipping finalize write")
		return nil
	}

	if execErr != nil {
		reason := execErr.Error()
		if jobCtx.Err() == context.DeadlineExceeded {
			reason = "analysis timed out: " + reason
		}
		logger.Warn("analysis failed", "error", reason)
		return p.repo.MarkFailed(context.Background(), analysis.ID, reason)
	}

	for _, line := range result.ProcessingLogs {
		if err := p.repo.AppendLog(context.Background(), analysis.ID, line); err != nil {
			logger.Warn("append processing log failed", "error", err)
		}
	}

	logger.Info("analysis succeeded")
	return p.repo.MarkDone(context.Background(), analysis.ID, result)
}
