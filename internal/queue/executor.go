package queue

import (
	"context"
	"fmt"

	"github.com/arqvault/threatmodel/internal/analyzerclient"
	"github.com/arqvault/threatmodel/internal/domain"
	"github.com/arqvault/threatmodel/internal/imagestore"
)

// AnalyzerExecutor is the production Executor: it reads the claimed
// analysis's stored image and hands it to the analyzer service over
// HTTP, matching the two-service topology described in
// original_source/scripts/run_analysis_flow.py.
type AnalyzerExecutor struct {
	store    *imagestore.Store
	analyzer *analyzerclient.Client
}

// NewAnalyzerExecutor builds an AnalyzerExecutor.
func NewAnalyzerExecutor(store *imagestore.Store, analyzer *analyzerclient.Client) *AnalyzerExecutor {
	return &AnalyzerExecutor{store: store, analyzer: analyzer}
}

// Execute implements Executor.
func (e *AnalyzerExecutor) Execute(ctx context.Context, analysis *domain.Analysis) (*domain.AnalysisResult, error) {
	content, err := e.store.Read(analysis.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("read stored image: %w", err)
	}

	result, err := e.analyzer.Analyze(ctx, analysis.Code, content, analysis.ImageMediaType)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	return result, nil
}
