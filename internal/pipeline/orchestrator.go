// Package pipeline runs the three-stage threat modeling analysis: diagram
// extraction, STRIDE enumeration, DREAD scoring, ported from
// original_source's ThreatModelService.run_full_analysis.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arqvault/threatmodel/internal/apperrors"
	"github.com/arqvault/threatmodel/internal/domain"
	"github.com/arqvault/threatmodel/internal/llmfallback"
)

var stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "threatmodel_pipeline_stage_duration_seconds",
	Help:    "Duration of each pipeline stage.",
	Buckets: prometheus.DefBuckets,
}, []string{"stage"})

func init() {
	prometheus.MustRegister(stageDuration)
}

// Orchestrator runs the guardrail then the three analysis stages over one
// uploaded image.
type Orchestrator struct {
	Classifier Classifier
	Runner     *llmfallback.Runner
}

// New builds an Orchestrator sharing one fallback runner across the
// guardrail and every stage.
func New(runner *llmfallback.Runner) *Orchestrator {
	return &Orchestrator{
		Classifier: &HeuristicClassifier{Runner: runner},
		Runner:     runner,
	}
}

// Run executes guardrail -> diagram -> stride -> dread -> normalize over
// imageBytes, returning the finished AnalysisResult or a stage failure.
func (o *Orchestrator) Run(ctx context.Context, imageBytes []byte, mediaType string) (*domain.AnalysisResult, error) {
	runStart := time.Now()

	isDiagram, err := o.Classifier.IsArchitectureDiagram(ctx, imageBytes, mediaType)
	if err != nil {
		return nil, fmt.Errorf("guardrail check: %w", err)
	}
	if !isDiagram {
		return nil, apperrors.NewValidationError("image", "does not appear to be an architecture diagram")
	}

	var processingLogs []string
	logStage := func(name string, elapsed time.Duration) {
		processingLogs = append(processingLogs, fmt.Sprintf("%s: %.3fs", name, elapsed.Seconds()))
	}

	components, connections, modelUsed, elapsed, stageErr := timedDiagramStage("diagram", func() ([]any, []any, string, *apperrors.PipelineStageError) {
		return runDiagramStage(ctx, o.Runner, imageBytes, mediaType)
	})
	if stageErr != nil {
		return nil, stageErr
	}
	logStage("diagram", elapsed)
	slog.Info("diagram stage complete", "components", len(components), "connections", len(connections), "model", modelUsed)

	threats, elapsed, stageErr := timedStage1("stride", func() ([]any, *apperrors.PipelineStageError) {
		return runStrideStage(ctx, o.Runner, components, connections)
	})
	if stageErr != nil {
		return nil, stageErr
	}
	logStage("stride", elapsed)
	slog.Info("stride stage complete", "threats", len(threats))

	scored, elapsed, stageErr := timedStage1("dread", func() ([]any, *apperrors.PipelineStageError) {
		return runDreadStage(ctx, o.Runner, threats)
	})
	if stageErr != nil {
		return nil, stageErr
	}
	logStage("dread", elapsed)
	slog.Info("dread stage complete")

	processingTime := time.Since(runStart).Seconds()
	result := Normalize(modelUsed, components, connections, scored, processingTime, processingLogs)
	slog.Info("analysis complete",
		"risk_score", result.RiskScore, "risk_level", result.RiskLevel,
		"threat_count", len(result.Threats), "processing_time", result.ProcessingTime)
	return result, nil
}

func timedDiagramStage(name string, fn func() ([]any, []any, string, *apperrors.PipelineStageError)) ([]any, []any, string, time.Duration, *apperrors.PipelineStageError) {
	start := time.Now()
	a, b, model, err := fn()
	elapsed := time.Since(start)
	stageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	return a, b, model, elapsed, err
}

func timedStage1(name string, fn func() ([]any, *apperrors.PipelineStageError)) ([]any, time.Duration, *apperrors.PipelineStageError) {
	start := time.Now()
	a, err := fn()
	elapsed := time.Since(start)
	stageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	return a, elapsed, err
}
