package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/arqvault/threatmodel/internal/llmfallback"
)

// minDiagramPixels rejects images too small to plausibly be an
// architecture diagram before spending an LLM call on them.
const minDiagramPixels = 40 * 40

// Classifier decides whether an uploaded image looks like an architecture
// diagram. original_source leaves this implementation detail to the
// caller's guardrail module; this repo resolves it as a cheap heuristic
// that only escalates to an LLM call when the heuristic is inconclusive.
type Classifier interface {
	IsArchitectureDiagram(ctx context.Context, imageBytes []byte, mediaType string) (bool, error)
}

// HeuristicClassifier decodes the image and rejects anything below a
// minimum pixel area outright; anything larger is handed to an LLM
// yes/no vision call (image plus prompt) through the same fallback runner
// used by the other stages.
type HeuristicClassifier struct {
	Runner *llmfallback.Runner
}

func (c *HeuristicClassifier) IsArchitectureDiagram(ctx context.Context, imageBytes []byte, mediaType string) (bool, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageBytes))
	if err != nil {
		return false, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width*cfg.Height < minDiagramPixels {
		return false, nil
	}

	if c.Runner == nil {
		return true, nil
	}

	result, stageErr := c.Runner.RunVision(ctx, imageBytes, mediaType, guardrailPrompt, "guardrail", nil)
	if stageErr != nil {
		// The guardrail is advisory: if every provider is unavailable, let
		// the diagram stage itself decide rather than blocking the upload.
		return true, nil
	}
	return strings.Contains(strings.ToLower(result.Text), "yes"), nil
}

const guardrailPrompt = "Does this image look like a software architecture or system diagram (boxes, arrows, components)? Answer yes or no."
