package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arqvault/threatmodel/internal/apperrors"
	"github.com/arqvault/threatmodel/internal/llmfallback"
	"github.com/arqvault/threatmodel/internal/llmprovider"
)

const diagramPrompt = `You are analyzing a software architecture diagram. Identify every component ` +
	`(services, databases, queues, external systems) and every connection between them. ` +
	`Respond with JSON: {"components": [{"name": str, "type": str, "description": str}], ` +
	`"connections": [{"from": str, "to": str, "protocol": str, "description": str}]}.`

const stridePromptTemplate = `Using the STRIDE threat modeling methodology (Spoofing, Tampering, ` +
	`Repudiation, Information disclosure, Denial of service, Elevation of privilege), enumerate ` +
	`threats for the following architecture:

%s

Respond with JSON: {"threats": [{"threat_type": str, "description": str, "component_id": str}]}.`

const dreadPromptTemplate = `Score each of the following threats using DREAD ` +
	`(Damage, Reproducibility, Exploitability, Affected users, Discoverability), each 0-10:

%s

Respond with JSON: {"threats": [{"threat_type": str, "description": str, "component_id": str, ` +
	`"mitigation": str, "dread_details": {"damage": number, "reproducibility": number, ` +
	`"exploitability": number, "affected_users": number, "discoverability": number}}]}.`

// diagramHasContent is the diagram stage's validator: a response lacking
// both components and connections is invalid and provokes fallback to the
// next provider, per spec's explicit diagram-stage edge case.
func diagramHasContent(text string) bool {
	parsed, err := llmprovider.ParseJSONResponse(text, "validator")
	if err != nil {
		return false
	}
	return len(asSlice(parsed["components"])) > 0 || len(asSlice(parsed["connections"])) > 0
}

// runDiagramStage extracts components and connections from the uploaded
// image via the vision fallback runner.
func runDiagramStage(ctx context.Context, runner *llmfallback.Runner, imageBytes []byte, mediaType string) (components, connections []any, modelUsed string, err *apperrors.PipelineStageError) {
	result, stageErr := runner.RunVision(ctx, imageBytes, mediaType, diagramPrompt, "diagram", diagramHasContent)
	if stageErr != nil {
		stageErr.Stage = "diagram"
		return nil, nil, "", stageErr
	}

	parsed, parseErr := llmprovider.ParseJSONResponse(result.Text, result.Provider)
	if parseErr != nil {
		return nil, nil, "", &apperrors.PipelineStageError{Stage: "diagram", Cause: parseErr}
	}

	components = asSlice(parsed["components"])
	connections = asSlice(parsed["connections"])
	modelUsed = result.Model
	if modelUsed == "" {
		modelUsed = "Unknown"
	}
	return components, connections, modelUsed, nil
}

// runStrideStage enumerates threats over the serialized diagram data via
// the text fallback runner.
func runStrideStage(ctx context.Context, runner *llmfallback.Runner, components, connections []any) ([]any, *apperrors.PipelineStageError) {
	diagramJSON, _ := json.Marshal(map[string]any{"components": components, "connections": connections})
	prompt := fmt.Sprintf(stridePromptTemplate, string(diagramJSON))

	result, stageErr := runner.RunText(ctx, prompt, "stride", nil)
	if stageErr != nil {
		stageErr.Stage = "stride"
		return nil, stageErr
	}

	parsed, parseErr := llmprovider.ParseJSONResponse(result.Text, result.Provider)
	if parseErr != nil {
		return nil, &apperrors.PipelineStageError{Stage: "stride", Cause: parseErr}
	}
	return asSlice(parsed["threats"]), nil
}

// runDreadStage scores the STRIDE-enumerated threats via the text
// fallback runner.
func runDreadStage(ctx context.Context, runner *llmfallback.Runner, threats []any) ([]any, *apperrors.PipelineStageError) {
	threatsJSON, _ := json.Marshal(map[string]any{"threats": threats})
	prompt := fmt.Sprintf(dreadPromptTemplate, string(threatsJSON))

	result, stageErr := runner.RunText(ctx, prompt, "dread", nil)
	if stageErr != nil {
		stageErr.Stage = "dread"
		return nil, stageErr
	}

	parsed, parseErr := llmprovider.ParseJSONResponse(result.Text, result.Provider)
	if parseErr != nil {
		return nil, &apperrors.PipelineStageError{Stage: "dread", Cause: parseErr}
	}
	return asSlice(parsed["threats"]), nil
}

func asSlice(v any) []any {
	s, ok := v.([]any)
	if !ok {
		return nil
	}
	return s
}
