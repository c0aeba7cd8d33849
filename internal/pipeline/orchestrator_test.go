package pipeline

import (
	"context"
	"testing"

	"github.com/arqvault/threatmodel/internal/apperrors"
)

type alwaysDiagram struct{}

func (alwaysDiagram) IsArchitectureDiagram(context.Context, []byte, string) (bool, error) {
	return true, nil
}

type neverDiagram struct{}

func (neverDiagram) IsArchitectureDiagram(context.Context, []byte, string) (bool, error) {
	return false, nil
}

func TestOrchestratorRejectsNonDiagram(t *testing.T) {
	o := &Orchestrator{Classifier: neverDiagram{}}
	_, err := o.Run(context.Background(), []byte("not a diagram"), "image/png")
	if !apperrors.IsValidationError(err) {
		t.Errorf("expected a validation error, got %v", err)
	}
}
