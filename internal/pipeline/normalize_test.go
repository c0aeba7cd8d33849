package pipeline

import (
	"testing"

	"github.com/arqvault/threatmodel/internal/domain"
)

func TestNormalizeDedupsThreatsAndAveragesScore(t *testing.T) {
	raw := []any{
		map[string]any{"threat_type": "information disclosure", "description": "Foo Bar"},
		map[string]any{"threat_type": "Information Disclosure", "description": "foo bar"},
		map[string]any{"threat_type": "information   disclosure", "description": "  FOO BAR  "},
		map[string]any{"threat_type": "Tampering", "description": "unique", "damage": 8.0, "reproducibility": 6.0, "exploitability": 4.0, "affected_users": 6.0, "discoverability": 6.0},
	}

	result := Normalize("test-model", nil, nil, raw, 1.5, nil)
	if len(result.Threats) != 2 {
		t.Fatalf("expected 2 threats after dedup, got %d: %+v", len(result.Threats), result.Threats)
	}
	if result.Threats[0].ThreatType != "Tampering" {
		t.Errorf("expected Tampering first by score, got %+v", result.Threats[0])
	}
	if result.Threats[0].DreadScoreOrZero() != 6.0 {
		t.Errorf("expected averaged dread score 6.0, got %v", result.Threats[0].DreadScoreOrZero())
	}
}

func TestNormalizeEmptyInputsYieldLowRisk(t *testing.T) {
	result := Normalize("test-model", nil, nil, nil, 0, nil)
	if result.RiskScore != 0 {
		t.Errorf("expected 0 risk score for no threats, got %v", result.RiskScore)
	}
	if result.RiskLevel != domain.RiskLow {
		t.Errorf("expected LOW risk level, got %v", result.RiskLevel)
	}
}

func TestParseComponentsDropsMalformedEntries(t *testing.T) {
	raw := []any{
		map[string]any{"name": "API Gateway", "type": "service"},
		"not an object",
		map[string]any{"type": "database"},
	}
	components := parseComponents(raw)
	if len(components) != 2 {
		t.Fatalf("expected 2 valid components, got %d", len(components))
	}
	if components[1].Name != "Unnamed" {
		t.Errorf("expected default name Unnamed, got %q", components[1].Name)
	}
}
