package pipeline

import (
	"log/slog"

	"github.com/arqvault/threatmodel/internal/domain"
)

// parseComponents converts raw diagram-stage output into domain.Component
// values, logging and dropping any entry that fails to parse rather than
// failing the whole stage. Ported from original_source's
// ThreatModelService._parse_components.
func parseComponents(raw []any) []domain.Component {
	out := make([]domain.Component, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			slog.Warn("dropping non-object component entry")
			continue
		}
		out = append(out, domain.Component{
			ID:          stringOr(m["id"], "unknown"),
			Name:        stringOr(m["name"], "Unnamed"),
			Type:        stringOr(m["type"], "Unknown"),
			Description: stringOr(m["description"], ""),
		})
	}
	return out
}

// parseConnections converts raw diagram-stage output into domain.Connection
// values. Ported from _parse_connections.
func parseConnections(raw []any) []domain.Connection {
	out := make([]domain.Connection, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			slog.Warn("dropping non-object connection entry")
			continue
		}
		out = append(out, domain.Connection{
			FromID:      stringOr(m["from"], "unknown"),
			ToID:        stringOr(m["to"], "unknown"),
			Protocol:    stringOr(m["protocol"], ""),
			Description: stringOr(m["description"], ""),
			Encrypted:   boolPtrOr(m["encrypted"]),
		})
	}
	return out
}

// parseThreats converts raw STRIDE/DREAD output into domain.Threat values,
// dropping unparseable entries. Deduplication and score-descending sort
// happen separately via domain.DedupThreats. Ported from _parse_threats.
func parseThreats(raw []any) []domain.Threat {
	out := make([]domain.Threat, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			slog.Warn("dropping non-object threat entry")
			continue
		}
		out = append(out, domain.Threat{
			ComponentID:  stringOr(m["component_id"], stringOr(m["component"], "unknown")),
			ThreatType:   stringOr(m["threat_type"], "Unknown"),
			Description:  stringOr(m["description"], ""),
			Mitigation:   stringOr(m["mitigation"], ""),
			DreadScore:   floatPtrOr(m["dread_score"]),
			DreadDetails: dreadDetailsOr(m),
		})
	}
	return out
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func floatPtrOr(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	default:
		return nil
	}
}

func boolPtrOr(v any) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

// dreadDetailsOr reads the nested "dread_details" object the dread stage
// produces. Falls back to flat sub-score fields on the threat record
// itself, tolerating providers that ignore the nesting instruction.
func dreadDetailsOr(m map[string]any) *domain.DreadDetails {
	details, ok := m["dread_details"].(map[string]any)
	if !ok {
		details = m
	}
	d := &domain.DreadDetails{
		Damage:          floatPtrOr(details["damage"]),
		Reproducibility: floatPtrOr(details["reproducibility"]),
		Exploitability:  floatPtrOr(details["exploitability"]),
		AffectedUsers:   floatPtrOr(details["affected_users"]),
		Discoverability: floatPtrOr(details["discoverability"]),
	}
	if d.Damage == nil && d.Reproducibility == nil && d.Exploitability == nil &&
		d.AffectedUsers == nil && d.Discoverability == nil {
		return nil
	}
	return d
}

// averageDreadScore fills each threat's DreadScore with the mean of the
// DREAD sub-scores that are present when the aggregate is absent; with all
// five present this is the rubric's "average of the five sub-scores".
func averageDreadScore(t domain.Threat) domain.Threat {
	if t.DreadScore != nil || t.DreadDetails == nil {
		return t
	}
	subs := []*float64{
		t.DreadDetails.Damage, t.DreadDetails.Reproducibility, t.DreadDetails.Exploitability,
		t.DreadDetails.AffectedUsers, t.DreadDetails.Discoverability,
	}
	var sum float64
	var count int
	for _, s := range subs {
		if s != nil {
			sum += *s
			count++
		}
	}
	if count == 0 {
		return t
	}
	avg := sum / float64(count)
	t.DreadScore = &avg
	return t
}

// Normalize parses raw diagram/threat payloads into a finished
// AnalysisResult: components, connections, deduplicated score-sorted
// threats, and the aggregate risk score/level.
func Normalize(modelUsed string, rawComponents, rawConnections, rawThreats []any, processingTime float64, processingLogs []string) *domain.AnalysisResult {
	components := parseComponents(rawComponents)
	connections := parseConnections(rawConnections)

	threats := parseThreats(rawThreats)
	for i := range threats {
		threats[i] = averageDreadScore(threats[i])
	}
	threats = domain.DedupThreats(threats)

	riskScore := domain.CalculateRiskScore(threats)
	return &domain.AnalysisResult{
		ModelUsed:      modelUsed,
		Components:     components,
		Connections:    connections,
		Threats:        threats,
		RiskScore:      riskScore,
		RiskLevel:      domain.RiskLevelFromScore(riskScore),
		ProcessingTime: processingTime,
		ProcessingLogs: processingLogs,
	}
}
