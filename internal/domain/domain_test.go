package domain

import "testing"

func TestRiskLevelFromScore(t *testing.T) {
	cases := []struct {
		score float64
		want  RiskLevel
	}{
		{2.9, RiskLow},
		{3.0, RiskMedium},
		{5.9, RiskMedium},
		{6.0, RiskHigh},
		{7.9, RiskHigh},
		{8.0, RiskCritical},
	}
	for _, c := range cases {
		if got := RiskLevelFromScore(c.score); got != c.want {
			t.Errorf("RiskLevelFromScore(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(StatusOpen, StatusRunning) {
		t.Error("open -> running should be legal")
	}
	if !CanTransition(StatusOpen, StatusFailed) {
		t.Error("open -> failed should be legal")
	}
	if !CanTransition(StatusRunning, StatusDone) {
		t.Error("running -> done should be legal")
	}
	if CanTransition(StatusDone, StatusRunning) {
		t.Error("done -> running should be illegal")
	}
	if CanTransition(StatusFailed, StatusDone) {
		t.Error("failed -> done should be illegal")
	}
}

func TestThreatDedupKey(t *testing.T) {
	a := Threat{ThreatType: "  spoofing  ", Description: "  Attacker   IMPERSONATES   the API gateway  "}
	b := Threat{ThreatType: "Spoofing", Description: "attacker impersonates the api gateway"}
	ka1, ka2 := ThreatDedupKey(a)
	kb1, kb2 := ThreatDedupKey(b)
	if ka1 != kb1 || ka2 != kb2 {
		t.Errorf("expected equal dedup keys, got (%q,%q) vs (%q,%q)", ka1, ka2, kb1, kb2)
	}
}

func TestDedupThreatsSortsByScoreDescending(t *testing.T) {
	low := 2.0
	high := 9.0
	threats := []Threat{
		{ThreatType: "Tampering", Description: "low score", DreadScore: &low},
		{ThreatType: "Spoofing", Description: "high score", DreadScore: &high},
		{ThreatType: "Spoofing", Description: "high score"}, // duplicate, dropped
	}
	out := DedupThreats(threats)
	if len(out) != 2 {
		t.Fatalf("expected 2 threats after dedup, got %d", len(out))
	}
	if out[0].ThreatType != "Spoofing" {
		t.Errorf("expected highest-score threat first, got %+v", out[0])
	}
}

func TestCalculateRiskScore(t *testing.T) {
	if got := CalculateRiskScore(nil); got != 0 {
		t.Errorf("empty threat list should score 0, got %v", got)
	}
	a, b := 4.0, 8.0
	got := CalculateRiskScore([]Threat{{DreadScore: &a}, {DreadScore: &b}})
	if got != 6.0 {
		t.Errorf("expected mean 6.0, got %v", got)
	}
}
