package domain

import (
	"regexp"
	"sort"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// ThreatDedupKey collapses a threat to the identity used to discard
// duplicate findings across pipeline runs: the title-cased threat type
// plus the whitespace-normalized, lower-cased description truncated to
// 500 runes. Ported from original_source's _threat_dedup_key.
func ThreatDedupKey(t Threat) (string, string) {
	threatType := strings.TrimSpace(t.ThreatType)
	threatType = titleCase(threatType)

	desc := strings.ToLower(strings.TrimSpace(t.Description))
	desc = whitespaceRun.ReplaceAllString(desc, " ")
	if r := []rune(desc); len(r) > 500 {
		desc = string(r[:500])
	}
	return threatType, desc
}

// titleCase upper-cases the first letter of each whitespace-separated word,
// matching Python's str.title() closely enough for dedup-key purposes.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		if len(r) == 0 {
			continue
		}
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		for j := 1; j < len(r); j++ {
			r[j] = []rune(strings.ToLower(string(r[j])))[0]
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// DedupThreats drops threats sharing a dedup key, keeping the first
// occurrence, then sorts the remainder by DREAD score descending.
func DedupThreats(threats []Threat) []Threat {
	seen := make(map[[2]string]bool, len(threats))
	out := make([]Threat, 0, len(threats))
	for _, t := range threats {
		a, b := ThreatDedupKey(t)
		key := [2]string{a, b}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DreadScoreOrZero() > out[j].DreadScoreOrZero()
	})
	return out
}
