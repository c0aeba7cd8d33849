package llmprovider

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedJSONBlock    = regexp.MustCompile(`(?s)` + "```" + `json\s*(.*?)\s*` + "```")
	fencedGenericBlock = regexp.MustCompile(`(?s)` + "```" + `\s*(.*?)\s*` + "```")
)

// ExtractJSONContent pulls a JSON object or array out of loosely-structured
// LLM response text, trying three patterns in order: a ```json fenced
// block, a generic ``` fenced block (accepted only if it starts with { or
// [), and a string-aware, escape-aware balanced-brace/bracket scan over
// the raw text that starts at whichever of { or [ appears first. Falls
// back to the content unmodified. Ported from original_source's
// BaseAgent._extract_json_content.
func ExtractJSONContent(content string) string {
	content = strings.TrimSpace(content)

	if m := fencedJSONBlock.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}

	if m := fencedGenericBlock.FindStringSubmatch(content); m != nil {
		candidate := strings.TrimSpace(m[1])
		if strings.HasPrefix(candidate, "{") || strings.HasPrefix(candidate, "[") {
			return candidate
		}
	}

	pairs := [][2]byte{{'{', '}'}, {'[', ']'}}
	if arr, obj := strings.IndexByte(content, '['), strings.IndexByte(content, '{'); arr != -1 && (obj == -1 || arr < obj) {
		pairs[0], pairs[1] = pairs[1], pairs[0]
	}
	for _, pair := range pairs {
		startChar, endChar := pair[0], pair[1]
		if extracted, ok := scanBalanced(content, startChar, endChar); ok {
			return extracted
		}
	}

	return content
}

// scanBalanced finds the first startChar and returns the substring up to
// its matching endChar, skipping over characters inside JSON string
// literals (including escaped quotes).
func scanBalanced(content string, startChar, endChar byte) (string, bool) {
	startIdx := strings.IndexByte(content, startChar)
	if startIdx == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escapeNext := false

	for i := startIdx; i < len(content); i++ {
		c := content[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if c == '\\' {
			escapeNext = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case startChar:
			depth++
		case endChar:
			depth--
			if depth == 0 {
				return content[startIdx : i+1], true
			}
		}
	}
	return "", false
}

// ErrorResult mirrors original_source's {error, error_type, service} dict.
// The providers and ParseJSONResponse in this package report failures as
// Go errors and do not produce it.
type ErrorResult struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
	Service   string `json:"service"`
}

// ParseJSONResponse extracts and decodes JSON from raw LLM text into a
// map. On empty content, or text that does not decode as a JSON object,
// it returns a nil map and an error naming service.
func ParseJSONResponse(content, service string) (map[string]any, error) {
	if content == "" {
		return nil, fmt.Errorf("empty content from %s", service)
	}
	extracted := ExtractJSONContent(content)
	var result map[string]any
	if err := json.Unmarshal([]byte(extracted), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response from %s: %w", service, err)
	}
	return result, nil
}
