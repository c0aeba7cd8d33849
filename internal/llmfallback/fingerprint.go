package llmfallback

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// fingerprintVision hashes a vision request's cache-key prefix (the stage
// name, e.g. "diagram") plus its prompt and image bytes into a stable cache
// key, matching the cache_key_prefix/fingerprint-of-the-full-request design
// fallback.py's run_vision_with_fallback uses.
func fingerprintVision(prefix, prompt string, imageBytes []byte) string {
	h := xxhash.New()
	_, _ = h.Write([]byte(prefix))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(prompt))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(imageBytes)
	return fmt.Sprintf("llmfp:%x", h.Sum64())
}

// fingerprintText hashes a text request's cache-key prefix and prompt into
// a stable cache key.
func fingerprintText(prefix, prompt string) string {
	h := xxhash.New()
	_, _ = h.Write([]byte(prefix))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(prompt))
	return fmt.Sprintf("llmfp:%x", h.Sum64())
}

type cachedResult struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Text     string `json:"text"`
}

func encodeCached(r *Result) string {
	b, _ := json.Marshal(cachedResult{Provider: r.Provider, Model: r.Model, Text: r.Text})
	return string(b)
}

func decodeCached(val string) (*Result, bool) {
	var c cachedResult
	if err := json.Unmarshal([]byte(val), &c); err != nil {
		return nil, false
	}
	return &Result{Provider: c.Provider, Model: c.Model, Text: c.Text}, true
}
