// Package llmprovider wraps each vision-capable LLM vendor behind one
// narrow interface, lazily constructing the real SDK client on first use
// the way the teacher's pkg/llm.Client builds its connection from
// environment configuration rather than at program start.
package llmprovider

import "context"

// Provider is one LLM backend capable of vision and text completion calls
// for the pipeline's diagram/STRIDE/DREAD stages.
type Provider interface {
	// Name identifies the provider in logs and engine_errors entries.
	Name() string

	// Model identifies the specific model this provider invokes (e.g.
	// "claude-3-5-sonnet-latest"), surfaced to callers as model_used.
	Model() string

	// IsConfigured reports whether the credentials this provider needs are
	// present, without calling the model API.
	IsConfigured() bool

	// InvokeVision sends an image plus a text prompt and returns the raw
	// text response.
	InvokeVision(ctx context.Context, imageBytes []byte, mediaType, prompt string) (string, error)

	// InvokeText sends a text-only prompt and returns the raw text
	// response.
	InvokeText(ctx context.Context, prompt string) (string, error)
}
