// Package llmfallback runs an ordered list of LLM providers, returning the
// first valid result and caching successes by request fingerprint. Ported
// from original_source's llm/fallback.py (run_vision_with_fallback /
// run_text_with_fallback), enriched with a per-provider circuit breaker so
// a provider failing fast does not add its timeout to every call.
package llmfallback

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/arqvault/threatmodel/internal/apperrors"
	"github.com/arqvault/threatmodel/internal/cache"
	"github.com/arqvault/threatmodel/internal/llmprovider"
)

// Result is a successful fallback outcome: the raw text from whichever
// provider succeeded, which provider it was, and the specific model it
// invoked (surfaced to callers as model_used).
type Result struct {
	Provider string
	Model    string
	Text     string
}

// Runner tries providers in order and returns the first valid result.
type Runner struct {
	providers []llmprovider.Provider
	cache     cache.Backend
	cacheTTL  time.Duration
	breakers  map[string]*gobreaker.CircuitBreaker
}

// New builds a Runner over an ordered provider list.
func New(providers []llmprovider.Provider, backend cache.Backend, cacheTTL time.Duration) *Runner {
	r := &Runner{
		providers: providers,
		cache:     backend,
		cacheTTL:  cacheTTL,
		breakers:  make(map[string]*gobreaker.CircuitBreaker, len(providers)),
	}
	for _, p := range providers {
		name := p.Name()
		r.breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		})
	}
	return r
}

// Validator reports whether a provider's raw response text is acceptable.
// An invalid response is treated the same as a provider error: the runner
// moves on to the next configured provider. Ported from fallback.py's
// validate callable (default there is "not is_error_result").
type Validator func(text string) bool

func alwaysValid(string) bool { return true }

// RunVision tries each configured provider's InvokeVision in order,
// checking and populating the fingerprint cache around the attempt.
// cacheKeyPrefix namespaces the fingerprint by stage (e.g. "diagram") so
// two stages that happen to be invoked with identical text never collide
// in the cache. A nil validate accepts any response; callers should supply
// one that checks for the fields their stage actually needs.
func (r *Runner) RunVision(ctx context.Context, imageBytes []byte, mediaType, prompt, cacheKeyPrefix string, validate Validator) (*Result, *apperrors.PipelineStageError) {
	if validate == nil {
		validate = alwaysValid
	}
	key := fingerprintVision(cacheKeyPrefix, prompt, imageBytes)
	if cached, ok := r.lookupCache(ctx, key); ok && validate(cached.Text) {
		return cached, nil
	}
	result, stageErr := r.attempt(ctx, validate, func(p llmprovider.Provider) (string, error) {
		return p.InvokeVision(ctx, imageBytes, mediaType, prompt)
	})
	if stageErr == nil {
		r.storeCache(ctx, key, result)
	}
	return result, stageErr
}

// RunText tries each configured provider's InvokeText in order.
func (r *Runner) RunText(ctx context.Context, prompt, cacheKeyPrefix string, validate Validator) (*Result, *apperrors.PipelineStageError) {
	if validate == nil {
		validate = alwaysValid
	}
	key := fingerprintText(cacheKeyPrefix, prompt)
	if cached, ok := r.lookupCache(ctx, key); ok && validate(cached.Text) {
		return cached, nil
	}
	result, stageErr := r.attempt(ctx, validate, func(p llmprovider.Provider) (string, error) {
		return p.InvokeText(ctx, prompt)
	})
	if stageErr == nil {
		r.storeCache(ctx, key, result)
	}
	return result, stageErr
}

func (r *Runner) attempt(ctx context.Context, validate Validator, call func(llmprovider.Provider) (string, error)) (*Result, *apperrors.PipelineStageError) {
	var engineErrors []apperrors.EngineError

	for _, p := range r.providers {
		if !p.IsConfigured() {
			continue
		}

		name := p.Name()
		breaker := r.breakers[name]

		start := time.Now()
		slog.Info("trying LLM provider", "provider", name)

		raw, err := breaker.Execute(func() (any, error) {
			text, err := call(p)
			if err != nil {
				return nil, err
			}
			return text, nil
		})
		elapsed := time.Since(start)

		if err != nil {
			slog.Warn("LLM provider failed", "provider", name, "elapsed", elapsed, "error", err)
			engineErrors = append(engineErrors, apperrors.EngineError{
				Engine:    name,
				Error:     err.Error(),
				ErrorType: errorType(err),
			})
			continue
		}

		text := raw.(string)
		if !validate(text) {
			slog.Warn("LLM provider response failed validation", "provider", name, "elapsed", elapsed)
			engineErrors = append(engineErrors, apperrors.EngineError{
				Engine:    name,
				Error:     "response failed validation",
				ErrorType: "validation",
			})
			continue
		}

		slog.Info("LLM provider succeeded", "provider", name, "elapsed", elapsed)
		return &Result{Provider: name, Model: p.Model(), Text: text}, nil
	}

	return nil, &apperrors.PipelineStageError{
		Engines: engineErrors,
		Cause:   apperrors.ErrAllProvidersFailed,
	}
}

func errorType(err error) string {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return "circuit_open"
	}
	return "exception"
}

func (r *Runner) lookupCache(ctx context.Context, key string) (*Result, bool) {
	if r.cache == nil {
		return nil, false
	}
	val, ok := r.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	return decodeCached(val)
}

func (r *Runner) storeCache(ctx context.Context, key string, result *Result) {
	if r.cache == nil || result == nil {
		return
	}
	r.cache.Set(ctx, key, encodeCached(result), r.cacheTTL)
}
