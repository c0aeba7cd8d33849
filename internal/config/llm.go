package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ProviderConfig describes one LLM provider entry in an optional
// llm-providers.yaml registry, letting operators reorder or add providers
// without a code change or redeploy. Adapted from the teacher's
// LLMProviderConfig/LLMProviderRegistry in pkg/config/llm.go.
type ProviderConfig struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"` // "anthropic" | "bedrock" | "openai"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	Region    string `yaml:"region,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
}

// ProviderRegistry holds an ordered, named set of provider configs.
type ProviderRegistry struct {
	order     []string
	providers map[string]*ProviderConfig
	mu        sync.RWMutex
}

// NewProviderRegistry builds a registry from a slice of configs, defensively
// copying each entry and preserving the slice's order as the fallback order.
func NewProviderRegistry(configs []ProviderConfig) *ProviderRegistry {
	r := &ProviderRegistry{
		providers: make(map[string]*ProviderConfig, len(configs)),
	}
	for i := range configs {
		cp := configs[i]
		r.providers[cp.Name] = &cp
		r.order = append(r.order, cp.Name)
	}
	return r
}

// LoadProviderRegistry reads and parses an llm-providers.yaml file.
func LoadProviderRegistry(path string) (*ProviderRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider config: %w", err)
	}
	var doc struct {
		Providers []ProviderConfig `yaml:"providers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse provider config: %w", err)
	}
	return NewProviderRegistry(doc.Providers), nil
}

// Get returns the named provider config and whether it was found.
func (r *ProviderRegistry) Get(name string) (ProviderConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return ProviderConfig{}, false
	}
	return *p, true
}

// Ordered returns every provider config in fallback order.
func (r *ProviderRegistry) Ordered() []ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProviderConfig, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.providers[name])
	}
	return out
}

// Len reports the number of configured providers.
func (r *ProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
