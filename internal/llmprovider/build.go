package llmprovider

import "github.com/arqvault/threatmodel/internal/config"

// BuildProviders constructs the ordered provider list the fallback runner
// tries, following spec §9's "order is data, not code" design note: when a
// ProviderRegistry is supplied (from an operator's llm-providers.yaml) its
// order and per-entry model/type win; otherwise a sensible anthropic ->
// bedrock -> openai default order is built from primaryModel/fallbackModel.
func BuildProviders(registry *config.ProviderRegistry, primaryModel, fallbackModel string, temperature float64) []Provider {
	if registry != nil && registry.Len() > 0 {
		providers := make([]Provider, 0, registry.Len())
		for _, entry := range registry.Ordered() {
			if p := fromRegistryEntry(entry, temperature); p != nil {
				providers = append(providers, p)
			}
		}
		return providers
	}

	return []Provider{
		NewAnthropicProvider(primaryModel),
		NewBedrockProvider(fallbackModel),
		NewLangChainOpenAIProvider(fallbackModel, temperature),
	}
}

func fromRegistryEntry(entry config.ProviderConfig, temperature float64) Provider {
	switch entry.Type {
	case "anthropic":
		return NewAnthropicProvider(entry.Model)
	case "bedrock":
		return NewBedrockProvider(entry.Model)
	case "openai":
		return NewLangChainOpenAIProvider(entry.Model, temperature)
	default:
		return nil
	}
}
