package llmprovider

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainOpenAIProvider is the tertiary fallback provider, a lazy proxy
// to langchaingo's OpenAI chat client, directly grounded on
// original_source's OpenAIConnection (lazy _ensure_llm, is_configured
// checking an API key, same JSON-extraction fallback chain handled by
// ExtractJSONContent at the caller).
type LangChainOpenAIProvider struct {
	model       string
	temperature float64

	once sync.Once
	llm  *openai.LLM
	err  error
}

// NewLangChainOpenAIProvider creates a provider for the given model and
// sampling temperature, reading its API key from OPENAI_API_KEY at call
// time.
func NewLangChainOpenAIProvider(model string, temperature float64) *LangChainOpenAIProvider {
	if model == "" {
		model = "gpt-4o"
	}
	return &LangChainOpenAIProvider{model: model, temperature: temperature}
}

func (p *LangChainOpenAIProvider) Name() string { return "openai" }

func (p *LangChainOpenAIProvider) Model() string { return p.model }

func (p *LangChainOpenAIProvider) IsConfigured() bool {
	return os.Getenv("OPENAI_API_KEY") != ""
}

func (p *LangChainOpenAIProvider) ensureLLM() (*openai.LLM, error) {
	p.once.Do(func() {
		if !p.IsConfigured() {
			p.err = fmt.Errorf("openai: OPENAI_API_KEY is not set")
			return
		}
		p.llm, p.err = openai.New(
			openai.WithToken(os.Getenv("OPENAI_API_KEY")),
			openai.WithModel(p.model),
		)
	})
	return p.llm, p.err
}

func (p *LangChainOpenAIProvider) InvokeText(ctx context.Context, prompt string) (string, error) {
	llm, err := p.ensureLLM()
	if err != nil {
		return "", err
	}
	resp, err := llms.GenerateFromSinglePrompt(ctx, llm, prompt, llms.WithTemperature(p.temperature))
	if err != nil {
		return "", fmt.Errorf("openai invoke text: %w", err)
	}
	return resp, nil
}

func (p *LangChainOpenAIProvider) InvokeVision(ctx context.Context, imageBytes []byte, mediaType, prompt string) (string, error) {
	llm, err := p.ensureLLM()
	if err != nil {
		return "", err
	}

	dataURI := "data:" + mediaType + ";base64," + base64Encode(imageBytes)
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	content[0].Parts = append(content[0].Parts, llms.ImageURLPart(dataURI))

	resp, err := llm.GenerateContent(ctx, content, llms.WithTemperature(p.temperature))
	if err != nil {
		return "", fmt.Errorf("openai invoke vision: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai invoke vision: empty response")
	}
	return resp.Choices[0].Content, nil
}
