package llmprovider

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider is the primary vision-capable provider, calling the
// Anthropic Messages API directly. Lazily builds its client on first use,
// following the teacher's pkg/llm.Client env-driven construction idiom.
type AnthropicProvider struct {
	model string

	once   sync.Once
	client anthropic.Client
}

// NewAnthropicProvider creates a provider for the given model, reading its
// API key from ANTHROPIC_API_KEY at call time.
func NewAnthropicProvider(model string) *AnthropicProvider {
	if model == "" {
		model = "claude-3-5-sonnet-latest"
	}
	return &AnthropicProvider{model: model}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Model() string { return p.model }

func (p *AnthropicProvider) IsConfigured() bool {
	return os.Getenv("ANTHROPIC_API_KEY") != ""
}

func (p *AnthropicProvider) ensureClient() {
	p.once.Do(func() {
		p.client = anthropic.NewClient(option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")))
	})
}

func (p *AnthropicProvider) InvokeText(ctx context.Context, prompt string) (string, error) {
	if !p.IsConfigured() {
		return "", fmt.Errorf("anthropic: ANTHROPIC_API_KEY is not set")
	}
	p.ensureClient()

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic invoke text: %w", err)
	}
	return concatText(msg), nil
}

func (p *AnthropicProvider) InvokeVision(ctx context.Context, imageBytes []byte, mediaType, prompt string) (string, error) {
	if !p.IsConfigured() {
		return "", fmt.Errorf("anthropic: ANTHROPIC_API_KEY is not set")
	}
	p.ensureClient()

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mediaType, base64Encode(imageBytes)),
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic invoke vision: %w", err)
	}
	return concatText(msg), nil
}

func concatText(msg *anthropic.Message) string {
	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out
}
