package llmprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockProvider is the secondary provider, calling a Claude model hosted
// on Amazon Bedrock via the InvokeModel API. Request/response bodies use
// Anthropic's own Messages wire format, which Bedrock passes through.
type BedrockProvider struct {
	modelID string

	once   sync.Once
	client *bedrockruntime.Client
	cfgErr error
}

// NewBedrockProvider creates a provider for the given Bedrock model ID.
func NewBedrockProvider(modelID string) *BedrockProvider {
	if modelID == "" {
		modelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	return &BedrockProvider{modelID: modelID}
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Model() string { return p.modelID }

func (p *BedrockProvider) ensureClient(ctx context.Context) error {
	p.once.Do(func() {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			p.cfgErr = err
			return
		}
		p.client = bedrockruntime.NewFromConfig(cfg)
	})
	return p.cfgErr
}

// IsConfigured resolves the default AWS credential chain; a resolvable
// credential set is treated as configured. Depending on the source the
// chain reaches (for example instance metadata), this can make a network
// call.
func (p *BedrockProvider) IsConfigured() bool {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return false
	}
	_, err = cfg.Credentials.Retrieve(context.Background())
	return err == nil
}

type bedrockAnthropicRequest struct {
	AnthropicVersion string                   `json:"anthropic_version"`
	MaxTokens        int                      `json:"max_tokens"`
	Messages         []bedrockAnthropicMessage `json:"messages"`
}

type bedrockAnthropicMessage struct {
	Role    string                  `json:"role"`
	Content []bedrockAnthropicBlock `json:"content"`
}

type bedrockAnthropicBlock struct {
	Type   string               `json:"type"`
	Text   string               `json:"text,omitempty"`
	Source *bedrockImageSource  `json:"source,omitempty"`
}

type bedrockImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type bedrockAnthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *BedrockProvider) invoke(ctx context.Context, req bedrockAnthropicRequest) (string, error) {
	if err := p.ensureClient(ctx); err != nil {
		return "", fmt.Errorf("bedrock: resolve AWS config: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("bedrock: marshal request: %w", err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke model: %w", err)
	}

	var resp bedrockAnthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("bedrock: unmarshal response: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

func (p *BedrockProvider) InvokeText(ctx context.Context, prompt string) (string, error) {
	return p.invoke(ctx, bedrockAnthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        4096,
		Messages: []bedrockAnthropicMessage{
			{Role: "user", Content: []bedrockAnthropicBlock{{Type: "text", Text: prompt}}},
		},
	})
}

func (p *BedrockProvider) InvokeVision(ctx context.Context, imageBytes []byte, mediaType, prompt string) (string, error) {
	return p.invoke(ctx, bedrockAnthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        4096,
		Messages: []bedrockAnthropicMessage{
			{Role: "user", Content: []bedrockAnthropicBlock{
				{Type: "image", Source: &bedrockImageSource{Type: "base64", MediaType: mediaType, Data: base64Encode(imageBytes)}},
				{Type: "text", Text: prompt},
			}},
		},
	})
}
