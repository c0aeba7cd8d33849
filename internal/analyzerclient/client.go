// Package analyzerclient is the intake service's HTTP client for the
// analyzer service. Grounded on original_source's scripts/run_analysis_flow.py,
// which confirms the two services talk over a synchronous multipart POST
// rather than gRPC or an in-process call.
package analyzerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/arqvault/threatmodel/internal/domain"
)

// Client calls the analyzer service's /api/v1/threat-model/analyze
// endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a Client. timeout bounds the whole request, independent of
// the worker's own per-job timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type analyzeResponse struct {
	ModelUsed      string              `json:"model_used"`
	Components     []domain.Component  `json:"components"`
	Connections    []domain.Connection `json:"connections"`
	Threats        []domain.Threat     `json:"threats"`
	RiskScore      float64             `json:"risk_score"`
	RiskLevel      domain.RiskLevel    `json:"risk_level"`
	ProcessingTime float64             `json:"processing_time"`
	ProcessingLogs []string            `json:"processing_logs,omitempty"`
}

// Analyze uploads imageBytes as multipart form data and returns the
// normalized AnalysisResult the analyzer computed.
func (c *Client) Analyze(ctx context.Context, filename string, imageBytes []byte, mediaType string) (*domain.AnalysisResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create multipart field: %w", err)
	}
	if _, err := part.Write(imageBytes); err != nil {
		return nil, fmt.Errorf("write multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	url := c.baseURL + "/api/v1/threat-model/analyze"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("build analyzer request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call analyzer: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read analyzer response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal analyzer response: %w", err)
	}

	return &domain.AnalysisResult{
		ModelUsed:      parsed.ModelUsed,
		Components:     parsed.Components,
		Connections:    parsed.Connections,
		Threats:        parsed.Threats,
		RiskScore:      parsed.RiskScore,
		RiskLevel:      parsed.RiskLevel,
		ProcessingTime: parsed.ProcessingTime,
		ProcessingLogs: parsed.ProcessingLogs,
	}, nil
}
