package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arqvault/threatmodel/internal/cache"
	"github.com/arqvault/threatmodel/internal/llmfallback"
	"github.com/arqvault/threatmodel/internal/llmprovider"
	"github.com/arqvault/threatmodel/internal/pipeline"
)

type canningProvider struct{}

func (canningProvider) Name() string       { return "canned" }
func (canningProvider) Model() string      { return "canned-model" }
func (canningProvider) IsConfigured() bool { return true }

func (canningProvider) InvokeVision(context.Context, []byte, string, string) (string, error) {
	return `{"model":"canned-model","components":[{"id":"c1","name":"web","type":"service"}],"connections":[]}`, nil
}

func (canningProvider) InvokeText(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "DREAD") {
		return `{"threats":[{"threat_type":"Spoofing","description":"attacker spoofs the web tier",` +
			`"component_id":"c1","dread_details":{"damage":4,"reproducibility":4,"exploitability":4,` +
			`"affected_users":4,"discoverability":4}}]}`, nil
	}
	return `{"threats":[{"threat_type":"Spoofing","description":"attacker spoofs the web tier","component_id":"c1"}]}`, nil
}

type alwaysDiagramClassifier struct{}

func (alwaysDiagramClassifier) IsArchitectureDiagram(context.Context, []byte, string) (bool, error) {
	return true, nil
}

func newTestAnalyzerServer(t *testing.T) *AnalyzerServer {
	t.Helper()
	runner := llmfallback.New([]llmprovider.Provider{canningProvider{}}, cache.NoopBackend{}, time.Hour)
	orchestrator := &pipeline.Orchestrator{Classifier: alwaysDiagramClassifier{}, Runner: runner}
	return NewAnalyzerServer(orchestrator, []string{"image/png"})
}

func TestAnalyzeHandlerHappyPath(t *testing.T) {
	s := newTestAnalyzerServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "diagram.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\nfakepixels"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/threat-model/analyze", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Threats, 1)
	require.Equal(t, 4.0, resp.RiskScore)
	require.EqualValues(t, "MEDIUM", resp.RiskLevel)
	require.Equal(t, "canned-model", resp.ModelUsed)
	require.Equal(t, "c1", resp.Threats[0].ComponentID)
	require.NotNil(t, resp.Threats[0].DreadDetails)
	require.GreaterOrEqual(t, resp.ProcessingTime, 0.0)
	require.ElementsMatch(t, []string{"diagram", "stride", "dread"}, stageNames(resp.ProcessingLogs))
}

func stageNames(logs []string) []string {
	names := make([]string, len(logs))
	for i, line := range logs {
		name, _, _ := strings.Cut(line, ":")
		names[i] = name
	}
	return names
}

func TestAnalyzeHandlerRejectsUnsupportedMediaType(t *testing.T) {
	s := newTestAnalyzerServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "anim.gif")
	require.NoError(t, err)
	_, err = part.Write([]byte("GIF89afakepixels"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/threat-model/analyze", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
