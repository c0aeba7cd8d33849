package analyzerclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAnalyzeSendsMultipartAndParsesResult(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		resp := analyzeResponse{RiskScore: 4.0, RiskLevel: "MEDIUM"}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	result, err := client.Analyze(context.Background(), "diagram.png", []byte("fake-image-bytes"), "image/png")
	require.NoError(t, err)
	require.Equal(t, "/api/v1/threat-model/analyze", gotPath)
	require.Equal(t, 4.0, result.RiskScore)
}

func TestAnalyzeReturnsErrorOnNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	_, err := client.Analyze(context.Background(), "diagram.png", []byte("x"), "image/png")
	require.Error(t, err)
}
