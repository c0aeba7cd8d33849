package api

import (
	"context"
	"io"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/arqvault/threatmodel/internal/apperrors"
	"github.com/arqvault/threatmodel/internal/imagestore"
	"github.com/arqvault/threatmodel/internal/pipeline"
	"github.com/arqvault/threatmodel/internal/version"
)

// AnalyzerServer exposes spec §6.2's single stateless endpoint.
type AnalyzerServer struct {
	echo         *echo.Echo
	httpServer   *http.Server
	orchestrator *pipeline.Orchestrator
	allowedTypes map[string]bool
}

// NewAnalyzerServer builds an AnalyzerServer. allowedTypes is the same
// allow-list the intake service enforces, kept in sync via config.
func NewAnalyzerServer(orchestrator *pipeline.Orchestrator, allowedTypes []string) *AnalyzerServer {
	e := echo.New()
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[t] = true
	}
	s := &AnalyzerServer{echo: e, orchestrator: orchestrator, allowedTypes: allowed}
	s.setupRoutes()
	return s
}

func (s *AnalyzerServer) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(32 * 1024 * 1024))
	s.echo.GET("/health", s.healthHandler)
	s.echo.POST("/api/v1/threat-model/analyze", s.analyzeHandler)
}

// Start runs the HTTP server on addr (blocking).
func (s *AnalyzerServer) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *AnalyzerServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *AnalyzerServer) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version.Full(),
	})
}

func (s *AnalyzerServer) analyzeHandler(c *echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not open uploaded file")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read uploaded file")
	}
	if len(content) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "empty upload")
	}

	mediaType := imagestore.SniffMediaType(content)
	if len(s.allowedTypes) > 0 && !s.allowedTypes[mediaType] {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "unsupported content type "+mediaType)
	}

	result, err := s.orchestrator.Run(c.Request().Context(), content, mediaType)
	if err != nil {
		return mapAnalyzeError(err)
	}

	return c.JSON(http.StatusOK, AnalyzeResponse{
		ModelUsed:      result.ModelUsed,
		Components:     result.Components,
		Connections:    result.Connections,
		Threats:        result.Threats,
		RiskScore:      result.RiskScore,
		RiskLevel:      result.RiskLevel,
		ProcessingTime: result.ProcessingTime,
		ProcessingLogs: result.ProcessingLogs,
	})
}

// mapAnalyzeError maps the orchestrator's errors to spec §6.2's codes: a
// guardrail rejection is 422 (well-formed request, semantically not a
// diagram), a pipeline stage failure is 502 (upstream provider failure).
func mapAnalyzeError(err error) *echo.HTTPError {
	if apperrors.IsValidationError(err) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return mapError(err)
}
