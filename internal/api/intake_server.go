// Package api holds the echo/v5 HTTP surfaces for both services,
// adapted from the teacher's pkg/api (server.go's route-table-plus-
// Server-struct shape, errors.go's mapError pattern, responses.go's
// flat DTO style).
package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/arqvault/threatmodel/internal/lifecycle"
	"github.com/arqvault/threatmodel/internal/version"
)

// IntakeServer exposes spec §6.1's job lifecycle surface: submit, list,
// get, get-image, get-logs, delete.
type IntakeServer struct {
	echo        *echo.Echo
	httpServer  *http.Server
	manager     *lifecycle.Manager
	corsOrigins []string
}

// NewIntakeServer builds an IntakeServer and registers its routes.
func NewIntakeServer(manager *lifecycle.Manager, corsOrigins []string) *IntakeServer {
	e := echo.New()
	s := &IntakeServer{echo: e, manager: manager, corsOrigins: corsOrigins}
	s.setupRoutes()
	return s
}

func (s *IntakeServer) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(32 * 1024 * 1024))
	if len(s.corsOrigins) > 0 {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.corsOrigins,
		}))
	}

	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/analyses", s.submitHandler)
	v1.GET("/analyses", s.listHandler)
	v1.GET("/analyses/:id", s.getHandler)
	v1.GET("/analyses/:id/image", s.getImageHandler)
	v1.GET("/analyses/:id/logs", s.getLogsHandler)
	v1.DELETE("/analyses/:id", s.deleteHandler)
}

// Start runs the HTTP server on addr (blocking).
func (s *IntakeServer) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *IntakeServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *IntakeServer) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version.Full(),
	})
}

func (s *IntakeServer) submitHandler(c *echo.Context) error {
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

	analysis, err := s.manager.Submit(c.Request().Context(), content, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		return mapSubmitError(err)
	}

	return c.JSON(http.StatusCreated, toAnalysisResponse(analysis))
}

// mapSubmitError special-cases the 413 that spec §6.1 requires for an
// oversized upload, which mapError otherwise renders as a plain 400.
func mapSubmitError(err error) *echo.HTTPError {
	mapped := mapError(err)
	if mapped.Code == http.StatusBadRequest {
		if msg, ok := mapped.Message.(string); ok && strings.Contains(msg, "exceeds maximum size") {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, msg)
		}
	}
	return mapped
}

func (s *IntakeServer) listHandler(c *echo.Context) error {
	filter, page, size := listFilterFromQuery(c)
	items, total, err := s.manager.List(c.Request().Context(), filter)
	if err != nil {
		return mapError(err)
	}

	resp := ListResponse{
		Items: make([]AnalysisResponse, len(items)),
		Total: total,
		Page:  page,
		Size:  size,
		Pages: pagesOf(total, size),
	}
	for i, a := range items {
		resp.Items[i] = toAnalysisResponse(a)
	}
	return c.JSON(http.StatusOK, resp)
}

func pagesOf(total, size int) int {
	if size <= 0 {
		return 0
	}
	pages := total / size
	if total%size != 0 {
		pages++
	}
	return pages
}

func (s *IntakeServer) getHandler(c *echo.Context) error {
	a, err := s.manager.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toAnalysisResponse(a))
}

func (s *IntakeServer) getImageHandler(c *echo.Context) error {
	content, mediaType, err := s.manager.GetImage(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.Blob(http.StatusOK, mediaType, content)
}

func (s *IntakeServer) getLogsHandler(c *echo.Context) error {
	lines, err := s.manager.GetLogs(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, LogsResponse{Logs: strings.Join(lines, "\n")})
}

func (s *IntakeServer) deleteHandler(c *echo.Context) error {
	if err := s.manager.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
