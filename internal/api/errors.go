package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/arqvault/threatmodel/internal/apperrors"
)

// mapError maps domain/storage-layer errors to HTTP error responses,
// ported in structure (not content) from the teacher's
// pkg/api/errors.go::mapServiceError.
func mapError(err error) *echo.HTTPError {
	var validErr *apperrors.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}

	var stageErr *apperrors.PipelineStageError
	if errors.As(err, &stageErr) {
		return echo.NewHTTPError(http.StatusBadGateway, stageErr.Error())
	}

	if errors.Is(err, apperrors.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "analysis not found")
	}
	if errors.Is(err, apperrors.ErrConflict) {
		return echo.NewHTTPError(http.StatusConflict, "analysis not in a valid state for this operation")
	}
	if errors.Is(err, apperrors.ErrCodeExhausted) {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not allocate an analysis code")
	}
	if errors.Is(err, apperrors.ErrAllProvidersFailed) {
		return echo.NewHTTPError(http.StatusBadGateway, "all llm providers failed")
	}

	slog.Error("unexpected error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
