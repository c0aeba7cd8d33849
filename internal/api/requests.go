package api

import (
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/arqvault/threatmodel/internal/domain"
	"github.com/arqvault/threatmodel/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200

	// dateOnlyLayout is the wire format for created_at_from/created_at_to:
	// a date with no time component, matching spec's "inclusive date range
	// on created_at" filter.
	dateOnlyLayout = "2006-01-02"
)

// listFilterFromQuery builds a repository.ListFilter from GET /analyses's
// query parameters (code, status, created_at_from/to, page, size), along
// with the normalized page/size for building the response envelope.
func listFilterFromQuery(c *echo.Context) (repository.ListFilter, int, int) {
	filter := repository.ListFilter{
		CodeSubstr: c.QueryParam("code"),
	}

	if status := c.QueryParam("status"); status != "" {
		filter.Status = domain.Status(status)
		filter.HasStatus = true
	}

	if from, ok := parseDateParam(c, "created_at_from"); ok {
		filter.CreatedFrom = from
		filter.HasFrom = true
	}
	if to, ok := parseDateParam(c, "created_at_to"); ok {
		// Inclusive through the end of the given day.
		filter.CreatedTo = to.Add(24*time.Hour - time.Nanosecond)
		filter.HasTo = true
	}

	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	size := queryInt(c, "size", defaultPageSize)
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	filter.Limit = size
	filter.Offset = (page - 1) * size
	return filter, page, size
}

func parseDateParam(c *echo.Context, name string) (time.Time, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(dateOnlyLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func queryInt(c *echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
