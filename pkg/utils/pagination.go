package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// HistoryParams holds the raw paging parameters of a message history request.
// Cursors stay opaque here; the message use case decodes them.
type HistoryParams struct {
	Limit  int
	Before string
	After  string
}

// GetHistoryParams extracts limit/before/after from the query string. A
// missing or non-positive limit is returned as 0 so the caller applies its
// configured default.
func GetHistoryParams(c echo.Context) HistoryParams {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 0 {
		limit = 0
	}

	return HistoryParams{
		Limit:  limit,
		Before: c.QueryParam("before"),
		After:  c.QueryParam("after"),
	}
}

// ClampLimit applies the default when limit is unset and caps it at max.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
