package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestGetHistoryParams(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/messages?with=u2&limit=30&before=abc", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	params := GetHistoryParams(c)

	assert.Equal(t, 30, params.Limit)
	assert.Equal(t, "abc", params.Before)
	assert.Empty(t, params.After)
}

func TestGetHistoryParams_BadLimit(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/messages?limit=-4", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	assert.Equal(t, 0, GetHistoryParams(c).Limit)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 50, ClampLimit(0, 50, 200))
	assert.Equal(t, 10, ClampLimit(10, 50, 200))
	assert.Equal(t, 200, ClampLimit(1000, 50, 200))
}
