package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/ok", func(c echo.Context) error { return SuccessResponse(c, "fine") })
	e.GET("/panic", func(echo.Context) error { panic("boom") })
}

func TestServerMiddleware(t *testing.T) {
	s := NewServer(Handlers{routes{}, nil}, nil, WithMetrics("/metrics", time.Second))
	do := func(method, path string, header ...string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		for i := 0; i+1 < len(header); i += 2 {
			req.Header.Set(header[i], header[i+1])
		}
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodGet, "/ok", echo.HeaderXRequestID, "req-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(http.MethodGet, "/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = do(http.MethodOptions, "/ok", echo.HeaderOrigin, "http://x", echo.HeaderAccessControlRequestMethod, "GET")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://x", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `eventedge_http_requests_total{method="GET",route="/ok",status="200"}`)
}
