package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	xhttp "EventEdge/pkg/http"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	timeout time.Duration
	names   []string
	checks  map[string]HealthCheck
}

func NewHealthHandler(timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{timeout: timeout, checks: make(map[string]HealthCheck)}
}

// Add registers a readiness check. Nil checks are ignored.
func (h *HealthHandler) Add(name string, fn HealthCheck) {
	if fn == nil {
		return
	}
	if _, ok := h.checks[name]; !ok {
		h.names = append(h.names, name)
		sort.Strings(h.names)
	}
	h.checks[name] = fn
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Live)
	e.GET("/readyz", h.Ready)
}

func (h *HealthHandler) Live(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// Ready runs every check concurrently and reports each result.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.names))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range h.names {
		wg.Add(1)
		go func(name string, fn HealthCheck) {
			defer wg.Done()
			status := "ok"
			if err := fn(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name, h.checks[name])
	}
	wg.Wait()

	for _, s := range results {
		if s != "ok" {
			return xhttp.DataResponse(c, http.StatusServiceUnavailable, results)
		}
	}
	return xhttp.SuccessResponse(c, results)
}
