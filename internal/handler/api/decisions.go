package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	models "EventEdge/internal/domain/models"
	"EventEdge/internal/service/metrics"
	"EventEdge/internal/service/ratelimit"
	"EventEdge/internal/services/explain"
	"EventEdge/internal/usecase"
	xhttp "EventEdge/pkg/http"
	applogger "EventEdge/pkg/logger"
	xutil "EventEdge/pkg/util"
)

const (
	defaultStaleLimit = 500
	maxStaleLimit     = 10000
)

// RateConfig is a token bucket per client address.
type RateConfig struct {
	Capacity     float64
	RefillPerSec float64
}

// DecisionsHandler exposes the decision engine over HTTP.
type DecisionsHandler struct {
	uc       *usecase.DecisionUseCase
	renderer *explain.Renderer
	rl       *ratelimit.Limiter
	rate     RateConfig
	ws       echo.HandlerFunc
	l        *applogger.Logger
}

func NewDecisionsHandler(uc *usecase.DecisionUseCase, renderer *explain.Renderer, rate RateConfig) *DecisionsHandler {
	metrics.Register()
	return &DecisionsHandler{uc: uc, renderer: renderer, rl: ratelimit.New(), rate: rate}
}

// SetLogger injects a structured logger.
func (h *DecisionsHandler) SetLogger(l *applogger.Logger) { h.l = l }

// SetStream mounts the live decision feed at /ws/decisions.
func (h *DecisionsHandler) SetStream(ws echo.HandlerFunc) { h.ws = ws }

func (h *DecisionsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/decisions/analyze", h.Analyze)
	g.GET("/decisions/:eventId", h.Get)
	g.POST("/decisions/:eventId/rescore", h.Rescore)
	g.GET("/model", h.Model)
	g.POST("/model/rescore-stale", h.RescoreStale)
	if h.ws != nil {
		e.GET("/ws/decisions", h.ws)
	}
}

func (h *DecisionsHandler) Analyze(c echo.Context) error {
	defer observe("analyze", time.Now())
	if h.rate.Capacity > 0 {
		if ok, wait := h.rl.Take(c.RealIP()+":analyze", h.rate.Capacity, h.rate.RefillPerSec); !ok {
			if h.l != nil {
				h.l.Warn("decisions.analyze rate_limited", applogger.String("remote", c.RealIP()))
			}
			if wait > 0 {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			}
			return h.reply(c, "analyze", xhttp.NewAppError("ERR_RATE_LIMITED", "", "rate limited", http.StatusTooManyRequests))
		}
	}

	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var asOf time.Time
	if req.AsOf != "" {
		t, ok := xutil.ParseTime(req.AsOf)
		if !ok {
			return h.reply(c, "analyze", xhttp.NewAppError("ERR_INVALID_TIME", "asOf", "asOf must be RFC3339 or unix seconds", http.StatusBadRequest).WithParam("value", req.AsOf))
		}
		asOf = t
	}

	res, err := h.uc.Analyze(c.Request().Context(), usecase.AnalyzeParams{
		Event:   req.Event,
		History: req.History,
		Read:    req.Read,
		Risk:    req.Risk,
		AsOf:    asOf,
	})
	if err != nil {
		return h.fail(c, "analyze", err)
	}
	return xhttp.SuccessResponse(c, h.view(c, *res))
}

func (h *DecisionsHandler) Get(c echo.Context) error {
	defer observe("get", time.Now())
	req := &models.DecisionPathRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, err := h.uc.Get(c.Request().Context(), req.EventID)
	if err != nil {
		return h.fail(c, "get", err)
	}
	return xhttp.SuccessResponse(c, models.DecisionRecordView{
		EventID:   rec.EventID,
		Ticker:    rec.Ticker,
		Trigger:   rec.Trigger,
		Input:     rec.Input,
		Decision:  h.view(c, rec.Result),
		CreatedAt: rec.CreatedAt,
	})
}

func (h *DecisionsHandler) Rescore(c echo.Context) error {
	defer observe("rescore", time.Now())
	req := &models.DecisionPathRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	jobID, err := h.uc.RequestRescore(c.Request().Context(), req.EventID)
	if err != nil {
		return h.fail(c, "rescore", err)
	}
	return xhttp.AcceptedResponse(c, models.RescoreAccepted{EventID: req.EventID, JobID: jobID})
}

func (h *DecisionsHandler) Model(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=60")
	return xhttp.SuccessResponse(c, h.uc.Model())
}

// RescoreStale queues decisions built by an older model. ?limit= caps the batch.
func (h *DecisionsHandler) RescoreStale(c echo.Context) error {
	limit := xutil.ParseIntDefault(c.QueryParam("limit"), defaultStaleLimit)
	if limit < 1 || limit > maxStaleLimit {
		return h.reply(c, "rescore_stale", xhttp.NewAppError("ERR_LTE", "limit", "limit must be between 1 and 10000", http.StatusBadRequest).
			WithParam("max", maxStaleLimit))
	}
	n, err := h.uc.EnqueueStale(c.Request().Context(), limit)
	if err != nil {
		return h.fail(c, "rescore_stale", err)
	}
	return xhttp.AcceptedResponse(c, map[string]int{"enqueued": n, "modelVersion": h.uc.ModelVersion()})
}

// view renders notes in the language chosen by ?lang= or Accept-Language.
func (h *DecisionsHandler) view(c echo.Context, res models.DecisionResult) models.DecisionView {
	tag := h.renderer.MatchLanguage(c.QueryParam("lang"), c.Request().Header.Get("Accept-Language"))
	lang := tag.String()
	return models.DecisionView{
		DecisionResult: res,
		Lang:           lang,
		Text: models.RenderedNotes{
			Explain:    h.renderer.Render(res.Explain, lang),
			Confidence: h.renderer.Render(res.Confidence.Notes, lang),
			Sizing:     h.renderer.Render(res.SizingHint.Notes, lang),
		},
	}
}

func (h *DecisionsHandler) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, usecase.ErrMissingRead), errors.Is(err, usecase.ErrMissingEvent):
		return h.reply(c, op, xhttp.BadRequestError(err.Error()).WithError(err))
	case errors.Is(err, usecase.ErrNotFound):
		return h.reply(c, op, xhttp.NotFoundError(err.Error()).WithError(err))
	}
	if h.l != nil {
		h.l.Error("decisions usecase error", applogger.String("op", op), applogger.Error(err))
	}
	return h.reply(c, op, xhttp.InternalError("decision failed").WithError(err))
}

func (h *DecisionsHandler) reply(c echo.Context, op string, appErr *xhttp.AppError) error {
	metrics.APIErrors.WithLabelValues(op, strconv.Itoa(appErr.Status)).Inc()
	return xhttp.AppErrorResponse(c, appErr)
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
