package api

import (
	"encoding/json"
	"time"

	"TrendPulse/internal/domain/models"
	icache "TrendPulse/internal/service/cache"
	"TrendPulse/internal/service/metrics"
	"TrendPulse/internal/service/ratelimit"
	"TrendPulse/internal/usecase"
	xhttp "TrendPulse/pkg/http"
	xlogger "TrendPulse/pkg/logger"
	xutil "TrendPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// PipelineEchoHandler serves the read-only pipeline state over HTTP. All
// data comes from the StateView; the only backend touched is the candle
// archive, and only when explicitly requested.
type PipelineEchoHandler struct {
	logger   *xlogger.Logger
	view     *usecase.StateView
	router   *usecase.ArchiveRouter
	symbol   string
	interval string

	cache icache.BytesCache
	rl    *ratelimit.Limiter
}

func NewPipelineEchoHandler(logger *xlogger.Logger, view *usecase.StateView, router *usecase.ArchiveRouter, symbol, interval string) *PipelineEchoHandler {
	metrics.Register()
	return &PipelineEchoHandler{
		logger:   logger,
		view:     view,
		router:   router,
		symbol:   symbol,
		interval: interval,
		rl:       ratelimit.New(),
	}
}

// SetCache injects an optional bytes cache for archive queries.
func (h *PipelineEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *PipelineEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/status", h.Status)
	g.GET("/candles", h.Candles)
	g.GET("/candles/range", h.CandlesRange)
	g.GET("/indicators", h.Indicators)
	g.GET("/regime", h.Regime)
	g.GET("/signals", h.Signals)
	g.GET("/signals/latest", h.LatestSignal)
}

// StatusResponse aggregates connectivity and pipeline health.
type StatusResponse struct {
	Symbol        string                   `json:"symbol"`
	Connection    *models.ConnectionStatus `json:"connection,omitempty"`
	TerminalError string                   `json:"terminalError,omitempty"`
	WarmingUp     bool                     `json:"warmingUp"`
}

func (h *PipelineEchoHandler) Status(c echo.Context) error {
	defer h.observe("status", time.Now())

	res := StatusResponse{Symbol: h.symbol, TerminalError: h.view.TerminalError()}
	if st, ok := h.view.Status(); ok {
		res.Connection = &st
	}
	_, ready := h.view.Snapshot()
	res.WarmingUp = !ready
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineEchoHandler) Candles(c echo.Context) error {
	defer h.observe("candles", time.Now())

	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":candles", 10, 5) {
		metrics.APIErrors.WithLabelValues("candles").Inc()
		return xhttp.DataResponse(c, 429, "rate limited")
	}

	if req.Source == "live" || h.router == nil || !h.router.Enabled() {
		rows := h.view.Candles(req.Limit)
		return xhttp.ListResponse(c, rows, int64(len(rows)))
	}

	cacheKey := "candles:" + h.symbol
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err == nil && ok {
			var rows []models.Candle
			if json.Unmarshal(b, &rows) == nil {
				return xhttp.ListResponse(c, rows, int64(len(rows)))
			}
		}
	}
	rows, err := h.router.QueryLatest(c.Request().Context(), h.symbol, req.Limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues("candles").Inc()
		h.logger.Error("archive query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil {
		if b, err := json.Marshal(rows); err == nil {
			_ = h.cache.SetBytes(cacheKey, b, 30*time.Second)
		}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// CandlesRange serves archived candles between from and to, aligned to
// bar boundaries. from/to accept RFC3339 or unix seconds.
func (h *PipelineEchoHandler) CandlesRange(c echo.Context) error {
	defer h.observe("candles_range", time.Now())

	if h.router == nil || !h.router.Enabled() {
		return xhttp.NotFoundResponse(c, "archive not configured")
	}
	if !h.rl.Allow(c.RealIP()+":candles_range", 10, 5) {
		metrics.APIErrors.WithLabelValues("candles_range").Inc()
		return xhttp.DataResponse(c, 429, "rate limited")
	}

	now := time.Now()
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), now.Add(-time.Hour))
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), now)
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 500)
	if limit > 5000 {
		limit = 5000
	}
	from, to = xutil.AlignFromTo(from, to, alignTimeframe(h.interval))
	if !to.After(from) {
		return xhttp.BadRequestResponse(c, "to must be after from")
	}

	rows, err := h.router.QueryRange(c.Request().Context(), h.symbol, from, to, limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues("candles_range").Inc()
		h.logger.Error("archive range query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// alignTimeframe maps an exchange interval code to an alignment unit.
func alignTimeframe(interval string) string {
	switch interval {
	case "1":
		return "1m"
	case "5":
		return "5m"
	default:
		return "1m"
	}
}

func (h *PipelineEchoHandler) Indicators(c echo.Context) error {
	defer h.observe("indicators", time.Now())

	snap, ok := h.view.Snapshot()
	if !ok {
		return xhttp.NotFoundResponse(c, "indicators warming up")
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *PipelineEchoHandler) Regime(c echo.Context) error {
	defer h.observe("regime", time.Now())

	analysis, ok := h.view.Regime()
	if !ok {
		return xhttp.NotFoundResponse(c, "regime warming up")
	}
	return xhttp.SuccessResponse(c, analysis)
}

func (h *PipelineEchoHandler) Signals(c echo.Context) error {
	defer h.observe("signals", time.Now())

	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := h.view.Signals(req.Limit)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PipelineEchoHandler) LatestSignal(c echo.Context) error {
	defer h.observe("signals_latest", time.Now())

	sig, ok := h.view.LatestSignal()
	if !ok {
		return xhttp.NotFoundResponse(c, "no signal yet")
	}
	return xhttp.SuccessResponse(c, sig)
}

func (h *PipelineEchoHandler) observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
