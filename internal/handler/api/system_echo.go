package api

import (
	"time"

	"AlphaPulse/internal/resolver"
	"AlphaPulse/pkg/clickhouse"
	xhttp "AlphaPulse/pkg/http"
	xlogger "AlphaPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SystemEchoHandler covers liveness and operator diagnostics: health probe,
// recent warning/error log entries, and circuit breaker states.
type SystemEchoHandler struct {
	logger    *xlogger.Logger
	collector *xlogger.Collector
	ch        *clickhouse.Client
	resolver  *resolver.Resolver
	startedAt time.Time
}

func NewSystemEchoHandler(logger *xlogger.Logger, collector *xlogger.Collector, ch *clickhouse.Client, res *resolver.Resolver) *SystemEchoHandler {
	return &SystemEchoHandler{
		logger:    logger,
		collector: collector,
		ch:        ch,
		resolver:  res,
		startedAt: time.Now(),
	}
}

func (h *SystemEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api/diagnostics")
	g.GET("/logs", h.Logs)
	g.GET("/breakers", h.Breakers)
}

func (h *SystemEchoHandler) Health(c echo.Context) error {
	status := "ok"
	deps := map[string]string{}

	if err := h.ch.Health(c.Request().Context()); err != nil {
		status = "degraded"
		deps["clickhouse"] = err.Error()
	} else {
		deps["clickhouse"] = "ok"
	}

	body := map[string]interface{}{
		"status":       status,
		"uptime":       time.Since(h.startedAt).Round(time.Second).String(),
		"dependencies": deps,
	}
	if status != "ok" {
		return xhttp.DataResponse(c, 503, body)
	}
	return xhttp.SuccessResponse(c, body)
}

// Logs returns the most recent warning and error entries from the in-memory
// ring, for quick triage without log aggregation access.
func (h *SystemEchoHandler) Logs(c echo.Context) error {
	entries := h.collector.Recent()
	return xhttp.ListResponse(c, entries, int64(len(entries)))
}

func (h *SystemEchoHandler) Breakers(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.resolver.BreakerStates())
}
