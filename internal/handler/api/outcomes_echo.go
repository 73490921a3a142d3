package api

import (
	models "AlphaPulse/internal/domain/models"
	"AlphaPulse/internal/usecase"
	xhttp "AlphaPulse/pkg/http"
	xlogger "AlphaPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// OutcomesEchoHandler exposes the outcome tracker to external observers:
// alert-delivery or trading systems report realized prices back through it.
type OutcomesEchoHandler struct {
	logger  *xlogger.Logger
	tracker *usecase.OutcomeTracker
}

func NewOutcomesEchoHandler(logger *xlogger.Logger, tracker *usecase.OutcomeTracker) *OutcomesEchoHandler {
	return &OutcomesEchoHandler{logger: logger, tracker: tracker}
}

func (h *OutcomesEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/outcomes")
	g.POST("/sample", h.Sample)
	g.GET("/pending", h.Pending)
}

// Sample accepts one observed (alert, interval) price sample. Repeat reports
// for the same pair overwrite, so callers may retry freely.
func (h *OutcomesEchoHandler) Sample(c echo.Context) error {
	req := &models.PriceSampleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	err := h.tracker.ReportPriceSample(
		c.Request().Context(),
		req.AlertID,
		models.Interval(req.Interval),
		req.Price,
		req.Volume,
	)
	if err != nil {
		h.logger.Warn("price sample rejected",
			xlogger.String("alert_id", req.AlertID),
			xlogger.String("interval", req.Interval),
			xlogger.Error(err),
		)
		return xhttp.NotFoundResponse(c, map[string]string{"error": err.Error()})
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "accepted"})
}

func (h *OutcomesEchoHandler) Pending(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]int{"pending_alerts": h.tracker.PendingCount()})
}
