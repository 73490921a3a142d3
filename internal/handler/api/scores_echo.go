package api

import (
	"strings"

	models "AlphaPulse/internal/domain/models"
	"AlphaPulse/internal/usecase"
	xhttp "AlphaPulse/pkg/http"
	xlogger "AlphaPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ScoresEchoHandler serves the recent composite-score journal per ticker.
type ScoresEchoHandler struct {
	logger   *xlogger.Logger
	pipeline *usecase.Pipeline
}

func NewScoresEchoHandler(logger *xlogger.Logger, pipeline *usecase.Pipeline) *ScoresEchoHandler {
	return &ScoresEchoHandler{logger: logger, pipeline: pipeline}
}

func (h *ScoresEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/scores/:ticker", h.Recent)
}

func (h *ScoresEchoHandler) Recent(c echo.Context) error {
	req := &models.RecentScoresRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ticker := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
	if ticker == "" {
		return xhttp.BadRequestResponse(c, map[string]string{"error": "ticker is required"})
	}

	scores := h.pipeline.RecentScores(ticker, req.Limit)
	return xhttp.ListResponse(c, scores, int64(len(scores)))
}
