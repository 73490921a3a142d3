package api

import (
	"strconv"

	models "AlphaPulse/internal/domain/models"
	"AlphaPulse/internal/usecase"
	xhttp "AlphaPulse/pkg/http"
	xlogger "AlphaPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// WeightsEchoHandler is the operator surface for the adaptive weight system:
// inspect the active profile, review and approve recommendations, roll back.
type WeightsEchoHandler struct {
	logger   *xlogger.Logger
	adjuster *usecase.WeightAdjuster
}

func NewWeightsEchoHandler(logger *xlogger.Logger, adjuster *usecase.WeightAdjuster) *WeightsEchoHandler {
	return &WeightsEchoHandler{logger: logger, adjuster: adjuster}
}

func (h *WeightsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/weights")
	g.GET("", h.Active)
	g.GET("/versions/:version", h.Version)
	g.GET("/recommendations", h.Recommendations)
	g.POST("/recompute", h.Recompute)
	g.POST("/approve", h.Approve)
	g.POST("/rollback", h.Rollback)
}

func (h *WeightsEchoHandler) Active(c echo.Context) error {
	p, err := h.adjuster.ActiveProfile(c.Request().Context())
	if err != nil {
		h.logger.Error("active profile lookup", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, p)
}

func (h *WeightsEchoHandler) Version(c echo.Context) error {
	version, err := strconv.ParseUint(c.Param("version"), 10, 64)
	if err != nil {
		return xhttp.BadRequestResponse(c, map[string]string{"error": "version must be a positive integer"})
	}
	p, err := h.adjuster.Profile(c.Request().Context(), version)
	if err != nil {
		return xhttp.NotFoundResponse(c, map[string]string{"error": err.Error()})
	}
	return xhttp.SuccessResponse(c, p)
}

func (h *WeightsEchoHandler) Recommendations(c echo.Context) error {
	recs := h.adjuster.Pending()
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

// Recompute triggers an on-demand recompute outside the schedule. The
// recommendations are stored as pending and returned; committing them is a
// separate step (Approve, or the scheduled run in auto mode).
func (h *WeightsEchoHandler) Recompute(c echo.Context) error {
	recs, err := h.adjuster.Recompute(c.Request().Context())
	if err != nil {
		h.logger.Error("weight recompute", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, recs)
}

func (h *WeightsEchoHandler) Approve(c echo.Context) error {
	req := &models.ApproveWeightsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	recs := h.adjuster.Pending()
	if len(req.Names) > 0 {
		wanted := make(map[string]bool, len(req.Names))
		for _, n := range req.Names {
			wanted[n] = true
		}
		filtered := recs[:0]
		for _, r := range recs {
			if wanted[r.SignalName] {
				filtered = append(filtered, r)
			}
		}
		recs = filtered
	}
	if len(recs) == 0 {
		return xhttp.ConflictResponse(c, map[string]string{"error": "no matching recommendations pending"})
	}

	p, err := h.adjuster.Apply(c.Request().Context(), recs, req.Note)
	if err != nil {
		h.logger.Error("weight approve", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	h.logger.Info("weight profile approved",
		xlogger.Uint64("version", p.Version),
		xlogger.Int("signals", len(recs)),
	)
	return xhttp.CreatedResponse(c, p)
}

func (h *WeightsEchoHandler) Rollback(c echo.Context) error {
	p, err := h.adjuster.Rollback(c.Request().Context())
	if err != nil {
		return xhttp.ConflictResponse(c, map[string]string{"error": err.Error()})
	}
	return xhttp.SuccessResponse(c, p)
}
