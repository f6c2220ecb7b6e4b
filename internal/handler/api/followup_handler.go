package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"leadflow/internal/followup"
)

// FollowUpHandler exposes follow-up schedule queries and a manual trigger
// for the due-processing pass.
type FollowUpHandler struct {
	repos     *Repos
	followUps *followup.Service
	logger    *zap.Logger
}

func NewFollowUpHandler(repos *Repos, followUps *followup.Service, logger *zap.Logger) *FollowUpHandler {
	return &FollowUpHandler{repos: repos, followUps: followUps, logger: logger}
}

// ListActive returns a lead's active follow-up schedules, soonest first.
func (h *FollowUpHandler) ListActive(c echo.Context) error {
	leadID, err := paramID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid lead id")
	}

	schedules, err := h.followUps.ActiveFollowUps(leadID)
	if err != nil {
		h.logger.Error("Failed to list follow-ups", zap.Uint("lead_id", leadID), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "failed to list follow-ups")
	}
	return successResponse(c, "follow-ups", schedules)
}

// Process runs the due-processing pass on demand, outside the cron cadence.
func (h *FollowUpHandler) Process(c echo.Context) error {
	processed, err := h.followUps.ProcessDueFollowUps()
	if err != nil {
		// Per-item failures: report them but still return what processed.
		h.logger.Error("Manual follow-up processing finished with errors", zap.Error(err))
		return c.JSON(http.StatusMultiStatus, map[string]interface{}{
			"status":    true,
			"msg":       "processed with errors",
			"obj":       processed,
			"error_msg": err.Error(),
		})
	}
	return successResponse(c, "processed", processed)
}
