package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"leadflow/internal/followup"
	"leadflow/internal/models"
)

// ActivityHandler logs contact activities against leads. Creating an
// activity settles any follow-up schedules currently due for that lead.
type ActivityHandler struct {
	repos     *Repos
	followUps *followup.Service
	logger    *zap.Logger
}

func NewActivityHandler(repos *Repos, followUps *followup.Service, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{repos: repos, followUps: followUps, logger: logger}
}

type createActivityRequest struct {
	LeadID       uint       `json:"lead_id"`
	UserID       uint       `json:"user_id"`
	Type         string     `json:"type"`
	ActivityDate *time.Time `json:"activity_date"`
	Description  string     `json:"description"`
	Outcome      string     `json:"outcome"`
}

func validActivityType(t string) bool {
	switch t {
	case models.ActivityTypeCall, models.ActivityTypeEmail, models.ActivityTypeMeeting, models.ActivityTypeNote:
		return true
	}
	return false
}

// Create persists a new activity and runs the follow-up completion hook.
func (h *ActivityHandler) Create(c echo.Context) error {
	var req createActivityRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if !validActivityType(req.Type) {
		return errorResponse(c, http.StatusBadRequest, "invalid activity type: "+req.Type)
	}

	if _, err := h.repos.Lead.FindByID(req.LeadID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, "lead not found")
		}
		return errorResponse(c, http.StatusInternalServerError, "failed to load lead")
	}

	activityDate := time.Now()
	if req.ActivityDate != nil {
		activityDate = *req.ActivityDate
	}

	activity := &models.Activity{
		LeadID:       req.LeadID,
		UserID:       req.UserID,
		Type:         req.Type,
		ActivityDate: activityDate,
		Description:  req.Description,
		Outcome:      req.Outcome,
	}
	if err := h.repos.Activity.Create(activity); err != nil {
		h.logger.Error("Failed to create activity", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "failed to create activity")
	}

	if err := h.followUps.MarkFollowUpCompleted(activity); err != nil {
		h.logger.Error("Follow-up completion hook failed",
			zap.Uint("activity_id", activity.ID),
			zap.Uint("lead_id", activity.LeadID),
			zap.Error(err),
		)
		return errorResponse(c, http.StatusInternalServerError, "activity logged but follow-up settlement failed")
	}

	return successResponse(c, "activity logged", activity)
}

// ListByLead returns a lead's activities, newest first.
func (h *ActivityHandler) ListByLead(c echo.Context) error {
	leadID, err := paramID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid lead id")
	}

	activities, err := h.repos.Activity.FindByLeadID(leadID)
	if err != nil {
		h.logger.Error("Failed to list activities", zap.Uint("lead_id", leadID), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "failed to list activities")
	}
	return successResponse(c, "activities", activities)
}
