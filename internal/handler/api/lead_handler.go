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

// LeadHandler serves lead CRUD and the pipeline status transitions that feed
// the follow-up engine.
type LeadHandler struct {
	repos     *Repos
	followUps *followup.Service
	logger    *zap.Logger
}

func NewLeadHandler(repos *Repos, followUps *followup.Service, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{repos: repos, followUps: followUps, logger: logger}
}

// List returns leads with pagination and search.
func (h *LeadHandler) List(c echo.Context) error {
	limit := queryInt(c, "limit", 50)
	page := queryInt(c, "page", 1)
	query := c.QueryParam("q")

	leads, total, err := h.repos.Lead.FindAll(limit, page, query)
	if err != nil {
		h.logger.Error("Failed to list leads", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "failed to list leads")
	}
	return successResponse(c, "leads", paginatedResponse(leads, total, page, limit))
}

// Get returns a single lead.
func (h *LeadHandler) Get(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid lead id")
	}

	lead, err := h.repos.Lead.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorResponse(c, http.StatusNotFound, "lead not found")
	}
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, "failed to load lead")
	}
	return successResponse(c, "lead", lead)
}

type createLeadRequest struct {
	Name        string  `json:"name"`
	Company     string  `json:"company"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	Position    string  `json:"position"`
	City        string  `json:"city"`
	Country     string  `json:"country"`
	Source      string  `json:"source"`
	Sector      string  `json:"sector"`
	ContactType string  `json:"contact_type"`
	AddedBy     *uint   `json:"added_by"`
	Value       float64 `json:"value"`
	Notes       string  `json:"notes"`
}

// Create creates a new lead in the new_lead stage.
func (h *LeadHandler) Create(c echo.Context) error {
	var req createLeadRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Company == "" && req.Name == "" {
		return errorResponse(c, http.StatusBadRequest, "company or name is required")
	}

	contactType := req.ContactType
	if contactType == "" {
		contactType = "person"
	}

	lead := &models.Lead{
		ContactType: contactType,
		Name:        req.Name,
		Company:     req.Company,
		Email:       req.Email,
		Phone:       req.Phone,
		Position:    req.Position,
		City:        req.City,
		Country:     req.Country,
		Source:      req.Source,
		Sector:      req.Sector,
		AddedBy:     req.AddedBy,
		Status:      models.LeadStatusNewLead,
		Value:       req.Value,
		Notes:       req.Notes,
	}
	if err := h.repos.Lead.Create(lead); err != nil {
		h.logger.Error("Failed to create lead", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "failed to create lead")
	}
	return successResponse(c, "lead created", lead)
}

type updateStatusRequest struct {
	Status     string `json:"status"`
	LostReason string `json:"lost_reason"`
}

// UpdateStatus moves a lead through the pipeline and fires the follow-up
// hooks: entry into follow_ups schedules the machinery, won/lost cancels it.
func (h *LeadHandler) UpdateStatus(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid lead id")
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if !models.IsValidLeadStatus(req.Status) {
		return errorResponse(c, http.StatusBadRequest, "invalid status: "+req.Status)
	}

	lead, err := h.repos.Lead.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorResponse(c, http.StatusNotFound, "lead not found")
	}
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, "failed to load lead")
	}

	oldStatus := lead.Status
	now := time.Now()

	updates := map[string]interface{}{"status": req.Status}
	switch req.Status {
	case models.LeadStatusWon:
		// Won leads become clients.
		updates["is_client"] = true
		updates["won_at"] = now
		updates["actual_close_date"] = now
	case models.LeadStatusLost:
		updates["lost_reason"] = req.LostReason
		updates["actual_close_date"] = now
	}

	if err := h.repos.Lead.Update(lead.ID, updates); err != nil {
		h.logger.Error("Failed to update lead status", zap.Uint("lead_id", lead.ID), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "failed to update lead")
	}
	lead.Status = req.Status

	if err := h.followUps.HandleLeadStatusChange(lead, oldStatus, req.Status); err != nil {
		h.logger.Error("Follow-up scheduling failed", zap.Uint("lead_id", lead.ID), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "status updated but follow-up scheduling failed")
	}

	if lead.IsClosed() {
		if err := h.followUps.CancelFollowUpsForClosedDeal(lead); err != nil {
			h.logger.Error("Follow-up cancellation failed", zap.Uint("lead_id", lead.ID), zap.Error(err))
			return errorResponse(c, http.StatusInternalServerError, "status updated but follow-up cancellation failed")
		}
	}

	return successResponse(c, "status updated", lead)
}

// Delete removes a lead; its tasks, activities and schedules cascade.
func (h *LeadHandler) Delete(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid lead id")
	}
	if err := h.repos.Lead.Delete(id); err != nil {
		h.logger.Error("Failed to delete lead", zap.Uint("lead_id", id), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "failed to delete lead")
	}
	return successResponse(c, "lead deleted", nil)
}
