package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TaskHandler serves task queries and manual completion.
type TaskHandler struct {
	repos  *Repos
	logger *zap.Logger
}

func NewTaskHandler(repos *Repos, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{repos: repos, logger: logger}
}

// ListByLead returns a lead's tasks ordered by due date.
func (h *TaskHandler) ListByLead(c echo.Context) error {
	leadID, err := paramID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid lead id")
	}

	tasks, err := h.repos.Task.FindByLeadID(leadID)
	if err != nil {
		h.logger.Error("Failed to list tasks", zap.Uint("lead_id", leadID), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "failed to list tasks")
	}
	return successResponse(c, "tasks", tasks)
}

// Complete marks a task completed by hand. The linked follow-up schedule, if
// any, is settled on the next due-processing pass.
func (h *TaskHandler) Complete(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid task id")
	}

	task, err := h.repos.Task.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorResponse(c, http.StatusNotFound, "task not found")
	}
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, "failed to load task")
	}

	if err := h.repos.Task.Complete(task.ID, time.Now()); err != nil {
		h.logger.Error("Failed to complete task", zap.Uint("task_id", task.ID), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "failed to complete task")
	}
	return successResponse(c, "task completed", nil)
}
