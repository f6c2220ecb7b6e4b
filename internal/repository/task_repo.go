package repository

import (
	"time"

	"gorm.io/gorm"

	"leadflow/internal/models"
)

// TaskRepository handles task database operations.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// FindByID returns a task by ID.
func (r *TaskRepository) FindByID(id uint) (*models.Task, error) {
	var task models.Task
	if err := r.db.First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByLeadID returns all tasks for a lead.
func (r *TaskRepository) FindByLeadID(leadID uint) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.Where("lead_id = ?", leadID).Order("due_date ASC").Find(&tasks).Error
	return tasks, err
}

// FindDueBetween returns open tasks due inside the window, for reminders.
func (r *TaskRepository) FindDueBetween(from, to time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.
		Where("due_date BETWEEN ? AND ?", from, to).
		Where("status != ?", models.TaskStatusCompleted).
		Where("completed_at IS NULL").
		Find(&tasks).Error
	return tasks, err
}

// FindOverdue returns open tasks whose due date has passed.
func (r *TaskRepository) FindOverdue(now time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.
		Where("due_date < ?", now).
		Where("status != ?", models.TaskStatusCompleted).
		Where("completed_at IS NULL").
		Find(&tasks).Error
	return tasks, err
}

// Create creates a new task.
func (r *TaskRepository) Create(task *models.Task) error {
	return r.db.Create(task).Error
}

// Update updates task fields.
func (r *TaskRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error
}

// CancelIfOpen marks a task cancelled unless it was already completed.
func (r *TaskRepository) CancelIfOpen(id uint, at time.Time) error {
	return r.db.Model(&models.Task{}).
		Where("id = ?", id).
		Where("status != ?", models.TaskStatusCompleted).
		Updates(map[string]interface{}{
			"status":       models.TaskStatusCancelled,
			"completed_at": at,
		}).Error
}

// Complete marks a task completed.
func (r *TaskRepository) Complete(id uint, at time.Time) error {
	return r.db.Model(&models.Task{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.TaskStatusCompleted,
			"completed_at": at,
		}).Error
}

// Delete deletes a task. Any schedule referencing it keeps a dangling task_id
// that the due-processing pass repairs, matching the set-null foreign key.
func (r *TaskRepository) Delete(id uint) error {
	return r.db.Delete(&models.Task{}, id).Error
}
