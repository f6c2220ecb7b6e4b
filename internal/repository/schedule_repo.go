package repository

import (
	"time"

	"gorm.io/gorm"

	"leadflow/internal/models"
)

// FollowUpScheduleRepository handles follow-up schedule database operations.
type FollowUpScheduleRepository struct {
	db *gorm.DB
}

func NewFollowUpScheduleRepository(db *gorm.DB) *FollowUpScheduleRepository {
	return &FollowUpScheduleRepository{db: db}
}

// FindByID returns a schedule by ID.
func (r *FollowUpScheduleRepository) FindByID(id uint) (*models.FollowUpSchedule, error) {
	var schedule models.FollowUpSchedule
	if err := r.db.First(&schedule, id).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

// FindActiveByLeadAndType returns the active schedule of the given type for a
// lead, if one exists. Used by the idempotency checks before creating.
func (r *FollowUpScheduleRepository) FindActiveByLeadAndType(leadID uint, scheduleType string) (*models.FollowUpSchedule, error) {
	var schedule models.FollowUpSchedule
	err := r.db.
		Where("lead_id = ? AND type = ? AND status = ?", leadID, scheduleType, models.FollowUpStatusActive).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

// FindActiveByLead returns all active schedules for a lead ordered by due time.
func (r *FollowUpScheduleRepository) FindActiveByLead(leadID uint) ([]models.FollowUpSchedule, error) {
	var schedules []models.FollowUpSchedule
	err := r.db.
		Where("lead_id = ? AND status = ?", leadID, models.FollowUpStatusActive).
		Order("scheduled_at ASC").
		Find(&schedules).Error
	return schedules, err
}

// FindActiveDueByLead returns the lead's active schedules already due at now.
func (r *FollowUpScheduleRepository) FindActiveDueByLead(leadID uint, now time.Time) ([]models.FollowUpSchedule, error) {
	var schedules []models.FollowUpSchedule
	err := r.db.
		Where("lead_id = ? AND status = ? AND scheduled_at <= ?", leadID, models.FollowUpStatusActive, now).
		Order("scheduled_at ASC").
		Find(&schedules).Error
	return schedules, err
}

// FindDue returns every active schedule across all leads that is due at now.
func (r *FollowUpScheduleRepository) FindDue(now time.Time) ([]models.FollowUpSchedule, error) {
	var schedules []models.FollowUpSchedule
	err := r.db.
		Where("status = ? AND scheduled_at <= ?", models.FollowUpStatusActive, now).
		Order("scheduled_at ASC").
		Find(&schedules).Error
	return schedules, err
}

// Create creates a new schedule.
func (r *FollowUpScheduleRepository) Create(schedule *models.FollowUpSchedule) error {
	return r.db.Create(schedule).Error
}

// Update updates schedule fields.
func (r *FollowUpScheduleRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.FollowUpSchedule{}).Where("id = ?", id).Updates(updates).Error
}

// Delete deletes a schedule.
func (r *FollowUpScheduleRepository) Delete(id uint) error {
	return r.db.Delete(&models.FollowUpSchedule{}, id).Error
}
