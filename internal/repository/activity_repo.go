package repository

import (
	"gorm.io/gorm"

	"leadflow/internal/models"
)

// ActivityRepository handles activity database operations.
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// FindByID returns an activity by ID.
func (r *ActivityRepository) FindByID(id uint) (*models.Activity, error) {
	var activity models.Activity
	if err := r.db.First(&activity, id).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}

// FindByLeadID returns all activities for a lead, newest first.
func (r *ActivityRepository) FindByLeadID(leadID uint) ([]models.Activity, error) {
	var activities []models.Activity
	err := r.db.Where("lead_id = ?", leadID).Order("activity_date DESC").Find(&activities).Error
	return activities, err
}

// Create creates a new activity.
func (r *ActivityRepository) Create(activity *models.Activity) error {
	return r.db.Create(activity).Error
}

// Delete deletes an activity.
func (r *ActivityRepository) Delete(id uint) error {
	return r.db.Delete(&models.Activity{}, id).Error
}
