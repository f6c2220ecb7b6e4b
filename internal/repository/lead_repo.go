package repository

import (
	"gorm.io/gorm"

	"leadflow/internal/models"
)

// LeadRepository handles lead database operations.
type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// FindAll returns leads with pagination and search.
func (r *LeadRepository) FindAll(limit, page int, query string) ([]models.Lead, int64, error) {
	var leads []models.Lead
	var total int64

	db := r.db.Model(&models.Lead{})

	if query != "" {
		search := "%" + query + "%"
		db = db.Where("company LIKE ? OR name LIKE ? OR email LIKE ?", search, search, search)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	if err := db.Limit(limit).Offset(offset).Order("created_at DESC").Find(&leads).Error; err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

// FindByID returns a lead by ID.
func (r *LeadRepository) FindByID(id uint) (*models.Lead, error) {
	var lead models.Lead
	if err := r.db.First(&lead, id).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

// FindByStatus returns all leads in a given pipeline stage.
func (r *LeadRepository) FindByStatus(status string) ([]models.Lead, error) {
	var leads []models.Lead
	err := r.db.Where("status = ?", status).Order("created_at DESC").Find(&leads).Error
	return leads, err
}

// FindOpen returns all leads that are not won or lost.
func (r *LeadRepository) FindOpen() ([]models.Lead, error) {
	var leads []models.Lead
	err := r.db.Where("status NOT IN ?", []string{models.LeadStatusWon, models.LeadStatusLost}).Find(&leads).Error
	return leads, err
}

// Create creates a new lead.
func (r *LeadRepository) Create(lead *models.Lead) error {
	return r.db.Create(lead).Error
}

// Update updates lead fields.
func (r *LeadRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.Lead{}).Where("id = ?", id).Updates(updates).Error
}

// Delete deletes a lead. Tasks, activities and follow-up schedules cascade.
func (r *LeadRepository) Delete(id uint) error {
	return r.db.Delete(&models.Lead{}, id).Error
}

// CountByStatus counts leads in a pipeline stage.
func (r *LeadRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Lead{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
