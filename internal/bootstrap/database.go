package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"leadflow/internal/models"
)

// MigrateAndSeed ensures required tables exist and inserts baseline rows.
func MigrateAndSeed(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := seedDefaults(db); err != nil {
		return fmt.Errorf("seed defaults failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Lead{},
		&models.Task{},
		&models.Activity{},
		&models.FollowUpSchedule{},
	}
}

func seedDefaults(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		return ensureSystemUser(tx)
	})
}

// ensureSystemUser guarantees the designated system actor exists. Follow-up
// machinery created for ownerless leads is attributed to this user.
func ensureSystemUser(tx *gorm.DB) error {
	var count int64
	if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	row := models.User{
		Name:     "System",
		Email:    "system@leadflow.local",
		Role:     models.RoleAdmin,
		IsActive: true,
	}
	return tx.Create(&row).Error
}
