package database

import (
	"fmt"

	"gorm.io/gorm"

	"firmup/internal/infrastructure/persistence/models"
	appLogger "firmup/internal/shared/logger"
)

// Migrate applies the schema for all persistence models.
func Migrate(database *gorm.DB) error {
	err := database.AutoMigrate(
		&models.CategoryModel{},
		&models.BuildModel{},
		&models.ImageModel{},
		&models.DeviceModel{},
		&models.DeviceConnectionModel{},
		&models.DeviceFirmwareModel{},
		&models.UpgradeOperationModel{},
		&models.BatchUpgradeOperationModel{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}
	appLogger.Info("database schema migrated")
	return nil
}
