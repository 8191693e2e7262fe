package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"firmup/internal/domain/firmware"
	"firmup/internal/infrastructure/persistence/mappers"
	"firmup/internal/infrastructure/persistence/models"
	"firmup/internal/shared/db"
	apperrors "firmup/internal/shared/errors"
	"firmup/internal/shared/logger"
)

// DeviceFirmwareRepositoryImpl implements the
// firmware.DeviceFirmwareRepository interface
type DeviceFirmwareRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.DeviceFirmwareMapper
	logger logger.Interface
}

// NewDeviceFirmwareRepository creates a new device firmware repository
// instance
func NewDeviceFirmwareRepository(database *gorm.DB, logger logger.Interface) firmware.DeviceFirmwareRepository {
	return &DeviceFirmwareRepositoryImpl{
		db:     database,
		mapper: mappers.NewDeviceFirmwareMapper(),
		logger: logger,
	}
}

func (r *DeviceFirmwareRepositoryImpl) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create creates a new device/image binding in the database
func (r *DeviceFirmwareRepositoryImpl) Create(ctx context.Context, df *firmware.DeviceFirmware) error {
	model := r.mapper.ToModel(df)
	if err := r.conn(ctx).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return apperrors.NewConflictError("device already has a firmware binding")
		}
		r.logger.Errorw("failed to create device firmware", "error", err)
		return fmt.Errorf("failed to create device firmware: %w", err)
	}
	if err := df.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set device firmware ID: %w", err)
	}
	return nil
}

// Update persists the mutable fields of a binding
func (r *DeviceFirmwareRepositoryImpl) Update(ctx context.Context, df *firmware.DeviceFirmware) error {
	model := r.mapper.ToModel(df)
	result := r.conn(ctx).Model(&models.DeviceFirmwareModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"image_id":   model.ImageID,
			"installed":  model.Installed,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update device firmware", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update device firmware: %w", result.Error)
	}
	return nil
}

// GetByDeviceID retrieves the binding for a device
func (r *DeviceFirmwareRepositoryImpl) GetByDeviceID(ctx context.Context, deviceID uint) (*firmware.DeviceFirmware, error) {
	var model models.DeviceFirmwareModel
	if err := r.conn(ctx).Where("device_id = ?", deviceID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("device firmware not found")
		}
		r.logger.Errorw("failed to get device firmware", "device_id", deviceID, "error", err)
		return nil, fmt.Errorf("failed to get device firmware: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// ListUpgradableForCategory returns bindings whose current image belongs
// to the given category but is not an already-installed image of the
// given build, newest first
func (r *DeviceFirmwareRepositoryImpl) ListUpgradableForCategory(ctx context.Context, categoryID, buildID uint) ([]*firmware.DeviceFirmware, error) {
	var bindingModels []*models.DeviceFirmwareModel
	err := r.conn(ctx).
		Joins("JOIN firmware_images ON firmware_images.id = device_firmwares.image_id").
		Joins("JOIN firmware_builds ON firmware_builds.id = firmware_images.build_id").
		Where("firmware_builds.category_id = ?", categoryID).
		Where("NOT (firmware_builds.id = ? AND device_firmwares.installed = ?)", buildID, true).
		Order("device_firmwares.created_at DESC").
		Find(&bindingModels).Error
	if err != nil {
		r.logger.Errorw("failed to list upgradable device firmwares",
			"category_id", categoryID, "build_id", buildID, "error", err)
		return nil, fmt.Errorf("failed to list upgradable device firmwares: %w", err)
	}
	return r.mapper.ToEntities(bindingModels)
}
