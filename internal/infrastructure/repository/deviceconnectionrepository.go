package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"firmup/internal/domain/device"
	"firmup/internal/infrastructure/persistence/mappers"
	"firmup/internal/infrastructure/persistence/models"
	"firmup/internal/shared/db"
	"firmup/internal/shared/logger"
)

// DeviceConnectionRepositoryImpl implements the device.ConnectionRepository
// interface
type DeviceConnectionRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.DeviceConnectionMapper
	logger logger.Interface
}

// NewDeviceConnectionRepository creates a new device connection repository
// instance
func NewDeviceConnectionRepository(database *gorm.DB, logger logger.Interface) device.ConnectionRepository {
	return &DeviceConnectionRepositoryImpl{
		db:     database,
		mapper: mappers.NewDeviceConnectionMapper(),
		logger: logger,
	}
}

func (r *DeviceConnectionRepositoryImpl) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create creates a new connection record in the database
func (r *DeviceConnectionRepositoryImpl) Create(ctx context.Context, connection *device.DeviceConnection) error {
	model, err := r.mapper.ToModel(connection)
	if err != nil {
		return err
	}
	if err := r.conn(ctx).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create device connection", "error", err)
		return fmt.Errorf("failed to create device connection: %w", err)
	}
	if err := connection.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set device connection ID: %w", err)
	}
	return nil
}

// Update persists the mutable fields of a connection record
func (r *DeviceConnectionRepositoryImpl) Update(ctx context.Context, connection *device.DeviceConnection) error {
	model, err := r.mapper.ToModel(connection)
	if err != nil {
		return err
	}
	result := r.conn(ctx).Model(&models.DeviceConnectionModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"addresses":      model.Addresses,
			"is_working":     model.IsWorking,
			"failure_reason": model.FailureReason,
			"last_attempt":   model.LastAttempt,
			"updated_at":     model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update device connection", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update device connection: %w", result.Error)
	}
	return nil
}

// ListByDeviceID returns a device's connection records in creation order,
// which is the order the provider attempts them in
func (r *DeviceConnectionRepositoryImpl) ListByDeviceID(ctx context.Context, deviceID uint) ([]*device.DeviceConnection, error) {
	var connectionModels []*models.DeviceConnectionModel
	err := r.conn(ctx).
		Where("device_id = ?", deviceID).
		Order("created_at ASC").
		Find(&connectionModels).Error
	if err != nil {
		r.logger.Errorw("failed to list device connections", "device_id", deviceID, "error", err)
		return nil, fmt.Errorf("failed to list device connections: %w", err)
	}
	return r.mapper.ToEntities(connectionModels)
}
