package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"firmup/internal/domain/device"
	"firmup/internal/infrastructure/persistence/mappers"
	"firmup/internal/infrastructure/persistence/models"
	"firmup/internal/shared/db"
	apperrors "firmup/internal/shared/errors"
	"firmup/internal/shared/logger"
)

// DeviceRepositoryImpl implements the device.Repository interface
type DeviceRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.DeviceMapper
	logger logger.Interface
}

// NewDeviceRepository creates a new device repository instance
func NewDeviceRepository(database *gorm.DB, logger logger.Interface) device.Repository {
	return &DeviceRepositoryImpl{
		db:     database,
		mapper: mappers.NewDeviceMapper(),
		logger: logger,
	}
}

func (r *DeviceRepositoryImpl) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create creates a new device in the database
func (r *DeviceRepositoryImpl) Create(ctx context.Context, dev *device.Device) error {
	model := r.mapper.ToModel(dev)
	if err := r.conn(ctx).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return apperrors.NewConflictError("device with this UUID already exists")
		}
		r.logger.Errorw("failed to create device", "error", err)
		return fmt.Errorf("failed to create device: %w", err)
	}
	if err := dev.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set device ID: %w", err)
	}
	return nil
}

// GetByID retrieves a device by its database ID
func (r *DeviceRepositoryImpl) GetByID(ctx context.Context, id uint) (*device.Device, error) {
	var model models.DeviceModel
	if err := r.conn(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("device not found")
		}
		r.logger.Errorw("failed to get device by ID", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetBySID retrieves a device by its public identifier
func (r *DeviceRepositoryImpl) GetBySID(ctx context.Context, sid string) (*device.Device, error) {
	var model models.DeviceModel
	if err := r.conn(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("device not found")
		}
		r.logger.Errorw("failed to get device by SID", "sid", sid, "error", err)
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// List returns all devices, newest first
func (r *DeviceRepositoryImpl) List(ctx context.Context) ([]*device.Device, error) {
	var deviceModels []*models.DeviceModel
	if err := r.conn(ctx).Order("created_at DESC").Find(&deviceModels).Error; err != nil {
		r.logger.Errorw("failed to list devices", "error", err)
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return r.mapper.ToEntities(deviceModels)
}

// ListFirmwareless returns devices without any device firmware binding
// whose model is in the given list, newest first
func (r *DeviceRepositoryImpl) ListFirmwareless(ctx context.Context, boardModels []string, organizationID *uint) ([]*device.Device, error) {
	if len(boardModels) == 0 {
		return nil, nil
	}
	query := r.conn(ctx).
		Where("model IN ?", boardModels).
		Where("id NOT IN (?)", r.conn(ctx).Model(&models.DeviceFirmwareModel{}).Select("device_id"))
	if organizationID != nil {
		query = query.Where("organization_id = ?", *organizationID)
	}
	var deviceModels []*models.DeviceModel
	if err := query.Order("created_at DESC").Find(&deviceModels).Error; err != nil {
		r.logger.Errorw("failed to list firmwareless devices", "error", err)
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return r.mapper.ToEntities(deviceModels)
}
