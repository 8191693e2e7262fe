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

// ImageRepositoryImpl implements the firmware.ImageRepository interface
type ImageRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.ImageMapper
	logger logger.Interface
}

// NewImageRepository creates a new image repository instance
func NewImageRepository(database *gorm.DB, logger logger.Interface) firmware.ImageRepository {
	return &ImageRepositoryImpl{
		db:     database,
		mapper: mappers.NewImageMapper(),
		logger: logger,
	}
}

func (r *ImageRepositoryImpl) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create creates a new firmware image in the database
func (r *ImageRepositoryImpl) Create(ctx context.Context, image *firmware.Image) error {
	model := r.mapper.ToModel(image)
	if err := r.conn(ctx).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return apperrors.NewConflictError("build already has an image of this type")
		}
		r.logger.Errorw("failed to create image", "error", err)
		return fmt.Errorf("failed to create image: %w", err)
	}
	if err := image.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set image ID: %w", err)
	}
	return nil
}

// GetByID retrieves an image by its database ID
func (r *ImageRepositoryImpl) GetByID(ctx context.Context, id uint) (*firmware.Image, error) {
	var model models.ImageModel
	if err := r.conn(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("image not found")
		}
		r.logger.Errorw("failed to get image by ID", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetBySID retrieves an image by its public identifier
func (r *ImageRepositoryImpl) GetBySID(ctx context.Context, sid string) (*firmware.Image, error) {
	var model models.ImageModel
	if err := r.conn(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("image not found")
		}
		r.logger.Errorw("failed to get image by SID", "sid", sid, "error", err)
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// ListByBuild returns all images of a build, newest first
func (r *ImageRepositoryImpl) ListByBuild(ctx context.Context, buildID uint) ([]*firmware.Image, error) {
	var imageModels []*models.ImageModel
	if err := r.conn(ctx).Where("build_id = ?", buildID).Order("created_at DESC").Find(&imageModels).Error; err != nil {
		r.logger.Errorw("failed to list images by build", "build_id", buildID, "error", err)
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return r.mapper.ToEntities(imageModels)
}

// FirstByBuildAndType returns the most recently created image of the
// given type within a build, or nil when none exists
func (r *ImageRepositoryImpl) FirstByBuildAndType(ctx context.Context, buildID uint, imageType string) (*firmware.Image, error) {
	var model models.ImageModel
	err := r.conn(ctx).
		Where("build_id = ? AND type = ?", buildID, imageType).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to find image by build and type", "build_id", buildID, "type", imageType, "error", err)
		return nil, fmt.Errorf("failed to find image: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// FindForDevice returns the most recently created image matching the
// device's organization scope, OS identifier and image type, or nil
func (r *ImageRepositoryImpl) FindForDevice(ctx context.Context, organizationID uint, os, imageType string) (*firmware.Image, error) {
	var model models.ImageModel
	err := r.conn(ctx).
		Joins("JOIN firmware_builds ON firmware_builds.id = firmware_images.build_id").
		Joins("JOIN firmware_categories ON firmware_categories.id = firmware_builds.category_id").
		Where("firmware_builds.os = ?", os).
		Where("firmware_images.type = ?", imageType).
		Where("firmware_categories.organization_id = ? OR firmware_categories.organization_id IS NULL", organizationID).
		Order("firmware_images.created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to find image for device",
			"organization_id", organizationID, "os", os, "type", imageType, "error", err)
		return nil, fmt.Errorf("failed to find image: %w", err)
	}
	return r.mapper.ToEntity(&model)
}
