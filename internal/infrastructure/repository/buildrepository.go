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

// BuildRepositoryImpl implements the firmware.BuildRepository interface
type BuildRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.BuildMapper
	logger logger.Interface
}

// NewBuildRepository creates a new build repository instance
func NewBuildRepository(database *gorm.DB, logger logger.Interface) firmware.BuildRepository {
	return &BuildRepositoryImpl{
		db:     database,
		mapper: mappers.NewBuildMapper(),
		logger: logger,
	}
}

func (r *BuildRepositoryImpl) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create creates a new firmware build in the database
func (r *BuildRepositoryImpl) Create(ctx context.Context, build *firmware.Build) error {
	model := r.mapper.ToModel(build)
	if err := r.conn(ctx).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return apperrors.NewConflictError("build with this version already exists in the category")
		}
		r.logger.Errorw("failed to create build", "error", err)
		return fmt.Errorf("failed to create build: %w", err)
	}
	if err := build.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set build ID: %w", err)
	}
	return nil
}

// GetByID retrieves a build by its database ID
func (r *BuildRepositoryImpl) GetByID(ctx context.Context, id uint) (*firmware.Build, error) {
	var model models.BuildModel
	if err := r.conn(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("build not found")
		}
		r.logger.Errorw("failed to get build by ID", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get build: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetBySID retrieves a build by its public identifier
func (r *BuildRepositoryImpl) GetBySID(ctx context.Context, sid string) (*firmware.Build, error) {
	var model models.BuildModel
	if err := r.conn(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("build not found")
		}
		r.logger.Errorw("failed to get build by SID", "sid", sid, "error", err)
		return nil, fmt.Errorf("failed to get build: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// List returns all builds, newest first
func (r *BuildRepositoryImpl) List(ctx context.Context) ([]*firmware.Build, error) {
	var buildModels []*models.BuildModel
	if err := r.conn(ctx).Order("created_at DESC").Find(&buildModels).Error; err != nil {
		r.logger.Errorw("failed to list builds", "error", err)
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	return r.mapper.ToEntities(buildModels)
}

// ExistsByOSAndOrganization reports whether another build with the same OS
// identifier exists within the same organization scope. Auto-assignment
// looks images up by (organization, os, type), so a duplicate OS tag
// would make the lookup ambiguous.
func (r *BuildRepositoryImpl) ExistsByOSAndOrganization(ctx context.Context, os string, organizationID *uint, excludeID uint) (bool, error) {
	query := r.conn(ctx).
		Model(&models.BuildModel{}).
		Joins("JOIN firmware_categories ON firmware_categories.id = firmware_builds.category_id").
		Where("firmware_builds.os = ?", os)
	if organizationID != nil {
		query = query.Where("firmware_categories.organization_id = ?", *organizationID)
	} else {
		query = query.Where("firmware_categories.organization_id IS NULL")
	}
	if excludeID != 0 {
		query = query.Where("firmware_builds.id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		r.logger.Errorw("failed to count builds by OS", "os", os, "error", err)
		return false, fmt.Errorf("failed to count builds: %w", err)
	}
	return count > 0, nil
}
