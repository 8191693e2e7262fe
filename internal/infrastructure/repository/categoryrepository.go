// Package repository provides the GORM-backed implementations of the
// domain repository interfaces. All repositories honor a transaction
// carried in the context so multi-aggregate writes stay atomic.
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

// CategoryRepositoryImpl implements the firmware.CategoryRepository interface
type CategoryRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.CategoryMapper
	logger logger.Interface
}

// NewCategoryRepository creates a new category repository instance
func NewCategoryRepository(database *gorm.DB, logger logger.Interface) firmware.CategoryRepository {
	return &CategoryRepositoryImpl{
		db:     database,
		mapper: mappers.NewCategoryMapper(),
		logger: logger,
	}
}

func (r *CategoryRepositoryImpl) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create creates a new firmware category in the database
func (r *CategoryRepositoryImpl) Create(ctx context.Context, category *firmware.Category) error {
	model := r.mapper.ToModel(category)
	if err := r.conn(ctx).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return apperrors.NewConflictError("category with this name already exists")
		}
		r.logger.Errorw("failed to create category", "error", err)
		return fmt.Errorf("failed to create category: %w", err)
	}
	if err := category.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set category ID: %w", err)
	}
	return nil
}

// GetByID retrieves a category by its database ID
func (r *CategoryRepositoryImpl) GetByID(ctx context.Context, id uint) (*firmware.Category, error) {
	var model models.CategoryModel
	if err := r.conn(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("category not found")
		}
		r.logger.Errorw("failed to get category by ID", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetBySID retrieves a category by its public identifier
func (r *CategoryRepositoryImpl) GetBySID(ctx context.Context, sid string) (*firmware.Category, error) {
	var model models.CategoryModel
	if err := r.conn(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("category not found")
		}
		r.logger.Errorw("failed to get category by SID", "sid", sid, "error", err)
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// List returns all categories, newest first
func (r *CategoryRepositoryImpl) List(ctx context.Context) ([]*firmware.Category, error) {
	var categoryModels []*models.CategoryModel
	if err := r.conn(ctx).Order("created_at DESC").Find(&categoryModels).Error; err != nil {
		r.logger.Errorw("failed to list categories", "error", err)
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return r.mapper.ToEntities(categoryModels)
}
