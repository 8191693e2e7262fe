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

// BatchUpgradeRepositoryImpl implements the firmware.BatchRepository
// interface
type BatchUpgradeRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.BatchUpgradeMapper
	logger logger.Interface
}

// NewBatchUpgradeRepository creates a new batch upgrade repository
// instance
func NewBatchUpgradeRepository(database *gorm.DB, logger logger.Interface) firmware.BatchRepository {
	return &BatchUpgradeRepositoryImpl{
		db:     database,
		mapper: mappers.NewBatchUpgradeMapper(),
		logger: logger,
	}
}

func (r *BatchUpgradeRepositoryImpl) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create creates a new batch upgrade operation in the database
func (r *BatchUpgradeRepositoryImpl) Create(ctx context.Context, batch *firmware.BatchUpgradeOperation) error {
	model, err := r.mapper.ToModel(batch)
	if err != nil {
		return err
	}
	if err := r.conn(ctx).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create batch upgrade operation", "error", err)
		return fmt.Errorf("failed to create batch upgrade operation: %w", err)
	}
	if err := batch.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set batch upgrade operation ID: %w", err)
	}
	return nil
}

// Update persists the mutable fields of a batch
func (r *BatchUpgradeRepositoryImpl) Update(ctx context.Context, batch *firmware.BatchUpgradeOperation) error {
	model, err := r.mapper.ToModel(batch)
	if err != nil {
		return err
	}
	result := r.conn(ctx).Model(&models.BatchUpgradeOperationModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"status":     model.Status,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update batch upgrade operation", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update batch upgrade operation: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a batch by its database ID
func (r *BatchUpgradeRepositoryImpl) GetByID(ctx context.Context, id uint) (*firmware.BatchUpgradeOperation, error) {
	var model models.BatchUpgradeOperationModel
	if err := r.conn(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("batch upgrade operation not found")
		}
		r.logger.Errorw("failed to get batch upgrade operation by ID", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get batch upgrade operation: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetBySID retrieves a batch by its public identifier
func (r *BatchUpgradeRepositoryImpl) GetBySID(ctx context.Context, sid string) (*firmware.BatchUpgradeOperation, error) {
	var model models.BatchUpgradeOperationModel
	if err := r.conn(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("batch upgrade operation not found")
		}
		r.logger.Errorw("failed to get batch upgrade operation by SID", "sid", sid, "error", err)
		return nil, fmt.Errorf("failed to get batch upgrade operation: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// List returns all batches, newest first
func (r *BatchUpgradeRepositoryImpl) List(ctx context.Context) ([]*firmware.BatchUpgradeOperation, error) {
	var batchModels []*models.BatchUpgradeOperationModel
	if err := r.conn(ctx).Order("created_at DESC").Find(&batchModels).Error; err != nil {
		r.logger.Errorw("failed to list batch upgrade operations", "error", err)
		return nil, fmt.Errorf("failed to list batch upgrade operations: %w", err)
	}
	return r.mapper.ToEntities(batchModels)
}

// Delete removes a batch record. Child operations keep their batch_id for
// history; no cascade is wanted here.
func (r *BatchUpgradeRepositoryImpl) Delete(ctx context.Context, id uint) error {
	result := r.conn(ctx).Delete(&models.BatchUpgradeOperationModel{}, id)
	if result.Error != nil {
		r.logger.Errorw("failed to delete batch upgrade operation", "id", id, "error", result.Error)
		return fmt.Errorf("failed to delete batch upgrade operation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("batch upgrade operation not found")
	}
	return nil
}
