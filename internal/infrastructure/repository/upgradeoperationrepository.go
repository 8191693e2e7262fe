package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"firmup/internal/domain/firmware"
	"firmup/internal/infrastructure/persistence/mappers"
	"firmup/internal/infrastructure/persistence/models"
	"firmup/internal/shared/db"
	apperrors "firmup/internal/shared/errors"
	"firmup/internal/shared/logger"
)

// UpgradeOperationRepositoryImpl implements the
// firmware.OperationRepository interface
type UpgradeOperationRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.UpgradeOperationMapper
	logger logger.Interface
}

// NewUpgradeOperationRepository creates a new upgrade operation repository
// instance
func NewUpgradeOperationRepository(database *gorm.DB, logger logger.Interface) firmware.OperationRepository {
	return &UpgradeOperationRepositoryImpl{
		db:     database,
		mapper: mappers.NewUpgradeOperationMapper(),
		logger: logger,
	}
}

func (r *UpgradeOperationRepositoryImpl) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create creates a new upgrade operation in the database
func (r *UpgradeOperationRepositoryImpl) Create(ctx context.Context, op *firmware.UpgradeOperation) error {
	model, err := r.mapper.ToModel(op)
	if err != nil {
		return err
	}
	if err := r.conn(ctx).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create upgrade operation", "error", err)
		return fmt.Errorf("failed to create upgrade operation: %w", err)
	}
	if err := op.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set upgrade operation ID: %w", err)
	}
	return nil
}

// Update persists the mutable fields of an operation
func (r *UpgradeOperationRepositoryImpl) Update(ctx context.Context, op *firmware.UpgradeOperation) error {
	model, err := r.mapper.ToModel(op)
	if err != nil {
		return err
	}
	result := r.conn(ctx).Model(&models.UpgradeOperationModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"image_id":   model.ImageID,
			"status":     model.Status,
			"log":        model.Log,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update upgrade operation", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update upgrade operation: %w", result.Error)
	}
	return nil
}

// GetByID retrieves an operation by its database ID
func (r *UpgradeOperationRepositoryImpl) GetByID(ctx context.Context, id uint) (*firmware.UpgradeOperation, error) {
	var model models.UpgradeOperationModel
	if err := r.conn(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("upgrade operation not found")
		}
		r.logger.Errorw("failed to get upgrade operation by ID", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get upgrade operation: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetBySID retrieves an operation by its public identifier
func (r *UpgradeOperationRepositoryImpl) GetBySID(ctx context.Context, sid string) (*firmware.UpgradeOperation, error) {
	var model models.UpgradeOperationModel
	if err := r.conn(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("upgrade operation not found")
		}
		r.logger.Errorw("failed to get upgrade operation by SID", "sid", sid, "error", err)
		return nil, fmt.Errorf("failed to get upgrade operation: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// List returns operations matching the filter, newest first, with the
// total count for pagination
func (r *UpgradeOperationRepositoryImpl) List(ctx context.Context, filter firmware.OperationListFilter) ([]*firmware.UpgradeOperation, int64, error) {
	query := r.conn(ctx).Model(&models.UpgradeOperationModel{})
	if filter.DeviceID != 0 {
		query = query.Where("device_id = ?", filter.DeviceID)
	}
	if filter.BatchID != 0 {
		query = query.Where("batch_id = ?", filter.BatchID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		r.logger.Errorw("failed to count upgrade operations", "error", err)
		return nil, 0, fmt.Errorf("failed to count upgrade operations: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var operationModels []*models.UpgradeOperationModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&operationModels).Error
	if err != nil {
		r.logger.Errorw("failed to list upgrade operations", "error", err)
		return nil, 0, fmt.Errorf("failed to list upgrade operations: %w", err)
	}
	entities, err := r.mapper.ToEntities(operationModels)
	if err != nil {
		return nil, 0, err
	}
	return entities, total, nil
}

// StatusCountsForBatch aggregates child statuses for the batch rollup
func (r *UpgradeOperationRepositoryImpl) StatusCountsForBatch(ctx context.Context, batchID uint) (firmware.StatusCounts, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.conn(ctx).Model(&models.UpgradeOperationModel{}).
		Select("status, COUNT(*) as count").
		Where("batch_id = ?", batchID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		r.logger.Errorw("failed to aggregate batch statuses", "batch_id", batchID, "error", err)
		return firmware.StatusCounts{}, fmt.Errorf("failed to aggregate batch statuses: %w", err)
	}
	var counts firmware.StatusCounts
	for _, row := range rows {
		switch firmware.OperationStatus(row.Status) {
		case firmware.OperationInProgress:
			counts.InProgress = row.Count
		case firmware.OperationSuccess:
			counts.Success = row.Count
		case firmware.OperationFailed:
			counts.Failed = row.Count
		case firmware.OperationAborted:
			counts.Aborted = row.Count
		}
	}
	return counts, nil
}

// ListStalledInProgress returns in-progress operations not touched since
// the given time
func (r *UpgradeOperationRepositoryImpl) ListStalledInProgress(ctx context.Context, notUpdatedSince time.Time) ([]*firmware.UpgradeOperation, error) {
	var operationModels []*models.UpgradeOperationModel
	err := r.conn(ctx).
		Where("status = ? AND updated_at < ?", string(firmware.OperationInProgress), notUpdatedSince).
		Order("updated_at ASC").
		Find(&operationModels).Error
	if err != nil {
		r.logger.Errorw("failed to list stalled operations", "error", err)
		return nil, fmt.Errorf("failed to list stalled operations: %w", err)
	}
	return r.mapper.ToEntities(operationModels)
}
