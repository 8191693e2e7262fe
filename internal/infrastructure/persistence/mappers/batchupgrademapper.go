package mappers

import (
	"firmup/internal/domain/firmware"
	"firmup/internal/infrastructure/persistence/models"
)

// BatchUpgradeMapper handles the conversion between batch upgrade
// operations and persistence models
type BatchUpgradeMapper interface {
	ToEntity(model *models.BatchUpgradeOperationModel) (*firmware.BatchUpgradeOperation, error)
	ToModel(entity *firmware.BatchUpgradeOperation) (*models.BatchUpgradeOperationModel, error)
	ToEntities(models []*models.BatchUpgradeOperationModel) ([]*firmware.BatchUpgradeOperation, error)
}

// BatchUpgradeMapperImpl is the concrete implementation of
// BatchUpgradeMapper
type BatchUpgradeMapperImpl struct{}

// NewBatchUpgradeMapper creates a new batch upgrade mapper
func NewBatchUpgradeMapper() BatchUpgradeMapper {
	return &BatchUpgradeMapperImpl{}
}

func (m *BatchUpgradeMapperImpl) ToEntity(model *models.BatchUpgradeOperationModel) (*firmware.BatchUpgradeOperation, error) {
	if model == nil {
		return nil, nil
	}
	options, err := decodeOptions(model.Options)
	if err != nil {
		return nil, err
	}
	return firmware.ReconstructBatchUpgradeOperation(
		model.ID,
		model.SID,
		model.BuildID,
		firmware.BatchStatus(model.Status),
		options,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func (m *BatchUpgradeMapperImpl) ToModel(entity *firmware.BatchUpgradeOperation) (*models.BatchUpgradeOperationModel, error) {
	if entity == nil {
		return nil, nil
	}
	options, err := encodeOptions(entity.Options())
	if err != nil {
		return nil, err
	}
	return &models.BatchUpgradeOperationModel{
		ID:        entity.ID(),
		SID:       entity.SID(),
		BuildID:   entity.BuildID(),
		Status:    string(entity.Status()),
		Options:   options,
		CreatedAt: entity.CreatedAt(),
		UpdatedAt: entity.UpdatedAt(),
	}, nil
}

func (m *BatchUpgradeMapperImpl) ToEntities(batchModels []*models.BatchUpgradeOperationModel) ([]*firmware.BatchUpgradeOperation, error) {
	entities := make([]*firmware.BatchUpgradeOperation, 0, len(batchModels))
	for _, model := range batchModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
