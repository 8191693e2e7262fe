package mappers

import (
	"firmup/internal/domain/firmware"
	"firmup/internal/infrastructure/persistence/models"
)

// UpgradeOperationMapper handles the conversion between upgrade
// operations and persistence models
type UpgradeOperationMapper interface {
	ToEntity(model *models.UpgradeOperationModel) (*firmware.UpgradeOperation, error)
	ToModel(entity *firmware.UpgradeOperation) (*models.UpgradeOperationModel, error)
	ToEntities(models []*models.UpgradeOperationModel) ([]*firmware.UpgradeOperation, error)
}

// UpgradeOperationMapperImpl is the concrete implementation of
// UpgradeOperationMapper
type UpgradeOperationMapperImpl struct{}

// NewUpgradeOperationMapper creates a new upgrade operation mapper
func NewUpgradeOperationMapper() UpgradeOperationMapper {
	return &UpgradeOperationMapperImpl{}
}

func (m *UpgradeOperationMapperImpl) ToEntity(model *models.UpgradeOperationModel) (*firmware.UpgradeOperation, error) {
	if model == nil {
		return nil, nil
	}
	options, err := decodeOptions(model.Options)
	if err != nil {
		return nil, err
	}
	return firmware.ReconstructUpgradeOperation(
		model.ID,
		model.SID,
		model.DeviceID,
		model.ImageID,
		firmware.OperationStatus(model.Status),
		model.Log,
		options,
		model.BatchID,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func (m *UpgradeOperationMapperImpl) ToModel(entity *firmware.UpgradeOperation) (*models.UpgradeOperationModel, error) {
	if entity == nil {
		return nil, nil
	}
	options, err := encodeOptions(entity.Options())
	if err != nil {
		return nil, err
	}
	return &models.UpgradeOperationModel{
		ID:        entity.ID(),
		SID:       entity.SID(),
		DeviceID:  entity.DeviceID(),
		ImageID:   entity.ImageID(),
		Status:    string(entity.Status()),
		Log:       entity.Log(),
		Options:   options,
		BatchID:   entity.BatchID(),
		CreatedAt: entity.CreatedAt(),
		UpdatedAt: entity.UpdatedAt(),
	}, nil
}

func (m *UpgradeOperationMapperImpl) ToEntities(operationModels []*models.UpgradeOperationModel) ([]*firmware.UpgradeOperation, error) {
	entities := make([]*firmware.UpgradeOperation, 0, len(operationModels))
	for _, model := range operationModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
