package mappers

import (
	"firmup/internal/domain/device"
	"firmup/internal/infrastructure/persistence/models"
)

// DeviceConnectionMapper handles the conversion between connection
// entities and persistence models
type DeviceConnectionMapper interface {
	ToEntity(model *models.DeviceConnectionModel) (*device.DeviceConnection, error)
	ToModel(entity *device.DeviceConnection) (*models.DeviceConnectionModel, error)
	ToEntities(models []*models.DeviceConnectionModel) ([]*device.DeviceConnection, error)
}

// DeviceConnectionMapperImpl is the concrete implementation of
// DeviceConnectionMapper
type DeviceConnectionMapperImpl struct{}

// NewDeviceConnectionMapper creates a new device connection mapper
func NewDeviceConnectionMapper() DeviceConnectionMapper {
	return &DeviceConnectionMapperImpl{}
}

func (m *DeviceConnectionMapperImpl) ToEntity(model *models.DeviceConnectionModel) (*device.DeviceConnection, error) {
	if model == nil {
		return nil, nil
	}
	addresses, err := decodeStrings(model.Addresses)
	if err != nil {
		return nil, err
	}
	return device.ReconstructDeviceConnection(
		model.ID,
		model.DeviceID,
		model.Credentials,
		model.User,
		model.Port,
		addresses,
		model.Connector,
		model.IsWorking,
		model.FailureReason,
		model.LastAttempt,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func (m *DeviceConnectionMapperImpl) ToModel(entity *device.DeviceConnection) (*models.DeviceConnectionModel, error) {
	if entity == nil {
		return nil, nil
	}
	addresses, err := encodeStrings(entity.Addresses())
	if err != nil {
		return nil, err
	}
	return &models.DeviceConnectionModel{
		ID:            entity.ID(),
		DeviceID:      entity.DeviceID(),
		Credentials:   entity.Credentials(),
		User:          entity.User(),
		Port:          entity.Port(),
		Addresses:     addresses,
		Connector:     entity.Connector(),
		IsWorking:     entity.IsWorking(),
		FailureReason: entity.FailureReason(),
		LastAttempt:   entity.LastAttempt(),
		CreatedAt:     entity.CreatedAt(),
		UpdatedAt:     entity.UpdatedAt(),
	}, nil
}

func (m *DeviceConnectionMapperImpl) ToEntities(connectionModels []*models.DeviceConnectionModel) ([]*device.DeviceConnection, error) {
	entities := make([]*device.DeviceConnection, 0, len(connectionModels))
	for _, model := range connectionModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
