package mappers

import (
	"firmup/internal/domain/firmware"
	"firmup/internal/infrastructure/persistence/models"
)

// DeviceFirmwareMapper handles the conversion between device firmware
// bindings and persistence models
type DeviceFirmwareMapper interface {
	ToEntity(model *models.DeviceFirmwareModel) (*firmware.DeviceFirmware, error)
	ToModel(entity *firmware.DeviceFirmware) *models.DeviceFirmwareModel
	ToEntities(models []*models.DeviceFirmwareModel) ([]*firmware.DeviceFirmware, error)
}

// DeviceFirmwareMapperImpl is the concrete implementation of
// DeviceFirmwareMapper
type DeviceFirmwareMapperImpl struct{}

// NewDeviceFirmwareMapper creates a new device firmware mapper
func NewDeviceFirmwareMapper() DeviceFirmwareMapper {
	return &DeviceFirmwareMapperImpl{}
}

func (m *DeviceFirmwareMapperImpl) ToEntity(model *models.DeviceFirmwareModel) (*firmware.DeviceFirmware, error) {
	if model == nil {
		return nil, nil
	}
	return firmware.ReconstructDeviceFirmware(
		model.ID,
		model.DeviceID,
		model.ImageID,
		model.Installed,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func (m *DeviceFirmwareMapperImpl) ToModel(entity *firmware.DeviceFirmware) *models.DeviceFirmwareModel {
	if entity == nil {
		return nil
	}
	return &models.DeviceFirmwareModel{
		ID:        entity.ID(),
		DeviceID:  entity.DeviceID(),
		ImageID:   entity.ImageID(),
		Installed: entity.Installed(),
		CreatedAt: entity.CreatedAt(),
		UpdatedAt: entity.UpdatedAt(),
	}
}

func (m *DeviceFirmwareMapperImpl) ToEntities(bindingModels []*models.DeviceFirmwareModel) ([]*firmware.DeviceFirmware, error) {
	entities := make([]*firmware.DeviceFirmware, 0, len(bindingModels))
	for _, model := range bindingModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
