package mappers

import (
	"fmt"

	"github.com/google/uuid"

	"firmup/internal/domain/device"
	"firmup/internal/infrastructure/persistence/models"
)

// DeviceMapper handles the conversion between device entities and
// persistence models
type DeviceMapper interface {
	ToEntity(model *models.DeviceModel) (*device.Device, error)
	ToModel(entity *device.Device) *models.DeviceModel
	ToEntities(models []*models.DeviceModel) ([]*device.Device, error)
}

// DeviceMapperImpl is the concrete implementation of DeviceMapper
type DeviceMapperImpl struct{}

// NewDeviceMapper creates a new device mapper
func NewDeviceMapper() DeviceMapper {
	return &DeviceMapperImpl{}
}

func (m *DeviceMapperImpl) ToEntity(model *models.DeviceModel) (*device.Device, error) {
	if model == nil {
		return nil, nil
	}
	deviceUUID, err := uuid.Parse(model.UUID)
	if err != nil {
		return nil, fmt.Errorf("invalid device UUID %q: %w", model.UUID, err)
	}
	return device.ReconstructDevice(
		model.ID,
		model.SID,
		model.Name,
		model.OrganizationID,
		model.Model,
		model.OS,
		deviceUUID,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func (m *DeviceMapperImpl) ToModel(entity *device.Device) *models.DeviceModel {
	if entity == nil {
		return nil
	}
	return &models.DeviceModel{
		ID:             entity.ID(),
		SID:            entity.SID(),
		Name:           entity.Name(),
		OrganizationID: entity.OrganizationID(),
		Model:          entity.Model(),
		OS:             entity.OS(),
		UUID:           entity.UUID().String(),
		CreatedAt:      entity.CreatedAt(),
		UpdatedAt:      entity.UpdatedAt(),
	}
}

func (m *DeviceMapperImpl) ToEntities(deviceModels []*models.DeviceModel) ([]*device.Device, error) {
	entities := make([]*device.Device, 0, len(deviceModels))
	for _, model := range deviceModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
