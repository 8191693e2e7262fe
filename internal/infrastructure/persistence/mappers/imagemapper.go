package mappers

import (
	"firmup/internal/domain/firmware"
	"firmup/internal/infrastructure/persistence/models"
)

// ImageMapper handles the conversion between image entities and
// persistence models
type ImageMapper interface {
	ToEntity(model *models.ImageModel) (*firmware.Image, error)
	ToModel(entity *firmware.Image) *models.ImageModel
	ToEntities(models []*models.ImageModel) ([]*firmware.Image, error)
}

// ImageMapperImpl is the concrete implementation of ImageMapper
type ImageMapperImpl struct{}

// NewImageMapper creates a new image mapper
func NewImageMapper() ImageMapper {
	return &ImageMapperImpl{}
}

func (m *ImageMapperImpl) ToEntity(model *models.ImageModel) (*firmware.Image, error) {
	if model == nil {
		return nil, nil
	}
	return firmware.ReconstructImage(
		model.ID,
		model.SID,
		model.BuildID,
		model.FileName,
		model.Checksum,
		model.Size,
		model.Type,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func (m *ImageMapperImpl) ToModel(entity *firmware.Image) *models.ImageModel {
	if entity == nil {
		return nil
	}
	return &models.ImageModel{
		ID:        entity.ID(),
		SID:       entity.SID(),
		BuildID:   entity.BuildID(),
		FileName:  entity.FileName(),
		Checksum:  entity.Checksum(),
		Size:      entity.Size(),
		Type:      entity.Type(),
		CreatedAt: entity.CreatedAt(),
		UpdatedAt: entity.UpdatedAt(),
	}
}

func (m *ImageMapperImpl) ToEntities(imageModels []*models.ImageModel) ([]*firmware.Image, error) {
	entities := make([]*firmware.Image, 0, len(imageModels))
	for _, model := range imageModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
