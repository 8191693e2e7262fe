package mappers

import (
	"firmup/internal/domain/firmware"
	"firmup/internal/infrastructure/persistence/models"
)

// BuildMapper handles the conversion between build entities and
// persistence models
type BuildMapper interface {
	ToEntity(model *models.BuildModel) (*firmware.Build, error)
	ToModel(entity *firmware.Build) *models.BuildModel
	ToEntities(models []*models.BuildModel) ([]*firmware.Build, error)
}

// BuildMapperImpl is the concrete implementation of BuildMapper
type BuildMapperImpl struct{}

// NewBuildMapper creates a new build mapper
func NewBuildMapper() BuildMapper {
	return &BuildMapperImpl{}
}

func (m *BuildMapperImpl) ToEntity(model *models.BuildModel) (*firmware.Build, error) {
	if model == nil {
		return nil, nil
	}
	return firmware.ReconstructBuild(
		model.ID,
		model.SID,
		model.CategoryID,
		model.Version,
		model.OS,
		model.Changelog,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func (m *BuildMapperImpl) ToModel(entity *firmware.Build) *models.BuildModel {
	if entity == nil {
		return nil
	}
	return &models.BuildModel{
		ID:         entity.ID(),
		SID:        entity.SID(),
		CategoryID: entity.CategoryID(),
		Version:    entity.Version(),
		OS:         entity.OS(),
		Changelog:  entity.Changelog(),
		CreatedAt:  entity.CreatedAt(),
		UpdatedAt:  entity.UpdatedAt(),
	}
}

func (m *BuildMapperImpl) ToEntities(buildModels []*models.BuildModel) ([]*firmware.Build, error) {
	entities := make([]*firmware.Build, 0, len(buildModels))
	for _, model := range buildModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
