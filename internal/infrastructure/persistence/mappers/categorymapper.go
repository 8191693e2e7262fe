package mappers

import (
	"firmup/internal/domain/firmware"
	"firmup/internal/infrastructure/persistence/models"
)

// CategoryMapper handles the conversion between category entities and
// persistence models
type CategoryMapper interface {
	ToEntity(model *models.CategoryModel) (*firmware.Category, error)
	ToModel(entity *firmware.Category) *models.CategoryModel
	ToEntities(models []*models.CategoryModel) ([]*firmware.Category, error)
}

// CategoryMapperImpl is the concrete implementation of CategoryMapper
type CategoryMapperImpl struct{}

// NewCategoryMapper creates a new category mapper
func NewCategoryMapper() CategoryMapper {
	return &CategoryMapperImpl{}
}

func (m *CategoryMapperImpl) ToEntity(model *models.CategoryModel) (*firmware.Category, error) {
	if model == nil {
		return nil, nil
	}
	return firmware.ReconstructCategory(
		model.ID,
		model.SID,
		model.Name,
		model.Description,
		model.OrganizationID,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func (m *CategoryMapperImpl) ToModel(entity *firmware.Category) *models.CategoryModel {
	if entity == nil {
		return nil
	}
	return &models.CategoryModel{
		ID:             entity.ID(),
		SID:            entity.SID(),
		Name:           entity.Name(),
		Description:    entity.Description(),
		OrganizationID: entity.OrganizationID(),
		CreatedAt:      entity.CreatedAt(),
		UpdatedAt:      entity.UpdatedAt(),
	}
}

func (m *CategoryMapperImpl) ToEntities(categoryModels []*models.CategoryModel) ([]*firmware.Category, error) {
	entities := make([]*firmware.Category, 0, len(categoryModels))
	for _, model := range categoryModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
