package usecases

import (
	"context"

	"firmup/internal/domain/firmware"
	"firmup/internal/shared/logger"
)

type CreateCategoryCommand struct {
	Name           string
	Description    string
	OrganizationID *uint
}

// CreateCategoryUseCase creates a firmware category.
type CreateCategoryUseCase struct {
	categoryRepo firmware.CategoryRepository
	logger       logger.Interface
}

// NewCreateCategoryUseCase creates a new create category use case
func NewCreateCategoryUseCase(categoryRepo firmware.CategoryRepository, logger logger.Interface) *CreateCategoryUseCase {
	return &CreateCategoryUseCase{categoryRepo: categoryRepo, logger: logger}
}

func (uc *CreateCategoryUseCase) Execute(ctx context.Context, cmd CreateCategoryCommand) (*firmware.Category, error) {
	category, err := firmware.NewCategory(cmd.Name, cmd.Description, cmd.OrganizationID, categorySID)
	if err != nil {
		return nil, err
	}
	if err := uc.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}
	uc.logger.Infow("firmware category created", "category", category.SID(), "name", category.Name())
	return category, nil
}
