package usecases

import (
	"context"
	"fmt"

	"firmup/internal/domain/firmware"
	"firmup/internal/shared/errors"
	"firmup/internal/shared/logger"
)

type CreateBuildCommand struct {
	CategorySID string
	Version     string
	OS          string
	Changelog   string
}

// CreateBuildUseCase creates a firmware build inside a category. The OS
// identifier must be unique within the organization scope because
// auto-assignment looks images up by (organization, os, type).
type CreateBuildUseCase struct {
	buildRepo    firmware.BuildRepository
	categoryRepo firmware.CategoryRepository
	logger       logger.Interface
}

// NewCreateBuildUseCase creates a new create build use case
func NewCreateBuildUseCase(
	buildRepo firmware.BuildRepository,
	categoryRepo firmware.CategoryRepository,
	logger logger.Interface,
) *CreateBuildUseCase {
	return &CreateBuildUseCase{buildRepo: buildRepo, categoryRepo: categoryRepo, logger: logger}
}

func (uc *CreateBuildUseCase) Execute(ctx context.Context, cmd CreateBuildCommand) (*firmware.Build, error) {
	category, err := uc.categoryRepo.GetBySID(ctx, cmd.CategorySID)
	if err != nil {
		return nil, err
	}
	if cmd.OS != "" {
		exists, err := uc.buildRepo.ExistsByOSAndOrganization(ctx, cmd.OS, category.OrganizationID(), 0)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, errors.NewValidationError(
				fmt.Sprintf("a build with OS identifier %q already exists in this organization", cmd.OS))
		}
	}
	build, err := firmware.NewBuild(category.ID(), cmd.Version, cmd.OS, cmd.Changelog, buildSID)
	if err != nil {
		return nil, err
	}
	if err := uc.buildRepo.Create(ctx, build); err != nil {
		return nil, err
	}
	uc.logger.Infow("firmware build created",
		"build", build.SID(), "category", category.SID(), "version", build.Version())
	return build, nil
}
