package usecases

import (
	"context"
	"fmt"

	"firmup/internal/domain/device"
	"firmup/internal/domain/firmware"
	"firmup/internal/infrastructure/upgraders"
	"firmup/internal/shared/errors"
	"firmup/internal/shared/logger"
)

type BatchUpgradeCommand struct {
	BuildSID            string
	IncludeFirmwareless bool
	Options             firmware.UpgradeOptions
}

type BatchUpgradeResult struct {
	Batch      *firmware.BatchUpgradeOperation
	Operations []*firmware.UpgradeOperation
}

// DryRunResult previews which devices a batch upgrade would affect,
// without creating anything.
type DryRunResult struct {
	RelatedDevices      []*device.Device
	FirmwarelessDevices []*device.Device
}

// BatchUpgradeUseCase fans one build out across the fleet: every device
// whose current firmware belongs to the build's category is re-pointed to
// the matching-type image and upgraded; optionally, devices with no
// firmware binding at all are picked up by board compatibility.
type BatchUpgradeUseCase struct {
	buildRepo      firmware.BuildRepository
	categoryRepo   firmware.CategoryRepository
	imageRepo      firmware.ImageRepository
	deviceFirmRepo firmware.DeviceFirmwareRepository
	operationRepo  firmware.OperationRepository
	batchRepo      firmware.BatchRepository
	deviceRepo     device.Repository
	submitter      TaskSubmitter
	logger         logger.Interface
}

// NewBatchUpgradeUseCase creates a new batch upgrade use case
func NewBatchUpgradeUseCase(
	buildRepo firmware.BuildRepository,
	categoryRepo firmware.CategoryRepository,
	imageRepo firmware.ImageRepository,
	deviceFirmRepo firmware.DeviceFirmwareRepository,
	operationRepo firmware.OperationRepository,
	batchRepo firmware.BatchRepository,
	deviceRepo device.Repository,
	submitter TaskSubmitter,
	logger logger.Interface,
) *BatchUpgradeUseCase {
	return &BatchUpgradeUseCase{
		buildRepo:      buildRepo,
		categoryRepo:   categoryRepo,
		imageRepo:      imageRepo,
		deviceFirmRepo: deviceFirmRepo,
		operationRepo:  operationRepo,
		batchRepo:      batchRepo,
		deviceRepo:     deviceRepo,
		submitter:      submitter,
		logger:         logger,
	}
}

func (uc *BatchUpgradeUseCase) Execute(ctx context.Context, cmd BatchUpgradeCommand) (*BatchUpgradeResult, error) {
	build, err := uc.buildRepo.GetBySID(ctx, cmd.BuildSID)
	if err != nil {
		return nil, err
	}
	category, err := uc.categoryRepo.GetByID(ctx, build.CategoryID())
	if err != nil {
		return nil, err
	}
	if err := upgraders.ValidateOptions(device.ConnectorOpenWrt, cmd.Options); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	batch, err := firmware.NewBatchUpgradeOperation(build.ID(), cmd.Options, batchSID)
	if err != nil {
		return nil, err
	}
	if err := uc.batchRepo.Create(ctx, batch); err != nil {
		return nil, err
	}
	batch.Start()
	if err := uc.batchRepo.Update(ctx, batch); err != nil {
		return nil, err
	}

	result := &BatchUpgradeResult{Batch: batch}

	ops, err := uc.upgradeRelated(ctx, build, category, batch)
	if err != nil {
		return nil, err
	}
	result.Operations = append(result.Operations, ops...)

	if cmd.IncludeFirmwareless {
		ops, err = uc.upgradeFirmwareless(ctx, build, category, batch)
		if err != nil {
			return nil, err
		}
		result.Operations = append(result.Operations, ops...)
	}

	// a batch that matched nothing has no children to roll it up
	if len(result.Operations) == 0 {
		if batch.Recompute(firmware.StatusCounts{}) {
			if err := uc.batchRepo.Update(ctx, batch); err != nil {
				return nil, err
			}
		}
	}

	uc.logger.Infow("batch upgrade started",
		"batch", batch.SID(), "build", build.SID(), "operations", len(result.Operations))
	return result, nil
}

// upgradeRelated re-points every upgradable binding in the build's
// category at the matching-type image of this build and spawns a child
// operation for it.
func (uc *BatchUpgradeUseCase) upgradeRelated(
	ctx context.Context,
	build *firmware.Build,
	category *firmware.Category,
	batch *firmware.BatchUpgradeOperation,
) ([]*firmware.UpgradeOperation, error) {
	bindings, err := uc.deviceFirmRepo.ListUpgradableForCategory(ctx, category.ID(), build.ID())
	if err != nil {
		return nil, err
	}
	var ops []*firmware.UpgradeOperation
	for _, binding := range bindings {
		current, err := uc.imageRepo.GetByID(ctx, binding.ImageID())
		if err != nil {
			uc.logger.Warnw("skipping binding with unloadable image",
				"device_id", binding.DeviceID(), "image_id", binding.ImageID(), "error", err)
			continue
		}
		target, err := uc.imageRepo.FirstByBuildAndType(ctx, build.ID(), current.Type())
		if err != nil {
			return nil, err
		}
		if target == nil {
			// the new build does not ship an image for this board family
			continue
		}
		if _, err := binding.SetImage(target.ID()); err != nil {
			return nil, err
		}
		if err := uc.deviceFirmRepo.Update(ctx, binding); err != nil {
			return nil, err
		}
		op, err := uc.spawnChild(ctx, binding.DeviceID(), target.ID(), batch)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// upgradeFirmwareless binds first-time devices by board compatibility and
// spawns child operations for them.
func (uc *BatchUpgradeUseCase) upgradeFirmwareless(
	ctx context.Context,
	build *firmware.Build,
	category *firmware.Category,
	batch *firmware.BatchUpgradeOperation,
) ([]*firmware.UpgradeOperation, error) {
	images, err := uc.imageRepo.ListByBuild(ctx, build.ID())
	if err != nil {
		return nil, err
	}
	var ops []*firmware.UpgradeOperation
	assigned := make(map[uint]bool)
	for _, image := range images {
		devices, err := uc.deviceRepo.ListFirmwareless(ctx, image.Boards(), category.OrganizationID())
		if err != nil {
			return nil, err
		}
		for _, dev := range devices {
			if assigned[dev.ID()] {
				continue
			}
			assigned[dev.ID()] = true
			binding, err := firmware.NewDeviceFirmware(dev.ID(), image.ID(), false)
			if err != nil {
				return nil, err
			}
			if err := uc.deviceFirmRepo.Create(ctx, binding); err != nil {
				return nil, err
			}
			op, err := uc.spawnChild(ctx, dev.ID(), image.ID(), batch)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func (uc *BatchUpgradeUseCase) spawnChild(ctx context.Context, deviceID, imageID uint, batch *firmware.BatchUpgradeOperation) (*firmware.UpgradeOperation, error) {
	batchID := batch.ID()
	op, err := firmware.NewUpgradeOperation(deviceID, imageID, batch.Options(), &batchID, operationSID)
	if err != nil {
		return nil, err
	}
	if err := uc.operationRepo.Create(ctx, op); err != nil {
		return nil, err
	}
	if err := uc.submitter.Submit(op.SID()); err != nil {
		return nil, fmt.Errorf("failed to submit upgrade operation %s: %w", op.SID(), err)
	}
	return op, nil
}

// DryRun previews the device sets a batch upgrade of the build would
// affect, creating nothing.
func (uc *BatchUpgradeUseCase) DryRun(ctx context.Context, buildSID string) (*DryRunResult, error) {
	build, err := uc.buildRepo.GetBySID(ctx, buildSID)
	if err != nil {
		return nil, err
	}
	category, err := uc.categoryRepo.GetByID(ctx, build.CategoryID())
	if err != nil {
		return nil, err
	}

	result := &DryRunResult{}

	bindings, err := uc.deviceFirmRepo.ListUpgradableForCategory(ctx, category.ID(), build.ID())
	if err != nil {
		return nil, err
	}
	for _, binding := range bindings {
		dev, err := uc.deviceRepo.GetByID(ctx, binding.DeviceID())
		if err != nil {
			return nil, err
		}
		result.RelatedDevices = append(result.RelatedDevices, dev)
	}

	images, err := uc.imageRepo.ListByBuild(ctx, build.ID())
	if err != nil {
		return nil, err
	}
	seen := make(map[uint]bool)
	for _, image := range images {
		devices, err := uc.deviceRepo.ListFirmwareless(ctx, image.Boards(), category.OrganizationID())
		if err != nil {
			return nil, err
		}
		for _, dev := range devices {
			if seen[dev.ID()] {
				continue
			}
			seen[dev.ID()] = true
			result.FirmwarelessDevices = append(result.FirmwarelessDevices, dev)
		}
	}
	return result, nil
}
