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

type AssignFirmwareCommand struct {
	DeviceSID string
	ImageSID  string
	Options   firmware.UpgradeOptions
}

type AssignFirmwareResult struct {
	DeviceFirmware *firmware.DeviceFirmware
	// Operation is nil when the binding already pointed at the image and
	// it was confirmed installed: nothing to do.
	Operation *firmware.UpgradeOperation
}

// AssignFirmwareUseCase points a device at a target image and spawns the
// upgrade operation that will make it real. Re-assigning the same image
// to an already-installed device is a no-op.
type AssignFirmwareUseCase struct {
	deviceRepo     device.Repository
	connectionRepo device.ConnectionRepository
	imageRepo      firmware.ImageRepository
	deviceFirmRepo firmware.DeviceFirmwareRepository
	operationRepo  firmware.OperationRepository
	submitter      TaskSubmitter
	logger         logger.Interface
}

// NewAssignFirmwareUseCase creates a new assign firmware use case
func NewAssignFirmwareUseCase(
	deviceRepo device.Repository,
	connectionRepo device.ConnectionRepository,
	imageRepo firmware.ImageRepository,
	deviceFirmRepo firmware.DeviceFirmwareRepository,
	operationRepo firmware.OperationRepository,
	submitter TaskSubmitter,
	logger logger.Interface,
) *AssignFirmwareUseCase {
	return &AssignFirmwareUseCase{
		deviceRepo:     deviceRepo,
		connectionRepo: connectionRepo,
		imageRepo:      imageRepo,
		deviceFirmRepo: deviceFirmRepo,
		operationRepo:  operationRepo,
		submitter:      submitter,
		logger:         logger,
	}
}

func (uc *AssignFirmwareUseCase) Execute(ctx context.Context, cmd AssignFirmwareCommand) (*AssignFirmwareResult, error) {
	dev, err := uc.deviceRepo.GetBySID(ctx, cmd.DeviceSID)
	if err != nil {
		return nil, err
	}
	image, err := uc.imageRepo.GetBySID(ctx, cmd.ImageSID)
	if err != nil {
		return nil, err
	}
	if !image.SupportsBoard(dev.Model()) {
		return nil, errors.NewValidationError(
			fmt.Sprintf("image type %q does not support device model %q", image.Type(), dev.Model()))
	}
	if err := uc.validateOptions(ctx, dev, cmd.Options); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	binding, changed, err := uc.upsertBinding(ctx, dev, image)
	if err != nil {
		return nil, err
	}
	if !changed && binding.Installed() {
		return &AssignFirmwareResult{DeviceFirmware: binding}, nil
	}

	op, err := uc.spawnOperation(ctx, dev.ID(), image.ID(), cmd.Options, nil)
	if err != nil {
		return nil, err
	}
	return &AssignFirmwareResult{DeviceFirmware: binding, Operation: op}, nil
}

// validateOptions checks the options against the schema of the device's
// connector family.
func (uc *AssignFirmwareUseCase) validateOptions(ctx context.Context, dev *device.Device, opts firmware.UpgradeOptions) error {
	if len(opts) == 0 {
		return nil
	}
	connector := device.ConnectorOpenWrt
	records, err := uc.connectionRepo.ListByDeviceID(ctx, dev.ID())
	if err != nil {
		return err
	}
	if len(records) > 0 {
		connector = records[0].Connector()
	}
	return upgraders.ValidateOptions(connector, opts)
}

func (uc *AssignFirmwareUseCase) upsertBinding(ctx context.Context, dev *device.Device, image *firmware.Image) (*firmware.DeviceFirmware, bool, error) {
	binding, err := uc.deviceFirmRepo.GetByDeviceID(ctx, dev.ID())
	if err != nil {
		if !errors.IsNotFoundError(err) {
			return nil, false, err
		}
		binding, err = firmware.NewDeviceFirmware(dev.ID(), image.ID(), false)
		if err != nil {
			return nil, false, err
		}
		if err := uc.deviceFirmRepo.Create(ctx, binding); err != nil {
			return nil, false, err
		}
		return binding, true, nil
	}
	changed, err := binding.SetImage(image.ID())
	if err != nil {
		return nil, false, err
	}
	if changed {
		if err := uc.deviceFirmRepo.Update(ctx, binding); err != nil {
			return nil, false, err
		}
	}
	return binding, changed, nil
}

func (uc *AssignFirmwareUseCase) spawnOperation(ctx context.Context, deviceID, imageID uint, opts firmware.UpgradeOptions, batchID *uint) (*firmware.UpgradeOperation, error) {
	op, err := firmware.NewUpgradeOperation(deviceID, imageID, opts, batchID, operationSID)
	if err != nil {
		return nil, err
	}
	if err := uc.operationRepo.Create(ctx, op); err != nil {
		return nil, err
	}
	if err := uc.submitter.Submit(op.SID()); err != nil {
		uc.logger.Errorw("failed to submit upgrade operation", "operation", op.SID(), "error", err)
		return nil, fmt.Errorf("failed to submit upgrade operation: %w", err)
	}
	uc.logger.Infow("upgrade operation submitted", "operation", op.SID(), "device_id", deviceID)
	return op, nil
}
