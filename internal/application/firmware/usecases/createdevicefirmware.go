package usecases

import (
	"context"

	"firmup/internal/domain/device"
	"firmup/internal/domain/firmware"
	"firmup/internal/shared/errors"
	"firmup/internal/shared/logger"
)

// CreateDeviceFirmwareUseCase auto-assigns firmware to a freshly
// registered device: its hardware model is reverse-mapped to an image
// type and the newest matching image in the device's organization scope
// is bound as already installed. No upgrade operation is spawned; the
// device is presumed to be running what it shipped with.
type CreateDeviceFirmwareUseCase struct {
	deviceRepo     device.Repository
	imageRepo      firmware.ImageRepository
	deviceFirmRepo firmware.DeviceFirmwareRepository
	logger         logger.Interface
}

// NewCreateDeviceFirmwareUseCase creates a new create device firmware use
// case
func NewCreateDeviceFirmwareUseCase(
	deviceRepo device.Repository,
	imageRepo firmware.ImageRepository,
	deviceFirmRepo firmware.DeviceFirmwareRepository,
	logger logger.Interface,
) *CreateDeviceFirmwareUseCase {
	return &CreateDeviceFirmwareUseCase{
		deviceRepo:     deviceRepo,
		imageRepo:      imageRepo,
		deviceFirmRepo: deviceFirmRepo,
		logger:         logger,
	}
}

// Execute returns the created binding, or nil when no image matches the
// device (unknown board, no catalog entry) or a binding already exists.
func (uc *CreateDeviceFirmwareUseCase) Execute(ctx context.Context, deviceSID string) (*firmware.DeviceFirmware, error) {
	dev, err := uc.deviceRepo.GetBySID(ctx, deviceSID)
	if err != nil {
		return nil, err
	}
	if existing, err := uc.deviceFirmRepo.GetByDeviceID(ctx, dev.ID()); err == nil && existing != nil {
		return nil, nil
	} else if err != nil && !errors.IsNotFoundError(err) {
		return nil, err
	}

	imageType := firmware.ImageTypeForBoard(dev.Model())
	if imageType == "" {
		uc.logger.Debugw("no image type known for device model", "device", dev.SID(), "model", dev.Model())
		return nil, nil
	}
	image, err := uc.imageRepo.FindForDevice(ctx, dev.OrganizationID(), dev.OS(), imageType)
	if err != nil {
		return nil, err
	}
	if image == nil {
		uc.logger.Debugw("no matching image for device", "device", dev.SID(), "os", dev.OS(), "type", imageType)
		return nil, nil
	}

	binding, err := firmware.NewDeviceFirmware(dev.ID(), image.ID(), true)
	if err != nil {
		return nil, err
	}
	if err := uc.deviceFirmRepo.Create(ctx, binding); err != nil {
		return nil, err
	}
	uc.logger.Infow("device firmware auto-assigned",
		"device", dev.SID(), "image", image.SID(), "type", imageType)
	return binding, nil
}
