package usecases

import (
	"context"

	"github.com/google/uuid"

	"firmup/internal/domain/device"
	"firmup/internal/shared/errors"
	"firmup/internal/shared/logger"
)

type RegisterDeviceCommand struct {
	Name           string
	OrganizationID uint
	Model          string
	OS             string
	// UUID is the identity burned into the device configuration. Empty
	// means a fresh one is generated.
	UUID string
}

type RegisterDeviceResult struct {
	Device *device.Device
	// AutoAssigned is set when a matching image was bound as installed.
	AutoAssigned bool
}

// RegisterDeviceUseCase adds a device to the inventory and auto-assigns
// firmware when the catalog carries a matching image.
type RegisterDeviceUseCase struct {
	deviceRepo device.Repository
	autoAssign *CreateDeviceFirmwareUseCase
	logger     logger.Interface
}

// NewRegisterDeviceUseCase creates a new register device use case
func NewRegisterDeviceUseCase(
	deviceRepo device.Repository,
	autoAssign *CreateDeviceFirmwareUseCase,
	logger logger.Interface,
) *RegisterDeviceUseCase {
	return &RegisterDeviceUseCase{deviceRepo: deviceRepo, autoAssign: autoAssign, logger: logger}
}

func (uc *RegisterDeviceUseCase) Execute(ctx context.Context, cmd RegisterDeviceCommand) (*RegisterDeviceResult, error) {
	deviceUUID := uuid.Nil
	if cmd.UUID != "" {
		parsed, err := uuid.Parse(cmd.UUID)
		if err != nil {
			return nil, errors.NewValidationError("invalid device UUID")
		}
		deviceUUID = parsed
	}
	dev, err := device.NewDevice(cmd.Name, cmd.OrganizationID, cmd.Model, cmd.OS, deviceUUID, deviceSID)
	if err != nil {
		return nil, err
	}
	if err := uc.deviceRepo.Create(ctx, dev); err != nil {
		return nil, err
	}
	uc.logger.Infow("device registered", "device", dev.SID(), "model", dev.Model())

	binding, err := uc.autoAssign.Execute(ctx, dev.SID())
	if err != nil {
		uc.logger.Warnw("firmware auto-assignment failed", "device", dev.SID(), "error", err)
		return &RegisterDeviceResult{Device: dev}, nil
	}
	return &RegisterDeviceResult{Device: dev, AutoAssigned: binding != nil}, nil
}
