package usecases

import (
	"context"

	"firmup/internal/domain/device"
	"firmup/internal/shared/logger"
)

type CreateConnectionCommand struct {
	DeviceSID   string
	Credentials string
	User        string
	Port        int
	Addresses   []string
	Connector   string
}

// CreateConnectionUseCase records a set of candidate addresses and
// credentials for reaching a device.
type CreateConnectionUseCase struct {
	deviceRepo     device.Repository
	connectionRepo device.ConnectionRepository
	logger         logger.Interface
}

// NewCreateConnectionUseCase creates a new create connection use case
func NewCreateConnectionUseCase(
	deviceRepo device.Repository,
	connectionRepo device.ConnectionRepository,
	logger logger.Interface,
) *CreateConnectionUseCase {
	return &CreateConnectionUseCase{deviceRepo: deviceRepo, connectionRepo: connectionRepo, logger: logger}
}

func (uc *CreateConnectionUseCase) Execute(ctx context.Context, cmd CreateConnectionCommand) (*device.DeviceConnection, error) {
	dev, err := uc.deviceRepo.GetBySID(ctx, cmd.DeviceSID)
	if err != nil {
		return nil, err
	}
	conn, err := device.NewDeviceConnection(dev.ID(), cmd.Credentials, cmd.User, cmd.Port, cmd.Addresses, cmd.Connector)
	if err != nil {
		return nil, err
	}
	if err := uc.connectionRepo.Create(ctx, conn); err != nil {
		return nil, err
	}
	uc.logger.Infow("device connection created", "device", dev.SID(), "credentials", conn.Credentials())
	return conn, nil
}
