package device

import "context"

// Repository defines the interface for device inventory persistence.
type Repository interface {
	Create(ctx context.Context, dev *Device) error
	GetByID(ctx context.Context, id uint) (*Device, error)
	GetBySID(ctx context.Context, sid string) (*Device, error)
	List(ctx context.Context) ([]*Device, error)

	// ListFirmwareless returns devices without any device firmware
	// binding whose model is in the given list, newest first. A non-nil
	// organizationID restricts the result to that organization.
	ListFirmwareless(ctx context.Context, models []string, organizationID *uint) ([]*Device, error)
}

// ConnectionRepository defines the interface for device connection
// persistence.
type ConnectionRepository interface {
	Create(ctx context.Context, conn *DeviceConnection) error
	Update(ctx context.Context, conn *DeviceConnection) error
	ListByDeviceID(ctx context.Context, deviceID uint) ([]*DeviceConnection, error)
}
