// Package upgraders implements the per-OS-family reflash protocols driven
// over a device connection, and the registry resolving the right variant
// for a device's connector.
package upgraders

import (
	"context"
	"io"
	"sync"

	"firmup/internal/domain/device"
	"firmup/internal/domain/firmware"
	"firmup/internal/shared/config"
	"firmup/internal/shared/logger"
)

// ImageSource is the firmware binary handed to an upgrader: enough to
// probe idempotence (checksum), check headroom (size) and stream the
// content without the upgrader knowing where images are stored.
type ImageSource struct {
	Name     string
	Size     int64
	Checksum string
	Open     func() (io.ReadCloser, error)
}

// Journal receives the operator-facing audit trail. Every material
// protocol step appends a line; implementations persist each append.
type Journal interface {
	Log(line string)
}

// Deps carries everything a protocol variant needs for one upgrade.
type Deps struct {
	Device     *device.Device
	Connection device.Connection
	Record     *device.DeviceConnection
	Provider   device.Provider
	Options    firmware.UpgradeOptions
	Journal    Journal
	Config     config.UpgraderConfig
	Logger     logger.Interface
}

// Upgrader flashes one image onto one device. Upgrade returns nil on
// success, firmware.ErrUpgradeNotNeeded when the device already carries
// the image, a typed firmware error for the aborted/recoverable/
// reconnection outcomes, and a plain error for fatal reflash failures.
type Upgrader interface {
	Upgrade(ctx context.Context, image ImageSource) error
}

// Factory builds a protocol variant for one upgrade operation.
type Factory func(deps Deps) Upgrader

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{}
	schemas    = map[string]*firmware.OptionsSchema{}
)

// Register declares a protocol variant for a connector identifier.
func Register(connector string, factory Factory, schema *firmware.OptionsSchema) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[connector] = factory
	schemas[connector] = schema
}

// Resolve returns the factory for a connector, or false when the device
// family is unsupported.
func Resolve(connector string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := factories[connector]
	return f, ok
}

// SchemaFor returns the upgrade-options schema for a connector, or nil.
func SchemaFor(connector string) *firmware.OptionsSchema {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return schemas[connector]
}

// ValidateOptions validates options against the connector's schema.
// Options on an upgrader without a schema are rejected.
func ValidateOptions(connector string, opts firmware.UpgradeOptions) error {
	if len(opts) == 0 {
		return nil
	}
	schema := SchemaFor(connector)
	if schema == nil {
		return &firmware.OptionsError{Reason: "using upgrade options is not allowed with this upgrader"}
	}
	return schema.Validate(opts)
}
