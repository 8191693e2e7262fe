package device

import (
	"fmt"
	"time"
)

// DeviceConnection is one set of credentials and candidate addresses for
// reaching a device. A device may have several; the provider walks them
// in order until one works. The working/failure fields are updated by
// whoever last attempted the connection and must be persisted before the
// attempt returns: batch rollups and dashboards read committed state.
type DeviceConnection struct {
	id            uint
	deviceID      uint
	credentials   string
	user          string
	port          int
	addresses     []string
	connector     string
	isWorking     *bool
	failureReason string
	lastAttempt   *time.Time
	createdAt     time.Time
	updatedAt     time.Time
}

// NewDeviceConnection creates a connection record for a device.
func NewDeviceConnection(deviceID uint, credentials, user string, port int, addresses []string, connector string) (*DeviceConnection, error) {
	if deviceID == 0 {
		return nil, fmt.Errorf("device ID is required")
	}
	if credentials == "" {
		return nil, fmt.Errorf("credentials label is required")
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("at least one address is required")
	}
	if connector == "" {
		connector = ConnectorOpenWrt
	}
	if port == 0 {
		port = 22
	}
	now := time.Now().UTC()
	return &DeviceConnection{
		deviceID:    deviceID,
		credentials: credentials,
		user:        user,
		port:        port,
		addresses:   addresses,
		connector:   connector,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructDeviceConnection reconstructs a connection from persistence.
func ReconstructDeviceConnection(id, deviceID uint, credentials, user string, port int, addresses []string, connector string, isWorking *bool, failureReason string, lastAttempt *time.Time, createdAt, updatedAt time.Time) (*DeviceConnection, error) {
	if id == 0 {
		return nil, fmt.Errorf("device connection ID cannot be zero")
	}
	if deviceID == 0 {
		return nil, fmt.Errorf("device ID is required")
	}
	return &DeviceConnection{
		id:            id,
		deviceID:      deviceID,
		credentials:   credentials,
		user:          user,
		port:          port,
		addresses:     addresses,
		connector:     connector,
		isWorking:     isWorking,
		failureReason: failureReason,
		lastAttempt:   lastAttempt,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}, nil
}

// Connector identifiers map a connection to the upgrader variant able to
// drive the device's OS family.
const (
	ConnectorOpenWrt = "openwrt"
)

func (c *DeviceConnection) ID() uint                { return c.id }
func (c *DeviceConnection) DeviceID() uint          { return c.deviceID }
func (c *DeviceConnection) Credentials() string     { return c.credentials }
func (c *DeviceConnection) User() string            { return c.user }
func (c *DeviceConnection) Port() int               { return c.port }
func (c *DeviceConnection) Connector() string       { return c.connector }
func (c *DeviceConnection) IsWorking() *bool        { return c.isWorking }
func (c *DeviceConnection) FailureReason() string   { return c.failureReason }
func (c *DeviceConnection) LastAttempt() *time.Time { return c.lastAttempt }
func (c *DeviceConnection) CreatedAt() time.Time    { return c.createdAt }
func (c *DeviceConnection) UpdatedAt() time.Time    { return c.updatedAt }

// Addresses returns the currently known candidate addresses. The set may
// change between calls, e.g. after a DHCP reassignment.
func (c *DeviceConnection) Addresses() []string {
	out := make([]string, len(c.addresses))
	copy(out, c.addresses)
	return out
}

// SetAddresses replaces the candidate address set.
func (c *DeviceConnection) SetAddresses(addresses []string) error {
	if len(addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}
	c.addresses = addresses
	c.updatedAt = time.Now().UTC()
	return nil
}

// MarkWorking records a successful connection attempt.
func (c *DeviceConnection) MarkWorking(at time.Time) {
	working := true
	c.isWorking = &working
	c.failureReason = ""
	c.lastAttempt = &at
	c.updatedAt = time.Now().UTC()
}

// MarkNotWorking records a failed connection attempt with its reason.
func (c *DeviceConnection) MarkNotWorking(reason string, at time.Time) {
	working := false
	c.isWorking = &working
	c.failureReason = reason
	c.lastAttempt = &at
	c.updatedAt = time.Now().UTC()
}

// SetID assigns the database identity after insertion.
func (c *DeviceConnection) SetID(id uint) error {
	if c.id != 0 {
		return fmt.Errorf("device connection ID already set")
	}
	c.id = id
	return nil
}
