// Package device provides domain models for the managed device inventory
// and the remote connection contract used to reach devices.
package device

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Device is a managed network device (router, AP) belonging to one
// organization. The UUID is the stable identity burned into the device's
// configuration; pre-flight checks compare it before flashing so a stale
// or shared address can never cause the wrong physical unit to be
// reflashed.
type Device struct {
	id             uint
	sid            string
	name           string
	organizationID uint
	model          string
	os             string
	uuid           uuid.UUID
	createdAt      time.Time
	updatedAt      time.Time
}

// NewDevice creates a new device aggregate.
func NewDevice(name string, organizationID uint, model, os string, deviceUUID uuid.UUID, sidGenerator func() (string, error)) (*Device, error) {
	if name == "" {
		return nil, fmt.Errorf("device name is required")
	}
	if organizationID == 0 {
		return nil, fmt.Errorf("organization ID is required")
	}
	if deviceUUID == uuid.Nil {
		deviceUUID = uuid.New()
	}
	sid, err := sidGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to generate device SID: %w", err)
	}
	now := time.Now().UTC()
	return &Device{
		sid:            sid,
		name:           name,
		organizationID: organizationID,
		model:          model,
		os:             os,
		uuid:           deviceUUID,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ReconstructDevice reconstructs a device from persistence.
func ReconstructDevice(id uint, sid, name string, organizationID uint, model, os string, deviceUUID uuid.UUID, createdAt, updatedAt time.Time) (*Device, error) {
	if id == 0 {
		return nil, fmt.Errorf("device ID cannot be zero")
	}
	if sid == "" {
		return nil, fmt.Errorf("device SID is required")
	}
	if name == "" {
		return nil, fmt.Errorf("device name is required")
	}
	return &Device{
		id:             id,
		sid:            sid,
		name:           name,
		organizationID: organizationID,
		model:          model,
		os:             os,
		uuid:           deviceUUID,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}, nil
}

func (d *Device) ID() uint             { return d.id }
func (d *Device) SID() string          { return d.sid }
func (d *Device) Name() string         { return d.name }
func (d *Device) OrganizationID() uint { return d.organizationID }
func (d *Device) Model() string        { return d.model }
func (d *Device) OS() string           { return d.os }
func (d *Device) UUID() uuid.UUID      { return d.uuid }
func (d *Device) CreatedAt() time.Time { return d.createdAt }
func (d *Device) UpdatedAt() time.Time { return d.updatedAt }

// SetID assigns the database identity after insertion.
func (d *Device) SetID(id uint) error {
	if d.id != 0 {
		return fmt.Errorf("device ID already set")
	}
	d.id = id
	return nil
}
