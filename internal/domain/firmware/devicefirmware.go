package firmware

import (
	"fmt"
	"time"
)

// DeviceFirmware binds one device to its currently intended image.
// Exactly one exists per device. The installed flag distinguishes
// "intended" from "confirmed flashed": it is reset whenever the bound
// image changes and set again once an upgrade operation confirms (or
// presumes) the flash.
type DeviceFirmware struct {
	id        uint
	deviceID  uint
	imageID   uint
	installed bool
	createdAt time.Time
	updatedAt time.Time
}

// NewDeviceFirmware creates a new device/image binding.
func NewDeviceFirmware(deviceID, imageID uint, installed bool) (*DeviceFirmware, error) {
	if deviceID == 0 {
		return nil, fmt.Errorf("device ID is required")
	}
	if imageID == 0 {
		return nil, fmt.Errorf("image ID is required")
	}
	now := time.Now().UTC()
	return &DeviceFirmware{
		deviceID:  deviceID,
		imageID:   imageID,
		installed: installed,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructDeviceFirmware reconstructs the binding from persistence.
func ReconstructDeviceFirmware(id, deviceID, imageID uint, installed bool, createdAt, updatedAt time.Time) (*DeviceFirmware, error) {
	if id == 0 {
		return nil, fmt.Errorf("device firmware ID cannot be zero")
	}
	if deviceID == 0 {
		return nil, fmt.Errorf("device ID is required")
	}
	if imageID == 0 {
		return nil, fmt.Errorf("image ID is required")
	}
	return &DeviceFirmware{
		id:        id,
		deviceID:  deviceID,
		imageID:   imageID,
		installed: installed,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}, nil
}

func (df *DeviceFirmware) ID() uint             { return df.id }
func (df *DeviceFirmware) DeviceID() uint       { return df.deviceID }
func (df *DeviceFirmware) ImageID() uint        { return df.imageID }
func (df *DeviceFirmware) Installed() bool      { return df.installed }
func (df *DeviceFirmware) CreatedAt() time.Time { return df.createdAt }
func (df *DeviceFirmware) UpdatedAt() time.Time { return df.updatedAt }

// SetImage re-points the binding to a new image. Returns true when the
// image actually changed; a change resets the installed flag, which is
// what makes the caller spawn a new upgrade operation.
func (df *DeviceFirmware) SetImage(imageID uint) (bool, error) {
	if imageID == 0 {
		return false, fmt.Errorf("image ID is required")
	}
	if df.imageID == imageID {
		return false, nil
	}
	df.imageID = imageID
	df.installed = false
	df.updatedAt = time.Now().UTC()
	return true, nil
}

// MarkInstalled records that the image was confirmed (or presumed)
// flashed on the device.
func (df *DeviceFirmware) MarkInstalled() {
	df.installed = true
	df.updatedAt = time.Now().UTC()
}

// SetID assigns the database identity after insertion.
func (df *DeviceFirmware) SetID(id uint) error {
	if df.id != 0 {
		return fmt.Errorf("device firmware ID already set")
	}
	df.id = id
	return nil
}
