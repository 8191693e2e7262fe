package models

import (
	"time"
)

// DeviceFirmwareModel represents the database persistence model for the
// one-to-one binding between a device and its intended image.
type DeviceFirmwareModel struct {
	ID        uint `gorm:"primarykey"`
	DeviceID  uint `gorm:"uniqueIndex;not null"`
	ImageID   uint `gorm:"not null;index"`
	Installed bool `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (DeviceFirmwareModel) TableName() string {
	return "device_firmwares"
}
