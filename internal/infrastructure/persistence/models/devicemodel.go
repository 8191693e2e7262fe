package models

import (
	"time"
)

// DeviceModel represents the database persistence model for managed
// devices.
type DeviceModel struct {
	ID             uint   `gorm:"primarykey"`
	SID            string `gorm:"column:sid;uniqueIndex;not null;size:32"`
	Name           string `gorm:"not null;size:100"`
	OrganizationID uint   `gorm:"not null;index"`
	Model          string `gorm:"size:128;index"`
	OS             string `gorm:"size:128"`
	UUID           string `gorm:"uniqueIndex;not null;size:36"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName specifies the table name for GORM
func (DeviceModel) TableName() string {
	return "devices"
}
