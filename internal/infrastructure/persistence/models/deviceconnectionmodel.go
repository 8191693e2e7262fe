package models

import (
	"time"
)

// DeviceConnectionModel represents the database persistence model for
// device connection records. Addresses is a JSON-encoded string array.
type DeviceConnectionModel struct {
	ID            uint   `gorm:"primarykey"`
	DeviceID      uint   `gorm:"not null;index"`
	Credentials   string `gorm:"not null;size:100"`
	User          string `gorm:"size:64"`
	Port          int    `gorm:"not null;default:22"`
	Addresses     string `gorm:"type:text;not null"`
	Connector     string `gorm:"not null;size:32"`
	IsWorking     *bool
	FailureReason string `gorm:"size:500"`
	LastAttempt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName specifies the table name for GORM
func (DeviceConnectionModel) TableName() string {
	return "device_connections"
}
