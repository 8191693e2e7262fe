package models

import (
	"time"
)

// UpgradeOperationModel represents the database persistence model for
// upgrade operations. Options is a JSON-encoded flag map; Log holds the
// append-only operator-facing trail.
type UpgradeOperationModel struct {
	ID        uint   `gorm:"primarykey"`
	SID       string `gorm:"column:sid;uniqueIndex;not null;size:32"`
	DeviceID  uint   `gorm:"not null;index:idx_operation_device_status"`
	ImageID   *uint  `gorm:"index"`
	Status    string `gorm:"not null;size:16;index:idx_operation_device_status"`
	Log       string `gorm:"type:text"`
	Options   string `gorm:"type:text"`
	BatchID   *uint  `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index"`
}

// TableName specifies the table name for GORM
func (UpgradeOperationModel) TableName() string {
	return "upgrade_operations"
}
