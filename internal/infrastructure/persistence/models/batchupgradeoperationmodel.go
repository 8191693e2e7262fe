package models

import (
	"time"
)

// BatchUpgradeOperationModel represents the database persistence model
// for fleet-wide batch upgrades.
type BatchUpgradeOperationModel struct {
	ID        uint   `gorm:"primarykey"`
	SID       string `gorm:"column:sid;uniqueIndex;not null;size:32"`
	BuildID   uint   `gorm:"not null;index"`
	Status    string `gorm:"not null;size:16;index"`
	Options   string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (BatchUpgradeOperationModel) TableName() string {
	return "batch_upgrade_operations"
}
