package models

import (
	"time"
)

// BuildModel represents the database persistence model for firmware
// builds. Version is unique within a category.
type BuildModel struct {
	ID         uint   `gorm:"primarykey"`
	SID        string `gorm:"column:sid;uniqueIndex;not null;size:32"`
	CategoryID uint   `gorm:"not null;uniqueIndex:idx_build_category_version"`
	Version    string `gorm:"not null;size:64;uniqueIndex:idx_build_category_version"`
	OS         string `gorm:"size:128;index"`
	Changelog  string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName specifies the table name for GORM
func (BuildModel) TableName() string {
	return "firmware_builds"
}
