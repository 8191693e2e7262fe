package models

import (
	"time"
)

// ImageModel represents the database persistence model for firmware
// images. A build carries at most one image per board family type.
type ImageModel struct {
	ID        uint   `gorm:"primarykey"`
	SID       string `gorm:"column:sid;uniqueIndex;not null;size:32"`
	BuildID   uint   `gorm:"not null;uniqueIndex:idx_image_build_type"`
	FileName  string `gorm:"not null;size:255"`
	Checksum  string `gorm:"not null;size:64"`
	Size      int64  `gorm:"not null"`
	Type      string `gorm:"not null;size:128;uniqueIndex:idx_image_build_type"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (ImageModel) TableName() string {
	return "firmware_images"
}
