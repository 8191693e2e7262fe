package models

import (
	"time"
)

// CategoryModel represents the database persistence model for firmware
// categories. This is the anti-corruption layer between domain and
// database.
type CategoryModel struct {
	ID             uint   `gorm:"primarykey"`
	SID            string `gorm:"column:sid;uniqueIndex;not null;size:32"`
	Name           string `gorm:"not null;size:100;uniqueIndex:idx_category_org_name"`
	Description    string `gorm:"size:500"`
	OrganizationID *uint  `gorm:"index;uniqueIndex:idx_category_org_name"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName specifies the table name for GORM
func (CategoryModel) TableName() string {
	return "firmware_categories"
}
