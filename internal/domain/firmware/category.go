// Package firmware provides domain models and business logic for firmware
// builds, images and their rollout to devices.
package firmware

import (
	"fmt"
	"time"
)

// Category groups builds by firmware purpose (e.g. BGP routers, wifi APs,
// DSL gateways). A category may be scoped to one organization or shared.
type Category struct {
	id             uint
	sid            string
	name           string
	description    string
	organizationID *uint
	createdAt      time.Time
	updatedAt      time.Time
}

// NewCategory creates a new firmware category aggregate.
func NewCategory(name, description string, organizationID *uint, sidGenerator func() (string, error)) (*Category, error) {
	if name == "" {
		return nil, fmt.Errorf("category name is required")
	}
	sid, err := sidGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to generate category SID: %w", err)
	}
	now := time.Now().UTC()
	return &Category{
		sid:            sid,
		name:           name,
		description:    description,
		organizationID: organizationID,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ReconstructCategory reconstructs a category from persistence.
func ReconstructCategory(id uint, sid, name, description string, organizationID *uint, createdAt, updatedAt time.Time) (*Category, error) {
	if id == 0 {
		return nil, fmt.Errorf("category ID cannot be zero")
	}
	if sid == "" {
		return nil, fmt.Errorf("category SID is required")
	}
	if name == "" {
		return nil, fmt.Errorf("category name is required")
	}
	return &Category{
		id:             id,
		sid:            sid,
		name:           name,
		description:    description,
		organizationID: organizationID,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}, nil
}

func (c *Category) ID() uint              { return c.id }
func (c *Category) SID() string           { return c.sid }
func (c *Category) Name() string          { return c.name }
func (c *Category) Description() string   { return c.description }
func (c *Category) OrganizationID() *uint { return c.organizationID }
func (c *Category) CreatedAt() time.Time  { return c.createdAt }
func (c *Category) UpdatedAt() time.Time  { return c.updatedAt }

// SetID assigns the database identity after insertion.
func (c *Category) SetID(id uint) error {
	if c.id != 0 {
		return fmt.Errorf("category ID already set")
	}
	c.id = id
	return nil
}
