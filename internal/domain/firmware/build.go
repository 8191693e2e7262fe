package firmware

import (
	"fmt"
	"time"
)

// Build is a named, versioned firmware release within a category,
// containing one image per supported board family.
type Build struct {
	id         uint
	sid        string
	categoryID uint
	version    string
	os         string
	changelog  string
	createdAt  time.Time
	updatedAt  time.Time
}

// NewBuild creates a new firmware build aggregate.
func NewBuild(categoryID uint, version, os, changelog string, sidGenerator func() (string, error)) (*Build, error) {
	if categoryID == 0 {
		return nil, fmt.Errorf("category ID is required")
	}
	if version == "" {
		return nil, fmt.Errorf("build version is required")
	}
	sid, err := sidGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to generate build SID: %w", err)
	}
	now := time.Now().UTC()
	return &Build{
		sid:        sid,
		categoryID: categoryID,
		version:    version,
		os:         os,
		changelog:  changelog,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructBuild reconstructs a build from persistence.
func ReconstructBuild(id uint, sid string, categoryID uint, version, os, changelog string, createdAt, updatedAt time.Time) (*Build, error) {
	if id == 0 {
		return nil, fmt.Errorf("build ID cannot be zero")
	}
	if sid == "" {
		return nil, fmt.Errorf("build SID is required")
	}
	if categoryID == 0 {
		return nil, fmt.Errorf("category ID is required")
	}
	if version == "" {
		return nil, fmt.Errorf("build version is required")
	}
	return &Build{
		id:         id,
		sid:        sid,
		categoryID: categoryID,
		version:    version,
		os:         os,
		changelog:  changelog,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}, nil
}

func (b *Build) ID() uint             { return b.id }
func (b *Build) SID() string          { return b.sid }
func (b *Build) CategoryID() uint     { return b.categoryID }
func (b *Build) Version() string      { return b.version }
func (b *Build) OS() string           { return b.os }
func (b *Build) Changelog() string    { return b.changelog }
func (b *Build) CreatedAt() time.Time { return b.createdAt }
func (b *Build) UpdatedAt() time.Time { return b.updatedAt }

// SetID assigns the database identity after insertion.
func (b *Build) SetID(id uint) error {
	if b.id != 0 {
		return fmt.Errorf("build ID already set")
	}
	b.id = id
	return nil
}
