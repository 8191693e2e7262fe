package firmware

import (
	"context"
	"time"
)

// CategoryRepository defines the interface for firmware category persistence.
type CategoryRepository interface {
	Create(ctx context.Context, category *Category) error
	GetByID(ctx context.Context, id uint) (*Category, error)
	GetBySID(ctx context.Context, sid string) (*Category, error)
	List(ctx context.Context) ([]*Category, error)
}

// BuildRepository defines the interface for firmware build persistence.
type BuildRepository interface {
	Create(ctx context.Context, build *Build) error
	GetByID(ctx context.Context, id uint) (*Build, error)
	GetBySID(ctx context.Context, sid string) (*Build, error)
	List(ctx context.Context) ([]*Build, error)

	// ExistsByOSAndOrganization reports whether another build with the
	// same OS identifier exists within the same organization scope.
	ExistsByOSAndOrganization(ctx context.Context, os string, organizationID *uint, excludeID uint) (bool, error)
}

// ImageRepository defines the interface for firmware image persistence.
type ImageRepository interface {
	Create(ctx context.Context, image *Image) error
	GetByID(ctx context.Context, id uint) (*Image, error)
	GetBySID(ctx context.Context, sid string) (*Image, error)
	ListByBuild(ctx context.Context, buildID uint) ([]*Image, error)

	// FirstByBuildAndType returns the most recently created image of the
	// given type within a build, or nil when none exists.
	FirstByBuildAndType(ctx context.Context, buildID uint, imageType string) (*Image, error)

	// FindForDevice returns the most recently created image matching the
	// device's organization scope, OS identifier and image type, or nil.
	FindForDevice(ctx context.Context, organizationID uint, os, imageType string) (*Image, error)
}

// DeviceFirmwareRepository defines the interface for device/image binding
// persistence.
type DeviceFirmwareRepository interface {
	Create(ctx context.Context, df *DeviceFirmware) error
	Update(ctx context.Context, df *DeviceFirmware) error
	GetByDeviceID(ctx context.Context, deviceID uint) (*DeviceFirmware, error)

	// ListUpgradableForCategory returns bindings whose current image
	// belongs to the given category but is not an already-installed image
	// of the given build, newest first.
	ListUpgradableForCategory(ctx context.Context, categoryID, buildID uint) ([]*DeviceFirmware, error)
}

// OperationListFilter defines the filtering options for listing upgrade
// operations.
type OperationListFilter struct {
	Page     int
	PageSize int
	DeviceID uint
	BatchID  uint
	Status   string
}

// OperationRepository defines the interface for upgrade operation
// persistence.
type OperationRepository interface {
	Create(ctx context.Context, op *UpgradeOperation) error
	Update(ctx context.Context, op *UpgradeOperation) error
	GetByID(ctx context.Context, id uint) (*UpgradeOperation, error)
	GetBySID(ctx context.Context, sid string) (*UpgradeOperation, error)
	List(ctx context.Context, filter OperationListFilter) ([]*UpgradeOperation, int64, error)

	// StatusCountsForBatch aggregates child statuses for the batch rollup.
	StatusCountsForBatch(ctx context.Context, batchID uint) (StatusCounts, error)

	// ListStalledInProgress returns in-progress operations not touched
	// since the given time; the sweep re-submits them.
	ListStalledInProgress(ctx context.Context, notUpdatedSince time.Time) ([]*UpgradeOperation, error)
}

// BatchRepository defines the interface for batch upgrade operation
// persistence.
type BatchRepository interface {
	Create(ctx context.Context, batch *BatchUpgradeOperation) error
	Update(ctx context.Context, batch *BatchUpgradeOperation) error
	GetByID(ctx context.Context, id uint) (*BatchUpgradeOperation, error)
	GetBySID(ctx context.Context, sid string) (*BatchUpgradeOperation, error)
	List(ctx context.Context) ([]*BatchUpgradeOperation, error)
	Delete(ctx context.Context, id uint) error
}
