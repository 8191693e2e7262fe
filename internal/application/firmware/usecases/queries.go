package usecases

import (
	"context"

	"firmup/internal/domain/device"
	"firmup/internal/domain/firmware"
	"firmup/internal/shared/errors"
)

// CatalogQueries bundles the read-only lookups the HTTP layer needs.
type CatalogQueries struct {
	categoryRepo   firmware.CategoryRepository
	buildRepo      firmware.BuildRepository
	imageRepo      firmware.ImageRepository
	deviceRepo     device.Repository
	connectionRepo device.ConnectionRepository
	deviceFirmRepo firmware.DeviceFirmwareRepository
}

// NewCatalogQueries creates a new catalog query service
func NewCatalogQueries(
	categoryRepo firmware.CategoryRepository,
	buildRepo firmware.BuildRepository,
	imageRepo firmware.ImageRepository,
	deviceRepo device.Repository,
	connectionRepo device.ConnectionRepository,
	deviceFirmRepo firmware.DeviceFirmwareRepository,
) *CatalogQueries {
	return &CatalogQueries{
		categoryRepo:   categoryRepo,
		buildRepo:      buildRepo,
		imageRepo:      imageRepo,
		deviceRepo:     deviceRepo,
		connectionRepo: connectionRepo,
		deviceFirmRepo: deviceFirmRepo,
	}
}

func (q *CatalogQueries) ListCategories(ctx context.Context) ([]*firmware.Category, error) {
	return q.categoryRepo.List(ctx)
}

func (q *CatalogQueries) ListBuilds(ctx context.Context) ([]*firmware.Build, error) {
	return q.buildRepo.List(ctx)
}

func (q *CatalogQueries) ListImages(ctx context.Context, buildSID string) ([]*firmware.Image, error) {
	build, err := q.buildRepo.GetBySID(ctx, buildSID)
	if err != nil {
		return nil, err
	}
	return q.imageRepo.ListByBuild(ctx, build.ID())
}

func (q *CatalogQueries) ListDevices(ctx context.Context) ([]*device.Device, error) {
	return q.deviceRepo.List(ctx)
}

func (q *CatalogQueries) GetDevice(ctx context.Context, sid string) (*device.Device, error) {
	return q.deviceRepo.GetBySID(ctx, sid)
}

func (q *CatalogQueries) ListConnections(ctx context.Context, deviceSID string) ([]*device.DeviceConnection, error) {
	dev, err := q.deviceRepo.GetBySID(ctx, deviceSID)
	if err != nil {
		return nil, err
	}
	return q.connectionRepo.ListByDeviceID(ctx, dev.ID())
}

// GetDeviceFirmware returns the device's current image binding, or nil
// when none was assigned yet.
func (q *CatalogQueries) GetDeviceFirmware(ctx context.Context, deviceSID string) (*firmware.DeviceFirmware, error) {
	dev, err := q.deviceRepo.GetBySID(ctx, deviceSID)
	if err != nil {
		return nil, err
	}
	binding, err := q.deviceFirmRepo.GetByDeviceID(ctx, dev.ID())
	if err != nil {
		if errors.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return binding, nil
}

// OperationQueries bundles the read-only lookups over upgrade operations
// and batches.
type OperationQueries struct {
	operationRepo firmware.OperationRepository
	batchRepo     firmware.BatchRepository
}

// NewOperationQueries creates a new operation query service
func NewOperationQueries(
	operationRepo firmware.OperationRepository,
	batchRepo firmware.BatchRepository,
) *OperationQueries {
	return &OperationQueries{operationRepo: operationRepo, batchRepo: batchRepo}
}

func (q *OperationQueries) GetOperation(ctx context.Context, sid string) (*firmware.UpgradeOperation, error) {
	return q.operationRepo.GetBySID(ctx, sid)
}

func (q *OperationQueries) ListOperations(ctx context.Context, filter firmware.OperationListFilter) ([]*firmware.UpgradeOperation, int64, error) {
	return q.operationRepo.List(ctx, filter)
}

// BatchReport is a batch with its child rollup figures.
type BatchReport struct {
	Batch       *firmware.BatchUpgradeOperation
	Counts      firmware.StatusCounts
	Progress    string
	SuccessRate float64
	FailedRate  float64
	AbortedRate float64
}

func (q *OperationQueries) GetBatchReport(ctx context.Context, sid string) (*BatchReport, error) {
	batch, err := q.batchRepo.GetBySID(ctx, sid)
	if err != nil {
		return nil, err
	}
	counts, err := q.operationRepo.StatusCountsForBatch(ctx, batch.ID())
	if err != nil {
		return nil, err
	}
	return &BatchReport{
		Batch:       batch,
		Counts:      counts,
		Progress:    batch.ProgressReport(counts),
		SuccessRate: batch.SuccessRate(counts),
		FailedRate:  batch.FailedRate(counts),
		AbortedRate: batch.AbortedRate(counts),
	}, nil
}

func (q *OperationQueries) ListBatches(ctx context.Context) ([]*firmware.BatchUpgradeOperation, error) {
	return q.batchRepo.List(ctx)
}

func (q *OperationQueries) DeleteBatch(ctx context.Context, sid string) error {
	batch, err := q.batchRepo.GetBySID(ctx, sid)
	if err != nil {
		return err
	}
	return q.batchRepo.Delete(ctx, batch.ID())
}
