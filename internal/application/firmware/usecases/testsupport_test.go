package usecases

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"firmup/internal/domain/device"
	"firmup/internal/domain/firmware"
	"firmup/internal/infrastructure/upgraders"
	apperrors "firmup/internal/shared/errors"
)

// In-memory repositories backing the use case tests. Simple lookups are
// real; the reporting queries the database answers with joins are
// scripted per test.

type memOperationRepo struct {
	mu      sync.Mutex
	nextID  uint
	ops     map[uint]*firmware.UpgradeOperation
	updates int
	counts  firmware.StatusCounts
	stalled []*firmware.UpgradeOperation
}

func newMemOperationRepo() *memOperationRepo {
	return &memOperationRepo{ops: map[uint]*firmware.UpgradeOperation{}}
}

func (r *memOperationRepo) Create(ctx context.Context, op *firmware.UpgradeOperation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	if err := op.SetID(r.nextID); err != nil {
		return err
	}
	r.ops[op.ID()] = op
	return nil
}

func (r *memOperationRepo) Update(ctx context.Context, op *firmware.UpgradeOperation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	r.ops[op.ID()] = op
	return nil
}

func (r *memOperationRepo) GetByID(ctx context.Context, id uint) (*firmware.UpgradeOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if op, ok := r.ops[id]; ok {
		return op, nil
	}
	return nil, apperrors.NewNotFoundError("operation not found")
}

func (r *memOperationRepo) GetBySID(ctx context.Context, sid string) (*firmware.UpgradeOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range r.ops {
		if op.SID() == sid {
			return op, nil
		}
	}
	return nil, apperrors.NewNotFoundError("operation not found")
}

func (r *memOperationRepo) List(ctx context.Context, filter firmware.OperationListFilter) ([]*firmware.UpgradeOperation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*firmware.UpgradeOperation, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op)
	}
	return out, int64(len(out)), nil
}

func (r *memOperationRepo) StatusCountsForBatch(ctx context.Context, batchID uint) (firmware.StatusCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts, nil
}

func (r *memOperationRepo) ListStalledInProgress(ctx context.Context, notUpdatedSince time.Time) ([]*firmware.UpgradeOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stalled, nil
}

type memBatchRepo struct {
	mu      sync.Mutex
	nextID  uint
	batches map[uint]*firmware.BatchUpgradeOperation
	updates int
}

func newMemBatchRepo() *memBatchRepo {
	return &memBatchRepo{batches: map[uint]*firmware.BatchUpgradeOperation{}}
}

func (r *memBatchRepo) Create(ctx context.Context, batch *firmware.BatchUpgradeOperation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	if err := batch.SetID(r.nextID); err != nil {
		return err
	}
	r.batches[batch.ID()] = batch
	return nil
}

func (r *memBatchRepo) Update(ctx context.Context, batch *firmware.BatchUpgradeOperation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	r.batches[batch.ID()] = batch
	return nil
}

func (r *memBatchRepo) GetByID(ctx context.Context, id uint) (*firmware.BatchUpgradeOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if batch, ok := r.batches[id]; ok {
		return batch, nil
	}
	return nil, apperrors.NewNotFoundError("batch not found")
}

func (r *memBatchRepo) GetBySID(ctx context.Context, sid string) (*firmware.BatchUpgradeOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, batch := range r.batches {
		if batch.SID() == sid {
			return batch, nil
		}
	}
	return nil, apperrors.NewNotFoundError("batch not found")
}

func (r *memBatchRepo) List(ctx context.Context) ([]*firmware.BatchUpgradeOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*firmware.BatchUpgradeOperation, 0, len(r.batches))
	for _, batch := range r.batches {
		out = append(out, batch)
	}
	return out, nil
}

func (r *memBatchRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.batches, id)
	return nil
}

type memDeviceRepo struct {
	mu           sync.Mutex
	nextID       uint
	devices      map[uint]*device.Device
	firmwareless []*device.Device
}

func newMemDeviceRepo() *memDeviceRepo {
	return &memDeviceRepo{devices: map[uint]*device.Device{}}
}

func (r *memDeviceRepo) Create(ctx context.Context, dev *device.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	if err := dev.SetID(r.nextID); err != nil {
		return err
	}
	r.devices[dev.ID()] = dev
	return nil
}

func (r *memDeviceRepo) GetByID(ctx context.Context, id uint) (*device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dev, ok := r.devices[id]; ok {
		return dev, nil
	}
	return nil, apperrors.NewNotFoundError("device not found")
}

func (r *memDeviceRepo) GetBySID(ctx context.Context, sid string) (*device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, dev := range r.devices {
		if dev.SID() == sid {
			return dev, nil
		}
	}
	return nil, apperrors.NewNotFoundError("device not found")
}

func (r *memDeviceRepo) List(ctx context.Context) ([]*device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*device.Device, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, dev)
	}
	return out, nil
}

func (r *memDeviceRepo) ListFirmwareless(ctx context.Context, models []string, organizationID *uint) ([]*device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firmwareless, nil
}

type memConnectionRepo struct {
	mu      sync.Mutex
	nextID  uint
	records map[uint][]*device.DeviceConnection
	updates int
}

func newMemConnectionRepo() *memConnectionRepo {
	return &memConnectionRepo{records: map[uint][]*device.DeviceConnection{}}
}

func (r *memConnectionRepo) Create(ctx context.Context, conn *device.DeviceConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	if err := conn.SetID(r.nextID); err != nil {
		return err
	}
	r.records[conn.DeviceID()] = append(r.records[conn.DeviceID()], conn)
	return nil
}

func (r *memConnectionRepo) Update(ctx context.Context, conn *device.DeviceConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	return nil
}

func (r *memConnectionRepo) ListByDeviceID(ctx context.Context, deviceID uint) ([]*device.DeviceConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[deviceID], nil
}

type memImageRepo struct {
	mu             sync.Mutex
	nextID         uint
	images         map[uint]*firmware.Image
	firstByType    map[string]*firmware.Image
	forDevice      *firmware.Image
	createErr      error
	listByBuildOut []*firmware.Image
}

func newMemImageRepo() *memImageRepo {
	return &memImageRepo{images: map[uint]*firmware.Image{}, firstByType: map[string]*firmware.Image{}}
}

func (r *memImageRepo) Create(ctx context.Context, image *firmware.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	if err := image.SetID(r.nextID); err != nil {
		return err
	}
	r.images[image.ID()] = image
	return nil
}

func (r *memImageRepo) GetByID(ctx context.Context, id uint) (*firmware.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if image, ok := r.images[id]; ok {
		return image, nil
	}
	return nil, apperrors.NewNotFoundError("image not found")
}

func (r *memImageRepo) GetBySID(ctx context.Context, sid string) (*firmware.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, image := range r.images {
		if image.SID() == sid {
			return image, nil
		}
	}
	return nil, apperrors.NewNotFoundError("image not found")
}

func (r *memImageRepo) ListByBuild(ctx context.Context, buildID uint) ([]*firmware.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listByBuildOut != nil {
		return r.listByBuildOut, nil
	}
	out := []*firmware.Image{}
	for _, image := range r.images {
		if image.BuildID() == buildID {
			out = append(out, image)
		}
	}
	return out, nil
}

func (r *memImageRepo) FirstByBuildAndType(ctx context.Context, buildID uint, imageType string) (*firmware.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firstByType[imageType], nil
}

func (r *memImageRepo) FindForDevice(ctx context.Context, organizationID uint, os, imageType string) (*firmware.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forDevice, nil
}

type memBuildRepo struct {
	mu       sync.Mutex
	nextID   uint
	builds   map[uint]*firmware.Build
	osExists bool
}

func newMemBuildRepo() *memBuildRepo {
	return &memBuildRepo{builds: map[uint]*firmware.Build{}}
}

func (r *memBuildRepo) Create(ctx context.Context, build *firmware.Build) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	if err := build.SetID(r.nextID); err != nil {
		return err
	}
	r.builds[build.ID()] = build
	return nil
}

func (r *memBuildRepo) GetByID(ctx context.Context, id uint) (*firmware.Build, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if build, ok := r.builds[id]; ok {
		return build, nil
	}
	return nil, apperrors.NewNotFoundError("build not found")
}

func (r *memBuildRepo) GetBySID(ctx context.Context, sid string) (*firmware.Build, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, build := range r.builds {
		if build.SID() == sid {
			return build, nil
		}
	}
	return nil, apperrors.NewNotFoundError("build not found")
}

func (r *memBuildRepo) List(ctx context.Context) ([]*firmware.Build, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*firmware.Build, 0, len(r.builds))
	for _, build := range r.builds {
		out = append(out, build)
	}
	return out, nil
}

func (r *memBuildRepo) ExistsByOSAndOrganization(ctx context.Context, os string, organizationID *uint, excludeID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.osExists, nil
}

type memCategoryRepo struct {
	mu         sync.Mutex
	nextID     uint
	categories map[uint]*firmware.Category
}

func newMemCategoryRepo() *memCategoryRepo {
	return &memCategoryRepo{categories: map[uint]*firmware.Category{}}
}

func (r *memCategoryRepo) Create(ctx context.Context, category *firmware.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	if err := category.SetID(r.nextID); err != nil {
		return err
	}
	r.categories[category.ID()] = category
	return nil
}

func (r *memCategoryRepo) GetByID(ctx context.Context, id uint) (*firmware.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if category, ok := r.categories[id]; ok {
		return category, nil
	}
	return nil, apperrors.NewNotFoundError("category not found")
}

func (r *memCategoryRepo) GetBySID(ctx context.Context, sid string) (*firmware.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, category := range r.categories {
		if category.SID() == sid {
			return category, nil
		}
	}
	return nil, apperrors.NewNotFoundError("category not found")
}

func (r *memCategoryRepo) List(ctx context.Context) ([]*firmware.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*firmware.Category, 0, len(r.categories))
	for _, category := range r.categories {
		out = append(out, category)
	}
	return out, nil
}

type memDeviceFirmwareRepo struct {
	mu          sync.Mutex
	nextID      uint
	bindings    map[uint]*firmware.DeviceFirmware
	upgradable  []*firmware.DeviceFirmware
	updateCount int
}

func newMemDeviceFirmwareRepo() *memDeviceFirmwareRepo {
	return &memDeviceFirmwareRepo{bindings: map[uint]*firmware.DeviceFirmware{}}
}

func (r *memDeviceFirmwareRepo) Create(ctx context.Context, df *firmware.DeviceFirmware) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	if err := df.SetID(r.nextID); err != nil {
		return err
	}
	r.bindings[df.DeviceID()] = df
	return nil
}

func (r *memDeviceFirmwareRepo) Update(ctx context.Context, df *firmware.DeviceFirmware) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCount++
	r.bindings[df.DeviceID()] = df
	return nil
}

func (r *memDeviceFirmwareRepo) GetByDeviceID(ctx context.Context, deviceID uint) (*firmware.DeviceFirmware, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if df, ok := r.bindings[deviceID]; ok {
		return df, nil
	}
	return nil, apperrors.NewNotFoundError("device firmware not found")
}

func (r *memDeviceFirmwareRepo) ListUpgradableForCategory(ctx context.Context, categoryID, buildID uint) ([]*firmware.DeviceFirmware, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upgradable, nil
}

// fakeTxRunner runs the callback directly; the in-memory repositories
// have no transactions to wrap.
type fakeTxRunner struct{}

func (fakeTxRunner) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeLocker scripts the lock outcome: denied=false always grants,
// denied=true refuses and names holder as the current owner.
type fakeLocker struct {
	denied   bool
	holder   string
	released int
}

func (l *fakeLocker) TryLock(ctx context.Context, deviceID uint, operationSID string) (bool, string, func(), error) {
	if l.denied {
		return false, l.holder, nil, nil
	}
	return true, operationSID, func() { l.released++ }, nil
}

type fakeImageStore struct {
	err error
}

func (s *fakeImageStore) Open(buildSID, fileName, checksum string) (upgraders.ImageSource, error) {
	if s.err != nil {
		return upgraders.ImageSource{}, s.err
	}
	return upgraders.ImageSource{
		Name:     fileName,
		Size:     1024,
		Checksum: checksum,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("payload")), nil
		},
	}, nil
}

type fakeSubmitter struct {
	mu        sync.Mutex
	submitted []string
	err       error
}

func (s *fakeSubmitter) Submit(operationSID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.submitted = append(s.submitted, operationSID)
	return nil
}

// stubConnection satisfies device.Connection for paths that never touch
// the transport.
type stubConnection struct{}

func (stubConnection) Connect(ctx context.Context) error { return nil }
func (stubConnection) Exec(ctx context.Context, command string, opts ...device.ExecOption) (string, int, error) {
	return "", 0, nil
}
func (stubConnection) Upload(ctx context.Context, content io.Reader, remotePath string) error {
	return nil
}
func (stubConnection) Addresses() []string { return []string{"192.0.2.1"} }
func (stubConnection) Close() error        { return nil }

type stubProvider struct {
	conn   device.Connection
	record *device.DeviceConnection
	err    error
	calls  int
}

func (p *stubProvider) GetWorkingConnection(ctx context.Context, dev *device.Device) (device.Connection, *device.DeviceConnection, error) {
	p.calls++
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.conn, p.record, nil
}

// stubUpgrader returns a scripted outcome; registered under a unique
// connector name per test.
type stubUpgrader struct {
	result error
	calls  *int
}

func (u stubUpgrader) Upgrade(ctx context.Context, image upgraders.ImageSource) error {
	if u.calls != nil {
		*u.calls++
	}
	return u.result
}

// gateUpgrader blocks mid-flash until the test opens the gate, so the
// caller provably holds the device lock while a second execution runs.
type gateUpgrader struct {
	started chan struct{}
	gate    chan struct{}
}

func (u gateUpgrader) Upgrade(ctx context.Context, image upgraders.ImageSource) error {
	u.started <- struct{}{}
	<-u.gate
	return nil
}
