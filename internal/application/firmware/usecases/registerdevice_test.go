package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmup/internal/domain/firmware"
	apperrors "firmup/internal/shared/errors"
	"firmup/internal/shared/logger"
)

type registerHarness struct {
	devices  *memDeviceRepo
	images   *memImageRepo
	bindings *memDeviceFirmwareRepo
	uc       *RegisterDeviceUseCase
}

func newRegisterHarness(t *testing.T) *registerHarness {
	t.Helper()
	h := &registerHarness{
		devices:  newMemDeviceRepo(),
		images:   newMemImageRepo(),
		bindings: newMemDeviceFirmwareRepo(),
	}
	log := logger.NewLogger()
	autoAssign := NewCreateDeviceFirmwareUseCase(h.devices, h.images, h.bindings, log)
	h.uc = NewRegisterDeviceUseCase(h.devices, autoAssign, log)
	return h
}

func TestRegisterDevice_AutoAssignsMatchingImage(t *testing.T) {
	h := newRegisterHarness(t)
	now := time.Now().UTC()
	image, err := firmware.ReconstructImage(1, "fwi_test0001", 1,
		"openwrt-ar71xx-generic-tl-wdr4300-v1.bin", "feedc0de", 4*1024*1024,
		wdr4300Type, now, now)
	require.NoError(t, err)
	h.images.forDevice = image

	result, err := h.uc.Execute(context.Background(), RegisterDeviceCommand{
		Name:           "lobby-ap",
		OrganizationID: 1,
		Model:          "TP-Link TL-WDR4300 v1",
		OS:             "openwrt",
	})

	require.NoError(t, err)
	assert.True(t, result.AutoAssigned)
	assert.NotEmpty(t, result.Device.SID())

	binding, err := h.bindings.GetByDeviceID(context.Background(), result.Device.ID())
	require.NoError(t, err)
	assert.Equal(t, image.ID(), binding.ImageID())
	// the device is presumed to already run what it shipped with
	assert.True(t, binding.Installed())
}

func TestRegisterDevice_UnknownModelSkipsAssignment(t *testing.T) {
	h := newRegisterHarness(t)

	result, err := h.uc.Execute(context.Background(), RegisterDeviceCommand{
		Name:           "mystery-box",
		OrganizationID: 1,
		Model:          "Unknown Vendor X1",
		OS:             "openwrt",
	})

	require.NoError(t, err)
	assert.False(t, result.AutoAssigned)
	assert.Empty(t, h.bindings.bindings)
}

func TestRegisterDevice_NoCatalogImageSkipsAssignment(t *testing.T) {
	h := newRegisterHarness(t)

	result, err := h.uc.Execute(context.Background(), RegisterDeviceCommand{
		Name:           "lobby-ap",
		OrganizationID: 1,
		Model:          "TP-Link TL-WDR4300 v1",
		OS:             "openwrt",
	})

	require.NoError(t, err)
	assert.False(t, result.AutoAssigned)
	assert.Empty(t, h.bindings.bindings)
}

func TestRegisterDevice_RejectsMalformedUUID(t *testing.T) {
	h := newRegisterHarness(t)

	_, err := h.uc.Execute(context.Background(), RegisterDeviceCommand{
		Name:           "lobby-ap",
		OrganizationID: 1,
		Model:          "TP-Link TL-WDR4300 v1",
		OS:             "openwrt",
		UUID:           "not-a-uuid",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	assert.Empty(t, h.devices.devices)
}

func TestSweepStalledOperations_ResubmitsStalled(t *testing.T) {
	operations := newMemOperationRepo()
	now := time.Now().UTC()
	stale, err := firmware.ReconstructUpgradeOperation(1, "uop_stale001", 1, uintPtr(1),
		firmware.OperationInProgress, "", nil, nil, now, now)
	require.NoError(t, err)
	operations.stalled = []*firmware.UpgradeOperation{stale}
	submitter := &fakeSubmitter{}

	uc := NewSweepStalledOperationsUseCase(operations, submitter, time.Hour, logger.NewLogger())
	count, err := uc.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"uop_stale001"}, submitter.submitted)
}

func TestSweepStalledOperations_SubmitFailureIsSkipped(t *testing.T) {
	operations := newMemOperationRepo()
	now := time.Now().UTC()
	stale, err := firmware.ReconstructUpgradeOperation(1, "uop_stale001", 1, uintPtr(1),
		firmware.OperationInProgress, "", nil, nil, now, now)
	require.NoError(t, err)
	operations.stalled = []*firmware.UpgradeOperation{stale}
	submitter := &fakeSubmitter{err: assert.AnError}

	uc := NewSweepStalledOperationsUseCase(operations, submitter, 0, logger.NewLogger())
	count, err := uc.Execute(context.Background())

	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, submitter.submitted)
}
