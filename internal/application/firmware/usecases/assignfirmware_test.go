package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmup/internal/domain/device"
	"firmup/internal/domain/firmware"
	apperrors "firmup/internal/shared/errors"
	"firmup/internal/shared/logger"
)

type assignHarness struct {
	devices    *memDeviceRepo
	conns      *memConnectionRepo
	images     *memImageRepo
	bindings   *memDeviceFirmwareRepo
	operations *memOperationRepo
	submitter  *fakeSubmitter
	dev        *device.Device
	image      *firmware.Image
	uc         *AssignFirmwareUseCase
}

func newAssignHarness(t *testing.T, model string) *assignHarness {
	t.Helper()
	now := time.Now().UTC()

	dev, err := device.ReconstructDevice(1, "dev_test0001", "lobby-ap", 1,
		model, "openwrt", uuid.New(), now, now)
	require.NoError(t, err)
	image, err := firmware.ReconstructImage(1, "fwi_test0001", 1,
		"openwrt-ar71xx-generic-tl-wdr4300-v1.bin", "feedc0de", 4*1024*1024,
		wdr4300Type, now, now)
	require.NoError(t, err)

	h := &assignHarness{
		devices:    newMemDeviceRepo(),
		conns:      newMemConnectionRepo(),
		images:     newMemImageRepo(),
		bindings:   newMemDeviceFirmwareRepo(),
		operations: newMemOperationRepo(),
		submitter:  &fakeSubmitter{},
		dev:        dev,
		image:      image,
	}
	h.devices.devices[1] = dev
	h.images.images[1] = image

	h.uc = NewAssignFirmwareUseCase(
		h.devices, h.conns, h.images, h.bindings, h.operations,
		h.submitter, logger.NewLogger())
	return h
}

func TestAssignFirmware_CreatesBindingAndSpawnsOperation(t *testing.T) {
	h := newAssignHarness(t, "TP-Link TL-WDR4300 v1")

	result, err := h.uc.Execute(context.Background(), AssignFirmwareCommand{
		DeviceSID: "dev_test0001",
		ImageSID:  "fwi_test0001",
	})

	require.NoError(t, err)
	require.NotNil(t, result.Operation)
	assert.Equal(t, h.dev.ID(), result.Operation.DeviceID())
	require.NotNil(t, result.Operation.ImageID())
	assert.Equal(t, h.image.ID(), *result.Operation.ImageID())
	assert.Nil(t, result.Operation.BatchID())

	assert.Equal(t, h.image.ID(), result.DeviceFirmware.ImageID())
	assert.False(t, result.DeviceFirmware.Installed())
	assert.Equal(t, []string{result.Operation.SID()}, h.submitter.submitted)
}

func TestAssignFirmware_SameInstalledImageIsNoOp(t *testing.T) {
	h := newAssignHarness(t, "TP-Link TL-WDR4300 v1")
	binding, err := firmware.NewDeviceFirmware(1, 1, true)
	require.NoError(t, err)
	require.NoError(t, h.bindings.Create(context.Background(), binding))

	result, err := h.uc.Execute(context.Background(), AssignFirmwareCommand{
		DeviceSID: "dev_test0001",
		ImageSID:  "fwi_test0001",
	})

	require.NoError(t, err)
	assert.Nil(t, result.Operation)
	assert.True(t, result.DeviceFirmware.Installed())
	assert.Empty(t, h.submitter.submitted)
}

func TestAssignFirmware_SameImageNotYetInstalledRetriesFlash(t *testing.T) {
	h := newAssignHarness(t, "TP-Link TL-WDR4300 v1")
	binding, err := firmware.NewDeviceFirmware(1, 1, false)
	require.NoError(t, err)
	require.NoError(t, h.bindings.Create(context.Background(), binding))

	result, err := h.uc.Execute(context.Background(), AssignFirmwareCommand{
		DeviceSID: "dev_test0001",
		ImageSID:  "fwi_test0001",
	})

	require.NoError(t, err)
	require.NotNil(t, result.Operation)
	assert.Len(t, h.submitter.submitted, 1)
}

func TestAssignFirmware_RejectsIncompatibleBoard(t *testing.T) {
	h := newAssignHarness(t, "Ubiquiti AirRouter")

	_, err := h.uc.Execute(context.Background(), AssignFirmwareCommand{
		DeviceSID: "dev_test0001",
		ImageSID:  "fwi_test0001",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	assert.Contains(t, err.Error(), "does not support device model")
	assert.Empty(t, h.bindings.bindings)
}

func TestAssignFirmware_RejectsConflictingOptions(t *testing.T) {
	h := newAssignHarness(t, "TP-Link TL-WDR4300 v1")

	_, err := h.uc.Execute(context.Background(), AssignFirmwareCommand{
		DeviceSID: "dev_test0001",
		ImageSID:  "fwi_test0001",
		Options:   firmware.UpgradeOptions{"n": true, "o": true},
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	assert.Empty(t, h.bindings.bindings)
	assert.Empty(t, h.submitter.submitted)
}
