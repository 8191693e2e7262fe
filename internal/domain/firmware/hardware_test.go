package firmware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardsForImageType(t *testing.T) {
	boards := BoardsForImageType("ar71xx-generic-tl-wdr4300-v1")
	require.NotEmpty(t, boards)
	assert.Contains(t, boards, "TP-Link TL-WDR4300 v1")

	assert.Nil(t, BoardsForImageType("no-such-type"))
}

func TestImageTypeForBoard(t *testing.T) {
	assert.Equal(t, "ar71xx-generic-ubnt-airrouter", ImageTypeForBoard("Ubiquiti AirRouter"))
	assert.Equal(t, "x86-64-generic-squashfs-combined", ImageTypeForBoard("VMware, Inc. VMware Virtual Platform"))
	assert.Empty(t, ImageTypeForBoard("Unknown Board 3000"))
}

func TestRegisterImageType(t *testing.T) {
	RegisterImageType("test-board-family", []string{"Test Board Mk1"})

	assert.Equal(t, []string{"Test Board Mk1"}, BoardsForImageType("test-board-family"))
	assert.Equal(t, "test-board-family", ImageTypeForBoard("Test Board Mk1"))
}

func TestDetectImageType(t *testing.T) {
	assert.Equal(t,
		"ar71xx-generic-tl-wdr4300-v1",
		DetectImageType("openwrt-ar71xx-generic-tl-wdr4300-v1"))
	assert.Equal(t, "plainname", DetectImageType("plainname"))
}

func TestImage_SupportsBoard(t *testing.T) {
	image, err := NewImage(1, "fw.bin", "abc123", 1024, "ar71xx-generic-tl-wdr4300-v1", testSID("img_test"))
	require.NoError(t, err)

	assert.True(t, image.SupportsBoard("TP-Link TL-WDR4300 v1"))
	assert.False(t, image.SupportsBoard("Ubiquiti AirRouter"))
}

func TestNewImage_RejectsUnknownType(t *testing.T) {
	_, err := NewImage(1, "fw.bin", "abc123", 1024, "martian-board", testSID("img_test"))
	assert.Error(t, err)
}

func TestNewImage_DerivesTypeFromFileName(t *testing.T) {
	image, err := NewImage(1, "openwrt-ar71xx-generic-ubnt-airrouter", "abc123", 1024, "", testSID("img_test"))
	require.NoError(t, err)
	assert.Equal(t, "ar71xx-generic-ubnt-airrouter", image.Type())
}
