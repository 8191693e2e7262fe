package firmware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceFirmware_SetImageResetsInstalled(t *testing.T) {
	binding, err := NewDeviceFirmware(1, 10, true)
	require.NoError(t, err)
	require.True(t, binding.Installed())

	changed, err := binding.SetImage(11)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, uint(11), binding.ImageID())
	assert.False(t, binding.Installed())
}

func TestDeviceFirmware_SetImageSameIsNoOp(t *testing.T) {
	binding, err := NewDeviceFirmware(1, 10, true)
	require.NoError(t, err)

	changed, err := binding.SetImage(10)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, binding.Installed())
}

func TestDeviceFirmware_MarkInstalled(t *testing.T) {
	binding, err := NewDeviceFirmware(1, 10, false)
	require.NoError(t, err)

	binding.MarkInstalled()
	assert.True(t, binding.Installed())
}
