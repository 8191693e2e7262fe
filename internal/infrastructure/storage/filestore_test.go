package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SaveAndOpenRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	payload := "firmware payload"
	size, checksum, err := store.Save("fwb_test0001", "openwrt-sysupgrade.bin", strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), size)

	sum := sha256.Sum256([]byte(payload))
	assert.Equal(t, hex.EncodeToString(sum[:]), checksum)

	source, err := store.Open("fwb_test0001", "openwrt-sysupgrade.bin", checksum)
	require.NoError(t, err)
	assert.Equal(t, "openwrt-sysupgrade.bin", source.Name)
	assert.Equal(t, size, source.Size)
	assert.Equal(t, checksum, source.Checksum)

	reader, err := source.Open()
	require.NoError(t, err)
	defer reader.Close()
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, payload, string(content))
}

func TestFileStore_OpenMissingFile(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open("fwb_test0001", "missing.bin", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in storage")
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Save("fwb_test0001", "../escape.bin", strings.NewReader("x"))
	require.Error(t, err)

	_, err = store.Open("fwb_test0001", ".hidden", "abc")
	require.Error(t, err)
}

func TestFileStore_RemoveIsIdempotent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Save("fwb_test0001", "image.bin", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Remove("fwb_test0001", "image.bin"))
	// a second remove of the same file is not an error
	require.NoError(t, store.Remove("fwb_test0001", "image.bin"))

	_, err = store.Open("fwb_test0001", "image.bin", "abc")
	require.Error(t, err)
}
