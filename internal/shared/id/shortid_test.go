package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_LengthAndAlphabet(t *testing.T) {
	generated, err := Generate(DefaultLength)
	require.NoError(t, err)
	assert.Len(t, generated, DefaultLength)
	for _, r := range generated {
		assert.Contains(t, alphabet, string(r))
	}
}

func TestGenerate_NonPositiveLengthFallsBack(t *testing.T) {
	generated, err := Generate(0)
	require.NoError(t, err)
	assert.Len(t, generated, DefaultLength)
}

func TestGenerateWithPrefix(t *testing.T) {
	generated, err := GenerateWithPrefix(PrefixDevice, DefaultLength)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(generated, "dev_"))
	assert.Len(t, generated, len(PrefixDevice)+1+DefaultLength)
}

func TestValidatePrefix(t *testing.T) {
	require.NoError(t, ValidatePrefix("dev_abc123", PrefixDevice))
	assert.Error(t, ValidatePrefix("fwi_abc123", PrefixDevice))
	assert.Error(t, ValidatePrefix("dev_", PrefixDevice))
	assert.Error(t, ValidatePrefix("devabc123", PrefixDevice))
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		generated := MustGenerate(DefaultLength)
		require.False(t, seen[generated])
		seen[generated] = true
	}
}
