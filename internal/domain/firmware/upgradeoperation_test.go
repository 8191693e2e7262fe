package firmware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSID(sid string) func() (string, error) {
	return func() (string, error) { return sid, nil }
}

func newTestOperation(t *testing.T) *UpgradeOperation {
	t.Helper()
	op, err := NewUpgradeOperation(1, 2, UpgradeOptions{"n": true}, nil, testSID("op_test"))
	require.NoError(t, err)
	require.NotNil(t, op)
	return op
}

func TestNewUpgradeOperation_StartsInProgress(t *testing.T) {
	op := newTestOperation(t)

	assert.Equal(t, OperationInProgress, op.Status())
	assert.False(t, op.Status().IsTerminal())
	assert.Equal(t, uint(1), op.DeviceID())
	require.NotNil(t, op.ImageID())
	assert.Equal(t, uint(2), *op.ImageID())
	assert.Empty(t, op.Log())
}

func TestNewUpgradeOperation_RequiresDeviceAndImage(t *testing.T) {
	_, err := NewUpgradeOperation(0, 2, nil, nil, testSID("op_test"))
	assert.Error(t, err)

	_, err = NewUpgradeOperation(1, 0, nil, nil, testSID("op_test"))
	assert.Error(t, err)
}

func TestUpgradeOperation_TerminalTransitions(t *testing.T) {
	tests := []struct {
		name string
		mark func(op *UpgradeOperation) error
		want OperationStatus
	}{
		{"success", (*UpgradeOperation).MarkSuccess, OperationSuccess},
		{"failed", (*UpgradeOperation).MarkFailed, OperationFailed},
		{"aborted", (*UpgradeOperation).MarkAborted, OperationAborted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			op := newTestOperation(t)

			require.NoError(t, tc.mark(op))
			assert.Equal(t, tc.want, op.Status())
			assert.True(t, op.Status().IsTerminal())
		})
	}
}

func TestUpgradeOperation_TerminalStateIsFinal(t *testing.T) {
	op := newTestOperation(t)
	require.NoError(t, op.MarkSuccess())

	assert.Error(t, op.MarkFailed())
	assert.Error(t, op.MarkAborted())
	assert.Error(t, op.MarkSuccess())
	assert.Equal(t, OperationSuccess, op.Status())
}

func TestUpgradeOperation_LogAppendsTimestampedLines(t *testing.T) {
	op := newTestOperation(t)

	op.LogLine("first line")
	op.LogLine("second line")

	lines := strings.Split(op.Log(), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "first line")
	assert.Contains(t, lines[1], "second line")
	// each line carries a leading timestamp separated by " | "
	for _, line := range lines {
		assert.Contains(t, line, " | ")
	}
}

func TestUpgradeOperation_LogAllowedAfterTerminal(t *testing.T) {
	op := newTestOperation(t)
	require.NoError(t, op.MarkFailed())

	op.LogLine("post mortem detail")
	assert.Contains(t, op.Log(), "post mortem detail")
}

func TestUpgradeOperation_ClearImage(t *testing.T) {
	op := newTestOperation(t)
	require.NotNil(t, op.ImageID())

	op.ClearImage()
	assert.Nil(t, op.ImageID())
}

func TestUpgradeOperation_OptionsAreCloned(t *testing.T) {
	opts := UpgradeOptions{"n": true}
	op, err := NewUpgradeOperation(1, 2, opts, nil, testSID("op_test"))
	require.NoError(t, err)

	opts["F"] = true
	assert.False(t, op.Options()["F"])

	got := op.Options()
	got["u"] = true
	assert.False(t, op.Options()["u"])
}

func TestReconstructUpgradeOperation_RejectsInvalidStatus(t *testing.T) {
	_, err := ReconstructUpgradeOperation(1, "op_x", 1, nil, OperationStatus("bogus"), "", nil, nil, testNow(), testNow())
	assert.Error(t, err)
}
