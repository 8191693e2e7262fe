package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmup/internal/domain/firmware"
	"firmup/internal/shared/config"
	"firmup/internal/shared/logger"
)

// scriptedExecutor replays one result per attempt and records the
// recoverable flag it was called with.
type scriptedExecutor struct {
	mu      sync.Mutex
	results []error
	flags   []bool
}

func (e *scriptedExecutor) ExecuteUpgrade(ctx context.Context, operationSID string, recoverable bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flags = append(e.flags, recoverable)
	if len(e.results) == 0 {
		return nil
	}
	err := e.results[0]
	e.results = e.results[1:]
	return err
}

func (e *scriptedExecutor) recordedFlags() []bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]bool, len(e.flags))
	copy(out, e.flags)
	return out
}

func testDispatcher(exec Executor, maxRetries int) *Dispatcher {
	return NewDispatcher(config.TasksConfig{
		Workers:    1,
		QueueSize:  8,
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}, exec, logger.NewLogger())
}

func TestDispatcher_RetriesRecoverableFailures(t *testing.T) {
	exec := &scriptedExecutor{results: []error{
		&firmware.RecoverableError{Cause: errors.New("upload failed")},
		nil,
	}}
	d := testDispatcher(exec, 3)
	d.Start(context.Background())

	require.NoError(t, d.Submit("uop_test0001"))
	require.Eventually(t, func() bool {
		return len(exec.recordedFlags()) == 2
	}, time.Second, time.Millisecond)
	d.Stop()

	assert.Equal(t, []bool{true, true}, exec.recordedFlags())
}

func TestDispatcher_FinalAttemptRunsInNoRetryMode(t *testing.T) {
	exec := &scriptedExecutor{results: []error{
		&firmware.RecoverableError{Cause: errors.New("upload failed")},
		&firmware.RecoverableError{Cause: errors.New("upload failed")},
		&firmware.RecoverableError{Cause: errors.New("upload failed")},
	}}
	d := testDispatcher(exec, 2)
	d.Start(context.Background())

	require.NoError(t, d.Submit("uop_test0001"))
	require.Eventually(t, func() bool {
		return len(exec.recordedFlags()) == 3
	}, time.Second, time.Millisecond)
	d.Stop()

	// two retryable attempts, then the last one with recoverable=false
	assert.Equal(t, []bool{true, true, false}, exec.recordedFlags())
}

func TestDispatcher_NonRecoverableFailureStops(t *testing.T) {
	exec := &scriptedExecutor{results: []error{errors.New("device exploded")}}
	d := testDispatcher(exec, 3)
	d.Start(context.Background())

	require.NoError(t, d.Submit("uop_test0001"))
	require.Eventually(t, func() bool {
		return len(exec.recordedFlags()) == 1
	}, time.Second, time.Millisecond)
	d.Stop()

	assert.Equal(t, []bool{true}, exec.recordedFlags())
}

func TestDispatcher_SubmitNeverBlocks(t *testing.T) {
	d := NewDispatcher(config.TasksConfig{
		Workers:   1,
		QueueSize: 1,
	}, &scriptedExecutor{}, logger.NewLogger())
	// not started: nothing drains the queue

	require.NoError(t, d.Submit("uop_test0001"))
	assert.ErrorIs(t, d.Submit("uop_test0002"), ErrQueueFull)
}

func TestDispatcher_SubmitAfterStopFails(t *testing.T) {
	d := testDispatcher(&scriptedExecutor{}, 1)
	d.Start(context.Background())
	d.Stop()

	assert.ErrorIs(t, d.Submit("uop_test0001"), ErrStopped)
}

func TestDispatcher_StopDrainsInFlightWork(t *testing.T) {
	exec := &scriptedExecutor{}
	d := testDispatcher(exec, 1)
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Submit("uop_test0001"))
	}
	d.Stop()

	assert.Len(t, exec.recordedFlags(), 5)
}
