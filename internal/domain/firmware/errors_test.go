package firmware

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	recoverable := &RecoverableError{Cause: errors.New("connection reset")}
	aborted := &AbortedError{Reason: "device UUID mismatch"}
	reconnection := &ReconnectionError{Reason: "device never came back"}

	assert.True(t, IsRecoverable(recoverable))
	assert.False(t, IsRecoverable(aborted))
	assert.False(t, IsRecoverable(reconnection))

	assert.True(t, IsAborted(aborted))
	assert.False(t, IsAborted(recoverable))

	assert.True(t, IsReconnectionFailure(reconnection))
	assert.False(t, IsReconnectionFailure(aborted))
}

func TestErrorClassificationThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("executing upgrade: %w", &RecoverableError{Cause: errors.New("timeout")})
	assert.True(t, IsRecoverable(wrapped))

	wrappedAbort := fmt.Errorf("pre-flight: %w", &AbortedError{Reason: "not enough memory"})
	assert.True(t, IsAborted(wrappedAbort))
}

func TestRecoverableErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("broken pipe")
	err := &RecoverableError{Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestAbortedErrorMessage(t *testing.T) {
	assert.Equal(t, "upgrade aborted", (&AbortedError{}).Error())
	assert.Equal(t, "upgrade aborted: no memory", (&AbortedError{Reason: "no memory"}).Error())
}
