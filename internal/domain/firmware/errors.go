package firmware

import (
	"errors"
	"fmt"
)

// ErrUpgradeNotNeeded is raised when the checksum stored on the device
// matches the checksum of the image about to be flashed: the device was
// already flashed with this image and the operation is an idempotent no-op.
var ErrUpgradeNotNeeded = errors.New("firmware already upgraded previously, upgrade not needed")

// AbortedError signals that a pre-flight check failed before anything was
// written to the device. Safe: no device mutation is assumed beyond what
// was explicitly reverted.
type AbortedError struct {
	Reason string
}

func (e *AbortedError) Error() string {
	if e.Reason == "" {
		return "upgrade aborted"
	}
	return "upgrade aborted: " + e.Reason
}

// RecoverableError signals a transient failure (connectivity, transfer)
// that is safe to retry from scratch.
type RecoverableError struct {
	Cause error
}

func (e *RecoverableError) Error() string {
	return "recoverable failure: " + e.Cause.Error()
}

func (e *RecoverableError) Unwrap() error {
	return e.Cause
}

// ReconnectionError signals that the device never became reachable again
// after the reflash command was invoked. The image is presumed written.
type ReconnectionError struct {
	Reason string
}

func (e *ReconnectionError) Error() string {
	return e.Reason
}

// OptionsError is returned when upgrade options fail schema validation.
type OptionsError struct {
	Reason string
}

func (e *OptionsError) Error() string {
	return e.Reason
}

func newConflictingOptionsError(a, b string) *OptionsError {
	return &OptionsError{
		Reason: fmt.Sprintf("the %q and %q options cannot be used together", "-"+a, "-"+b),
	}
}

// IsRecoverable reports whether err carries a RecoverableError.
func IsRecoverable(err error) bool {
	var re *RecoverableError
	return errors.As(err, &re)
}

// IsAborted reports whether err carries an AbortedError.
func IsAborted(err error) bool {
	var ae *AbortedError
	return errors.As(err, &ae)
}

// IsReconnectionFailure reports whether err carries a ReconnectionError.
func IsReconnectionFailure(err error) bool {
	var re *ReconnectionError
	return errors.As(err, &re)
}
