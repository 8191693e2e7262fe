// Package usecases implements the application services orchestrating the
// firmware upgrade workflows: catalog management, device/image binding,
// per-device upgrade execution and fleet-wide batch rollouts.
package usecases

import (
	"context"

	"firmup/internal/infrastructure/upgraders"
	"firmup/internal/shared/id"
)

// DeviceLocker serializes upgrade execution per device. TryLock is
// non-blocking and reports who holds the lock: a denied caller aborts
// when the holder is a rival operation, and backs off silently when the
// holder is itself (a duplicate delivery of a running operation).
type DeviceLocker interface {
	TryLock(ctx context.Context, deviceID uint, operationSID string) (ok bool, holder string, release func(), err error)
}

// ImageStore resolves stored firmware binaries.
type ImageStore interface {
	Open(buildSID, fileName, checksum string) (upgraders.ImageSource, error)
}

// TaskSubmitter enqueues an upgrade operation for asynchronous execution
// with the configured retry contract.
type TaskSubmitter interface {
	Submit(operationSID string) error
}

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

func categorySID() (string, error) {
	return id.GenerateWithPrefix(id.PrefixCategory, id.DefaultLength)
}

func buildSID() (string, error) {
	return id.GenerateWithPrefix(id.PrefixBuild, id.DefaultLength)
}

func imageSID() (string, error) {
	return id.GenerateWithPrefix(id.PrefixImage, id.DefaultLength)
}

func deviceSID() (string, error) {
	return id.GenerateWithPrefix(id.PrefixDevice, id.DefaultLength)
}

func operationSID() (string, error) {
	return id.GenerateWithPrefix(id.PrefixOperation, id.DefaultLength)
}

func batchSID() (string, error) {
	return id.GenerateWithPrefix(id.PrefixBatch, id.DefaultLength)
}
