package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"firmup/internal/domain/device"
	"firmup/internal/domain/firmware"
	"firmup/internal/infrastructure/upgraders"
	"firmup/internal/shared/config"
	"firmup/internal/shared/logger"
)

// ExecuteUpgradeUseCase drives one attempt of an upgrade operation from
// connection acquisition to terminal status. It is re-entered from the
// top on every retry; the on-device checksum marker keeps that safe.
type ExecuteUpgradeUseCase struct {
	operationRepo  firmware.OperationRepository
	batchRepo      firmware.BatchRepository
	deviceFirmRepo firmware.DeviceFirmwareRepository
	imageRepo      firmware.ImageRepository
	buildRepo      firmware.BuildRepository
	deviceRepo     device.Repository
	connectionRepo device.ConnectionRepository
	provider       device.Provider
	locker         DeviceLocker
	store          ImageStore
	txManager      TxRunner
	upgraderCfg    config.UpgraderConfig
	logger         logger.Interface
}

// NewExecuteUpgradeUseCase creates a new execute upgrade use case
func NewExecuteUpgradeUseCase(
	operationRepo firmware.OperationRepository,
	batchRepo firmware.BatchRepository,
	deviceFirmRepo firmware.DeviceFirmwareRepository,
	imageRepo firmware.ImageRepository,
	buildRepo firmware.BuildRepository,
	deviceRepo device.Repository,
	connectionRepo device.ConnectionRepository,
	provider device.Provider,
	locker DeviceLocker,
	store ImageStore,
	txManager TxRunner,
	upgraderCfg config.UpgraderConfig,
	logger logger.Interface,
) *ExecuteUpgradeUseCase {
	return &ExecuteUpgradeUseCase{
		operationRepo:  operationRepo,
		batchRepo:      batchRepo,
		deviceFirmRepo: deviceFirmRepo,
		imageRepo:      imageRepo,
		buildRepo:      buildRepo,
		deviceRepo:     deviceRepo,
		connectionRepo: connectionRepo,
		provider:       provider,
		locker:         locker,
		store:          store,
		txManager:      txManager,
		upgraderCfg:    upgraderCfg,
		logger:         logger,
	}
}

// operationJournal appends timestamped lines to the operation log and
// persists every append so the trail survives a crashed worker. The
// reflash watchdog writes from a second goroutine, hence the mutex.
type operationJournal struct {
	ctx  context.Context
	op   *firmware.UpgradeOperation
	repo firmware.OperationRepository
	log  logger.Interface
	mu   sync.Mutex
}

func (j *operationJournal) Log(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.op.LogLine(line)
	if err := j.repo.Update(j.ctx, j.op); err != nil {
		j.log.Errorw("failed to persist operation log", "operation", j.op.SID(), "error", err)
	}
}

// ExecuteUpgrade runs one attempt for the operation. A returned
// recoverable error asks the dispatcher to retry; any other return means
// the attempt concluded (terminally or deliberately left in-progress).
func (uc *ExecuteUpgradeUseCase) ExecuteUpgrade(ctx context.Context, operationSID string, recoverable bool) error {
	op, err := uc.operationRepo.GetBySID(ctx, operationSID)
	if err != nil {
		return fmt.Errorf("failed to load operation: %w", err)
	}
	if op.Status().IsTerminal() {
		// at-least-once delivery means duplicates happen
		uc.logger.Debugw("operation already terminal, skipping", "operation", operationSID, "status", op.Status())
		return nil
	}
	dev, err := uc.deviceRepo.GetByID(ctx, op.DeviceID())
	if err != nil {
		return fmt.Errorf("failed to load device: %w", err)
	}

	journal := &operationJournal{ctx: ctx, op: op, repo: uc.operationRepo, log: uc.logger}

	conn, record, err := uc.provider.GetWorkingConnection(ctx, dev)
	if err != nil {
		return uc.handleConnectionFailure(ctx, op, dev, journal, err, recoverable)
	}
	defer conn.Close()

	// At most one upgrade may be active per device, and the device lock
	// is the sole arbiter of that: exactly one of two racing operations
	// acquires it and proceeds, the other sees a rival holder and
	// aborts. A denied attempt whose holder is this very operation is a
	// duplicate delivery of a still-running attempt and must leave it
	// untouched.
	ok, holder, release, err := uc.locker.TryLock(ctx, dev.ID(), op.SID())
	if err != nil {
		return fmt.Errorf("failed to acquire device lock: %w", err)
	}
	if !ok {
		if holder == op.SID() {
			uc.logger.Debugw("operation already executing, skipping duplicate delivery",
				"operation", op.SID())
			return nil
		}
		return uc.abortConcurrent(ctx, op, journal)
	}
	defer release()

	factory, supported := upgraders.Resolve(record.Connector())
	if !supported {
		// unsupported device family: not an error, not a state change
		uc.logger.Warnw("no upgrader for connector, skipping operation",
			"operation", op.SID(), "connector", record.Connector())
		return nil
	}

	source, abortErr := uc.resolveImage(ctx, op)
	if abortErr != nil {
		journal.Log(abortErr.Error())
		return uc.finishAborted(ctx, op)
	}

	upgrader := factory(upgraders.Deps{
		Device:     dev,
		Connection: conn,
		Record:     record,
		Provider:   uc.provider,
		Options:    op.Options(),
		Journal:    journal,
		Config:     uc.upgraderCfg,
		Logger:     uc.logger,
	})

	return uc.applyOutcome(ctx, op, dev, record, journal, upgrader.Upgrade(ctx, source), recoverable)
}

// resolveImage loads the operation's target image and turns it into a
// streamable source. A nil return error means the source is usable.
func (uc *ExecuteUpgradeUseCase) resolveImage(ctx context.Context, op *firmware.UpgradeOperation) (upgraders.ImageSource, error) {
	if op.ImageID() == nil {
		return upgraders.ImageSource{}, errors.New("target image was deleted, nothing to flash")
	}
	image, err := uc.imageRepo.GetByID(ctx, *op.ImageID())
	if err != nil {
		return upgraders.ImageSource{}, fmt.Errorf("could not load target image: %v", err)
	}
	build, err := uc.buildRepo.GetByID(ctx, image.BuildID())
	if err != nil {
		return upgraders.ImageSource{}, fmt.Errorf("could not load target build: %v", err)
	}
	source, err := uc.store.Open(build.SID(), image.FileName(), image.Checksum())
	if err != nil {
		return upgraders.ImageSource{}, fmt.Errorf("could not open image file: %v", err)
	}
	return source, nil
}

// handleConnectionFailure implements the connection acquisition policy:
// a device with no connection records at all is a configuration gap (the
// operation stays in-progress, no retry); otherwise the failure is
// transient and follows the retry contract.
func (uc *ExecuteUpgradeUseCase) handleConnectionFailure(
	ctx context.Context,
	op *firmware.UpgradeOperation,
	dev *device.Device,
	journal *operationJournal,
	cause error,
	recoverable bool,
) error {
	var noConn *device.NoWorkingConnectionError
	if errors.As(cause, &noConn) && noConn.Last == nil {
		journal.Log("No device connection available, the upgrade operation cannot start.")
		uc.logger.Warnw("device has no connections configured",
			"operation", op.SID(), "device", dev.SID())
		return nil
	}

	records, err := uc.connectionRepo.ListByDeviceID(ctx, dev.ID())
	if err != nil {
		uc.logger.Errorw("failed to list device connections", "device", dev.SID(), "error", err)
	}
	for _, record := range records {
		reason := record.FailureReason()
		if reason == "" {
			reason = "unknown error"
		}
		journal.Log(fmt.Sprintf("Failed to connect with credentials %q: %s", record.Credentials(), reason))
	}

	if recoverable {
		journal.Log("Connection failed, the upgrade operation will be retried soon.")
		return &firmware.RecoverableError{Cause: cause}
	}
	journal.Log("Connection failed and the maximum number of retries was reached, giving up.")
	if err := op.MarkFailed(); err != nil {
		return err
	}
	return uc.persistTerminal(ctx, op)
}

func (uc *ExecuteUpgradeUseCase) abortConcurrent(ctx context.Context, op *firmware.UpgradeOperation, journal *operationJournal) error {
	journal.Log("Another upgrade operation is in progress for this device, aborting.")
	return uc.finishAborted(ctx, op)
}

func (uc *ExecuteUpgradeUseCase) finishAborted(ctx context.Context, op *firmware.UpgradeOperation) error {
	if err := op.MarkAborted(); err != nil {
		return err
	}
	return uc.persistTerminal(ctx, op)
}

// applyOutcome maps the upgrader result onto the operation status and the
// DeviceFirmware installed flag. The guiding rule: mark installed
// whenever the flash plausibly happened, even if confirmation failed.
func (uc *ExecuteUpgradeUseCase) applyOutcome(
	ctx context.Context,
	op *firmware.UpgradeOperation,
	dev *device.Device,
	record *device.DeviceConnection,
	journal *operationJournal,
	upgradeErr error,
	recoverable bool,
) error {
	switch {
	case upgradeErr == nil, errors.Is(upgradeErr, firmware.ErrUpgradeNotNeeded):
		if err := op.MarkSuccess(); err != nil {
			return err
		}
		uc.markInstalled(ctx, dev.ID())

	case firmware.IsAborted(upgradeErr):
		journal.Log(upgradeErr.Error())
		if err := op.MarkAborted(); err != nil {
			return err
		}

	case firmware.IsRecoverable(upgradeErr):
		if recoverable {
			journal.Log(fmt.Sprintf("Detected a recoverable failure: %s.\nThe upgrade operation will be retried soon.", upgradeErr.Error()))
			return upgradeErr
		}
		journal.Log(fmt.Sprintf("Max retries exceeded. Upgrade failed: %s.", upgradeErr.Error()))
		if err := op.MarkFailed(); err != nil {
			return err
		}

	case firmware.IsReconnectionFailure(upgradeErr):
		// the image is presumed written: the reflash command was sent and
		// only the confirmation failed
		journal.Log("Giving up, device not reachable anymore after upgrade.")
		if err := op.MarkFailed(); err != nil {
			return err
		}
		uc.markInstalled(ctx, dev.ID())
		uc.flagConnectionNotWorking(ctx, record, upgradeErr.Error())

	default:
		journal.Log(fmt.Sprintf("Upgrade failed: %s", upgradeErr.Error()))
		if err := op.MarkFailed(); err != nil {
			return err
		}
		uc.markInstalled(ctx, dev.ID())
	}

	return uc.persistTerminal(ctx, op)
}

func (uc *ExecuteUpgradeUseCase) markInstalled(ctx context.Context, deviceID uint) {
	binding, err := uc.deviceFirmRepo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		uc.logger.Errorw("failed to load device firmware for install mark", "device_id", deviceID, "error", err)
		return
	}
	binding.MarkInstalled()
	if err := uc.deviceFirmRepo.Update(ctx, binding); err != nil {
		uc.logger.Errorw("failed to mark device firmware installed", "device_id", deviceID, "error", err)
	}
}

func (uc *ExecuteUpgradeUseCase) flagConnectionNotWorking(ctx context.Context, record *device.DeviceConnection, reason string) {
	record.MarkNotWorking(reason, time.Now().UTC())
	if err := uc.connectionRepo.Update(ctx, record); err != nil {
		uc.logger.Errorw("failed to flag connection not working", "connection_id", record.ID(), "error", err)
	}
}

// persistTerminal writes the final status and, for batch children, rolls
// the batch status up. Both writes commit in one transaction so the
// batch status never disagrees with the child counts it was computed
// from.
func (uc *ExecuteUpgradeUseCase) persistTerminal(ctx context.Context, op *firmware.UpgradeOperation) error {
	err := uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.operationRepo.Update(txCtx, op); err != nil {
			return fmt.Errorf("failed to persist operation status: %w", err)
		}
		if op.BatchID() == nil {
			return nil
		}
		batch, err := uc.batchRepo.GetByID(txCtx, *op.BatchID())
		if err != nil {
			uc.logger.Errorw("failed to load batch for rollup", "batch_id", *op.BatchID(), "error", err)
			return nil
		}
		counts, err := uc.operationRepo.StatusCountsForBatch(txCtx, batch.ID())
		if err != nil {
			uc.logger.Errorw("failed to aggregate batch statuses", "batch", batch.SID(), "error", err)
			return nil
		}
		if batch.Recompute(counts) {
			if err := uc.batchRepo.Update(txCtx, batch); err != nil {
				uc.logger.Errorw("failed to persist batch status", "batch", batch.SID(), "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	uc.logger.Infow("upgrade operation concluded", "operation", op.SID(), "status", op.Status())
	return nil
}
