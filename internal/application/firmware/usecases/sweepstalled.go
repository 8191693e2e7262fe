package usecases

import (
	"context"
	"time"

	"firmup/internal/domain/firmware"
	"firmup/internal/shared/logger"
)

// SweepStalledOperationsUseCase re-submits in-progress operations whose
// worker died mid-flight. Re-submission is safe: execution is idempotent
// and a duplicate delivery of a since-finished operation is a no-op.
type SweepStalledOperationsUseCase struct {
	operationRepo firmware.OperationRepository
	submitter     TaskSubmitter
	staleAge      time.Duration
	logger        logger.Interface
}

// NewSweepStalledOperationsUseCase creates a new sweep use case
func NewSweepStalledOperationsUseCase(
	operationRepo firmware.OperationRepository,
	submitter TaskSubmitter,
	staleAge time.Duration,
	logger logger.Interface,
) *SweepStalledOperationsUseCase {
	if staleAge <= 0 {
		staleAge = time.Hour
	}
	return &SweepStalledOperationsUseCase{
		operationRepo: operationRepo,
		submitter:     submitter,
		staleAge:      staleAge,
		logger:        logger,
	}
}

// Execute re-queues stalled operations and returns how many it submitted.
func (uc *SweepStalledOperationsUseCase) Execute(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-uc.staleAge)
	stalled, err := uc.operationRepo.ListStalledInProgress(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, op := range stalled {
		if err := uc.submitter.Submit(op.SID()); err != nil {
			uc.logger.Warnw("failed to re-submit stalled operation", "operation", op.SID(), "error", err)
			continue
		}
		count++
	}
	return count, nil
}
