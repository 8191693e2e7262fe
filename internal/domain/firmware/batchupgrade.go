package firmware

import (
	"fmt"
	"math"
	"time"
)

// BatchUpgradeOperation orchestrates one build's rollout across all
// eligible devices and aggregates the terminal statuses of its child
// operations. Its status is derived exclusively from the children:
// in-progress while at least one child still runs, then failed if any
// child failed, otherwise success. Aborted children alone do not fail a
// batch: aborted is not failed.
type BatchUpgradeOperation struct {
	id        uint
	sid       string
	buildID   uint
	status    BatchStatus
	options   UpgradeOptions
	createdAt time.Time
	updatedAt time.Time
}

// NewBatchUpgradeOperation creates an idle batch for a build.
func NewBatchUpgradeOperation(buildID uint, options UpgradeOptions, sidGenerator func() (string, error)) (*BatchUpgradeOperation, error) {
	if buildID == 0 {
		return nil, fmt.Errorf("build ID is required")
	}
	sid, err := sidGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to generate batch SID: %w", err)
	}
	now := time.Now().UTC()
	return &BatchUpgradeOperation{
		sid:       sid,
		buildID:   buildID,
		status:    BatchIdle,
		options:   options.Clone(),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructBatchUpgradeOperation reconstructs a batch from persistence.
func ReconstructBatchUpgradeOperation(id uint, sid string, buildID uint, status BatchStatus, options UpgradeOptions, createdAt, updatedAt time.Time) (*BatchUpgradeOperation, error) {
	if id == 0 {
		return nil, fmt.Errorf("batch ID cannot be zero")
	}
	if sid == "" {
		return nil, fmt.Errorf("batch SID is required")
	}
	if buildID == 0 {
		return nil, fmt.Errorf("build ID is required")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid batch status: %s", status)
	}
	return &BatchUpgradeOperation{
		id:        id,
		sid:       sid,
		buildID:   buildID,
		status:    status,
		options:   options,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}, nil
}

func (b *BatchUpgradeOperation) ID() uint                { return b.id }
func (b *BatchUpgradeOperation) SID() string             { return b.sid }
func (b *BatchUpgradeOperation) BuildID() uint           { return b.buildID }
func (b *BatchUpgradeOperation) Status() BatchStatus     { return b.status }
func (b *BatchUpgradeOperation) Options() UpgradeOptions { return b.options.Clone() }
func (b *BatchUpgradeOperation) CreatedAt() time.Time    { return b.createdAt }
func (b *BatchUpgradeOperation) UpdatedAt() time.Time    { return b.updatedAt }

// Start moves the batch to in-progress before children are spawned.
func (b *BatchUpgradeOperation) Start() {
	b.status = BatchInProgress
	b.updatedAt = time.Now().UTC()
}

// Recompute derives the aggregate status from the child counts. It is a
// no-op while any child is still in-progress. Returns true when the
// status changed.
func (b *BatchUpgradeOperation) Recompute(counts StatusCounts) bool {
	if counts.InProgress > 0 {
		if b.status == BatchInProgress {
			return false
		}
		b.status = BatchInProgress
		b.updatedAt = time.Now().UTC()
		return true
	}
	next := BatchSuccess
	if counts.Failed > 0 {
		next = BatchFailed
	}
	if b.status == next {
		return false
	}
	b.status = next
	b.updatedAt = time.Now().UTC()
	return true
}

// ProgressReport renders "<completed> out of <total>".
func (b *BatchUpgradeOperation) ProgressReport(counts StatusCounts) string {
	completed := counts.Total() - counts.InProgress
	return fmt.Sprintf("%d out of %d", completed, counts.Total())
}

// SuccessRate is the percentage of successful children, two decimals.
func (b *BatchUpgradeOperation) SuccessRate(counts StatusCounts) float64 {
	return rate(counts.Success, counts.Total())
}

// FailedRate is the percentage of failed children, two decimals.
func (b *BatchUpgradeOperation) FailedRate(counts StatusCounts) float64 {
	return rate(counts.Failed, counts.Total())
}

// AbortedRate is the percentage of aborted children, two decimals.
func (b *BatchUpgradeOperation) AbortedRate(counts StatusCounts) float64 {
	return rate(counts.Aborted, counts.Total())
}

func rate(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}

// SetID assigns the database identity after insertion.
func (b *BatchUpgradeOperation) SetID(id uint) error {
	if b.id != 0 {
		return fmt.Errorf("batch ID already set")
	}
	b.id = id
	return nil
}
