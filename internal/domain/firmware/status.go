package firmware

// OperationStatus is the lifecycle state of a single device upgrade.
// An operation starts in-progress and reaches exactly one terminal state.
type OperationStatus string

const (
	OperationInProgress OperationStatus = "in-progress"
	OperationSuccess    OperationStatus = "success"
	OperationFailed     OperationStatus = "failed"
	OperationAborted    OperationStatus = "aborted"
)

func (s OperationStatus) IsValid() bool {
	switch s {
	case OperationInProgress, OperationSuccess, OperationFailed, OperationAborted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s OperationStatus) IsTerminal() bool {
	return s.IsValid() && s != OperationInProgress
}

// BatchStatus is the aggregate state of a fleet-wide rollout.
type BatchStatus string

const (
	BatchIdle       BatchStatus = "idle"
	BatchInProgress BatchStatus = "in-progress"
	BatchSuccess    BatchStatus = "success"
	BatchFailed     BatchStatus = "failed"
)

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchIdle, BatchInProgress, BatchSuccess, BatchFailed:
		return true
	}
	return false
}

// StatusCounts aggregates child operation statuses for a batch rollup.
type StatusCounts struct {
	InProgress int64
	Success    int64
	Failed     int64
	Aborted    int64
}

func (c StatusCounts) Total() int64 {
	return c.InProgress + c.Success + c.Failed + c.Aborted
}
