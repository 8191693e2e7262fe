package firmware

import (
	"fmt"
	"time"
)

// UpgradeOperation is the state machine for a single device's attempt to
// reach a target image. It starts in-progress and reaches exactly one
// terminal status; the log is the operator-facing audit trail and is
// append-only.
type UpgradeOperation struct {
	id        uint
	sid       string
	deviceID  uint
	imageID   *uint
	status    OperationStatus
	log       string
	options   UpgradeOptions
	batchID   *uint
	createdAt time.Time
	updatedAt time.Time
}

// NewUpgradeOperation creates an operation in the in-progress state.
func NewUpgradeOperation(deviceID, imageID uint, options UpgradeOptions, batchID *uint, sidGenerator func() (string, error)) (*UpgradeOperation, error) {
	if deviceID == 0 {
		return nil, fmt.Errorf("device ID is required")
	}
	if imageID == 0 {
		return nil, fmt.Errorf("image ID is required")
	}
	sid, err := sidGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to generate operation SID: %w", err)
	}
	now := time.Now().UTC()
	img := imageID
	return &UpgradeOperation{
		sid:       sid,
		deviceID:  deviceID,
		imageID:   &img,
		status:    OperationInProgress,
		options:   options.Clone(),
		batchID:   batchID,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructUpgradeOperation reconstructs an operation from persistence.
func ReconstructUpgradeOperation(id uint, sid string, deviceID uint, imageID *uint, status OperationStatus, log string, options UpgradeOptions, batchID *uint, createdAt, updatedAt time.Time) (*UpgradeOperation, error) {
	if id == 0 {
		return nil, fmt.Errorf("operation ID cannot be zero")
	}
	if sid == "" {
		return nil, fmt.Errorf("operation SID is required")
	}
	if deviceID == 0 {
		return nil, fmt.Errorf("device ID is required")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid operation status: %s", status)
	}
	return &UpgradeOperation{
		id:        id,
		sid:       sid,
		deviceID:  deviceID,
		imageID:   imageID,
		status:    status,
		log:       log,
		options:   options,
		batchID:   batchID,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}, nil
}

func (o *UpgradeOperation) ID() uint                { return o.id }
func (o *UpgradeOperation) SID() string             { return o.sid }
func (o *UpgradeOperation) DeviceID() uint          { return o.deviceID }
func (o *UpgradeOperation) ImageID() *uint          { return o.imageID }
func (o *UpgradeOperation) Status() OperationStatus { return o.status }
func (o *UpgradeOperation) Log() string             { return o.log }
func (o *UpgradeOperation) Options() UpgradeOptions { return o.options.Clone() }
func (o *UpgradeOperation) BatchID() *uint          { return o.batchID }
func (o *UpgradeOperation) CreatedAt() time.Time    { return o.createdAt }
func (o *UpgradeOperation) UpdatedAt() time.Time    { return o.updatedAt }

// LogLine appends a timestamped line to the operation log. Lines are
// never removed; appends are allowed up to and including the terminal
// write.
func (o *UpgradeOperation) LogLine(line string) {
	stamp := time.Now().UTC().Format(time.DateTime)
	entry := fmt.Sprintf("%s | %s", stamp, line)
	if o.log == "" {
		o.log = entry
	} else {
		o.log += "\n" + entry
	}
	o.updatedAt = time.Now().UTC()
}

// ClearImage detaches a deleted image; the operation record is retained.
func (o *UpgradeOperation) ClearImage() {
	o.imageID = nil
	o.updatedAt = time.Now().UTC()
}

func (o *UpgradeOperation) transition(to OperationStatus) error {
	if o.status.IsTerminal() {
		return fmt.Errorf("operation %s already terminal (%s), cannot transition to %s", o.sid, o.status, to)
	}
	o.status = to
	o.updatedAt = time.Now().UTC()
	return nil
}

// MarkSuccess transitions the operation to its success terminal state.
func (o *UpgradeOperation) MarkSuccess() error { return o.transition(OperationSuccess) }

// MarkFailed transitions the operation to its failed terminal state.
func (o *UpgradeOperation) MarkFailed() error { return o.transition(OperationFailed) }

// MarkAborted transitions the operation to its aborted terminal state.
func (o *UpgradeOperation) MarkAborted() error { return o.transition(OperationAborted) }

// SetID assigns the database identity after insertion.
func (o *UpgradeOperation) SetID(id uint) error {
	if o.id != 0 {
		return fmt.Errorf("operation ID already set")
	}
	o.id = id
	return nil
}
