package firmware

import (
	"fmt"
	"time"
)

// Image is a concrete firmware binary for one board family within a
// build. The stored checksum is the sha256 of the file content and drives
// upgrade idempotence: a device carrying the same checksum marker is
// never re-flashed.
type Image struct {
	id        uint
	sid       string
	buildID   uint
	fileName  string
	checksum  string
	size      int64
	imageType string
	createdAt time.Time
	updatedAt time.Time
}

// NewImage creates a new firmware image aggregate. When imageType is
// blank it is derived from the file name.
func NewImage(buildID uint, fileName, checksum string, size int64, imageType string, sidGenerator func() (string, error)) (*Image, error) {
	if buildID == 0 {
		return nil, fmt.Errorf("build ID is required")
	}
	if fileName == "" {
		return nil, fmt.Errorf("image file name is required")
	}
	if checksum == "" {
		return nil, fmt.Errorf("image checksum is required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("image size must be positive")
	}
	if imageType == "" {
		imageType = DetectImageType(fileName)
	}
	if BoardsForImageType(imageType) == nil {
		return nil, fmt.Errorf("could not find boards for image type %q", imageType)
	}
	sid, err := sidGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to generate image SID: %w", err)
	}
	now := time.Now().UTC()
	return &Image{
		sid:       sid,
		buildID:   buildID,
		fileName:  fileName,
		checksum:  checksum,
		size:      size,
		imageType: imageType,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructImage reconstructs an image from persistence.
func ReconstructImage(id uint, sid string, buildID uint, fileName, checksum string, size int64, imageType string, createdAt, updatedAt time.Time) (*Image, error) {
	if id == 0 {
		return nil, fmt.Errorf("image ID cannot be zero")
	}
	if sid == "" {
		return nil, fmt.Errorf("image SID is required")
	}
	if buildID == 0 {
		return nil, fmt.Errorf("build ID is required")
	}
	if fileName == "" {
		return nil, fmt.Errorf("image file name is required")
	}
	return &Image{
		id:        id,
		sid:       sid,
		buildID:   buildID,
		fileName:  fileName,
		checksum:  checksum,
		size:      size,
		imageType: imageType,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}, nil
}

func (i *Image) ID() uint             { return i.id }
func (i *Image) SID() string          { return i.sid }
func (i *Image) BuildID() uint        { return i.buildID }
func (i *Image) FileName() string     { return i.fileName }
func (i *Image) Checksum() string     { return i.checksum }
func (i *Image) Size() int64          { return i.size }
func (i *Image) Type() string         { return i.imageType }
func (i *Image) CreatedAt() time.Time { return i.createdAt }
func (i *Image) UpdatedAt() time.Time { return i.updatedAt }

// Boards returns the hardware models this image can be flashed on.
func (i *Image) Boards() []string {
	return BoardsForImageType(i.imageType)
}

// SupportsBoard reports whether the given device model is compatible.
func (i *Image) SupportsBoard(model string) bool {
	for _, board := range i.Boards() {
		if board == model {
			return true
		}
	}
	return false
}

// SetID assigns the database identity after insertion.
func (i *Image) SetID(id uint) error {
	if i.id != 0 {
		return fmt.Errorf("image ID already set")
	}
	i.id = id
	return nil
}
