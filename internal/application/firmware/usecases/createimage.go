package usecases

import (
	"context"
	"io"

	"firmup/internal/domain/firmware"
	"firmup/internal/shared/logger"
)

// ImageSaver persists uploaded firmware binaries and reports their size
// and sha256 checksum.
type ImageSaver interface {
	Save(buildSID, fileName string, content io.Reader) (size int64, checksum string, err error)
	Remove(buildSID, fileName string) error
}

type CreateImageCommand struct {
	BuildSID string
	FileName string
	Content  io.Reader
	// Type may be empty: it is then derived from the file name.
	Type string
}

// CreateImageUseCase stores an uploaded firmware binary and records it in
// the catalog.
type CreateImageUseCase struct {
	imageRepo firmware.ImageRepository
	buildRepo firmware.BuildRepository
	saver     ImageSaver
	logger    logger.Interface
}

// NewCreateImageUseCase creates a new create image use case
func NewCreateImageUseCase(
	imageRepo firmware.ImageRepository,
	buildRepo firmware.BuildRepository,
	saver ImageSaver,
	logger logger.Interface,
) *CreateImageUseCase {
	return &CreateImageUseCase{imageRepo: imageRepo, buildRepo: buildRepo, saver: saver, logger: logger}
}

func (uc *CreateImageUseCase) Execute(ctx context.Context, cmd CreateImageCommand) (*firmware.Image, error) {
	build, err := uc.buildRepo.GetBySID(ctx, cmd.BuildSID)
	if err != nil {
		return nil, err
	}
	size, checksum, err := uc.saver.Save(build.SID(), cmd.FileName, cmd.Content)
	if err != nil {
		return nil, err
	}
	image, err := firmware.NewImage(build.ID(), cmd.FileName, checksum, size, cmd.Type, imageSID)
	if err != nil {
		uc.cleanup(build.SID(), cmd.FileName)
		return nil, err
	}
	if err := uc.imageRepo.Create(ctx, image); err != nil {
		uc.cleanup(build.SID(), cmd.FileName)
		return nil, err
	}
	uc.logger.Infow("firmware image created",
		"image", image.SID(), "build", build.SID(), "type", image.Type(), "size", size)
	return image, nil
}

func (uc *CreateImageUseCase) cleanup(buildSID, fileName string) {
	if err := uc.saver.Remove(buildSID, fileName); err != nil {
		uc.logger.Warnw("failed to remove orphaned image file", "build", buildSID, "file", fileName, "error", err)
	}
}
