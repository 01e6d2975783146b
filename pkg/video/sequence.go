package video

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/frame-annotator/internal/utils"
	"github.com/menta2k/frame-annotator/pkg/imageio"
	"github.com/menta2k/frame-annotator/pkg/types"
)

// ImageSequence treats a directory of images, sorted by name, as a video
type ImageSequence struct {
	dir   string
	files []string
}

// OpenImageSequence lists the images in dir
func OpenImageSequence(dir string) (*ImageSequence, error) {
	files, err := utils.ListImageFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSource, dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s contains no images", types.ErrSource, dir)
	}
	return &ImageSequence{dir: dir, files: files}, nil
}

// Name returns the directory path
func (s *ImageSequence) Name() string { return s.dir }

// FrameCount returns the number of images
func (s *ImageSequence) FrameCount() int { return len(s.files) }

// ReadFrame loads the image at index
func (s *ImageSequence) ReadFrame(ctx context.Context, index int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(s.files) {
		return nil, fmt.Errorf("%w: index %d out of range [0,%d)", types.ErrDecode, index, len(s.files))
	}
	img, err := imageio.LoadImage(s.files[index])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrDecode, s.files[index], err)
	}
	return img, nil
}

// Close is a no-op
func (s *ImageSequence) Close() error { return nil }
