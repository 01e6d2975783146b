//go:build opencv

package video

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/menta2k/frame-annotator/pkg/types"
)

func init() {
	Register(BackendOpenCV, func(ctx context.Context, path string, opts Options) (Source, error) {
		return OpenOpenCV(path)
	})
}

// OpenCVSource reads frames through OpenCV's VideoCapture
type OpenCVSource struct {
	path    string
	capture *gocv.VideoCapture
	count   int
}

// OpenOpenCV opens a video file with OpenCV
func OpenOpenCV(path string) (*OpenCVSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSource, path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: unable to open video file %s", types.ErrSource, path)
	}
	return &OpenCVSource{
		path:    path,
		capture: capture,
		count:   int(capture.Get(gocv.VideoCaptureFrameCount)),
	}, nil
}

// Name returns the video path
func (s *OpenCVSource) Name() string { return s.path }

// FrameCount returns the container's reported frame count
func (s *OpenCVSource) FrameCount() int { return s.count }

// ReadFrame seeks to index and decodes one frame
func (s *OpenCVSource) ReadFrame(ctx context.Context, index int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.capture.Set(gocv.VideoCapturePosFrames, float64(index))

	mat := gocv.NewMat()
	defer mat.Close()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		return nil, fmt.Errorf("%w: unable to read frame at index %d", types.ErrDecode, index)
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: convert frame %d: %v", types.ErrDecode, index, err)
	}
	return img, nil
}

// Close releases the capture
func (s *OpenCVSource) Close() error {
	return s.capture.Close()
}
