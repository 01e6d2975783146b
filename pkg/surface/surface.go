// Package surface defines the display and input adapter the annotation loop
// talks to. Implementations live in the web and script subpackages.
package surface

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/menta2k/frame-annotator/pkg/annotation"
)

// ErrClosed is returned by NextEvent once the surface has no more input
var ErrClosed = errors.New("surface closed")

// Frame is what a surface displays
type Frame struct {
	Image image.Image
	Video string
	Index int
	// Message is an optional status line, such as a commit error
	Message string
}

// Title is a short caption for the frame
func (f Frame) Title() string {
	if f.Video == "" {
		return "Frame"
	}
	return fmt.Sprintf("%s frame %d", f.Video, f.Index)
}

// Surface shows frames and produces normalized input events
type Surface interface {
	Show(ctx context.Context, frame Frame) error
	NextEvent(ctx context.Context) (annotation.Event, error)
	Close() error
}
