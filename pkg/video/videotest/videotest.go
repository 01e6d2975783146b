// Package videotest provides in-memory video sources for tests.
package videotest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/menta2k/frame-annotator/pkg/types"
)

// Source is a synthetic video. Frames are generated on demand.
type Source struct {
	name   string
	count  int
	width  int
	height int

	// Blurry and Broken mark indices that render flat or fail to decode
	Blurry map[int]bool
	Broken map[int]bool

	mu    sync.Mutex
	reads []int
	close int
}

// New creates a sharp synthetic video of count frames
func New(name string, count, width, height int) *Source {
	return &Source{
		name:   name,
		count:  count,
		width:  width,
		height: height,
		Blurry: map[int]bool{},
		Broken: map[int]bool{},
	}
}

// Name returns the synthetic path
func (s *Source) Name() string { return s.name }

// FrameCount returns the number of frames
func (s *Source) FrameCount() int { return s.count }

// ReadFrame renders frame index: a checkerboard, or flat grey when marked blurry
func (s *Source) ReadFrame(ctx context.Context, index int) (image.Image, error) {
	s.mu.Lock()
	s.reads = append(s.reads, index)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= s.count || s.Broken[index] {
		return nil, fmt.Errorf("%w: synthetic frame %d", types.ErrDecode, index)
	}
	return Frame(s.width, s.height, index, s.Blurry[index]), nil
}

// Close records the call
func (s *Source) Close() error {
	s.mu.Lock()
	s.close++
	s.mu.Unlock()
	return nil
}

// Reads returns the indices passed to ReadFrame, in call order
func (s *Source) Reads() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.reads...)
}

// Closed returns how many times Close was called
func (s *Source) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.close
}

// Frame renders one synthetic frame. The index shifts the pattern so frames differ.
func Frame(width, height, index int, flat bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBA{128, 128, 128, 255}
			if !flat {
				if ((x+index)/4+y/4)%2 == 0 {
					c = color.NRGBA{250, 250, 250, 255}
				} else {
					c = color.NRGBA{5, 5, 5, 255}
				}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}
