package types

import (
	"errors"
	"image"
	"math"
)

// Error taxonomy shared by every package. Callers wrap these with context
// and test them with errors.Is.
var (
	// ErrSource means a video could not be opened at all.
	ErrSource = errors.New("video source unavailable")
	// ErrDecode means a single frame could not be read.
	ErrDecode = errors.New("frame decode failed")
	// ErrIO means an artifact could not be written.
	ErrIO = errors.New("output write failed")
	// ErrState means a command did not apply to the current state.
	ErrState = errors.New("command not applicable")
)

// Point is a position in working-resolution pixel space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox is a rotated box in working-resolution pixel coordinates.
// X1,Y1 is always the top-left and X2,Y2 the bottom-right corner.
type BoundingBox struct {
	X1      float64 `json:"x1"`
	Y1      float64 `json:"y1"`
	X2      float64 `json:"x2"`
	Y2      float64 `json:"y2"`
	Angle   float64 `json:"angle"`
	ClassID int     `json:"class_id"`
}

// NewBoundingBox builds a box from two opposite corners in any order
func NewBoundingBox(a, b Point, angle float64, classID int) BoundingBox {
	return BoundingBox{
		X1:      math.Min(a.X, b.X),
		Y1:      math.Min(a.Y, b.Y),
		X2:      math.Max(a.X, b.X),
		Y2:      math.Max(a.Y, b.Y),
		Angle:   NormalizeAngle(angle),
		ClassID: classID,
	}
}

// Min returns the top-left corner
func (b BoundingBox) Min() Point { return Point{X: b.X1, Y: b.Y1} }

// Max returns the bottom-right corner
func (b BoundingBox) Max() Point { return Point{X: b.X2, Y: b.Y2} }

// Center returns the center of the box
func (b BoundingBox) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Width returns the horizontal extent
func (b BoundingBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Translate returns the box moved by dx, dy
func (b BoundingBox) Translate(dx, dy float64) BoundingBox {
	b.X1 += dx
	b.X2 += dx
	b.Y1 += dy
	b.Y2 += dy
	return b
}

// NormalizeAngle reduces an angle in degrees into [0, 360)
func NormalizeAngle(angle float64) float64 {
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}

// Candidate is a sampled frame that passed the blur filter
type Candidate struct {
	Index int
	Image image.Image
}

// Resolution is a raster size in pixels
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WorkingResolution is the size every frame is resized to before annotation
var WorkingResolution = Resolution{Width: 640, Height: 360}
