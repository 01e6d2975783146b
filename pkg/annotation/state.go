package annotation

import (
	"github.com/menta2k/frame-annotator/pkg/geometry"
	"github.com/menta2k/frame-annotator/pkg/types"
)

// Mode is the pointer interaction mode
type Mode int

const (
	ModeIdle Mode = iota
	ModeDrawing
	ModeDragging
)

func (m Mode) String() string {
	switch m {
	case ModeDrawing:
		return "drawing"
	case ModeDragging:
		return "dragging"
	}
	return "idle"
}

// Accumulators are the frame-global size and position adjustments. They
// apply to every box of the frame at render and commit time.
type Accumulators struct {
	Length     float64 `json:"length"`
	Height     float64 `json:"height"`
	Horizontal float64 `json:"horizontal"`
	Vertical   float64 `json:"vertical"`
}

// State is the mutable annotation state of one frame
type State struct {
	Boxes    []types.BoundingBox
	Rotation float64
	Adjust   Accumulators
	ClassID  int
	Mode     Mode

	// Anchor is where the box being drawn started
	Anchor types.Point
	// Cursor is the last pointer position seen
	Cursor types.Point
	// Selected is the index of the box being dragged, or -1
	Selected int
}

// NewState returns a fresh state whose new boxes get classID
func NewState(classID int) *State {
	return &State{ClassID: classID, Selected: -1}
}

// Rotate adds step degrees to the session rotation, modulo 360
func (s *State) Rotate(step float64) {
	s.Rotation = types.NormalizeAngle(s.Rotation + step)
}

// EffectiveBox applies the accumulators and session rotation to a stored box.
// Moves shift both corners by half the accumulated amount; resizes grow each
// side by half.
func (s *State) EffectiveBox(b types.BoundingBox) types.BoundingBox {
	a := s.Adjust
	p1 := types.Point{
		X: b.X1 + a.Horizontal/2 - a.Length/2,
		Y: b.Y1 + a.Vertical/2 - a.Height/2,
	}
	p2 := types.Point{
		X: b.X2 + a.Horizontal/2 + a.Length/2,
		Y: b.Y2 + a.Vertical/2 + a.Height/2,
	}
	return types.NewBoundingBox(p1, p2, s.Rotation, b.ClassID)
}

// EffectiveBoxes returns every box as it is rendered and committed
func (s *State) EffectiveBoxes() []types.BoundingBox {
	out := make([]types.BoundingBox, len(s.Boxes))
	for i, b := range s.Boxes {
		out[i] = s.EffectiveBox(b)
	}
	return out
}

// HitTest returns the index of the first stored box containing p at the
// current rotation, or -1. The accumulators are not applied, so once the
// boxes were moved or resized by key the grab area is the box as drawn
// before those adjustments.
func (s *State) HitTest(p types.Point) int {
	for i, b := range s.Boxes {
		if geometry.BoxContains(b, p, s.Rotation) {
			return i
		}
	}
	return -1
}

// Scene describes what to draw for this state
func (s *State) Scene(withPreview bool) geometry.Scene {
	scene := geometry.Scene{
		Polygons: make([]geometry.Polygon, 0, len(s.Boxes)),
		Angle:    s.Rotation,
		ClassID:  s.ClassID,
	}
	for _, b := range s.EffectiveBoxes() {
		scene.Polygons = append(scene.Polygons, geometry.BoxPolygon(b, b.Angle))
	}
	if withPreview && s.Mode == ModeDrawing {
		preview := geometry.RotatedRect(s.Anchor, s.Cursor, s.Rotation)
		scene.Preview = &preview
	}
	return scene
}

// Clone returns a deep copy
func (s *State) Clone() *State {
	c := *s
	c.Boxes = append([]types.BoundingBox(nil), s.Boxes...)
	return &c
}
