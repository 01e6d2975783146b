package geometry

import (
	"math"

	"github.com/menta2k/frame-annotator/pkg/types"
)

// boundaryEpsilon absorbs floating point error for points on an edge
const boundaryEpsilon = 1e-9

// Polygon is the four vertices of a rotated rectangle, in order
// top-left, top-right, bottom-right, bottom-left before rotation.
type Polygon [4]types.Point

// rotate applies the image-space rotation used everywhere in this package:
// positive angles turn counter-clockwise on screen (y grows downwards).
func rotate(dx, dy, angle float64) (float64, float64) {
	rad := angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	return cos*dx + sin*dy, -sin*dx + cos*dy
}

// RotatedRect builds the polygon of the rectangle spanned by two opposite
// corners, rotated by angle degrees about its own center.
func RotatedRect(a, b types.Point, angle float64) Polygon {
	cx, cy := (a.X+b.X)/2, (a.Y+b.Y)/2
	hw, hh := math.Abs(b.X-a.X)/2, math.Abs(b.Y-a.Y)/2

	corners := [4][2]float64{
		{-hw, -hh},
		{hw, -hh},
		{hw, hh},
		{-hw, hh},
	}

	var poly Polygon
	for i, c := range corners {
		x, y := rotate(c[0], c[1], angle)
		poly[i] = types.Point{X: x + cx, Y: y + cy}
	}
	return poly
}

// ContainsPoint reports whether p lies inside or on the boundary of the
// rotated rectangle spanned by a and b.
func ContainsPoint(p, a, b types.Point, angle float64) bool {
	cx, cy := (a.X+b.X)/2, (a.Y+b.Y)/2
	hw, hh := math.Abs(b.X-a.X)/2, math.Abs(b.Y-a.Y)/2

	// Undo the rotation to land in the rectangle's local frame
	lx, ly := rotate(p.X-cx, p.Y-cy, -angle)
	return math.Abs(lx) <= hw+boundaryEpsilon && math.Abs(ly) <= hh+boundaryEpsilon
}

// BoxPolygon returns the polygon of a box drawn at angle
func BoxPolygon(box types.BoundingBox, angle float64) Polygon {
	return RotatedRect(box.Min(), box.Max(), angle)
}

// BoxContains hit-tests a box drawn at angle
func BoxContains(box types.BoundingBox, p types.Point, angle float64) bool {
	return ContainsPoint(p, box.Min(), box.Max(), angle)
}

// Bounds returns the axis-aligned extent of the polygon
func (p Polygon) Bounds() (types.Point, types.Point) {
	lo, hi := p[0], p[0]
	for _, v := range p[1:] {
		lo.X = math.Min(lo.X, v.X)
		lo.Y = math.Min(lo.Y, v.Y)
		hi.X = math.Max(hi.X, v.X)
		hi.Y = math.Max(hi.Y, v.Y)
	}
	return lo, hi
}
