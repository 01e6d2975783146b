package geometry

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/menta2k/frame-annotator/pkg/types"
)

// Overlay colours and anchors
var (
	OutlineColor = color.NRGBA{0, 255, 0, 255}
	PreviewColor = color.NRGBA{0, 255, 0, 255}
	TextColor    = color.NRGBA{255, 255, 255, 255}

	AngleAnchor = types.Point{X: 10, Y: 30}
	ClassAnchor = types.Point{X: 250, Y: 30}
)

// OutlineWidth is the stroke width of box outlines in pixels
const OutlineWidth = 2.0

// Scene is everything drawn on top of a frame
type Scene struct {
	Polygons []Polygon
	// Preview is the box being sketched, if any
	Preview *Polygon
	Angle   float64
	ClassID int
	// HideText suppresses the angle and class overlays
	HideText bool
}

// Render draws the scene onto a copy of base. base is never modified.
func Render(base image.Image, scene Scene) image.Image {
	dc := gg.NewContextForImage(base)
	dc.SetLineWidth(OutlineWidth)

	for _, poly := range scene.Polygons {
		strokePolygon(dc, poly, OutlineColor)
	}
	if scene.Preview != nil {
		strokePolygon(dc, *scene.Preview, PreviewColor)
	}

	if !scene.HideText {
		dc.SetFontFace(basicfont.Face7x13)
		dc.SetColor(TextColor)
		dc.DrawString(AngleText(scene.Angle), AngleAnchor.X, AngleAnchor.Y)
		dc.DrawString(ClassText(scene.ClassID), ClassAnchor.X, ClassAnchor.Y)
	}

	return dc.Image()
}

// AngleText is the angle overlay label
func AngleText(angle float64) string {
	return fmt.Sprintf("Angle: %.1f", angle)
}

// ClassText is the class overlay label
func ClassText(classID int) string {
	return fmt.Sprintf("Class: %d", classID)
}

func strokePolygon(dc *gg.Context, poly Polygon, c color.Color) {
	dc.SetColor(c)
	dc.NewSubPath()
	dc.MoveTo(poly[0].X, poly[0].Y)
	for _, v := range poly[1:] {
		dc.LineTo(v.X, v.Y)
	}
	dc.ClosePath()
	dc.Stroke()
}
