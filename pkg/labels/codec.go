// Package labels encodes committed boxes into normalized detection label files.
//
// Each line is "class_id x_center y_center width height" with the four
// geometric values divided by the working width or height. The rotation
// angle is not stored: training pipelines read a fixed five columns.
package labels

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/menta2k/frame-annotator/pkg/types"
)

// Extension is the label file extension
const Extension = "txt"

// Fields per label line
const Fields = 5

// Label is one normalized line of a label file
type Label struct {
	ClassID int
	XCenter float64
	YCenter float64
	Width   float64
	Height  float64
}

// FromBox normalizes a box by the working resolution. Corners past the
// frame edge are clipped to it first, so every value stays within [0,1].
func FromBox(box types.BoundingBox, res types.Resolution) Label {
	w, h := float64(res.Width), float64(res.Height)
	x1, x2 := clamp(box.X1, w), clamp(box.X2, w)
	y1, y2 := clamp(box.Y1, h), clamp(box.Y2, h)
	return Label{
		ClassID: box.ClassID,
		XCenter: (x1 + x2) / 2 / w,
		YCenter: (y1 + y2) / 2 / h,
		Width:   (x2 - x1) / w,
		Height:  (y2 - y1) / h,
	}
}

func clamp(v, limit float64) float64 {
	return math.Max(0, math.Min(v, limit))
}

// String formats the label as one line without a trailing newline
func (l Label) String() string {
	return fmt.Sprintf("%d %s %s %s %s", l.ClassID,
		formatFloat(l.XCenter), formatFloat(l.YCenter), formatFloat(l.Width), formatFloat(l.Height))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// Encode writes one line per box to w
func Encode(w io.Writer, boxes []types.BoundingBox, res types.Resolution) error {
	if res.Width <= 0 || res.Height <= 0 {
		return fmt.Errorf("invalid working resolution %dx%d", res.Width, res.Height)
	}
	bw := bufio.NewWriter(w)
	for _, box := range boxes {
		if _, err := bw.WriteString(FromBox(box, res).String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Marshal returns the label file contents for boxes
func Marshal(boxes []types.BoundingBox, res types.Resolution) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, boxes, res); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes the label file at path, replacing any existing file.
// The parent directory must already exist.
func WriteFile(path string, boxes []types.BoundingBox, res types.Resolution) error {
	data, err := Marshal(boxes, res)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: write label file: %v", types.ErrIO, err)
	}
	return nil
}

// Parse reads label lines. Blank lines are skipped; a sixth angle column
// written by older tools is accepted and dropped.
func Parse(r io.Reader) ([]Label, error) {
	var out []Label
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != Fields && len(fields) != Fields+1 {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", lineNo, Fields, len(fields))
		}

		classID, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: class id: %w", lineNo, err)
		}
		var values [4]float64
		for i := range values {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: field %d: %w", lineNo, i+2, err)
			}
			values[i] = v
		}
		out = append(out, Label{
			ClassID: classID,
			XCenter: values[0],
			YCenter: values[1],
			Width:   values[2],
			Height:  values[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFile parses the label file at path
func ReadFile(path string) ([]Label, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// ToBox converts a label back to pixel coordinates at res
func (l Label) ToBox(res types.Resolution) types.BoundingBox {
	w, h := float64(res.Width), float64(res.Height)
	cx, cy := l.XCenter*w, l.YCenter*h
	bw, bh := l.Width*w, l.Height*h
	return types.BoundingBox{
		X1:      cx - bw/2,
		Y1:      cy - bh/2,
		X2:      cx + bw/2,
		Y2:      cy + bh/2,
		ClassID: l.ClassID,
	}
}
