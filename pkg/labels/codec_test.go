package labels

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/frame-annotator/pkg/types"
)

var working = types.Resolution{Width: 640, Height: 360}

func TestFromBoxNormalizes(t *testing.T) {
	box := types.BoundingBox{X1: 100, Y1: 50, X2: 300, Y2: 200, ClassID: 2}
	l := FromBox(box, working)

	assert.Equal(t, 2, l.ClassID)
	assert.InDelta(t, 0.3125, l.XCenter, 1e-3)
	assert.InDelta(t, 0.3472, l.YCenter, 1e-3)
	assert.InDelta(t, 0.3125, l.Width, 1e-3)
	assert.InDelta(t, 0.4167, l.Height, 1e-3)
}

func TestFromBoxClipsToFrame(t *testing.T) {
	// Moved and grown past the right edge
	box := types.BoundingBox{X1: 540, Y1: 300, X2: 750, Y2: 350}
	assert.Equal(t, "0 0.921875 0.902778 0.156250 0.138889", FromBox(box, working).String())

	box = types.BoundingBox{X1: -20, Y1: -10, X2: 60, Y2: 400, ClassID: 1}
	assert.Equal(t, "1 0.046875 0.500000 0.093750 1.000000", FromBox(box, working).String())
}

func TestEncodeFormat(t *testing.T) {
	boxes := []types.BoundingBox{
		{X1: 100, Y1: 50, X2: 300, Y2: 200, Angle: 45, ClassID: 1},
		{X1: 0, Y1: 0, X2: 640, Y2: 360, ClassID: 0},
	}
	data, err := Marshal(boxes, working)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1 0.312500 0.347222 0.312500 0.416667", lines[0])
	assert.Equal(t, "0 0.500000 0.500000 1.000000 1.000000", lines[1])
	for _, line := range lines {
		assert.Len(t, strings.Fields(line), Fields, "angle is never written")
	}
}

func TestEncodeEmpty(t *testing.T) {
	data, err := Marshal(nil, working)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestEncodeInvalidResolution(t *testing.T) {
	_, err := Marshal([]types.BoundingBox{{X2: 1, Y2: 1}}, types.Resolution{})
	assert.Error(t, err)
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip_frame_0005.txt")
	boxes := []types.BoundingBox{
		{X1: 100, Y1: 50, X2: 300, Y2: 200, ClassID: 3},
		{X1: 10, Y1: 20, X2: 50, Y2: 80, ClassID: 7},
	}
	require.NoError(t, os.WriteFile(path, []byte("stale contents\n"), 0644))
	require.NoError(t, WriteFile(path, boxes, working))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	back := make([]types.BoundingBox, len(got))
	for i, l := range got {
		back[i] = l.ToBox(working)
	}
	if diff := cmp.Diff(boxes, back, cmpopts.EquateApprox(0, 1e-3)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFileMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "x.txt")
	err := WriteFile(path, []types.BoundingBox{{X2: 10, Y2: 10}}, working)
	assert.ErrorIs(t, err, types.ErrIO)
}

func TestParse(t *testing.T) {
	input := "0 0.5 0.5 0.25 0.25\n\n1 0.1 0.2 0.3 0.4 15\n"
	got, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []Label{
		{ClassID: 0, XCenter: 0.5, YCenter: 0.5, Width: 0.25, Height: 0.25},
		{ClassID: 1, XCenter: 0.1, YCenter: 0.2, Width: 0.3, Height: 0.4},
	}, got)
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"0 0.5 0.5 0.25\n",
		"x 0.5 0.5 0.25 0.25\n",
		"0 0.5 nope 0.25 0.25\n",
		"0 1 2 3 4 5 6\n",
	} {
		_, err := Parse(strings.NewReader(input))
		assert.Error(t, err, "input %q", input)
	}
}
