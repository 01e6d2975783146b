package output

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/menta2k/frame-annotator/pkg/imageio"
	"github.com/menta2k/frame-annotator/pkg/types"
)

func createTestImage(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), 90, 255})
		}
	}
	return img
}

func testDirs(root string) Dirs {
	return Dirs{
		Original:  filepath.Join(root, "original_frames"),
		Annotated: filepath.Join(root, "output_frames"),
		Labels:    filepath.Join(root, "labels"),
	}
}

func listAll(t *testing.T, dirs Dirs) []string {
	t.Helper()
	var out []string
	for _, dir := range []string{dirs.Original, dirs.Annotated, dirs.Labels} {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			out = append(out, filepath.Join(filepath.Base(dir), e.Name()))
		}
	}
	return out
}

func TestWriteProducesThreeArtifacts(t *testing.T) {
	for _, format := range []string{imageio.FormatJPEG, imageio.FormatPNG} {
		t.Run(format, func(t *testing.T) {
			dirs := testDirs(t.TempDir())
			w := NewWriter(dirs, imageio.Options{Format: format, Quality: 90}, types.WorkingResolution, zaptest.NewLogger(t))
			require.NoError(t, w.EnsureDirs())

			img := createTestImage(64, 36)
			paths, err := w.Write("clip_frame_0005", Frame{
				Original:  img,
				Annotated: img,
				Boxes:     []types.BoundingBox{{X1: 100, Y1: 50, X2: 300, Y2: 200}},
			})
			require.NoError(t, err)

			files := listAll(t, dirs)
			assert.ElementsMatch(t, []string{
				filepath.Join("original_frames", "clip_frame_0005."+format),
				filepath.Join("output_frames", "clip_frame_0005."+format),
				filepath.Join("labels", "clip_frame_0005.txt"),
			}, files)

			for _, p := range []string{paths.Original, paths.Annotated, paths.Label} {
				base := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
				assert.Equal(t, "clip_frame_0005", base)
			}

			loaded, err := imageio.LoadImage(paths.Original)
			require.NoError(t, err)
			assert.Equal(t, 64, loaded.Bounds().Dx())
		})
	}
}

func TestWriteFailureLeavesNothing(t *testing.T) {
	dirs := testDirs(t.TempDir())
	w := NewWriter(dirs, imageio.DefaultOptions(), types.WorkingResolution, zaptest.NewLogger(t))
	require.NoError(t, w.EnsureDirs())

	// Label directory replaced by a file so the last write fails
	require.NoError(t, os.RemoveAll(dirs.Labels))
	require.NoError(t, os.WriteFile(dirs.Labels, []byte("x"), 0644))

	img := createTestImage(32, 18)
	_, err := w.Write("clip_frame_0010", Frame{Original: img, Annotated: img})
	require.ErrorIs(t, err, types.ErrIO)

	for _, dir := range []string{dirs.Original, dirs.Annotated} {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "partial artifacts must be removed from %s", dir)
	}
}

func TestWriteMissingDirectories(t *testing.T) {
	dirs := testDirs(t.TempDir())
	w := NewWriter(dirs, imageio.DefaultOptions(), types.WorkingResolution, nil)

	img := createTestImage(16, 9)
	_, err := w.Write("x", Frame{Original: img, Annotated: img})
	assert.ErrorIs(t, err, types.ErrIO)
}

func TestPathsFor(t *testing.T) {
	w := NewWriter(DefaultDirs(), imageio.Options{Format: imageio.FormatWebP}, types.WorkingResolution, nil)
	p := w.PathsFor("a_frame_0001")
	assert.Equal(t, filepath.Join("original_frames", "a_frame_0001.webp"), p.Original)
	assert.Equal(t, filepath.Join("output_frames", "a_frame_0001.webp"), p.Annotated)
	assert.Equal(t, filepath.Join("labels", "a_frame_0001.txt"), p.Label)
}
