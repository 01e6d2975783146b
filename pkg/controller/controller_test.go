package controller

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/menta2k/frame-annotator/pkg/annotation"
	"github.com/menta2k/frame-annotator/pkg/imageio"
	"github.com/menta2k/frame-annotator/pkg/output"
	"github.com/menta2k/frame-annotator/pkg/resume"
	"github.com/menta2k/frame-annotator/pkg/sampler"
	"github.com/menta2k/frame-annotator/pkg/surface/script"
	"github.com/menta2k/frame-annotator/pkg/types"
	"github.com/menta2k/frame-annotator/pkg/video"
	"github.com/menta2k/frame-annotator/pkg/video/videotest"
)

// fixture is an input directory of two 30 frame videos, a.mp4 and b.mp4.
// With stride 5 each yields frames 0, 5, 10, 15, 20 and 25.
type fixture struct {
	root       string
	dirs       output.Dirs
	files      resume.Files
	sources    map[string]*videotest.Source
	unreadable map[string]bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	input := filepath.Join(root, "videos")
	require.NoError(t, os.MkdirAll(input, 0755))
	for _, name := range []string{"b.mp4", "a.mp4", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(input, name), nil, 0644))
	}
	return &fixture{
		root: root,
		dirs: output.Dirs{
			Original:  filepath.Join(root, "original_frames"),
			Annotated: filepath.Join(root, "output_frames"),
			Labels:    filepath.Join(root, "labels"),
		},
		files: resume.Files{
			Cursor:     filepath.Join(root, resume.DefaultCursorFile),
			Completion: filepath.Join(root, resume.DefaultCompletionFile),
		},
		sources:    map[string]*videotest.Source{},
		unreadable: map[string]bool{},
	}
}

func (f *fixture) open(ctx context.Context, path string, opts video.Options) (video.Source, error) {
	base := filepath.Base(path)
	if f.unreadable[base] {
		return nil, fmt.Errorf("%w: %s", types.ErrSource, base)
	}
	src := videotest.New(path, 30, 640, 360)
	f.sources[base] = src
	return src, nil
}

func (f *fixture) run(t *testing.T, commands string) (Summary, *script.Surface, error) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	surf := script.FromString(commands, nil, logger)
	writer := output.NewWriter(f.dirs, imageio.Options{Format: imageio.FormatPNG}, types.WorkingResolution, logger)
	ctrl, err := New(Config{
		InputDir: filepath.Join(f.root, "videos"),
		Sampler:  sampler.DefaultConfig(),
		Policy:   annotation.DefaultPolicy(),
		Open:     f.open,
	}, surf, writer, resume.NewStore(f.files), logger)
	require.NoError(t, err)

	sum, err := ctrl.Run(context.Background())
	return sum, surf, err
}

func (f *fixture) cursor(t *testing.T) int {
	t.Helper()
	n, err := resume.NewStore(f.files).Cursor()
	require.NoError(t, err)
	return n
}

func (f *fixture) completed(t *testing.T) map[string]bool {
	t.Helper()
	done, err := resume.NewStore(f.files).Completed()
	require.NoError(t, err)
	return done
}

func repeat(cmd string, n int) string {
	return strings.Repeat(cmd+"\n", n)
}

const drawAndCommit = "down 100 50\nmove 200 120\nup 300 200\nkey j"

func TestRunCommitsEveryFrame(t *testing.T) {
	f := newFixture(t)
	sum, surf, err := f.run(t, repeat(drawAndCommit, 12))
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Videos)
	assert.Equal(t, 2, sum.Completed)
	assert.Equal(t, 12, sum.Committed)
	assert.False(t, sum.Aborted)
	assert.Equal(t, map[string]bool{"a": true, "b": true}, f.completed(t))
	assert.Equal(t, 0, f.cursor(t))

	// Videos are processed in name order
	shown := surf.Shown()
	require.NotEmpty(t, shown)
	assert.Equal(t, "a", shown[0].Video)
	assert.Equal(t, "b", shown[len(shown)-1].Video)

	for _, idx := range []int{0, 5, 10, 15, 20, 25} {
		for _, name := range []string{"a", "b"} {
			base := fmt.Sprintf("%s_frame_%04d", name, idx)
			assert.FileExists(t, filepath.Join(f.dirs.Original, base+".png"))
			assert.FileExists(t, filepath.Join(f.dirs.Annotated, base+".png"))
			assert.FileExists(t, filepath.Join(f.dirs.Labels, base+".txt"))
		}
	}

	data, err := os.ReadFile(filepath.Join(f.dirs.Labels, "a_frame_0005.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0 0.312500 0.347222 0.312500 0.416667\n", string(data))
}

func TestSkippedFramesWriteNothing(t *testing.T) {
	f := newFixture(t)
	sum, _, err := f.run(t, repeat("key k", 12))
	require.NoError(t, err)
	assert.Equal(t, 12, sum.Skipped)
	assert.Zero(t, sum.Committed)

	for _, dir := range []string{f.dirs.Original, f.dirs.Annotated, f.dirs.Labels} {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestAbortPersistsCursorAndResumes(t *testing.T) {
	f := newFixture(t)
	sum, _, err := f.run(t, "key k\nkey k\nkey z\n")
	require.NoError(t, err)
	assert.True(t, sum.Aborted)
	assert.Equal(t, 10, sum.ResumeCursor)
	assert.Equal(t, 10, f.cursor(t))
	assert.Empty(t, f.completed(t))

	// The next run starts at frame 10 and never decodes earlier frames
	sum, surf, err := f.run(t, repeat("key k", 10))
	require.NoError(t, err)
	assert.False(t, sum.Aborted)
	assert.Equal(t, []int{10, 15, 20, 25}, f.sources["a.mp4"].Reads())
	assert.Equal(t, []int{0, 5, 10, 15, 20, 25}, f.sources["b.mp4"].Reads())
	assert.Equal(t, 10, surf.Shown()[0].Index)
	assert.Equal(t, 0, f.cursor(t))
	assert.Equal(t, map[string]bool{"a": true, "b": true}, f.completed(t))
}

func TestEndOfInputAbortsSession(t *testing.T) {
	f := newFixture(t)
	sum, _, err := f.run(t, "key k\n")
	require.NoError(t, err)
	assert.True(t, sum.Aborted)
	assert.Equal(t, 5, f.cursor(t))
}

func TestVideoAbortMarksComplete(t *testing.T) {
	f := newFixture(t)
	sum, _, err := f.run(t, "key j\nkey x\nkey z\n")
	require.NoError(t, err)
	assert.True(t, sum.Aborted)
	assert.Equal(t, 1, sum.Completed)
	assert.Equal(t, 1, sum.Committed)
	assert.Equal(t, map[string]bool{"a": true}, f.completed(t))
	assert.Equal(t, 0, f.cursor(t))
	assert.Equal(t, []int{0, 5}, f.sources["a.mp4"].Reads())
}

func TestCompletedVideosAreSkipped(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, resume.NewStore(f.files).MarkCompleted("a"))

	sum, _, err := f.run(t, repeat("key k", 6))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.AlreadyDone)
	assert.Equal(t, 1, sum.Completed)
	assert.NotContains(t, f.sources, "a.mp4")
}

func TestUnreadableVideoIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.unreadable["a.mp4"] = true

	sum, _, err := f.run(t, repeat("key k", 6))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Unreadable)
	assert.Equal(t, map[string]bool{"b": true}, f.completed(t))
}

func TestVideosSharingABaseNameAreBothAnnotated(t *testing.T) {
	f := newFixture(t)
	input := filepath.Join(f.root, "videos")
	for _, name := range []string{"a.avi", "x-y.mp4", "x_y.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(input, name), nil, 0644))
	}

	sum, surf, err := f.run(t, repeat("key k", 30))
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Videos)
	assert.Equal(t, 5, sum.Completed)
	assert.Zero(t, sum.AlreadyDone)
	assert.Equal(t, 30, sum.Frames)
	want := map[string]bool{"a.avi": true, "a": true, "b": true, "x_y": true, "x_y_2": true}
	assert.Equal(t, want, f.completed(t))

	videos := map[string]int{}
	for _, fr := range surf.Shown() {
		videos[fr.Video]++
	}
	assert.Equal(t, map[string]int{"a.avi": 6, "a": 6, "b": 6, "x_y": 6, "x_y_2": 6}, videos)

	// A second run finds everything done
	sum, _, err = f.run(t, "")
	require.NoError(t, err)
	assert.Equal(t, 5, sum.AlreadyDone)
}

func TestBlurryAndBrokenFramesNotShown(t *testing.T) {
	f := newFixture(t)
	open := f.open
	ctrlOpen := func(ctx context.Context, path string, opts video.Options) (video.Source, error) {
		src, err := open(ctx, path, opts)
		if err == nil {
			vs := src.(*videotest.Source)
			vs.Blurry[5] = true
			vs.Broken[10] = true
		}
		return src, err
	}

	logger := zaptest.NewLogger(t)
	surf := script.FromString(repeat("key k", 8), nil, logger)
	writer := output.NewWriter(f.dirs, imageio.DefaultOptions(), types.WorkingResolution, logger)
	ctrl, err := New(Config{
		InputDir: filepath.Join(f.root, "videos"),
		Sampler:  sampler.DefaultConfig(),
		Policy:   annotation.DefaultPolicy(),
		Open:     ctrlOpen,
	}, surf, writer, resume.NewStore(f.files), logger)
	require.NoError(t, err)

	sum, err := ctrl.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, sum.Frames)
	assert.Equal(t, 2, sum.SamplerBlurry)
	assert.Equal(t, 2, sum.SamplerFailed)
	for _, fr := range surf.Shown() {
		assert.NotContains(t, []int{5, 10}, fr.Index)
	}
}

func TestClassCarriesAcrossFrames(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.run(t, "key 2\n"+drawAndCommit+"\n"+drawAndCommit+"\nkey z\n")
	require.NoError(t, err)

	for _, base := range []string{"a_frame_0000", "a_frame_0005"} {
		data, err := os.ReadFile(filepath.Join(f.dirs.Labels, base+".txt"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "2 "), "labels for %s: %q", base, data)
	}
}

func TestOutputDirectoryFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.dirs.Labels, []byte("x"), 0644))
	_, _, err := f.run(t, "")
	assert.ErrorIs(t, err, types.ErrIO)
}

func TestMissingInputDirectory(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.RemoveAll(filepath.Join(f.root, "videos")))
	_, _, err := f.run(t, "")
	assert.Error(t, err)
}

func TestCancelledContextPersistsCursor(t *testing.T) {
	f := newFixture(t)
	logger := zaptest.NewLogger(t)
	writer := output.NewWriter(f.dirs, imageio.DefaultOptions(), types.WorkingResolution, logger)
	ctrl, err := New(Config{
		InputDir: filepath.Join(f.root, "videos"),
		Sampler:  sampler.DefaultConfig(),
		Policy:   annotation.DefaultPolicy(),
		Open:     f.open,
	}, script.FromString("key k\n", nil, logger), writer, resume.NewStore(f.files), logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := ctrl.Run(ctx)
	require.NoError(t, err)
	assert.True(t, sum.Aborted)
	assert.Equal(t, 0, f.cursor(t))
}
