package output

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/menta2k/frame-annotator/internal/utils"
	"github.com/menta2k/frame-annotator/pkg/imageio"
	"github.com/menta2k/frame-annotator/pkg/labels"
	"github.com/menta2k/frame-annotator/pkg/types"
)

// Dirs are the three artifact directories
type Dirs struct {
	Original  string `json:"original_dir"`
	Annotated string `json:"annotated_dir"`
	Labels    string `json:"label_dir"`
}

// DefaultDirs returns the directory names relative to the working directory
func DefaultDirs() Dirs {
	return Dirs{
		Original:  "original_frames",
		Annotated: "output_frames",
		Labels:    "labels",
	}
}

// Frame is everything persisted for one committed frame
type Frame struct {
	Original  image.Image
	Annotated image.Image
	Boxes     []types.BoundingBox
}

// Paths are the files written for one frame
type Paths struct {
	Original  string
	Annotated string
	Label     string
}

// Writer persists committed frames. Either all three files are written or none.
type Writer struct {
	dirs       Dirs
	image      imageio.Options
	resolution types.Resolution
	logger     *zap.Logger
}

// NewWriter creates a Writer
func NewWriter(dirs Dirs, opts imageio.Options, res types.Resolution, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dirs: dirs, image: opts, resolution: res, logger: logger}
}

// EnsureDirs creates the artifact directories
func (w *Writer) EnsureDirs() error {
	for _, dir := range []string{w.dirs.Original, w.dirs.Annotated, w.dirs.Labels} {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("%w: create %s: %v", types.ErrIO, dir, err)
		}
	}
	return nil
}

// PathsFor returns the artifact paths for a base name
func (w *Writer) PathsFor(base string) Paths {
	ext := imageio.Extension(w.image.Format)
	return Paths{
		Original:  filepath.Join(w.dirs.Original, base+"."+ext),
		Annotated: filepath.Join(w.dirs.Annotated, base+"."+ext),
		Label:     filepath.Join(w.dirs.Labels, base+"."+labels.Extension),
	}
}

// Write stores the annotated image, the original image and the label file
// under base. On failure anything already written is removed.
func (w *Writer) Write(base string, frame Frame) (Paths, error) {
	paths := w.PathsFor(base)
	var written []string

	fail := func(what string, err error) (Paths, error) {
		for _, p := range written {
			if rmErr := os.Remove(p); rmErr != nil && !os.IsNotExist(rmErr) {
				w.logger.Warn("failed to remove partial artifact", zap.String("path", p), zap.Error(rmErr))
			}
		}
		return Paths{}, fmt.Errorf("%w: %s: %v", types.ErrIO, what, err)
	}

	if err := imageio.SaveImage(frame.Annotated, paths.Annotated, w.image); err != nil {
		return fail("save annotated frame", err)
	}
	written = append(written, paths.Annotated)

	if err := imageio.SaveImage(frame.Original, paths.Original, w.image); err != nil {
		return fail("save original frame", err)
	}
	written = append(written, paths.Original)

	if err := labels.WriteFile(paths.Label, frame.Boxes, w.resolution); err != nil {
		return fail("save labels", err)
	}

	w.logger.Info("saved frame",
		zap.String("annotated", paths.Annotated),
		zap.String("original", paths.Original),
		zap.String("labels", paths.Label),
		zap.Int("boxes", len(frame.Boxes)),
	)
	return paths, nil
}
