// Package frameannotator extracts sharp frames from videos and lets a person
// draw rotated bounding boxes on them, producing YOLO style label files.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		frameannotator "github.com/menta2k/frame-annotator"
//		"github.com/menta2k/frame-annotator/internal/config"
//	)
//
//	func main() {
//		fa, err := frameannotator.New(config.Default(), nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//		surf, err := fa.OpenSurface()
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer surf.Close()
//
//		summary, err := fa.Run(context.Background(), surf)
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("committed %d frames", summary.Committed)
//	}
//
// The package is made of these components:
//
//  1. Blur filter (pkg/blur): Laplacian variance sharpness test
//  2. Sampler (pkg/sampler): walks a video at a fixed stride and keeps sharp frames
//  3. Annotation session (pkg/annotation): the per-frame editing state machine
//  4. Geometry (pkg/geometry): rotated rectangles, hit testing and overlay rendering
//  5. Labels (pkg/labels): the normalized label file format
//  6. Controller (pkg/controller): the batch run with resume bookkeeping
//
// Frames are decoded with ffmpeg by default, or with OpenCV when built with
// the opencv tag. Directories of images can stand in for videos.
package frameannotator

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/menta2k/frame-annotator/internal/config"
	"github.com/menta2k/frame-annotator/pkg/controller"
	"github.com/menta2k/frame-annotator/pkg/keymap"
	"github.com/menta2k/frame-annotator/pkg/output"
	"github.com/menta2k/frame-annotator/pkg/resume"
	"github.com/menta2k/frame-annotator/pkg/sampler"
	"github.com/menta2k/frame-annotator/pkg/surface"
	"github.com/menta2k/frame-annotator/pkg/surface/script"
	"github.com/menta2k/frame-annotator/pkg/surface/web"
	"github.com/menta2k/frame-annotator/pkg/types"
	"github.com/menta2k/frame-annotator/pkg/video"
)

// Version of the frame annotator
const Version = "1.0.0"

// FrameAnnotator wires configuration into the run components
type FrameAnnotator struct {
	config *config.Config
	logger *zap.Logger
	keymap *keymap.Keymap
	writer *output.Writer
	store  *resume.Store
}

// New validates cfg and prepares the components. A nil logger discards logs.
func New(cfg *config.Config, logger *zap.Logger) (*FrameAnnotator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	km, err := keymap.New(cfg.Keymap)
	if err != nil {
		return nil, err
	}
	return &FrameAnnotator{
		config: cfg,
		logger: logger,
		keymap: km,
		writer: output.NewWriter(cfg.OutputDirs(), cfg.ImageOptions(), cfg.Resolution(), logger),
		store:  resume.NewStore(cfg.State),
	}, nil
}

// Config returns the configuration in use
func (fa *FrameAnnotator) Config() *config.Config { return fa.config }

// Keymap returns the key bindings in use
func (fa *FrameAnnotator) Keymap() *keymap.Keymap { return fa.keymap }

// OpenSurface creates the configured surface. The web surface is already
// listening when this returns.
func (fa *FrameAnnotator) OpenSurface() (surface.Surface, error) {
	switch fa.config.Surface.Kind {
	case config.SurfaceScript:
		return script.Open(fa.config.Surface.Script, fa.keymap, fa.logger)
	default:
		srv := web.New(web.Options{
			Listen:      fa.config.Surface.Listen,
			JPEGQuality: fa.config.Output.Quality,
			Keymap:      fa.keymap,
		}, fa.logger)
		if _, err := srv.Start(); err != nil {
			return nil, err
		}
		return srv, nil
	}
}

// Run annotates every unfinished video in the input directory
func (fa *FrameAnnotator) Run(ctx context.Context, surf surface.Surface) (controller.Summary, error) {
	ctrl, err := controller.New(fa.controllerConfig(), surf, fa.writer, fa.store, fa.logger)
	if err != nil {
		return controller.Summary{}, err
	}
	return ctrl.Run(ctx)
}

// SampleVideo returns the sharp frames of one video at the configured stride,
// without annotating anything
func (fa *FrameAnnotator) SampleVideo(ctx context.Context, path string) ([]types.Candidate, error) {
	smp, err := sampler.New(fa.samplerConfig(), fa.logger)
	if err != nil {
		return nil, err
	}
	return smp.SampleFile(ctx, path, fa.videoOptions())
}

// Reset clears the resume cursor and the completion log
func (fa *FrameAnnotator) Reset() error {
	if err := fa.store.ResetCursor(); err != nil {
		return err
	}
	if err := os.Remove(fa.config.State.Completion); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove completion log: %v", types.ErrIO, err)
	}
	return nil
}

func (fa *FrameAnnotator) samplerConfig() sampler.Config {
	return sampler.Config{
		Stride:        fa.config.Sampler.FrameInterval,
		BlurThreshold: fa.config.Sampler.BlurThreshold,
	}
}

func (fa *FrameAnnotator) videoOptions() video.Options {
	return video.Options{
		Backend:     fa.config.Decoder.Backend,
		FFmpegPath:  fa.config.Decoder.FFmpegPath,
		FFprobePath: fa.config.Decoder.FFprobePath,
		Logger:      fa.logger,
	}
}

func (fa *FrameAnnotator) controllerConfig() controller.Config {
	return controller.Config{
		InputDir:         fa.config.Input.VideoDir,
		VideoExtensions:  fa.config.Input.VideoExtensions,
		IncludeImageDirs: fa.config.Input.IncludeImageDirs,
		Sampler:          fa.samplerConfig(),
		Resolution:       fa.config.Resolution(),
		Policy:           fa.config.Policy(),
		DefaultClass:     fa.config.Annotation.DefaultClassID,
		Video:            fa.videoOptions(),
	}
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
