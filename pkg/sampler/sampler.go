package sampler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/menta2k/frame-annotator/pkg/blur"
	"github.com/menta2k/frame-annotator/pkg/types"
	"github.com/menta2k/frame-annotator/pkg/video"
)

// ErrStop can be returned from a Walk callback to end sampling early without an error
var ErrStop = errors.New("stop sampling")

// Config holds sampling parameters
type Config struct {
	Stride        int
	BlurThreshold float64
}

// DefaultConfig samples every 5th frame with the default blur threshold
func DefaultConfig() Config {
	return Config{Stride: 5, BlurThreshold: blur.DefaultThreshold}
}

// Stats counts what happened during a walk
type Stats struct {
	Visited  int
	Accepted int
	Blurry   int
	Failed   int
	Skipped  int
}

// Sampler walks a video at a fixed stride and keeps sharp frames
type Sampler struct {
	config Config
	filter *blur.Filter
	logger *zap.Logger
}

// New creates a Sampler
func New(config Config, logger *zap.Logger) (*Sampler, error) {
	if config.Stride < 1 {
		return nil, fmt.Errorf("sampling stride must be at least 1, got %d", config.Stride)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sampler{
		config: config,
		filter: blur.NewWithThreshold(config.BlurThreshold),
		logger: logger,
	}, nil
}

// Walk visits indices 0, stride, 2*stride, ... below the frame count and
// calls fn for every frame that decodes and is not blurry. Indices below
// startAt are passed over without decoding. Decode failures are logged and
// skipped.
func (s *Sampler) Walk(ctx context.Context, src video.Source, startAt int, fn func(types.Candidate) error) (Stats, error) {
	var stats Stats
	name := filepath.Base(src.Name())
	total := src.FrameCount()

	for idx := 0; idx < total; idx += s.config.Stride {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if idx < startAt {
			stats.Skipped++
			continue
		}
		stats.Visited++

		img, err := src.ReadFrame(ctx, idx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			stats.Failed++
			s.logger.Warn("unable to read frame",
				zap.String("video", name),
				zap.Int("index", idx),
				zap.Error(err),
			)
			continue
		}

		if s.filter.IsBlurry(img) {
			stats.Blurry++
			s.logger.Info("skipped blurry frame",
				zap.String("video", name),
				zap.Int("index", idx),
			)
			continue
		}

		stats.Accepted++
		if err := fn(types.Candidate{Index: idx, Image: img}); err != nil {
			if errors.Is(err, ErrStop) {
				return stats, nil
			}
			return stats, err
		}
	}

	s.logger.Debug("sampling finished",
		zap.String("video", name),
		zap.Int("visited", stats.Visited),
		zap.Int("accepted", stats.Accepted),
		zap.Int("blurry", stats.Blurry),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// Sample collects every accepted frame in increasing index order
func (s *Sampler) Sample(ctx context.Context, src video.Source) ([]types.Candidate, error) {
	var frames []types.Candidate
	_, err := s.Walk(ctx, src, 0, func(c types.Candidate) error {
		frames = append(frames, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frames, nil
}

// SampleFile opens path, samples it, and closes it. A source that cannot be
// opened yields no frames and an ErrSource error.
func (s *Sampler) SampleFile(ctx context.Context, path string, opts video.Options) ([]types.Candidate, error) {
	src, err := video.Open(ctx, path, opts)
	if err != nil {
		s.logger.Error("unable to open video file", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	defer src.Close()
	return s.Sample(ctx, src)
}
