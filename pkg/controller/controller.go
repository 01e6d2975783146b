// Package controller drives a whole annotation run: it walks the input
// directory, samples every unfinished video, runs one annotation session per
// candidate frame and keeps the resume files up to date.
package controller

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/menta2k/frame-annotator/internal/utils"
	"github.com/menta2k/frame-annotator/pkg/annotation"
	"github.com/menta2k/frame-annotator/pkg/imageio"
	"github.com/menta2k/frame-annotator/pkg/output"
	"github.com/menta2k/frame-annotator/pkg/resume"
	"github.com/menta2k/frame-annotator/pkg/sampler"
	"github.com/menta2k/frame-annotator/pkg/surface"
	"github.com/menta2k/frame-annotator/pkg/types"
	"github.com/menta2k/frame-annotator/pkg/video"
)

var (
	errVideoAborted   = errors.New("video aborted")
	errSessionAborted = errors.New("session aborted")
)

// Config is everything a run needs besides its collaborators
type Config struct {
	InputDir         string
	VideoExtensions  []string
	IncludeImageDirs bool
	Sampler          sampler.Config
	Resolution       types.Resolution
	Policy           annotation.Policy
	DefaultClass     int
	Video            video.Options
	// Open replaces video.Open, mainly for tests
	Open video.OpenFunc
}

// Summary reports what a run did
type Summary struct {
	Videos        int  `json:"videos"`
	Completed     int  `json:"completed"`
	AlreadyDone   int  `json:"already_done"`
	Unreadable    int  `json:"unreadable"`
	Frames        int  `json:"frames"`
	Committed     int  `json:"committed"`
	Skipped       int  `json:"skipped"`
	Aborted       bool `json:"aborted"`
	ResumeCursor  int  `json:"resume_cursor"`
	SamplerFailed int  `json:"decode_failures"`
	SamplerBlurry int  `json:"blurry_frames"`
}

// Controller runs annotation over a directory of videos
type Controller struct {
	config  Config
	surface surface.Surface
	writer  *output.Writer
	store   *resume.Store
	sampler *sampler.Sampler
	logger  *zap.Logger

	// class carries across frames and videos
	class int
}

// New creates a Controller
func New(config Config, surf surface.Surface, writer *output.Writer, store *resume.Store, logger *zap.Logger) (*Controller, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if surf == nil || writer == nil || store == nil {
		return nil, fmt.Errorf("controller needs a surface, a writer and a resume store")
	}
	if config.Resolution.Width <= 0 || config.Resolution.Height <= 0 {
		config.Resolution = types.WorkingResolution
	}
	if len(config.VideoExtensions) == 0 {
		config.VideoExtensions = utils.DefaultVideoExtensions
	}
	if config.Open == nil {
		config.Open = video.Open
	}
	if config.Video.Logger == nil {
		config.Video.Logger = logger
	}
	smp, err := sampler.New(config.Sampler, logger)
	if err != nil {
		return nil, err
	}
	return &Controller{
		config:  config,
		surface: surf,
		writer:  writer,
		store:   store,
		sampler: smp,
		logger:  logger,
		class:   config.DefaultClass,
	}, nil
}

// Run processes every unfinished video. It returns early, with the cursor
// saved, when the user aborts the session or ctx is cancelled.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	if err := c.writer.EnsureDirs(); err != nil {
		return sum, err
	}
	files, err := utils.ListVideoFiles(c.config.InputDir, c.config.VideoExtensions, c.config.IncludeImageDirs)
	if err != nil {
		return sum, fmt.Errorf("list videos in %s: %w", c.config.InputDir, err)
	}
	completed, err := c.store.Completed()
	if err != nil {
		return sum, err
	}
	cursor, err := c.store.Cursor()
	if err != nil {
		return sum, err
	}
	sum.Videos = len(files)
	c.logger.Info("starting run",
		zap.String("input", c.config.InputDir),
		zap.Int("videos", len(files)),
		zap.Int("completed", len(completed)),
		zap.Int("cursor", cursor),
	)

	names := utils.VideoNames(files)
	for i, file := range files {
		name := names[i]
		if completed[name] {
			sum.AlreadyDone++
			c.logger.Info("skipped video, processed previously", zap.String("video", name))
			continue
		}

		res, err := c.runVideo(ctx, file, name, cursor, &sum)
		switch {
		case errors.Is(err, types.ErrSource):
			sum.Unreadable++
			c.logger.Error("unable to open video file", zap.String("video", name), zap.Error(err))
			continue
		case errors.Is(err, errSessionAborted):
			sum.Aborted = true
			sum.ResumeCursor = res.resumeAt
			if serr := c.store.SetCursor(res.resumeAt); serr != nil {
				return sum, serr
			}
			c.logger.Info("session aborted", zap.String("video", name), zap.Int("cursor", res.resumeAt))
			return sum, res.cause
		case err != nil:
			return sum, err
		}

		if err := c.store.MarkCompleted(name); err != nil {
			return sum, err
		}
		if err := c.store.ResetCursor(); err != nil {
			return sum, err
		}
		completed[name] = true
		cursor = 0
		sum.Completed++
		c.logger.Info("video finished", zap.String("video", name), zap.Bool("aborted", res.videoAborted))
	}

	c.logger.Info("all done",
		zap.Int("completed", sum.Completed),
		zap.Int("committed", sum.Committed),
		zap.Int("skipped", sum.Skipped),
	)
	return sum, nil
}

type videoResult struct {
	videoAborted bool
	// resumeAt and cause are set when the session was aborted
	resumeAt int
	cause    error
}

func (c *Controller) runVideo(ctx context.Context, path, name string, startAt int, sum *Summary) (videoResult, error) {
	var res videoResult

	src, err := c.config.Open(ctx, path, c.config.Video)
	if err != nil {
		return res, err
	}
	defer src.Close()

	log := c.logger.With(zap.String("video", name))
	log.Info("processing video", zap.Int("frames", src.FrameCount()), zap.Int("start_at", startAt))

	// next is the first index not yet finished, where a cancelled run resumes
	next := startAt
	stats, err := c.sampler.Walk(ctx, src, startAt, func(cand types.Candidate) error {
		sum.Frames++
		frame := imageio.Resize(cand.Image, c.config.Resolution)
		outcome, cause := c.annotate(ctx, name, cand.Index, frame, log)
		switch outcome {
		case annotation.Committed:
			sum.Committed++
		case annotation.Skipped:
			sum.Skipped++
		case annotation.VideoAborted:
			return errVideoAborted
		default:
			res.resumeAt = cand.Index
			res.cause = cause
			return errSessionAborted
		}
		next = cand.Index + 1
		return nil
	})
	sum.SamplerFailed += stats.Failed
	sum.SamplerBlurry += stats.Blurry

	switch {
	case err == nil:
	case errors.Is(err, errVideoAborted):
		res.videoAborted = true
	case errors.Is(err, errSessionAborted):
		return res, err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		res.resumeAt = next
		return res, errSessionAborted
	default:
		return res, err
	}
	return res, nil
}

// annotate runs one session. The returned error explains a SessionAborted
// outcome that was not requested by the user.
func (c *Controller) annotate(ctx context.Context, name string, index int, frame image.Image, log *zap.Logger) (annotation.Outcome, error) {
	base := utils.FrameBaseName(name, index)
	commit := func(req annotation.CommitRequest) error {
		_, err := c.writer.Write(base, output.Frame{
			Original:  req.Original,
			Annotated: req.Annotated,
			Boxes:     req.Boxes,
		})
		return err
	}

	sess := annotation.NewSession(frame, c.class, c.config.Policy, commit,
		log.With(zap.Int("frame", index)))

	view := sess.View()
	if err := c.show(ctx, name, index, view, ""); err != nil {
		return annotation.SessionAborted, err
	}

	for {
		ev, err := c.surface.NextEvent(ctx)
		if err != nil {
			if errors.Is(err, surface.ErrClosed) || ctx.Err() != nil {
				return annotation.SessionAborted, nil
			}
			return annotation.SessionAborted, fmt.Errorf("read input: %w", err)
		}

		outcome, err := sess.Handle(ev)
		c.class = sess.ClassID()
		if err != nil {
			view = sess.View()
			if serr := c.show(ctx, name, index, view, err.Error()); serr != nil {
				return annotation.SessionAborted, serr
			}
			continue
		}
		if outcome.Done() {
			log.Debug("frame done", zap.Int("frame", index), zap.Stringer("outcome", outcome))
			return outcome, nil
		}
		if v := sess.View(); v != view {
			view = v
			if err := c.show(ctx, name, index, view, ""); err != nil {
				return annotation.SessionAborted, err
			}
		}
	}
}

func (c *Controller) show(ctx context.Context, name string, index int, img image.Image, message string) error {
	err := c.surface.Show(ctx, surface.Frame{Image: img, Video: name, Index: index, Message: message})
	if err != nil {
		return fmt.Errorf("show frame: %w", err)
	}
	return nil
}
