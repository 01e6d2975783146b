package video

import (
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/menta2k/frame-annotator/pkg/types"
)

// FFmpegSource decodes a video by streaming raw RGBA frames out of ffmpeg.
// Forward seeks discard frames from the pipe; backward seeks restart the decoder.
type FFmpegSource struct {
	path       string
	ffmpegPath string
	logger     *zap.Logger

	width, height int
	count         int
	frameSize     int

	cmd    *exec.Cmd
	stdout io.ReadCloser
	pos    int
}

// OpenFFmpeg probes path with ffprobe and prepares a decoder
func OpenFFmpeg(ctx context.Context, path string, opts Options) (*FFmpegSource, error) {
	ffmpegPath := opts.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	ffprobePath := opts.FFprobePath
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	width, height, count, err := probe(ctx, ffprobePath, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSource, path, err)
	}

	s := &FFmpegSource{
		path:       path,
		ffmpegPath: ffmpegPath,
		logger:     loggerOrNop(opts.Logger),
		width:      width,
		height:     height,
		count:      count,
		frameSize:  width * height * 4,
	}
	s.logger.Debug("video probed",
		zap.String("path", path),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("frames", count),
	)
	return s, nil
}

func probe(ctx context.Context, ffprobePath, path string) (int, int, int, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=width,height,nb_read_packets",
		"-of", "csv=p=0",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(string(output))
}

// parseProbe reads "width,height,frames" as printed by ffprobe's csv writer
func parseProbe(output string) (int, int, int, error) {
	line := strings.TrimSpace(output)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	fields := strings.Split(line, ",")
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("unexpected ffprobe output %q", line)
	}
	values := make([]int, 3)
	for i := range values {
		v, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return 0, 0, 0, fmt.Errorf("parse ffprobe field %d of %q: %w", i, line, err)
		}
		values[i] = v
	}
	if values[0] <= 0 || values[1] <= 0 {
		return 0, 0, 0, fmt.Errorf("invalid video size %dx%d", values[0], values[1])
	}
	return values[0], values[1], values[2], nil
}

// Name returns the video path
func (s *FFmpegSource) Name() string { return s.path }

// FrameCount returns the number of packets in the first video stream
func (s *FFmpegSource) FrameCount() int { return s.count }

// Size returns the native frame size
func (s *FFmpegSource) Size() (int, int) { return s.width, s.height }

// ReadFrame decodes the frame at index
func (s *FFmpegSource) ReadFrame(ctx context.Context, index int) (image.Image, error) {
	if index < 0 || index >= s.count {
		return nil, fmt.Errorf("%w: index %d out of range [0,%d)", types.ErrDecode, index, s.count)
	}

	if s.stdout == nil || index < s.pos {
		if err := s.restart(ctx); err != nil {
			return nil, err
		}
	}

	if skip := index - s.pos; skip > 0 {
		if _, err := io.CopyN(io.Discard, s.stdout, int64(skip)*int64(s.frameSize)); err != nil {
			s.stop()
			return nil, fmt.Errorf("%w: skip to frame %d: %v", types.ErrDecode, index, err)
		}
		s.pos = index
	}

	img := image.NewNRGBA(image.Rect(0, 0, s.width, s.height))
	if _, err := io.ReadFull(s.stdout, img.Pix); err != nil {
		s.stop()
		return nil, fmt.Errorf("%w: read frame %d: %v", types.ErrDecode, index, err)
	}
	s.pos = index + 1
	return img, nil
}

func (s *FFmpegSource) restart(ctx context.Context) error {
	s.stop()

	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-v", "error",
		"-i", s.path,
		"-map", "0:v:0",
		"-vsync", "0",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: ffmpeg pipe: %v", types.ErrDecode, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start ffmpeg: %v", types.ErrDecode, err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.pos = 0
	return nil
}

func (s *FFmpegSource) stop() {
	if s.cmd == nil {
		return
	}
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	s.cmd = nil
	s.stdout = nil
	s.pos = 0
}

// Close stops the decoder process
func (s *FFmpegSource) Close() error {
	s.stop()
	return nil
}
