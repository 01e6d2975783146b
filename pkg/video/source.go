// Package video opens video files as random-access frame sources.
//
// Three backends exist: "ffmpeg" (default, drives the ffmpeg and ffprobe
// executables), "opencv" (gocv bindings, compiled in with -tags opencv), and
// image-sequence directories, which are picked automatically when the path
// is a directory.
package video

import (
	"context"
	"fmt"
	"image"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/menta2k/frame-annotator/pkg/types"
)

// Backend names
const (
	BackendFFmpeg = "ffmpeg"
	BackendOpenCV = "opencv"
)

// Source is a decoded video that can be read frame by frame
type Source interface {
	// Name returns the path the source was opened from
	Name() string
	// FrameCount returns the total number of frames
	FrameCount() int
	// ReadFrame seeks to index and decodes that frame
	ReadFrame(ctx context.Context, index int) (image.Image, error)
	// Close releases decoder resources
	Close() error
}

// Options selects and configures a backend
type Options struct {
	Backend     string
	FFmpegPath  string
	FFprobePath string
	Logger      *zap.Logger
}

// OpenFunc opens a file with one backend
type OpenFunc func(ctx context.Context, path string, opts Options) (Source, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]OpenFunc{
		BackendFFmpeg: func(ctx context.Context, path string, opts Options) (Source, error) {
			return OpenFFmpeg(ctx, path, opts)
		},
	}
)

// Register makes a backend available to Open
func Register(name string, open OpenFunc) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = open
}

// Backends lists the registered backend names
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens path with the configured backend. Directories are read as image sequences.
func Open(ctx context.Context, path string, opts Options) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSource, path, err)
	}
	if info.IsDir() {
		return OpenImageSequence(path)
	}

	name := strings.ToLower(opts.Backend)
	if name == "" {
		name = BackendFFmpeg
	}

	backendsMu.RLock()
	open, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		if name == BackendOpenCV {
			return nil, fmt.Errorf("%w: opencv backend not compiled in (build with -tags opencv)", types.ErrSource)
		}
		return nil, fmt.Errorf("%w: unknown video backend %q", types.ErrSource, opts.Backend)
	}
	return open(ctx, path, opts)
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
