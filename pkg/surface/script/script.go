// Package script is a non-interactive surface that replays commands from a
// text stream, for batch runs and tests.
//
// One command per line:
//
//	key t          press a key (names as in the keymap)
//	down 120 80    press the pointer at x y
//	move 200 150   move the pointer
//	up 200 150     release the pointer
//
// Blank lines and lines starting with # are ignored. After the last command
// NextEvent reports surface.ErrClosed.
package script

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/menta2k/frame-annotator/pkg/annotation"
	"github.com/menta2k/frame-annotator/pkg/keymap"
	"github.com/menta2k/frame-annotator/pkg/surface"
)

// Surface replays scripted events
type Surface struct {
	scanner *bufio.Scanner
	closer  io.Closer
	keymap  *keymap.Keymap
	log     *zap.Logger
	line    int

	mu     sync.Mutex
	shown  []surface.Frame
	closed bool
}

// New reads commands from r
func New(r io.Reader, km *keymap.Keymap, logger *zap.Logger) *Surface {
	if km == nil {
		km = keymap.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Surface{
		scanner: bufio.NewScanner(r),
		keymap:  km,
		log:     logger,
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Open reads commands from a file
func Open(path string, km *keymap.Keymap, logger *zap.Logger) (*Surface, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	return New(f, km, logger), nil
}

// FromString reads commands from text
func FromString(text string, km *keymap.Keymap, logger *zap.Logger) *Surface {
	return New(strings.NewReader(text), km, logger)
}

// Show records the frame
func (s *Surface) Show(ctx context.Context, frame surface.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, frame)
	return nil
}

// Shown returns every frame shown so far
func (s *Surface) Shown() []surface.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]surface.Frame(nil), s.shown...)
}

// NextEvent returns the next scripted event
func (s *Surface) NextEvent(ctx context.Context) (annotation.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return annotation.Event{}, err
		}
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed || !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return annotation.Event{}, fmt.Errorf("read script: %w", err)
			}
			return annotation.Event{}, surface.ErrClosed
		}
		s.line++

		text := strings.TrimSpace(s.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		ev, err := s.parse(text)
		if err != nil {
			s.log.Warn("skipping script line", zap.Int("line", s.line), zap.Error(err))
			continue
		}
		return ev, nil
	}
}

func (s *Surface) parse(text string) (annotation.Event, error) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "key":
		if len(fields) != 2 {
			return annotation.Event{}, fmt.Errorf("key takes one argument: %q", text)
		}
		ev, ok := s.keymap.Lookup(fields[1])
		if !ok {
			return annotation.Event{}, fmt.Errorf("unbound key %q", fields[1])
		}
		return ev, nil
	case "down", "move", "up":
		if len(fields) != 3 {
			return annotation.Event{}, fmt.Errorf("%s takes x and y: %q", fields[0], text)
		}
		x, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return annotation.Event{}, fmt.Errorf("bad x in %q: %w", text, err)
		}
		y, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return annotation.Event{}, fmt.Errorf("bad y in %q: %w", text, err)
		}
		switch fields[0] {
		case "down":
			return annotation.PointerDown(x, y), nil
		case "move":
			return annotation.PointerMove(x, y), nil
		}
		return annotation.PointerUp(x, y), nil
	}
	return annotation.Event{}, fmt.Errorf("unknown command %q", fields[0])
}

// Close stops the script
func (s *Surface) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
