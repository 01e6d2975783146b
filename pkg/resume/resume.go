// Package resume persists the interrupted-frame cursor and the list of
// completed videos so a run can pick up where the last one stopped.
package resume

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/menta2k/frame-annotator/pkg/types"
)

// Default file names, relative to the working directory
const (
	DefaultCursorFile     = "last_frame.txt"
	DefaultCompletionFile = "video_completion_log.txt"
)

// Files locates the two state files
type Files struct {
	Cursor     string `json:"cursor_file" env:"CURSOR_FILE"`
	Completion string `json:"completion_file" env:"COMPLETION_FILE"`
}

// DefaultFiles returns the stock file names
func DefaultFiles() Files {
	return Files{Cursor: DefaultCursorFile, Completion: DefaultCompletionFile}
}

// Store reads and writes the resume state
type Store struct {
	files Files
}

// NewStore creates a Store
func NewStore(files Files) *Store {
	return &Store{files: files}
}

// Files returns the paths in use
func (s *Store) Files() Files { return s.files }

// Cursor returns the frame index to resume at. A missing or empty file is 0.
func (s *Store) Cursor() (int, error) {
	data, err := os.ReadFile(s.files.Cursor)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read cursor: %v", types.ErrIO, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid cursor %q in %s", text, s.files.Cursor)
	}
	return n, nil
}

// SetCursor overwrites the cursor
func (s *Store) SetCursor(index int) error {
	if err := ensureParent(s.files.Cursor); err != nil {
		return err
	}
	if err := os.WriteFile(s.files.Cursor, []byte(strconv.Itoa(index)), 0644); err != nil {
		return fmt.Errorf("%w: write cursor: %v", types.ErrIO, err)
	}
	return nil
}

// ResetCursor sets the cursor back to 0
func (s *Store) ResetCursor() error { return s.SetCursor(0) }

// Completed returns the set of finished video names. A missing file is empty.
func (s *Store) Completed() (map[string]bool, error) {
	f, err := os.Open(s.files.Completion)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read completion log: %v", types.ErrIO, err)
	}
	defer f.Close()

	done := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			done[name] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read completion log: %v", types.ErrIO, err)
	}
	return done, nil
}

// IsCompleted reports whether name is in the completion log
func (s *Store) IsCompleted(name string) (bool, error) {
	done, err := s.Completed()
	if err != nil {
		return false, err
	}
	return done[name], nil
}

// MarkCompleted appends name to the completion log
func (s *Store) MarkCompleted(name string) error {
	if err := ensureParent(s.files.Completion); err != nil {
		return err
	}
	f, err := os.OpenFile(s.files.Completion, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: open completion log: %v", types.ErrIO, err)
	}
	if _, err := fmt.Fprintln(f, name); err != nil {
		f.Close()
		return fmt.Errorf("%w: append completion log: %v", types.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close completion log: %v", types.ErrIO, err)
	}
	return nil
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %v", types.ErrIO, dir, err)
	}
	return nil
}
