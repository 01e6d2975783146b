package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultVideoExtensions are the container extensions picked up from the input directory
var DefaultVideoExtensions = []string{"mp4", "avi", "mov", "mkv", "flv"}

var imageExts = []string{"jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp"}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists and is not a directory", dir)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

func hasExtension(filename string, exts []string) bool {
	ext := GetFileExtension(filename)
	for _, e := range exts {
		if ext == strings.ToLower(strings.TrimPrefix(e, ".")) {
			return true
		}
	}
	return false
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	return hasExtension(filename, imageExts)
}

// IsVideoFile checks if a file has one of the given video extensions.
// An empty list means DefaultVideoExtensions.
func IsVideoFile(filename string, exts []string) bool {
	if len(exts) == 0 {
		exts = DefaultVideoExtensions
	}
	return hasExtension(filename, exts)
}

// ListVideoFiles lists video files directly inside dir, sorted by name.
// When includeImageDirs is set, subdirectories holding images are listed too.
func ListVideoFiles(dir string, exts []string, includeImageDirs bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read video directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if includeImageDirs {
				if images, err := ListImageFiles(path); err == nil && len(images) > 0 {
					files = append(files, path)
				}
			}
			continue
		}
		if IsVideoFile(entry.Name(), exts) {
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ListImageFiles lists image files directly inside dir, sorted by name
func ListImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && IsImageFile(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && info.IsDir()
}

// SanitizeVideoName turns a video file name into the identifier used for
// output file names and the completion log: lower case, a ".mp4" suffix
// dropped, spaces and hyphens replaced with underscores. Other extensions
// are kept so "a.avi" and "a.mp4" stay distinct.
func SanitizeVideoName(filename string) string {
	base := filepath.Base(filename)
	if strings.EqualFold(filepath.Ext(base), ".mp4") {
		base = base[:len(base)-len(".mp4")]
	}
	base = strings.ToLower(base)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.ReplaceAll(base, "-", "_")
	return base
}

// VideoNames returns the identifier of each path, in order. Paths whose
// sanitized names collide get a numeric suffix ("_2", "_3") after the first.
func VideoNames(paths []string) []string {
	names := make([]string, len(paths))
	taken := make(map[string]bool, len(paths))
	for i, p := range paths {
		names[i] = SanitizeVideoName(p)
		taken[names[i]] = true
	}
	seen := make(map[string]bool, len(paths))
	for i, name := range names {
		if !seen[name] {
			seen[name] = true
			continue
		}
		n := 2
		for taken[fmt.Sprintf("%s_%d", name, n)] {
			n++
		}
		names[i] = fmt.Sprintf("%s_%d", name, n)
		taken[names[i]] = true
		seen[names[i]] = true
	}
	return names
}

// FrameBaseName returns the shared base name of a frame's artifacts
func FrameBaseName(videoName string, index int) string {
	return fmt.Sprintf("%s_frame_%04d", videoName, index)
}
