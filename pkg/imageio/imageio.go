package imageio

import (
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/frame-annotator/pkg/types"
)

// Supported output formats
const (
	FormatJPEG = "jpg"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// Options controls how images are encoded
type Options struct {
	Format   string
	Quality  int
	Lossless bool
}

// DefaultOptions returns JPEG at quality 95
func DefaultOptions() Options {
	return Options{Format: FormatJPEG, Quality: 95}
}

// IsSupportedFormat reports whether format can be written
func IsSupportedFormat(format string) bool {
	switch strings.ToLower(format) {
	case FormatJPEG, "jpeg", FormatPNG, FormatWebP:
		return true
	}
	return false
}

// Extension returns the file extension (without dot) for a format
func Extension(format string) string {
	switch strings.ToLower(format) {
	case FormatPNG:
		return FormatPNG
	case FormatWebP:
		return FormatWebP
	default:
		return FormatJPEG
	}
}

// LoadImage loads an image from a file path with WebP support
func LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders)
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(path), ".webp") {
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
		if _, err := f.Seek(0, 0); err != nil {
			return nil, err
		}
	}
	if img, _, err := image.Decode(f); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown format for %s", path)
}

// Resize scales a frame to exactly res using bilinear filtering
func Resize(img image.Image, res types.Resolution) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == res.Width && b.Dy() == res.Height {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, res.Width, res.Height, imaging.Linear)
}

// SaveImage saves an image to a file with the given options
func SaveImage(img image.Image, path string, opts Options) error {
	switch strings.ToLower(opts.Format) {
	case FormatWebP:
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := webp.Encode(f, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(opts.Quality)}); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case FormatPNG:
		return imaging.Save(img, path)
	default: // jpg/jpeg
		quality := opts.Quality
		if quality <= 0 {
			quality = 95
		}
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// EncodeJPEG writes img to w as JPEG
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	if quality <= 0 {
		quality = 95
	}
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}
