package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/menta2k/frame-annotator/internal/utils"
	"github.com/menta2k/frame-annotator/pkg/annotation"
	"github.com/menta2k/frame-annotator/pkg/blur"
	"github.com/menta2k/frame-annotator/pkg/imageio"
	"github.com/menta2k/frame-annotator/pkg/keymap"
	"github.com/menta2k/frame-annotator/pkg/output"
	"github.com/menta2k/frame-annotator/pkg/resume"
	"github.com/menta2k/frame-annotator/pkg/surface/web"
	"github.com/menta2k/frame-annotator/pkg/types"
	"github.com/menta2k/frame-annotator/pkg/video"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "FRAME_ANNOTATOR_"

// Surface kinds
const (
	SurfaceWeb    = "web"
	SurfaceScript = "script"
)

// Config holds the application configuration
type Config struct {
	Input      InputConfig      `json:"input"`
	Sampler    SamplerConfig    `json:"sampler"`
	Annotation AnnotationConfig `json:"annotation"`
	Output     OutputConfig     `json:"output"`
	State      resume.Files     `json:"state"`
	Surface    SurfaceConfig    `json:"surface"`
	Decoder    DecoderConfig    `json:"decoder"`
	// Keymap maps key names to action names, overriding the stock layout
	Keymap      map[string]string `json:"keymap,omitempty"`
	LogLevel    string            `json:"log_level" env:"LOG_LEVEL"`
	Development bool              `json:"development" env:"DEVELOPMENT"`
}

// InputConfig selects the videos to annotate
type InputConfig struct {
	VideoDir         string   `json:"video_dir" env:"VIDEO_DIR"`
	VideoExtensions  []string `json:"video_extensions" env:"VIDEO_EXTENSIONS" envSeparator:","`
	IncludeImageDirs bool     `json:"include_image_dirs" env:"INCLUDE_IMAGE_DIRS"`
}

// SamplerConfig controls frame selection
type SamplerConfig struct {
	FrameInterval int     `json:"frame_interval" env:"FRAME_INTERVAL"`
	BlurThreshold float64 `json:"blur_threshold" env:"BLUR_THRESHOLD"`
}

// AnnotationConfig controls the editing session
type AnnotationConfig struct {
	Width          int     `json:"width" env:"FRAME_WIDTH"`
	Height         int     `json:"height" env:"FRAME_HEIGHT"`
	MaxBoxes       int     `json:"max_boxes_per_frame" env:"MAX_BOXES"`
	ResizeStep     float64 `json:"resize_step" env:"RESIZE_STEP"`
	MoveStep       float64 `json:"move_step" env:"MOVE_STEP"`
	DefaultClassID int     `json:"default_class_id" env:"DEFAULT_CLASS"`
}

// OutputConfig controls where and how artifacts are written
type OutputConfig struct {
	OriginalDir  string `json:"original_dir" env:"ORIGINAL_DIR"`
	AnnotatedDir string `json:"annotated_dir" env:"ANNOTATED_DIR"`
	LabelDir     string `json:"label_dir" env:"LABEL_DIR"`
	Format       string `json:"format" env:"IMAGE_FORMAT"`
	Quality      int    `json:"quality" env:"IMAGE_QUALITY"`
	Lossless     bool   `json:"lossless" env:"IMAGE_LOSSLESS"`
	HideText     bool   `json:"hide_text" env:"HIDE_TEXT"`
}

// SurfaceConfig selects the interactive surface
type SurfaceConfig struct {
	Kind   string `json:"kind" env:"SURFACE"`
	Listen string `json:"listen" env:"LISTEN"`
	Script string `json:"script" env:"SCRIPT"`
}

// DecoderConfig selects the video decoding backend
type DecoderConfig struct {
	Backend     string `json:"backend" env:"DECODER"`
	FFmpegPath  string `json:"ffmpeg_path" env:"FFMPEG_PATH"`
	FFprobePath string `json:"ffprobe_path" env:"FFPROBE_PATH"`
}

// Default returns a configuration with default values
func Default() *Config {
	dirs := output.DefaultDirs()
	img := imageio.DefaultOptions()
	policy := annotation.DefaultPolicy()
	return &Config{
		Input: InputConfig{
			VideoDir:        "videos",
			VideoExtensions: append([]string(nil), utils.DefaultVideoExtensions...),
		},
		Sampler: SamplerConfig{
			FrameInterval: 5,
			BlurThreshold: blur.DefaultThreshold,
		},
		Annotation: AnnotationConfig{
			Width:      types.WorkingResolution.Width,
			Height:     types.WorkingResolution.Height,
			MaxBoxes:   policy.MaxBoxes,
			ResizeStep: policy.ResizeStep,
			MoveStep:   policy.MoveStep,
		},
		Output: OutputConfig{
			OriginalDir:  dirs.Original,
			AnnotatedDir: dirs.Annotated,
			LabelDir:     dirs.Labels,
			Format:       img.Format,
			Quality:      img.Quality,
		},
		State: resume.DefaultFiles(),
		Surface: SurfaceConfig{
			Kind:   SurfaceWeb,
			Listen: web.DefaultListen,
		},
		Decoder: DecoderConfig{
			Backend:     video.BackendFFmpeg,
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
		},
		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from FRAME_ANNOTATOR_* environment variables
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Input.VideoDir == "" {
		return fmt.Errorf("input.video_dir cannot be empty")
	}

	if len(c.Input.VideoExtensions) == 0 {
		return fmt.Errorf("input.video_extensions cannot be empty")
	}

	if c.Sampler.FrameInterval < 1 {
		return fmt.Errorf("sampler.frame_interval must be at least 1")
	}

	if c.Sampler.BlurThreshold < 0 {
		return fmt.Errorf("sampler.blur_threshold cannot be negative")
	}

	if c.Annotation.Width < 1 || c.Annotation.Height < 1 {
		return fmt.Errorf("annotation.width and annotation.height must be positive")
	}

	if c.Annotation.MaxBoxes < 0 {
		return fmt.Errorf("annotation.max_boxes_per_frame cannot be negative")
	}

	if c.Annotation.ResizeStep <= 0 || c.Annotation.MoveStep <= 0 {
		return fmt.Errorf("annotation.resize_step and annotation.move_step must be positive")
	}

	if c.Annotation.DefaultClassID < 0 {
		return fmt.Errorf("annotation.default_class_id cannot be negative")
	}

	if !imageio.IsSupportedFormat(c.Output.Format) {
		return fmt.Errorf("output.format %q is not supported", c.Output.Format)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Output.OriginalDir == "" || c.Output.AnnotatedDir == "" || c.Output.LabelDir == "" {
		return fmt.Errorf("output directories cannot be empty")
	}

	if c.State.Cursor == "" || c.State.Completion == "" {
		return fmt.Errorf("state files cannot be empty")
	}

	switch c.Surface.Kind {
	case SurfaceWeb:
	case SurfaceScript:
		if c.Surface.Script == "" {
			return fmt.Errorf("surface.script is required for the script surface")
		}
	default:
		return fmt.Errorf("surface.kind must be %q or %q", SurfaceWeb, SurfaceScript)
	}

	switch strings.ToLower(c.Decoder.Backend) {
	case video.BackendFFmpeg, video.BackendOpenCV:
	default:
		return fmt.Errorf("decoder.backend must be %q or %q", video.BackendFFmpeg, video.BackendOpenCV)
	}

	if _, err := keymap.New(c.Keymap); err != nil {
		return fmt.Errorf("keymap: %w", err)
	}

	return nil
}

// Resolution returns the working resolution
func (c *Config) Resolution() types.Resolution {
	return types.Resolution{Width: c.Annotation.Width, Height: c.Annotation.Height}
}

// OutputDirs returns the artifact directories
func (c *Config) OutputDirs() output.Dirs {
	return output.Dirs{
		Original:  c.Output.OriginalDir,
		Annotated: c.Output.AnnotatedDir,
		Labels:    c.Output.LabelDir,
	}
}

// ImageOptions returns the encoder settings for saved frames
func (c *Config) ImageOptions() imageio.Options {
	return imageio.Options{Format: c.Output.Format, Quality: c.Output.Quality, Lossless: c.Output.Lossless}
}

// Policy returns the annotation editing policy
func (c *Config) Policy() annotation.Policy {
	return annotation.Policy{
		MaxBoxes:   c.Annotation.MaxBoxes,
		ResizeStep: c.Annotation.ResizeStep,
		MoveStep:   c.Annotation.MoveStep,
		HideText:   c.Output.HideText,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "frame-annotator", "config.json")
}
