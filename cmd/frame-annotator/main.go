package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"
	"go.uber.org/zap"

	frameannotator "github.com/menta2k/frame-annotator"
	"github.com/menta2k/frame-annotator/internal/config"
	"github.com/menta2k/frame-annotator/internal/logging"
	"github.com/menta2k/frame-annotator/internal/utils"
)

func main() {
	parser := argparse.NewParser("frame-annotator", "Extract sharp video frames and annotate them with rotated boxes")
	configFile := parser.String("c", "config", &argparse.Options{Help: "JSON configuration file (default ~/.config/frame-annotator/config.json if present)"})
	input := parser.String("i", "input", &argparse.Options{Help: "Directory of videos to annotate"})
	interval := parser.Int("n", "interval", &argparse.Options{Help: "Sample every n-th frame"})
	blurThreshold := parser.Float("", "blur-threshold", &argparse.Options{Help: "Laplacian variance below which a frame is blurry"})
	maxBoxes := parser.Int("", "max-boxes", &argparse.Options{Help: "Boxes allowed per frame, 0 for unlimited", Default: -1})
	format := parser.Selector("f", "format", []string{"jpg", "png", "webp"}, &argparse.Options{Help: "Image format for saved frames"})
	quality := parser.Int("q", "quality", &argparse.Options{Help: "JPEG/WebP quality (1-100)"})
	surfaceKind := parser.Selector("s", "surface", []string{config.SurfaceWeb, config.SurfaceScript}, &argparse.Options{Help: "Interactive surface"})
	listen := parser.String("l", "listen", &argparse.Options{Help: "Listen address of the web surface"})
	scriptFile := parser.String("", "script", &argparse.Options{Help: "Command file for the script surface"})
	decoder := parser.Selector("d", "decoder", []string{"ffmpeg", "opencv"}, &argparse.Options{Help: "Video decoding backend"})
	imageDirs := parser.Flag("", "image-dirs", &argparse.Options{Help: "Treat subdirectories of images as videos", Default: false})
	extract := parser.String("", "extract", &argparse.Options{Help: "Only list the sharp frames of this video and exit"})
	reset := parser.Flag("", "reset", &argparse.Options{Help: "Forget the resume cursor and completion log before running", Default: false})
	saveConfig := parser.String("", "save-config", &argparse.Options{Help: "Write the effective configuration to this file and exit"})
	logLevel := parser.Selector("", "log-level", []string{"debug", "info", "warn", "error"}, &argparse.Options{Help: "Log level"})
	dev := parser.Flag("", "dev", &argparse.Options{Help: "Human readable console logs", Default: false})
	version := parser.Flag("v", "version", &argparse.Options{Help: "Print version and exit", Default: false})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}
	if *version {
		fmt.Println(frameannotator.GetVersion())
		return
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fatal(err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		fatal(err)
	}

	// Flags win over the file and the environment
	if *input != "" {
		cfg.Input.VideoDir = *input
	}
	if *interval != 0 {
		cfg.Sampler.FrameInterval = *interval
	}
	if *blurThreshold != 0 {
		cfg.Sampler.BlurThreshold = *blurThreshold
	}
	if *maxBoxes >= 0 {
		cfg.Annotation.MaxBoxes = *maxBoxes
	}
	if *format != "" {
		cfg.Output.Format = *format
	}
	if *quality != 0 {
		cfg.Output.Quality = *quality
	}
	if *surfaceKind != "" {
		cfg.Surface.Kind = *surfaceKind
	}
	if *listen != "" {
		cfg.Surface.Listen = *listen
	}
	if *scriptFile != "" {
		cfg.Surface.Script = *scriptFile
		if *surfaceKind == "" {
			cfg.Surface.Kind = config.SurfaceScript
		}
	}
	if *decoder != "" {
		cfg.Decoder.Backend = *decoder
	}
	if *imageDirs {
		cfg.Input.IncludeImageDirs = true
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *dev {
		cfg.Development = true
	}

	if *saveConfig != "" {
		if err := cfg.Validate(); err != nil {
			fatal(err)
		}
		if err := cfg.SaveToFile(*saveConfig); err != nil {
			fatal(err)
		}
		fmt.Printf("wrote %s\n", *saveConfig)
		return
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		fatal(err)
	}
	defer logger.Sync()

	fa, err := frameannotator.New(cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *extract != "" {
		runExtract(ctx, fa, *extract, logger)
		return
	}

	if *reset {
		if err := fa.Reset(); err != nil {
			logger.Fatal("reset failed", zap.Error(err))
		}
		logger.Info("resume state cleared")
	}

	surf, err := fa.OpenSurface()
	if err != nil {
		logger.Fatal("failed to open surface", zap.Error(err))
	}
	defer surf.Close()

	summary, err := fa.Run(ctx, surf)
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
	js, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		logger.Fatal("failed to encode summary", zap.Error(err))
	}
	fmt.Println(string(js))
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	if def := config.GetConfigPath(); utils.FileExists(def) {
		return config.LoadFromFile(def)
	}
	return config.Default(), nil
}

func runExtract(ctx context.Context, fa *frameannotator.FrameAnnotator, path string, logger *zap.Logger) {
	frames, err := fa.SampleVideo(ctx, path)
	if err != nil {
		logger.Fatal("extraction failed", zap.String("video", path), zap.Error(err))
	}
	indices := make([]int, len(frames))
	for i, f := range frames {
		indices[i] = f.Index
	}
	logger.Info("sharp frames", zap.String("video", path), zap.Int("count", len(frames)), zap.Ints("indices", indices))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "frame-annotator: %v\n", err)
	os.Exit(1)
}
