// Package downscale converts a video to 720p HEVC using GPU-accelerated
// decode, scale, and encode. Audio streams pass through untouched.
package downscale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"detlab/internal/logging"
	"detlab/internal/media/ffprobe"
)

var commandContext = exec.CommandContext

// ErrToolNotFound indicates the transcoder binary is not on the path.
var ErrToolNotFound = errors.New("transcoder not found")

// ErrInputNotFound indicates the input video does not exist.
var ErrInputNotFound = errors.New("input file not found")

const (
	targetHeight   = 720
	fallbackWidth  = 1280
	fallbackHeight = 720
)

// Options configures a downscale invocation.
type Options struct {
	InputPath  string
	OutputPath string

	FFmpegBinary  string
	FFprobeBinary string

	HWAccel      string
	Encoder      string
	EncodePreset string
	Quality      int

	Logger *slog.Logger
}

// TargetDimensions computes the 720p-height output size preserving aspect
// ratio. Width is forced even, as 4:2:0 subsampling requires.
func TargetDimensions(width, height int) (int, int) {
	if width <= 0 || height <= 0 {
		return fallbackWidth, fallbackHeight
	}
	targetWidth := int(float64(targetHeight) * float64(width) / float64(height))
	if targetWidth%2 != 0 {
		targetWidth++
	}
	return targetWidth, targetHeight
}

// Run probes the input, computes the target resolution, and invokes the
// transcoder. A probe failure degrades to a fixed 1280x720 target; a
// transcoder failure is fatal.
func Run(ctx context.Context, opts Options) error {
	logger := logging.NewComponentLogger(opts.Logger, "downscale")

	ffmpegBinary := strings.TrimSpace(opts.FFmpegBinary)
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if _, err := exec.LookPath(ffmpegBinary); err != nil {
		return fmt.Errorf("%w: %s (ensure ffmpeg is in PATH or set ffmpeg.binary)", ErrToolNotFound, ffmpegBinary)
	}

	if _, err := os.Stat(opts.InputPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInputNotFound, opts.InputPath)
		}
		return fmt.Errorf("inspect input: %w", err)
	}

	targetWidth, targetHeight := fallbackWidth, fallbackHeight
	probe, err := ffprobe.Inspect(ctx, opts.FFprobeBinary, opts.InputPath)
	if err == nil {
		var width, height int
		width, height, err = probe.Dimensions()
		if err == nil {
			targetWidth, targetHeight = TargetDimensions(width, height)
			logger.Info("scaling video",
				logging.String("input", opts.InputPath),
				logging.String("from", fmt.Sprintf("%dx%d", width, height)),
				logging.String("to", fmt.Sprintf("%dx%d", targetWidth, targetHeight)))
		}
	}
	if err != nil {
		logger.Warn("could not determine dimensions, defaulting to 1280x720",
			logging.Error(err))
	}

	args := buildArgs(opts, targetWidth, targetHeight)
	logger.Debug("running transcoder",
		logging.String("binary", ffmpegBinary),
		logging.String("args", strings.Join(args, " ")))

	cmd := commandContext(ctx, ffmpegBinary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("transcode failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	logger.Info("output written", logging.String("output", opts.OutputPath))
	return nil
}

func buildArgs(opts Options, width, height int) []string {
	hwaccel := strings.TrimSpace(opts.HWAccel)
	if hwaccel == "" {
		hwaccel = "cuda"
	}
	encoder := strings.TrimSpace(opts.Encoder)
	if encoder == "" {
		encoder = "hevc_nvenc"
	}
	preset := strings.TrimSpace(opts.EncodePreset)
	if preset == "" {
		preset = "p4"
	}
	quality := opts.Quality
	if quality <= 0 {
		quality = 28
	}

	return []string{
		"-y",
		"-hwaccel", hwaccel,
		"-hwaccel_output_format", hwaccel,
		"-i", opts.InputPath,
		"-vf", fmt.Sprintf("scale_%s=%d:%d", hwaccel, width, height),
		"-c:v", encoder,
		"-preset", preset,
		"-rc", "vbr",
		"-cq", fmt.Sprintf("%d", quality),
		"-profile:v", "main",
		"-c:a", "copy",
		opts.OutputPath,
	}
}
