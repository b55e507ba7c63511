// Package frames extracts still images from batches of videos at a fixed
// sampling rate, renumbering output across the whole batch so frame numbers
// stay contiguous from the first video to the last.
package frames

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"detlab/internal/fileutil"
	"detlab/internal/logging"
)

var (
	commandContext = exec.CommandContext
	timeNow        = time.Now
)

const (
	videoExtension = ".mp4"
	sessionLayout  = "02-01-2006_15-04-05"
)

// Options configures a frame-extraction batch.
type Options struct {
	InputDir  string
	OutputDir string
	FPS       float64

	FFmpegBinary string
	HWAccel      string
	FrameQuality int

	Logger *slog.Logger
}

// Summary reports the outcome of a batch.
type Summary struct {
	SessionID       string
	SessionDir      string
	VideosFound     int
	VideosProcessed int
	VideosFailed    int
	FramesExtracted int
}

// Extract samples frames from every video under the input directory into a
// timestamped session directory. A missing input directory or an empty video
// set degrades to a logged no-op. A transcoder failure on one video is
// logged and does not abort the rest of the batch.
func Extract(ctx context.Context, opts Options) (Summary, error) {
	logger := logging.NewComponentLogger(opts.Logger, "frames")

	fps := opts.FPS
	if fps <= 0 {
		fps = 1.0
	}

	if _, err := os.Stat(opts.InputDir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Error("input directory does not exist", logging.String("input", opts.InputDir))
			return Summary{}, nil
		}
		return Summary{}, fmt.Errorf("inspect input directory: %w", err)
	}

	summary := Summary{SessionID: uuid.NewString()}
	summary.SessionDir = filepath.Join(opts.OutputDir, timeNow().Format(sessionLayout))
	if err := os.MkdirAll(summary.SessionDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output directory: %w", err)
	}

	videos, err := discoverVideos(opts.InputDir)
	if err != nil {
		return Summary{}, fmt.Errorf("discover videos: %w", err)
	}
	summary.VideosFound = len(videos)
	if len(videos) == 0 {
		logger.Error("no video files found", logging.String("input", opts.InputDir))
		return summary, nil
	}

	logger.Info("starting extraction",
		logging.Int("videos", len(videos)),
		logging.Float64("fps", fps),
		logging.String("session", summary.SessionDir))

	frameCounter := 1
	for _, video := range videos {
		logger.Info("processing video", logging.String("video", filepath.Base(video)))

		moved, err := extractOne(ctx, opts, video, fps, summary.SessionDir, &frameCounter)
		if err != nil {
			logger.Error("failed to extract frames, skipping video",
				logging.String("video", filepath.Base(video)),
				logging.Error(err))
			summary.VideosFailed++
			continue
		}
		if moved == 0 {
			logger.Warn("no frames extracted", logging.String("video", filepath.Base(video)))
			continue
		}
		summary.VideosProcessed++
	}
	summary.FramesExtracted = frameCounter - 1

	logger.Info("extraction complete",
		logging.Int("frames", summary.FramesExtracted),
		logging.Int("videos", summary.VideosProcessed),
		logging.String("session", summary.SessionDir))
	return summary, nil
}

// extractOne samples a single video into a scoped temp dir, then relocates
// the frames under the batch-wide counter. The temp dir is removed on every
// path out.
func extractOne(ctx context.Context, opts Options, video string, fps float64, sessionDir string, counter *int) (int, error) {
	tmpDir, err := os.MkdirTemp("", "detlab-frames-")
	if err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	hwaccel := strings.TrimSpace(opts.HWAccel)
	if hwaccel == "" {
		hwaccel = "cuda"
	}
	quality := opts.FrameQuality
	if quality <= 0 {
		quality = 2
	}
	binary := strings.TrimSpace(opts.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}

	args := []string{
		"-y",
		"-hwaccel", hwaccel,
		"-i", video,
		"-vf", fmt.Sprintf("fps=%g", fps),
		"-vsync", "0",
		"-q:v", fmt.Sprintf("%d", quality),
		filepath.Join(tmpDir, "tmp_%06d.jpg"),
	}

	cmd := commandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}

	produced, err := filepath.Glob(filepath.Join(tmpDir, "tmp_*.jpg"))
	if err != nil {
		return 0, fmt.Errorf("glob frames: %w", err)
	}
	sort.Strings(produced)

	moved := 0
	for _, frame := range produced {
		target := filepath.Join(sessionDir, fmt.Sprintf("frame_%06d.jpg", *counter))
		if err := fileutil.MoveFile(frame, target); err != nil {
			return moved, fmt.Errorf("relocate frame: %w", err)
		}
		*counter++
		moved++
	}
	return moved, nil
}

func discoverVideos(root string) ([]string, error) {
	var videos []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), videoExtension) {
			videos = append(videos, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(videos)
	return videos, nil
}
