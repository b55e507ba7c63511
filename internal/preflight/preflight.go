// Package preflight verifies the environment before GPU work starts:
// external binaries on PATH and working directories with sufficient access.
package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"detlab/internal/config"
	"detlab/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// CheckDirectoryAccess verifies that the directory exists and is
// readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDirectories runs the directory access checks for the configured
// working paths.
func CheckDirectories(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Frames directory", cfg.Paths.FramesDir),
		CheckDirectoryAccess("Runs directory", cfg.Paths.RunsDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
}

// CheckSystemDeps evaluates the external binaries detlab invokes. The status
// command renders the full list; individual commands check only what they
// need via exec.LookPath at call time.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpeg.Binary,
			Description: "Required for downscaling and frame extraction",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFmpeg.ProbeBinary,
			Description: "Required for media inspection",
		},
		{
			Name:        "YOLO",
			Command:     cfg.Training.Binary,
			Description: "Required for training, export and prediction",
		},
		{
			Name:        "nvidia-smi",
			Command:     "nvidia-smi",
			Description: "Confirms GPU visibility",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(requirements)
}
