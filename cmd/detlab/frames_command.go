package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"detlab/internal/frames"
)

func newFramesCommand(ctx *commandContext) *cobra.Command {
	framesCmd := &cobra.Command{
		Use:   "frames",
		Short: "Frame extraction utilities",
	}
	framesCmd.AddCommand(newFramesExtractCommand(ctx))
	return framesCmd
}

func newFramesExtractCommand(ctx *commandContext) *cobra.Command {
	var inputDir string
	var outputDir string
	var fps float64

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Sample still frames from every video under a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.ensureLogger()

			output := outputDir
			if output == "" {
				output = cfg.Paths.FramesDir
			}

			release, err := ctx.acquireGPULock()
			if err != nil {
				return err
			}
			defer release()

			started := time.Now()
			summary, runErr := frames.Extract(cmd.Context(), frames.Options{
				InputDir:     inputDir,
				OutputDir:    output,
				FPS:          fps,
				FFmpegBinary: cfg.FFmpeg.Binary,
				HWAccel:      cfg.FFmpeg.HWAccel,
				FrameQuality: cfg.FFmpeg.FrameQuality,
				Logger:       logger,
			})
			ctx.recordHistory(cmd.Context(), "frames-extract", inputDir, started, runErr,
				map[string]any{
					"session":   summary.SessionID,
					"frames":    summary.FramesExtracted,
					"processed": summary.VideosProcessed,
					"failed":    summary.VideosFailed,
				})
			if runErr != nil {
				return runErr
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Session", "Videos", "Processed", "Failed", "Frames"},
				[][]string{{
					summary.SessionDir,
					strconv.Itoa(summary.VideosFound),
					strconv.Itoa(summary.VideosProcessed),
					strconv.Itoa(summary.VideosFailed),
					strconv.Itoa(summary.FramesExtracted),
				}},
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input", "i", "", "Directory searched recursively for videos")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory receiving the session folder (default: frames_dir)")
	cmd.Flags().Float64Var(&fps, "fps", 1.0, "Frames sampled per second of video")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
