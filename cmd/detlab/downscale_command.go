package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"detlab/internal/media/downscale"
)

func newDownscaleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "downscale <input> <output>",
		Short: "Downscale a video to 720p HEVC on the GPU",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.ensureLogger()

			release, err := ctx.acquireGPULock()
			if err != nil {
				return err
			}
			defer release()

			started := time.Now()
			runErr := downscale.Run(cmd.Context(), downscale.Options{
				InputPath:     args[0],
				OutputPath:    args[1],
				FFmpegBinary:  cfg.FFmpeg.Binary,
				FFprobeBinary: cfg.FFmpeg.ProbeBinary,
				HWAccel:       cfg.FFmpeg.HWAccel,
				Encoder:       cfg.FFmpeg.Encoder,
				EncodePreset:  cfg.FFmpeg.EncodePreset,
				Quality:       cfg.FFmpeg.Quality,
				Logger:        logger,
			})
			ctx.recordHistory(cmd.Context(), "downscale",
				strings.Join(args, " "), started, runErr, nil)
			if runErr != nil {
				return runErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[1])
			return nil
		},
	}
}
