package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"detlab/internal/training"
)

func newPredictCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "predict <weights> <source>",
		Short: "Run a smoke-test inference pass and report box confidences",
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
			result, runErr := training.Predict(cmd.Context(), training.PredictOptions{
				Binary:  cfg.Training.Binary,
				Weights: args[0],
				Source:  args[1],
				Logger:  logger,
			})
			ctx.recordHistory(cmd.Context(), "predict",
				strings.Join(args, " "), started, runErr,
				map[string]any{"boxes": result.Boxes})
			if runErr != nil {
				return runErr
			}

			out := cmd.OutOrStdout()
			if result.Boxes == 0 {
				fmt.Fprintln(out, "No detections.")
				return nil
			}
			fmt.Fprintf(out, "Boxes: %d\n", result.Boxes)
			fmt.Fprintf(out, "Min confidence: %.3f\n", result.MinConfidence)
			fmt.Fprintf(out, "Max confidence: %.3f\n", result.MaxConfidence)
			return nil
		},
	}
}
