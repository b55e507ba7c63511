package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"detlab/internal/training"
)

func newTrainCommand(ctx *commandContext) *cobra.Command {
	var settingsPath string
	var exportFormat string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fine-tune the detection model via the yolo CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.ensureLogger()

			path := settingsPath
			if path == "" {
				path = cfg.Training.SettingsPath
			}
			if _, err := training.LoadOrCreateSettings(path, logger); err != nil {
				return err
			}

			release, err := ctx.acquireGPULock()
			if err != nil {
				return err
			}
			defer release()

			started := time.Now()
			result, runErr := training.Run(cmd.Context(), training.Options{
				Binary:       cfg.Training.Binary,
				SettingsPath: path,
				ExportFormat: exportFormat,
				Logger:       logger,
			})
			ctx.recordHistory(cmd.Context(), "train", path, started, runErr,
				map[string]any{
					"run_dir":  result.RunDir,
					"exported": result.Exported,
				})
			if runErr != nil {
				return runErr
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Training run complete: %s\n", result.RunDir)
			if exportFormat != "" {
				fmt.Fprintf(out, "Export (%s) succeeded: %s\n", exportFormat, yesNo(result.Exported))
			}
			fmt.Fprintf(out, "Run record: %s\n", result.RecordPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&settingsPath, "settings", "s", "", "Training settings file (default: training.settings_path)")
	cmd.Flags().StringVarP(&exportFormat, "export", "e", "", "Export the trained model in this format (onnx, engine, ...)")
	return cmd
}
