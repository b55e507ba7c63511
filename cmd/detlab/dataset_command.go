package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"detlab/internal/dataset"
	"detlab/internal/dataset/roboflow"
	"detlab/internal/settings"
)

func newDatasetCommand(ctx *commandContext) *cobra.Command {
	datasetCmd := &cobra.Command{
		Use:   "dataset",
		Short: "Dataset utilities",
	}
	datasetCmd.AddCommand(newDatasetFetchCommand(ctx))
	return datasetCmd
}

func newDatasetFetchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <settings.json> [output-dir]",
		Short: "Download an annotated dataset from Roboflow",
		Long: "Download an annotated dataset export from Roboflow into the data directory.\n\n" +
			"The settings file must provide: " + strings.Join(dataset.RequiredKeys(), ", ") + ".",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.ensureLogger()

			settingsPath := args[0]
			outputDir := cfg.Paths.DataDir
			if len(args) > 1 {
				outputDir = args[1]
			}

			values, err := settings.Load(settingsPath)
			if err != nil {
				if errors.Is(err, settings.ErrNotFound) {
					return fmt.Errorf("settings file %s does not exist", settingsPath)
				}
				return err
			}

			timeout := time.Duration(cfg.Roboflow.RequestTimeout) * time.Second

			started := time.Now()
			location, err := dataset.Fetch(cmd.Context(), dataset.Options{
				Settings:  values,
				OutputDir: outputDir,
				NewClient: func(apiKey string) (dataset.Downloader, error) {
					return roboflow.New(apiKey, cfg.Roboflow.BaseURL,
						roboflow.WithTimeout(timeout))
				},
				Logger: logger,
			})
			ctx.recordHistory(cmd.Context(), "dataset-fetch",
				strings.Join(args, " "), started, err,
				map[string]any{"location": location})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Dataset available at %s\n", location)
			return nil
		},
	}
}
