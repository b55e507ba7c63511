package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"detlab/internal/deps"
	"detlab/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check external tools and working directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := stdoutIsTerminal()

			statuses := preflight.CheckSystemDeps(cfg)
			depRows := [][]string{}
			for _, status := range statuses {
				state := paint("ok", ansiGreen, colorize)
				if !status.Available {
					state = paint("missing", ansiRed, colorize)
					if status.Optional {
						state = paint("missing (optional)", ansiYellow, colorize)
					}
				}
				depRows = append(depRows, []string{
					status.Name, status.Command, state, firstNonEmpty(status.Detail, status.Description),
				})
			}
			fmt.Fprintln(out, "External tools")
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Command", "Status", "Detail"},
				depRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))

			dirRows := [][]string{}
			for _, result := range preflight.CheckDirectories(cfg) {
				state := paint("ok", ansiGreen, colorize)
				if !result.Passed {
					state = paint("failed", ansiRed, colorize)
				}
				dirRows = append(dirRows, []string{result.Name, state, result.Detail})
			}
			fmt.Fprintln(out, "Directories")
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Status", "Detail"},
				dirRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			fmt.Fprintf(out, "GPU lock enabled: %s\n", yesNo(cfg.GPULock.Enabled))
			fmt.Fprintf(out, "History enabled:  %s\n", yesNo(cfg.History.Enabled))

			if !deps.AllRequiredAvailable(statuses) {
				fmt.Fprintln(out, "\nSome required tools are missing; the commands that need them will fail.")
			}
			return nil
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func paint(text, color string, colorize bool) string {
	if !colorize {
		return text
	}
	return color + text + ansiReset
}
