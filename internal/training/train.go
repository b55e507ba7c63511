package training

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"detlab/internal/logging"
	"detlab/internal/settings"
)

// Seams for tests.
var (
	commandContext = exec.CommandContext
	timeNow        = time.Now
	loadSection    = settings.LoadSection
)

const defaultFreeze = 10

// Options configures a training run.
type Options struct {
	// Binary is the yolo CLI executable, usually "yolo".
	Binary string
	// SettingsPath is the JSON settings file holding train/export sections.
	SettingsPath string
	// ExportFormat, when non-empty, triggers a model export after training.
	ExportFormat string

	Logger *slog.Logger
}

// Result reports where the run landed.
type Result struct {
	RunDir     string
	RecordPath string
	Exported   bool
}

// Run fine-tunes the model described by the settings file. The train section
// is read with one full pass over the file and the export section with a
// second; the file is not expected to change between the two reads. Training
// failure is fatal; export failure and run-record write failure are logged
// and do not fail the run.
func Run(ctx context.Context, opts Options) (Result, error) {
	logger := logging.NewComponentLogger(opts.Logger, "training")

	if _, err := exec.LookPath(opts.Binary); err != nil {
		return Result{}, fmt.Errorf("training tool %q not found on PATH: %w", opts.Binary, err)
	}

	trainValues, err := loadSection(opts.SettingsPath, "train")
	if err != nil {
		return Result{}, fmt.Errorf("load train settings: %w", err)
	}
	rawFreeze := trainValues["freeze"]
	trainValues = mergeSection(DefaultTrainSettings(), trainValues)
	if rawFreeze == nil {
		logger.Warn("freeze not set, defaulting backbone freeze",
			logging.Int("freeze", defaultFreeze))
		trainValues["freeze"] = float64(defaultFreeze)
	}

	logger.Info("starting training",
		logging.String("model", settings.StringValue(trainValues, "model")),
		logging.String("data", settings.StringValue(trainValues, "data")),
		logging.String("name", settings.StringValue(trainValues, "name")))

	args := append([]string{"detect", "train"}, settingsArgs(trainValues)...)
	if err := runTool(ctx, opts.Binary, args); err != nil {
		return Result{}, fmt.Errorf("training failed: %w", err)
	}

	runDir := filepath.Join(
		settings.StringValue(trainValues, "project"),
		settings.StringValue(trainValues, "name"))
	logger.Info("training complete", logging.String("run_dir", runDir))

	result := Result{RunDir: runDir}
	if opts.ExportFormat != "" {
		result.Exported = export(ctx, logger, opts, runDir)
	}

	result.RecordPath = filepath.Join(runDir, "training_params.json")
	if err := writeRunRecord(result.RecordPath, trainValues); err != nil {
		logger.Error("could not write run record",
			logging.String("path", result.RecordPath), logging.Error(err))
	} else {
		logger.Info("run record written", logging.String("path", result.RecordPath))
	}
	return result, nil
}

// export invokes the yolo export routine with the settings file's export
// section. Failures are logged and swallowed.
func export(ctx context.Context, logger *slog.Logger, opts Options, runDir string) bool {
	exportValues, err := loadSection(opts.SettingsPath, "export")
	if err != nil {
		logger.Error("load export settings", logging.Error(err))
		return false
	}
	exportValues = mergeSection(DefaultExportSettings(), exportValues)
	exportValues["format"] = opts.ExportFormat
	if exportValues["model"] == nil {
		exportValues["model"] = filepath.Join(runDir, "weights", "best.pt")
	}

	logger.Info("exporting model", logging.String("format", opts.ExportFormat))
	args := append([]string{"export"}, settingsArgs(exportValues)...)
	if err := runTool(ctx, opts.Binary, args); err != nil {
		logger.Error("export failed", logging.Error(err))
		return false
	}
	return true
}

// runRecord is the persisted snapshot of a training invocation.
type runRecord struct {
	TimestampISO string         `json:"timestamp_iso"`
	Date         string         `json:"date"`
	Time         string         `json:"time"`
	SettingsUsed map[string]any `json:"settings_used"`
}

func writeRunRecord(path string, trainValues map[string]any) error {
	now := timeNow()
	record := runRecord{
		TimestampISO: now.Format(time.RFC3339),
		Date:         now.Format("2006-01-02"),
		Time:         now.Format("15:04:05"),
		SettingsUsed: trainValues,
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// settingsArgs renders a settings section as sorted k=v CLI arguments.
func settingsArgs(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, key := range keys {
		args = append(args, key+"="+formatValue(values[key]))
	}
	return args
}

func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

func runTool(ctx context.Context, binary string, args []string) error {
	cmd := commandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(output))
		if trimmed != "" {
			return fmt.Errorf("%w: %s", err, trimmed)
		}
		return err
	}
	return nil
}
