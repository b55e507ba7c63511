package training

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"detlab/internal/logging"
	"detlab/internal/settings"
)

// toolRecorder captures every yolo invocation and can fail one subcommand.
type toolRecorder struct {
	calls  [][]string
	failOn string
}

func recordTool(t *testing.T, failOn string) *toolRecorder {
	t.Helper()
	recorder := &toolRecorder{failOn: failOn}
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		recorder.calls = append(recorder.calls, args)
		if len(args) > 0 && args[0] == recorder.failOn {
			return exec.CommandContext(ctx, "sh", "-c", "echo 'tool error' >&2; exit 1")
		}
		return exec.CommandContext(ctx, "true")
	}
	t.Cleanup(func() { commandContext = original })
	return recorder
}

func writeSettingsFile(t *testing.T, document map[string]any) string {
	t.Helper()
	data, err := json.Marshal(document)
	if err != nil {
		t.Fatalf("marshal settings: %v", err)
	}
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return path
}

func TestLoadOrCreateSettingsWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	values, err := LoadOrCreateSettings(path, logging.NewNop())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("defaults file not written: %v", err)
	}

	train := values["train"].(map[string]any)
	if train["model"] != "yolo11n.pt" || train["freeze"] != float64(10) {
		t.Fatalf("unexpected defaults: %v", train)
	}

	reloaded, err := settings.Load(path)
	if err != nil {
		t.Fatalf("reload written defaults: %v", err)
	}
	if _, ok := reloaded["export"].(map[string]any); !ok {
		t.Fatal("written file missing export section")
	}
}

func TestLoadOrCreateSettingsMergesPartialOverDefaults(t *testing.T) {
	path := writeSettingsFile(t, map[string]any{
		"train": map[string]any{"epochs": 5, "model": "custom.pt"},
	})

	values, err := LoadOrCreateSettings(path, logging.NewNop())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	train := values["train"].(map[string]any)
	if train["epochs"] != float64(5) {
		t.Fatalf("file value lost: epochs = %v", train["epochs"])
	}
	if train["model"] != "custom.pt" {
		t.Fatalf("file value lost: model = %v", train["model"])
	}
	if train["batch"] != float64(16) {
		t.Fatalf("default not filled in: batch = %v", train["batch"])
	}
}

func TestLoadOrCreateSettingsMalformedFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	values, err := LoadOrCreateSettings(path, logging.NewNop())
	if err != nil {
		t.Fatalf("malformed file must not fail the load: %v", err)
	}
	train := values["train"].(map[string]any)
	if train["model"] != "yolo11n.pt" {
		t.Fatalf("expected defaults, got %v", train)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "{not json" {
		t.Fatalf("malformed file must be left untouched: %q %v", data, err)
	}
}

func TestRunDefaultsFreezeWithWarningWhenAbsent(t *testing.T) {
	recorder := recordTool(t, "")
	project := t.TempDir()
	path := writeSettingsFile(t, map[string]any{
		"train": map[string]any{
			"model":   "custom.pt",
			"project": project,
			"name":    "run1",
		},
	})

	result, err := Run(context.Background(), Options{
		Binary:       "sh",
		SettingsPath: path,
		Logger:       logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(recorder.calls) != 1 {
		t.Fatalf("expected one tool call, got %d", len(recorder.calls))
	}
	args := recorder.calls[0]
	if args[0] != "detect" || args[1] != "train" {
		t.Fatalf("unexpected subcommand: %v", args[:2])
	}
	if !containsArg(args, "freeze=10") {
		t.Fatalf("freeze must default to 10, args: %v", args)
	}

	record := readRunRecord(t, result.RecordPath)
	if record.SettingsUsed["freeze"] != float64(10) {
		t.Fatalf("run record settings_used.freeze = %v", record.SettingsUsed["freeze"])
	}
	if record.TimestampISO == "" || record.Date == "" || record.Time == "" {
		t.Fatalf("run record missing timestamps: %+v", record)
	}
}

func TestRunReadsSettingsFilePerSection(t *testing.T) {
	recorder := recordTool(t, "")
	project := t.TempDir()
	path := writeSettingsFile(t, map[string]any{
		"train":  map[string]any{"project": project, "name": "run1", "freeze": 5},
		"export": map[string]any{"half": false},
	})

	var sections []string
	original := loadSection
	loadSection = func(p, section string) (map[string]any, error) {
		sections = append(sections, section)
		return original(p, section)
	}
	t.Cleanup(func() { loadSection = original })

	result, err := Run(context.Background(), Options{
		Binary:       "sh",
		SettingsPath: path,
		ExportFormat: "onnx",
		Logger:       logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Exported {
		t.Fatal("export should have succeeded")
	}

	if !reflect.DeepEqual(sections, []string{"train", "export"}) {
		t.Fatalf("expected one full read per section, got %v", sections)
	}

	if len(recorder.calls) != 2 {
		t.Fatalf("expected train and export calls, got %d", len(recorder.calls))
	}
	exportArgs := recorder.calls[1]
	if exportArgs[0] != "export" {
		t.Fatalf("second call must be export, got %v", exportArgs)
	}
	if !containsArg(exportArgs, "format=onnx") || !containsArg(exportArgs, "half=false") {
		t.Fatalf("export args incomplete: %v", exportArgs)
	}
	wantModel := "model=" + filepath.Join(project, "run1", "weights", "best.pt")
	if !containsArg(exportArgs, wantModel) {
		t.Fatalf("export model must default to the trained weights: %v", exportArgs)
	}
}

func TestRunSwallowsExportFailure(t *testing.T) {
	recorder := recordTool(t, "export")
	project := t.TempDir()
	path := writeSettingsFile(t, map[string]any{
		"train":  map[string]any{"project": project, "name": "run1", "freeze": 5},
		"export": map[string]any{},
	})

	result, err := Run(context.Background(), Options{
		Binary:       "sh",
		SettingsPath: path,
		ExportFormat: "engine",
		Logger:       logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("export failure must not fail the run: %v", err)
	}
	if result.Exported {
		t.Fatal("export reported success despite tool failure")
	}
	if len(recorder.calls) != 2 {
		t.Fatalf("export must still be attempted, calls: %d", len(recorder.calls))
	}
	if _, statErr := os.Stat(result.RecordPath); statErr != nil {
		t.Fatalf("run record must be written after export failure: %v", statErr)
	}
}

func TestRunTrainingFailureIsFatal(t *testing.T) {
	recorder := recordTool(t, "detect")
	path := writeSettingsFile(t, map[string]any{
		"train": map[string]any{"project": t.TempDir(), "name": "run1"},
	})

	_, err := Run(context.Background(), Options{
		Binary:       "sh",
		SettingsPath: path,
		Logger:       logging.NewNop(),
	})
	if err == nil {
		t.Fatal("training failure must propagate")
	}
	if !strings.Contains(err.Error(), "tool error") {
		t.Fatalf("error should carry tool output: %v", err)
	}
	if len(recorder.calls) != 1 {
		t.Fatalf("nothing should run after a failed training call: %d", len(recorder.calls))
	}
}

func TestSettingsArgsSortedAndFormatted(t *testing.T) {
	args := settingsArgs(map[string]any{
		"epochs": float64(100),
		"val":    true,
		"cache":  "disk",
		"lr0":    0.01,
	})
	want := []string{"cache=disk", "epochs=100", "lr0=0.01", "val=true"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
}

func TestPredictReportsConfidenceRange(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		project := ""
		for _, arg := range args {
			if strings.HasPrefix(arg, "project=") {
				project = strings.TrimPrefix(arg, "project=")
			}
		}
		labels := filepath.Join(project, "smoke", "labels")
		script := fmt.Sprintf(
			"mkdir -p %[1]s && printf '0 0.5 0.5 0.2 0.2 0.91\\n1 0.1 0.1 0.2 0.2 0.42\\n' > %[1]s/img.txt",
			labels)
		return exec.CommandContext(ctx, "sh", "-c", script)
	}
	t.Cleanup(func() { commandContext = original })

	dir := t.TempDir()
	weights := filepath.Join(dir, "best.pt")
	source := filepath.Join(dir, "image.jpg")
	for _, path := range []string{weights, source} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	result, err := Predict(context.Background(), PredictOptions{
		Binary:  "sh",
		Weights: weights,
		Source:  source,
		Logger:  logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if result.Boxes != 2 {
		t.Fatalf("boxes = %d, want 2", result.Boxes)
	}
	if result.MinConfidence != 0.42 || result.MaxConfidence != 0.91 {
		t.Fatalf("confidence range = [%v, %v]", result.MinConfidence, result.MaxConfidence)
	}
}

func TestPredictNoDetectionsIsNotAnError(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "true")
	}
	t.Cleanup(func() { commandContext = original })

	dir := t.TempDir()
	weights := filepath.Join(dir, "best.pt")
	source := filepath.Join(dir, "image.jpg")
	for _, path := range []string{weights, source} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	result, err := Predict(context.Background(), PredictOptions{
		Binary:  "sh",
		Weights: weights,
		Source:  source,
		Logger:  logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if result.Boxes != 0 {
		t.Fatalf("boxes = %d, want 0", result.Boxes)
	}
}

func containsArg(args []string, want string) bool {
	for _, arg := range args {
		if arg == want {
			return true
		}
	}
	return false
}

func readRunRecord(t *testing.T, path string) runRecord {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read run record: %v", err)
	}
	var record runRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("decode run record: %v", err)
	}
	return record
}
