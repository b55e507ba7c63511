// Package training drives the external Ultralytics yolo CLI: fine-tuning a
// detection model from a JSON settings file, optional model export, and a
// smoke-test prediction pass.
package training

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"detlab/internal/logging"
	"detlab/internal/settings"
)

// DefaultTrainSettings returns the built-in train section. Values mirror the
// yolo CLI parameter names so they translate directly to k=v arguments.
func DefaultTrainSettings() map[string]any {
	return map[string]any{
		"model":      "yolo11n.pt",
		"data":       "data.yaml",
		"epochs":     float64(100),
		"val":        true,
		"plots":      true,
		"seed":       float64(42),
		"patience":   float64(10),
		"imgsz":      float64(640),
		"batch":      float64(16),
		"freeze":     float64(10),
		"save":       true,
		"cache":      "disk",
		"device":     "0",
		"pretrained": true,
		"project":    "runs/train",
		"name":       "yolo11n_finetune",
	}
}

// DefaultExportSettings returns the built-in export section.
func DefaultExportSettings() map[string]any {
	return map[string]any{
		"imgsz":  float64(640),
		"half":   true,
		"device": "0",
	}
}

// DefaultSettings returns the full nested settings document.
func DefaultSettings() map[string]any {
	return map[string]any{
		"train":  DefaultTrainSettings(),
		"export": DefaultExportSettings(),
	}
}

// LoadOrCreateSettings ensures a usable settings file exists at path. An
// absent file is created with the defaults. A malformed file is logged and
// the defaults are used without touching the file. A partial file has its
// sections merged over the defaults so missing keys fall back.
func LoadOrCreateSettings(path string, logger *slog.Logger) (map[string]any, error) {
	logger = logging.NewComponentLogger(logger, "training")

	values, err := settings.Load(path)
	switch {
	case errors.Is(err, settings.ErrNotFound):
		logger.Info("settings file absent, writing defaults", logging.String("path", path))
		defaults := DefaultSettings()
		if writeErr := writeSettings(path, defaults); writeErr != nil {
			return nil, fmt.Errorf("write default settings: %w", writeErr)
		}
		return defaults, nil
	case errors.Is(err, settings.ErrMalformed):
		logger.Error("settings file malformed, using defaults", logging.String("path", path), logging.Error(err))
		return DefaultSettings(), nil
	case err != nil:
		return nil, err
	}

	merged := DefaultSettings()
	for _, section := range []string{"train", "export"} {
		if raw, ok := values[section].(map[string]any); ok {
			merged[section] = mergeSection(merged[section].(map[string]any), raw)
		}
	}
	return merged, nil
}

// mergeSection lays loaded values over the defaults, keeping defaults for
// keys the file omits.
func mergeSection(defaults, loaded map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(loaded))
	for key, value := range defaults {
		out[key] = value
	}
	for key, value := range loaded {
		out[key] = value
	}
	return out
}

func writeSettings(path string, values map[string]any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
